// Package page loads every widget of a dashboard page against one shared
// URL location.
package page

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
	"github.com/odyssey-erp/dashclient/internal/widget"
)

// maxConcurrentLoads bounds parallel widget fetches of one page.
const maxConcurrentLoads = 4

// Loader owns one controller per table widget of a page.
type Loader struct {
	page        dashboard.Page
	logger      *slog.Logger
	controllers []*widget.Controller
	byID        map[string]*widget.Controller
	skipped     []dashboard.Widget
}

// NewLoader builds controllers for the table widgets of page. Widgets of
// other types are kept aside and never fetched.
func NewLoader(page dashboard.Page, fetcher widget.Fetcher, nav widget.Navigator, logger *slog.Logger, opts ...widget.Option) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		page:   page,
		logger: logger,
		byID:   make(map[string]*widget.Controller, len(page.Widgets)),
	}
	ctrlOpts := append([]widget.Option{widget.WithLogger(logger)}, opts...)
	for _, w := range page.Widgets {
		if w.Type != dashboard.WidgetTable {
			l.skipped = append(l.skipped, w)
			continue
		}
		ctrl := widget.New(w, fetcher, nav, ctrlOpts...)
		l.controllers = append(l.controllers, ctrl)
		l.byID[w.ID] = ctrl
	}
	return l
}

// Page returns the page description.
func (l *Loader) Page() dashboard.Page { return l.page }

// Controller returns the controller of a table widget.
func (l *Loader) Controller(id string) (*widget.Controller, bool) {
	ctrl, ok := l.byID[id]
	return ctrl, ok
}

// Skipped lists the widgets without a data controller.
func (l *Loader) Skipped() []dashboard.Widget { return l.skipped }

// Sync brings every widget in line with the current location. A failing
// widget does not affect the others; its error shows up in its view. Only
// cancellation of ctx is returned.
func (l *Loader) Sync(ctx context.Context) error {
	return l.each(ctx, "widget sync failed", (*widget.Controller).Sync)
}

// Reload refetches the first page of every widget, keeping the location.
func (l *Loader) Reload(ctx context.Context) error {
	return l.each(ctx, "widget reload failed", (*widget.Controller).Reload)
}

func (l *Loader) each(ctx context.Context, failMsg string, run func(*widget.Controller, context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for _, ctrl := range l.controllers {
		g.Go(func() error {
			err := run(ctrl, gctx)
			switch {
			case err == nil, widget.IsStale(err):
				return nil
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
			l.logger.Warn(failMsg, slog.String("widget", ctrl.ID()), slog.Any("error", err))
			return nil
		})
	}
	return g.Wait()
}

// Views returns the view of every table widget in page order.
func (l *Loader) Views() []widget.View {
	views := make([]widget.View, 0, len(l.controllers))
	for _, ctrl := range l.controllers {
		views = append(views, ctrl.View())
	}
	return views
}
