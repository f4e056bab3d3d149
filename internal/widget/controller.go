// Package widget drives the data of one dashboard widget: filter state kept
// in the URL, the effective query and cursor pagination of its rows.
package widget

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
	"github.com/odyssey-erp/dashclient/internal/filters"
	"github.com/odyssey-erp/dashclient/internal/paging"
)

// Fetcher loads one page of widget rows.
type Fetcher interface {
	FetchWidgetData(ctx context.Context, widgetID string, params url.Values) (dashboard.DataResponse, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, widgetID string, params url.Values) (dashboard.DataResponse, error)

// FetchWidgetData implements Fetcher.
func (f FetcherFunc) FetchWidgetData(ctx context.Context, widgetID string, params url.Values) (dashboard.DataResponse, error) {
	return f(ctx, widgetID, params)
}

// View is what a widget displays.
type View struct {
	Widget      dashboard.Widget
	Rows        []dashboard.Row
	Total       int
	NextCursor  string
	HasMore     bool
	CanLoadMore bool
	Loading     bool
	LoadingMore bool
	Err         error
	LoadMoreErr error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCodec sets the value codec, typically to pin the viewer time zone.
func WithCodec(codec filters.Codec) Option {
	return func(c *Controller) {
		c.codec = codec
	}
}

// Controller owns the filter state and pagination of one widget. The URL,
// reached through the Navigator, is the source of truth for applied
// filters; it is only changed by Apply and Reset.
type Controller struct {
	fetcher Fetcher
	nav     Navigator
	codec   filters.Codec
	logger  *slog.Logger
	tracker *paging.Tracker

	mu        sync.Mutex
	widget    dashboard.Widget
	location  string
	base      url.Values
	draft     filters.State
	applied   filters.State
	effective url.Values
	queryKey  string
	synced    bool
}

// New builds a controller. Nothing is fetched until Sync.
func New(widget dashboard.Widget, fetcher Fetcher, nav Navigator, opts ...Option) *Controller {
	c := &Controller{
		fetcher:   fetcher,
		nav:       nav,
		codec:     filters.DefaultCodec,
		logger:    slog.Default(),
		tracker:   paging.NewTracker(),
		widget:    widget,
		base:      url.Values{},
		effective: url.Values{},
	}
	for _, opt := range opts {
		opt(c)
	}
	specs := widget.Filters()
	c.draft = filters.EmptyState(specs)
	c.applied = filters.EmptyState(specs)
	return c
}

// ID returns the widget id.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.widget.ID
}

// Sync reacts to a location change using the navigator's current entry.
func (c *Controller) Sync(ctx context.Context) error {
	return c.SyncQuery(ctx, c.nav.Location())
}

// SyncQuery re-parses draft and applied filters from rawQuery. When the
// effective query changed, or nothing was loaded yet, pagination restarts
// with a full reload.
func (c *Controller) SyncQuery(ctx context.Context, rawQuery string) error {
	c.mu.Lock()
	specs := c.widget.Filters()
	parsed := c.codec.ParseParams(specs, rawQuery)
	c.draft = parsed.Clone()
	c.applied = parsed
	c.location = rawQuery
	c.base = filters.BaseParams(specs, rawQuery)
	c.effective = c.compose(c.applied)
	key := c.widget.ID + "?" + c.effective.Encode()
	changed := !c.synced || key != c.queryKey
	c.queryKey = key
	c.synced = true
	if !changed {
		c.mu.Unlock()
		return nil
	}
	ticket, id, params := c.beginReloadLocked()
	c.mu.Unlock()

	return c.runReload(ctx, ticket, id, params)
}

// SetWidget swaps the widget definition and re-syncs against the current URL.
func (c *Controller) SetWidget(ctx context.Context, widget dashboard.Widget) error {
	c.mu.Lock()
	c.widget = widget
	c.synced = false
	c.mu.Unlock()
	return c.Sync(ctx)
}

// compose builds base params plus state. Callers hold c.mu.
func (c *Controller) compose(state filters.State) url.Values {
	out := make(url.Values, len(c.base))
	for key, values := range c.base {
		out[key] = append([]string(nil), values...)
	}
	c.codec.AppendFilters(out, state, c.widget.Filters())
	return out
}

// Draft returns a copy of the filter state shown by the inputs.
func (c *Controller) Draft() filters.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

// SetDraft replaces the draft. Nothing is fetched until Apply.
func (c *Controller) SetDraft(state filters.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = state.Clone()
}

// Applied returns a copy of the filter state that drives fetching.
func (c *Controller) Applied() filters.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied.Clone()
}

// EffectiveQuery returns the query sent to the data endpoint, without paging.
func (c *Controller) EffectiveQuery() url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(url.Values, len(c.effective))
	for key, values := range c.effective {
		out[key] = append([]string(nil), values...)
	}
	return out
}

// Apply commits the draft and pushes it into the URL. Unrelated parameters
// are kept; paging parameters are dropped.
func (c *Controller) Apply(ctx context.Context) error {
	c.mu.Lock()
	c.applied = c.draft.Clone()
	rawQuery := c.codec.BuildQuery(c.widget.Filters(), c.location, c.applied)
	c.mu.Unlock()

	c.nav.Navigate(rawQuery)
	return c.SyncQuery(ctx, rawQuery)
}

// Reset clears draft and applied filters to their defaults and pushes the
// result into the URL.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	cleared := filters.EmptyState(c.widget.Filters())
	c.draft = cleared.Clone()
	c.applied = cleared
	rawQuery := c.codec.BuildQuery(c.widget.Filters(), c.location, cleared)
	c.mu.Unlock()

	c.nav.Navigate(rawQuery)
	return c.SyncQuery(ctx, rawQuery)
}

// Reload refetches the first page of the effective query.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	ticket, id, params := c.beginReloadLocked()
	c.mu.Unlock()
	return c.runReload(ctx, ticket, id, params)
}

func (c *Controller) beginReloadLocked() (paging.Ticket, string, url.Values) {
	params := make(url.Values, len(c.effective))
	for key, values := range c.effective {
		params[key] = append([]string(nil), values...)
	}
	return c.tracker.Reset(), c.widget.ID, params
}

func (c *Controller) runReload(ctx context.Context, ticket paging.Ticket, id string, params url.Values) error {
	c.logger.Debug("widget reload", slog.String("widget", id), slog.String("query", params.Encode()))
	resp, err := c.fetcher.FetchWidgetData(ctx, id, params)
	if err != nil {
		if stale := c.tracker.FailReload(ticket, err); stale != nil {
			return stale
		}
		c.logger.Warn("widget reload failed", slog.String("widget", id), slog.Any("error", err))
		return err
	}
	return c.tracker.CompleteReload(ticket, paging.PageFrom(resp))
}

// LoadMore fetches the page after the current cursor and appends it. It is
// a no-op without a cursor or while another request is in flight.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	ticket, cursor, ok := c.tracker.BeginLoadMore()
	if !ok {
		c.mu.Unlock()
		return nil
	}
	id := c.widget.ID
	params := make(url.Values, len(c.effective)+1)
	for key, values := range c.effective {
		params[key] = append([]string(nil), values...)
	}
	c.mu.Unlock()

	params.Set(filters.ParamOffset, cursor)
	c.logger.Debug("widget load more", slog.String("widget", id), slog.String("cursor", cursor))
	resp, err := c.fetcher.FetchWidgetData(ctx, id, params)
	if err != nil {
		if stale := c.tracker.FailLoadMore(ticket, err); stale != nil {
			return stale
		}
		c.logger.Warn("widget load more failed", slog.String("widget", id), slog.Any("error", err))
		return err
	}
	return c.tracker.CompleteLoadMore(ticket, paging.PageFrom(resp))
}

// View snapshots what the widget displays.
func (c *Controller) View() View {
	c.mu.Lock()
	widget := c.widget
	c.mu.Unlock()

	snap := c.tracker.Snapshot()
	return View{
		Widget:      widget,
		Rows:        snap.Rows,
		Total:       len(snap.Rows),
		NextCursor:  snap.NextCursor,
		HasMore:     snap.HasMore,
		CanLoadMore: snap.CanLoadMore(),
		Loading:     snap.Reloading,
		LoadingMore: snap.LoadingMore,
		Err:         snap.Err,
		LoadMoreErr: snap.LoadMoreErr,
	}
}

// IsStale reports whether err only means a result was superseded.
func IsStale(err error) bool {
	return errors.Is(err, paging.ErrStale)
}
