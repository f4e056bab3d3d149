package api

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
	"github.com/odyssey-erp/dashclient/internal/platform/cache"
)

// WidgetFetcher loads one page of widget rows.
type WidgetFetcher interface {
	FetchWidgetData(ctx context.Context, widgetID string, params url.Values) (dashboard.DataResponse, error)
}

// CachedFetcher serves widget pages from a versioned Redis cache, keyed by
// widget id and the full encoded query including the cursor.
type CachedFetcher struct {
	next   WidgetFetcher
	store  *cache.Store
	logger *slog.Logger
}

// NewCachedFetcher wraps next. A nil store disables caching.
func NewCachedFetcher(next WidgetFetcher, store *cache.Store, logger *slog.Logger) *CachedFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedFetcher{next: next, store: store, logger: logger}
}

// FetchWidgetData implements WidgetFetcher.
func (f *CachedFetcher) FetchWidgetData(ctx context.Context, widgetID string, params url.Values) (dashboard.DataResponse, error) {
	key, err := f.store.BuildKey(ctx, "widget", widgetID, params.Encode())
	if err != nil {
		f.logger.Warn("widget cache unavailable", slog.String("widget", widgetID), slog.Any("error", err))
		return f.next.FetchWidgetData(ctx, widgetID, params)
	}
	var (
		resp    dashboard.DataResponse
		loaded  dashboard.DataResponse
		called  bool
		loadErr error
	)
	hit, err := f.store.FetchJSON(ctx, key, &resp, func(ctx context.Context) (any, error) {
		called = true
		loaded, loadErr = f.next.FetchWidgetData(ctx, widgetID, params)
		return loaded, loadErr
	})
	switch {
	case err == nil:
	case called && loadErr != nil:
		return dashboard.DataResponse{}, loadErr
	case called:
		// Upstream answered; only the cache write failed.
		f.logger.Warn("widget cache write failed", slog.String("widget", widgetID), slog.Any("error", err))
		resp = loaded
	default:
		f.logger.Warn("widget cache read failed", slog.String("widget", widgetID), slog.Any("error", err))
		return f.next.FetchWidgetData(ctx, widgetID, params)
	}
	if hit {
		f.logger.Debug("widget cache hit", slog.String("widget", widgetID), slog.String("key", key))
	}
	if resp.Data == nil {
		resp.Data = []dashboard.Row{}
	}
	return resp, nil
}

// Invalidate drops every cached page.
func (f *CachedFetcher) Invalidate(ctx context.Context) error {
	_, err := f.store.Bump(ctx)
	return err
}

// Watch calls onInvalidate whenever any process invalidates the cache,
// until ctx ends.
func (f *CachedFetcher) Watch(ctx context.Context, onInvalidate func()) error {
	return f.store.ListenForInvalidation(ctx, func(version int64) {
		f.logger.Debug("widget cache invalidated", slog.Int64("version", version))
		onInvalidate()
	})
}
