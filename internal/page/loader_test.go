package page

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
	"github.com/odyssey-erp/dashclient/internal/widget"
)

type recordingFetcher struct {
	mu    sync.Mutex
	calls map[string]url.Values
	fail  map[string]error
}

func (f *recordingFetcher) FetchWidgetData(ctx context.Context, widgetID string, params url.Values) (dashboard.DataResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]url.Values{}
	}
	f.calls[widgetID] = params
	if err := f.fail[widgetID]; err != nil {
		return dashboard.DataResponse{}, err
	}
	if err := ctx.Err(); err != nil {
		return dashboard.DataResponse{}, err
	}
	return dashboard.DataResponse{Data: []dashboard.Row{{"widget": widgetID}}, Total: 1}, nil
}

func tableWidget(id string, filters ...dashboard.FilterSpec) dashboard.Widget {
	return dashboard.Widget{
		ID:   id,
		Type: dashboard.WidgetTable,
		Table: &dashboard.TableSpec{
			Columns: []dashboard.ColumnSpec{{ID: "widget"}},
			Filters: filters,
		},
	}
}

var testPage = dashboard.Page{
	Slug: "ops",
	Widgets: []dashboard.Widget{
		tableWidget("users", dashboard.FilterSpec{ID: "status", Type: dashboard.FilterText}),
		tableWidget("reports", dashboard.FilterSpec{ID: "owner", Type: dashboard.FilterSelectMulti}),
		{ID: "banner", Type: "markdown"},
	},
}

func TestLoaderSyncsAllTableWidgets(t *testing.T) {
	fetcher := &recordingFetcher{}
	nav := widget.NewHistory("status=active&owner=Ops&tab=1")
	loader := NewLoader(testPage, fetcher, nav, nil)

	require.NoError(t, loader.Sync(context.Background()))

	require.Equal(t, url.Values{"status": {"active"}, "owner": {"Ops"}, "tab": {"1"}}, fetcher.calls["users"],
		"filters of other widgets are unrelated params and stay in the query")
	require.Equal(t, "Ops", fetcher.calls["reports"].Get("owner"))
	require.NotContains(t, fetcher.calls, "banner")

	views := loader.Views()
	require.Len(t, views, 2)
	require.Equal(t, "users", views[0].Widget.ID)
	require.Equal(t, "reports", views[1].Widget.ID)
	require.Len(t, loader.Skipped(), 1)
	require.Equal(t, "ops", loader.Page().Slug)
}

func TestLoaderIsolatesWidgetFailures(t *testing.T) {
	fetcher := &recordingFetcher{fail: map[string]error{"users": errors.New("boom")}}
	loader := NewLoader(testPage, fetcher, widget.NewHistory(""), nil)

	require.NoError(t, loader.Sync(context.Background()))

	views := loader.Views()
	require.EqualError(t, views[0].Err, "boom")
	require.Empty(t, views[0].Rows)
	require.NoError(t, views[1].Err)
	require.Len(t, views[1].Rows, 1)
}

func TestLoaderReturnsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loader := NewLoader(testPage, &recordingFetcher{}, widget.NewHistory(""), nil)

	err := loader.Sync(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoaderController(t *testing.T) {
	loader := NewLoader(testPage, &recordingFetcher{}, widget.NewHistory(""), nil)
	ctrl, ok := loader.Controller("reports")
	require.True(t, ok)
	require.Equal(t, "reports", ctrl.ID())
	_, ok = loader.Controller("banner")
	require.False(t, ok)
}

func TestLoaderReloadRefetchesUnchangedLocation(t *testing.T) {
	fetcher := &recordingFetcher{}
	loader := NewLoader(testPage, fetcher, widget.NewHistory("status=active"), nil)
	ctx := context.Background()

	require.NoError(t, loader.Sync(ctx))
	fetcher.calls = nil
	require.NoError(t, loader.Sync(ctx))
	require.Empty(t, fetcher.calls, "same location keeps the loaded pages")

	require.NoError(t, loader.Reload(ctx))
	require.Len(t, fetcher.calls, 2)
	require.Equal(t, "active", fetcher.calls["users"].Get("status"))
}
