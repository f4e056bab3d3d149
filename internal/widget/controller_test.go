package widget

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
	"github.com/odyssey-erp/dashclient/internal/filters"
)

type fetchCall struct {
	widget string
	params url.Values
}

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []fetchCall
	handler func(call fetchCall) (dashboard.DataResponse, error)
}

func (f *fakeFetcher) FetchWidgetData(ctx context.Context, widgetID string, params url.Values) (dashboard.DataResponse, error) {
	call := fetchCall{widget: widgetID, params: params}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	handler := f.handler
	f.mu.Unlock()
	return handler(call)
}

func (f *fakeFetcher) Calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

func usersPage(from, to int, more bool) dashboard.DataResponse {
	rows := make([]dashboard.Row, 0, to-from+1)
	for i := from; i <= to; i++ {
		rows = append(rows, dashboard.Row{"id": float64(i)})
	}
	cursor := strconv.Itoa(to)
	return dashboard.DataResponse{Data: rows, Total: len(rows), NextCursor: &cursor, HasMore: &more}
}

// pagedUsers serves 1..total in pages of size using offset as the last id.
func pagedUsers(total, size int) func(fetchCall) (dashboard.DataResponse, error) {
	return func(call fetchCall) (dashboard.DataResponse, error) {
		start := 1
		if offset := call.params.Get("offset"); offset != "" {
			n, _ := strconv.Atoi(offset)
			start = n + 1
		}
		end := min(start+size-1, total)
		return usersPage(start, end, end < total), nil
	}
}

var usersWidget = dashboard.Widget{
	ID:   "users",
	Type: dashboard.WidgetTable,
	Table: &dashboard.TableSpec{
		Columns: []dashboard.ColumnSpec{{ID: "id"}},
		Filters: []dashboard.FilterSpec{
			{ID: "status", Type: dashboard.FilterSelectOne, Operators: []string{"eq"}},
			{ID: "amount", Type: dashboard.FilterNumber, Operators: []string{"between"}},
			{ID: "tags", Type: dashboard.FilterSelectMulti},
		},
	},
}

func TestControllerFirstLoadAndLoadMore(t *testing.T) {
	fetcher := &fakeFetcher{handler: pagedUsers(120, 50)}
	ctrl := New(usersWidget, fetcher, NewHistory(""))
	ctx := context.Background()

	require.NoError(t, ctrl.Sync(ctx))
	view := ctrl.View()
	require.Len(t, view.Rows, 50)
	require.True(t, view.HasMore)
	require.Equal(t, "50", view.NextCursor)
	require.True(t, view.CanLoadMore)

	calls := fetcher.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "users", calls[0].widget)
	require.Empty(t, calls[0].params.Get("offset"))

	require.NoError(t, ctrl.LoadMore(ctx))
	calls = fetcher.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, "50", calls[1].params.Get("offset"))

	view = ctrl.View()
	require.Len(t, view.Rows, 100)
	require.Equal(t, float64(51), view.Rows[50]["id"])
	require.Equal(t, "100", view.NextCursor)

	require.NoError(t, ctrl.LoadMore(ctx))
	view = ctrl.View()
	require.Len(t, view.Rows, 120)
	require.False(t, view.HasMore)
	require.False(t, view.CanLoadMore)
}

func TestControllerSyncIgnoresUnchangedQuery(t *testing.T) {
	fetcher := &fakeFetcher{handler: pagedUsers(10, 5)}
	nav := NewHistory("status=ok&page=1")
	ctrl := New(usersWidget, fetcher, nav)
	ctx := context.Background()

	require.NoError(t, ctrl.Sync(ctx))
	require.NoError(t, ctrl.Sync(ctx))
	require.NoError(t, ctrl.SyncQuery(ctx, "page=1&status=ok&offset=5"))
	require.Len(t, fetcher.Calls(), 1)

	require.Equal(t, url.Values{"page": {"1"}, "status": {"ok"}}, ctrl.EffectiveQuery())
	require.Equal(t, []string{"ok"}, ctrl.Applied()["status"].Values)
	require.Equal(t, []string{"ok"}, ctrl.Draft()["status"].Values)
}

func TestControllerApplyPushesURL(t *testing.T) {
	fetcher := &fakeFetcher{handler: pagedUsers(10, 5)}
	nav := NewHistory("page=2&status=ok&offset=40&limit=5")
	ctrl := New(usersWidget, fetcher, nav)
	ctx := context.Background()
	require.NoError(t, ctrl.Sync(ctx))

	draft := ctrl.Draft().WithRange("amount", "10", "20").WithValues("tags", "a", "b")
	ctrl.SetDraft(draft)
	require.Empty(t, ctrl.Applied()["amount"].Values, "draft edits must not touch applied state")
	require.Len(t, fetcher.Calls(), 1)

	require.NoError(t, ctrl.Apply(ctx))
	require.Equal(t, "page=2&status=ok&amount.between=10&amount.between=20&tags=a&tags=b", nav.Location())
	require.Equal(t, 2, nav.Len())

	calls := fetcher.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, url.Values{
		"amount.between": {"10", "20"},
		"page":           {"2"},
		"status":         {"ok"},
		"tags":           {"a", "b"},
	}, calls[1].params)

	applied := ctrl.Applied()
	require.Equal(t, filters.Entry{Operator: filters.Explicit("between"), Values: []string{"10", "20"}}, applied["amount"])
}

func TestControllerApplyKeepsUnrelatedParamOrder(t *testing.T) {
	fetcher := &fakeFetcher{handler: pagedUsers(10, 5)}
	nav := NewHistory("view=compact&status=ok&page=3&after=x")
	ctrl := New(usersWidget, fetcher, nav)
	ctx := context.Background()
	require.NoError(t, ctrl.Sync(ctx))

	ctrl.SetDraft(ctrl.Draft().WithValues("status", "delayed"))
	require.NoError(t, ctrl.Apply(ctx))
	require.Equal(t, "view=compact&page=3&after=x&status=delayed", nav.Location())

	require.NoError(t, ctrl.Reset(ctx))
	require.Equal(t, "view=compact&page=3&after=x", nav.Location())
}

func TestControllerBackRestoresFilters(t *testing.T) {
	fetcher := &fakeFetcher{handler: pagedUsers(10, 5)}
	nav := NewHistory("status=ok")
	ctrl := New(usersWidget, fetcher, nav)
	ctx := context.Background()
	require.NoError(t, ctrl.Sync(ctx))
	before := ctrl.Applied()

	ctrl.SetDraft(ctrl.Draft().WithValues("status", "delayed"))
	require.NoError(t, ctrl.Apply(ctx))
	require.Equal(t, []string{"delayed"}, ctrl.Applied()["status"].Values)

	require.True(t, nav.Back())
	require.NoError(t, ctrl.Sync(ctx))
	require.True(t, before.Equal(ctrl.Applied()))
	require.True(t, before.Equal(ctrl.Draft()))
	require.Len(t, fetcher.Calls(), 3)
}

func TestControllerReset(t *testing.T) {
	fetcher := &fakeFetcher{handler: pagedUsers(10, 5)}
	nav := NewHistory("status=ok&tags=a&view=compact")
	ctrl := New(usersWidget, fetcher, nav)
	ctx := context.Background()
	require.NoError(t, ctrl.Sync(ctx))

	require.NoError(t, ctrl.Reset(ctx))
	require.Equal(t, "view=compact", nav.Location())
	require.True(t, filters.EmptyState(usersWidget.Filters()).Equal(ctrl.Applied()))
	require.True(t, filters.EmptyState(usersWidget.Filters()).Equal(ctrl.Draft()))
	require.Equal(t, url.Values{"view": {"compact"}}, fetcher.Calls()[1].params)
}

func TestControllerFilterChangeClearsRowsBeforeFetch(t *testing.T) {
	release := make(chan struct{})
	var blocking sync.Once
	started := make(chan struct{})
	base := pagedUsers(100, 50)
	fetcher := &fakeFetcher{}
	fetcher.handler = func(call fetchCall) (dashboard.DataResponse, error) {
		if call.params.Get("status") == "delayed" {
			blocking.Do(func() { close(started) })
			<-release
		}
		return base(call)
	}
	nav := NewHistory("")
	ctrl := New(usersWidget, fetcher, nav)
	ctx := context.Background()
	require.NoError(t, ctrl.Sync(ctx))
	require.Len(t, ctrl.View().Rows, 50)

	ctrl.SetDraft(ctrl.Draft().WithValues("status", "delayed"))
	done := make(chan error, 1)
	go func() { done <- ctrl.Apply(ctx) }()

	<-started
	view := ctrl.View()
	require.Empty(t, view.Rows)
	require.Empty(t, view.NextCursor)
	require.True(t, view.Loading)
	require.False(t, view.CanLoadMore)

	close(release)
	require.NoError(t, <-done)
	require.Len(t, ctrl.View().Rows, 50)
}

func TestControllerReloadSupersedesLoadMore(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	base := pagedUsers(200, 50)
	fetcher := &fakeFetcher{}
	fetcher.handler = func(call fetchCall) (dashboard.DataResponse, error) {
		if call.params.Get("offset") != "" {
			close(started)
			<-release
		}
		return base(call)
	}
	ctrl := New(usersWidget, fetcher, NewHistory(""))
	ctx := context.Background()
	require.NoError(t, ctrl.Sync(ctx))

	done := make(chan error, 1)
	go func() { done <- ctrl.LoadMore(ctx) }()
	<-started

	require.NoError(t, ctrl.LoadMore(ctx), "duplicate load-more is a no-op")
	require.Len(t, fetcher.Calls(), 2)

	ctrl.SetDraft(ctrl.Draft().WithValues("status", "ok"))
	require.NoError(t, ctrl.Apply(ctx))
	require.Len(t, ctrl.View().Rows, 50)

	close(release)
	err := <-done
	require.True(t, IsStale(err), "late load-more must be discarded, got %v", err)

	view := ctrl.View()
	require.Len(t, view.Rows, 50)
	require.Equal(t, float64(1), view.Rows[0]["id"])
	require.Equal(t, "50", view.NextCursor)
}

func TestControllerReloadFailureDropsRows(t *testing.T) {
	failing := errors.New("widget request failed: 500")
	base := pagedUsers(100, 50)
	fetcher := &fakeFetcher{}
	fetcher.handler = func(call fetchCall) (dashboard.DataResponse, error) {
		if call.params.Get("status") == "broken" {
			return dashboard.DataResponse{}, failing
		}
		return base(call)
	}
	nav := NewHistory("")
	ctrl := New(usersWidget, fetcher, nav)
	ctx := context.Background()
	require.NoError(t, ctrl.Sync(ctx))
	require.Len(t, ctrl.View().Rows, 50)

	ctrl.SetDraft(ctrl.Draft().WithValues("status", "broken"))
	require.ErrorIs(t, ctrl.Apply(ctx), failing)

	view := ctrl.View()
	require.Empty(t, view.Rows, "stale rows of the previous query must not be shown")
	require.ErrorIs(t, view.Err, failing)
	require.False(t, view.Loading)
}

func TestControllerLoadMoreFailureKeepsRows(t *testing.T) {
	failing := errors.New("timeout")
	attempts := 0
	base := pagedUsers(100, 50)
	fetcher := &fakeFetcher{}
	fetcher.handler = func(call fetchCall) (dashboard.DataResponse, error) {
		if call.params.Get("offset") != "" {
			attempts++
			if attempts == 1 {
				return dashboard.DataResponse{}, failing
			}
		}
		return base(call)
	}
	ctrl := New(usersWidget, fetcher, NewHistory(""))
	ctx := context.Background()
	require.NoError(t, ctrl.Sync(ctx))

	require.ErrorIs(t, ctrl.LoadMore(ctx), failing)
	view := ctrl.View()
	require.Len(t, view.Rows, 50)
	require.ErrorIs(t, view.LoadMoreErr, failing)
	require.NoError(t, view.Err)
	require.True(t, view.CanLoadMore)

	require.NoError(t, ctrl.LoadMore(ctx))
	view = ctrl.View()
	require.Len(t, view.Rows, 100)
	require.NoError(t, view.LoadMoreErr)
}

func TestControllerSetWidgetReparses(t *testing.T) {
	fetcher := &fakeFetcher{handler: pagedUsers(10, 5)}
	nav := NewHistory("region=eu&status=ok")
	ctrl := New(usersWidget, fetcher, nav)
	ctx := context.Background()
	require.NoError(t, ctrl.Sync(ctx))
	require.Equal(t, url.Values{"region": {"eu"}, "status": {"ok"}}, ctrl.EffectiveQuery())

	next := usersWidget
	next.Table = &dashboard.TableSpec{Filters: []dashboard.FilterSpec{{ID: "region", Type: dashboard.FilterText}}}
	require.NoError(t, ctrl.SetWidget(ctx, next))

	require.Equal(t, []string{"eu"}, ctrl.Applied()["region"].Values)
	_, hasStatus := ctrl.Applied()["status"]
	require.False(t, hasStatus)
	require.Len(t, fetcher.Calls(), 2)
}

func TestHistory(t *testing.T) {
	h := NewHistory("?a=1")
	require.Equal(t, "a=1", h.Location())
	require.False(t, h.Back())
	h.Navigate("a=2")
	h.Navigate("a=3")
	require.True(t, h.Back())
	require.Equal(t, "a=2", h.Location())
	h.Navigate("b=1")
	require.False(t, h.Forward(), "navigating drops forward entries")
	require.Equal(t, 3, h.Len())
	require.True(t, h.Back())
	require.True(t, h.Forward())
	require.Equal(t, "b=1", h.Location())
}

func TestFetcherFunc(t *testing.T) {
	var got string
	f := FetcherFunc(func(ctx context.Context, id string, params url.Values) (dashboard.DataResponse, error) {
		got = id
		return dashboard.DataResponse{}, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := f.FetchWidgetData(ctx, "w", nil)
	require.NoError(t, err)
	require.Equal(t, "w", got)
}
