package paging

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
)

func rows(from, to int) []dashboard.Row {
	out := make([]dashboard.Row, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, dashboard.Row{"id": i})
	}
	return out
}

func page(from, to int, more bool) Page {
	return Page{Rows: rows(from, to), NextCursor: fmt.Sprint(to), HasCursor: true, HasMore: more}
}

func TestTrackerReloadThenLoadMore(t *testing.T) {
	tr := NewTracker()

	_, _, ok := tr.BeginLoadMore()
	require.False(t, ok, "no cursor yet")

	ticket := tr.Reset()
	require.True(t, tr.Snapshot().Reloading)
	require.NoError(t, tr.CompleteReload(ticket, page(1, 50, true)))

	snap := tr.Snapshot()
	require.Len(t, snap.Rows, 50)
	require.Equal(t, "50", snap.NextCursor)
	require.True(t, snap.CanLoadMore())

	more, cursor, ok := tr.BeginLoadMore()
	require.True(t, ok)
	require.Equal(t, "50", cursor)
	require.Equal(t, KindLoadMore, more.Kind())

	_, _, ok = tr.BeginLoadMore()
	require.False(t, ok, "second load-more must be a no-op while one is in flight")

	require.NoError(t, tr.CompleteLoadMore(more, page(51, 80, false)))
	snap = tr.Snapshot()
	require.Len(t, snap.Rows, 80)
	require.Equal(t, 51, snap.Rows[50]["id"])
	require.Equal(t, "80", snap.NextCursor)
	require.False(t, snap.HasMore)
	require.False(t, snap.CanLoadMore())
}

func TestTrackerResetClearsState(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.CompleteReload(tr.Reset(), page(1, 10, true)))

	tr.Reset()
	snap := tr.Snapshot()
	require.Empty(t, snap.Rows)
	require.False(t, snap.HasCursor)
	require.False(t, snap.HasMore)
	require.Equal(t, "", snap.NextCursor)
}

func TestTrackerReloadWinsOverLoadMore(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.CompleteReload(tr.Reset(), page(1, 50, true)))

	more, _, ok := tr.BeginLoadMore()
	require.True(t, ok)

	reload := tr.Reset()
	require.ErrorIs(t, tr.CompleteLoadMore(more, page(51, 100, true)), ErrStale)
	require.ErrorIs(t, tr.FailLoadMore(more, errors.New("late")), ErrStale)

	require.NoError(t, tr.CompleteReload(reload, page(1000, 1004, true)))
	snap := tr.Snapshot()
	require.Len(t, snap.Rows, 5)
	require.Equal(t, 1000, snap.Rows[0]["id"])
	require.Nil(t, snap.LoadMoreErr)

	_, _, ok = tr.BeginLoadMore()
	require.True(t, ok, "stale load-more must not keep the slot busy")
}

func TestTrackerNewerReloadSupersedesOlder(t *testing.T) {
	tr := NewTracker()
	first := tr.Reset()
	second := tr.Reset()

	require.NoError(t, tr.CompleteReload(second, page(1, 2, false)))
	require.ErrorIs(t, tr.CompleteReload(first, page(7, 9, false)), ErrStale)
	require.ErrorIs(t, tr.FailReload(first, errors.New("boom")), ErrStale)

	snap := tr.Snapshot()
	require.Len(t, snap.Rows, 2)
	require.NoError(t, snap.Err)
}

func TestTrackerFailures(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.CompleteReload(tr.Reset(), page(1, 3, true)))

	more, _, _ := tr.BeginLoadMore()
	loadErr := errors.New("network down")
	require.NoError(t, tr.FailLoadMore(more, loadErr))

	snap := tr.Snapshot()
	require.Len(t, snap.Rows, 3, "rows survive a failed load-more")
	require.ErrorIs(t, snap.LoadMoreErr, loadErr)
	require.True(t, snap.CanLoadMore(), "retry must be possible")

	reload := tr.Reset()
	reloadErr := errors.New("500")
	require.NoError(t, tr.FailReload(reload, reloadErr))
	snap = tr.Snapshot()
	require.Empty(t, snap.Rows)
	require.ErrorIs(t, snap.Err, reloadErr)
	require.True(t, snap.Loaded)
}

func TestPageFrom(t *testing.T) {
	cursor := "w12"
	more := true
	p := PageFrom(dashboard.DataResponse{Data: rows(1, 2), NextCursor: &cursor, HasMore: &more})
	require.Equal(t, "w12", p.NextCursor)
	require.True(t, p.HasCursor)
	require.True(t, p.HasMore)

	p = PageFrom(dashboard.DataResponse{})
	require.False(t, p.HasCursor)
	require.False(t, p.HasMore)
}
