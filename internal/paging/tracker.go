// Package paging tracks cursor based "load more" pagination for one widget.
package paging

import (
	"errors"
	"slices"
	"sync"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
)

// ErrStale reports a result that arrived after a newer reload started.
var ErrStale = errors.New("paging: stale result discarded")

// Kind distinguishes full reloads from load-more requests.
type Kind int

const (
	KindReload Kind = iota
	KindLoadMore
)

func (k Kind) String() string {
	if k == KindLoadMore {
		return "load_more"
	}
	return "reload"
}

// Ticket identifies an issued request. Results are only applied while the
// ticket's epoch is current.
type Ticket struct {
	epoch uint64
	kind  Kind
}

// Kind returns the request kind of the ticket.
func (t Ticket) Kind() Kind { return t.kind }

// Page is one fetched slice of rows.
type Page struct {
	Rows       []dashboard.Row
	NextCursor string
	HasCursor  bool
	HasMore    bool
}

// PageFrom extracts the paging fields of a data response.
func PageFrom(resp dashboard.DataResponse) Page {
	cursor, ok := resp.Cursor()
	return Page{Rows: resp.Data, NextCursor: cursor, HasCursor: ok, HasMore: resp.More()}
}

// Snapshot is a copy of the tracker state.
type Snapshot struct {
	Rows        []dashboard.Row
	NextCursor  string
	HasCursor   bool
	HasMore     bool
	Reloading   bool
	LoadingMore bool
	Loaded      bool
	Err         error
	LoadMoreErr error
}

// CanLoadMore mirrors the availability of the "load more" action.
func (s Snapshot) CanLoadMore() bool {
	return s.HasMore && s.HasCursor && !s.Reloading && !s.LoadingMore
}

// Tracker holds the accumulated rows and cursor of one widget.
type Tracker struct {
	mu          sync.Mutex
	epoch       uint64
	rows        []dashboard.Row
	nextCursor  string
	hasCursor   bool
	hasMore     bool
	reloading   bool
	loadingMore bool
	loaded      bool
	err         error
	loadMoreErr error
}

// NewTracker returns an idle tracker with no rows.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Reset starts a full reload: rows and cursor are cleared and every
// outstanding ticket becomes stale.
func (t *Tracker) Reset() Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.epoch++
	t.rows = nil
	t.nextCursor = ""
	t.hasCursor = false
	t.hasMore = false
	t.reloading = true
	t.loadingMore = false
	t.err = nil
	t.loadMoreErr = nil
	return Ticket{epoch: t.epoch, kind: KindReload}
}

// CompleteReload replaces the rows with page.
func (t *Tracker) CompleteReload(ticket Ticket, page Page) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket.epoch != t.epoch {
		return ErrStale
	}
	t.rows = slices.Clone(page.Rows)
	t.setCursor(page)
	t.reloading = false
	t.loaded = true
	t.err = nil
	return nil
}

// FailReload records a failed full reload. Rows stay empty.
func (t *Tracker) FailReload(ticket Ticket, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket.epoch != t.epoch {
		return ErrStale
	}
	t.rows = nil
	t.reloading = false
	t.loaded = true
	t.err = err
	return nil
}

// BeginLoadMore reserves the single load-more slot. ok is false when there
// is no cursor or a request is already in flight.
func (t *Tracker) BeginLoadMore() (ticket Ticket, cursor string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasCursor || t.loadingMore || t.reloading {
		return Ticket{}, "", false
	}
	t.loadingMore = true
	t.loadMoreErr = nil
	return Ticket{epoch: t.epoch, kind: KindLoadMore}, t.nextCursor, true
}

// CompleteLoadMore appends page to the accumulated rows.
func (t *Tracker) CompleteLoadMore(ticket Ticket, page Page) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket.epoch != t.epoch {
		return ErrStale
	}
	t.rows = append(t.rows, page.Rows...)
	t.setCursor(page)
	t.loadingMore = false
	t.err = nil
	return nil
}

// FailLoadMore keeps the rows and re-enables load-more for a retry.
func (t *Tracker) FailLoadMore(ticket Ticket, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket.epoch != t.epoch {
		return ErrStale
	}
	t.loadingMore = false
	t.loadMoreErr = err
	return nil
}

func (t *Tracker) setCursor(page Page) {
	t.nextCursor = page.NextCursor
	t.hasCursor = page.HasCursor
	t.hasMore = page.HasMore
}

// Snapshot copies the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Rows:        slices.Clone(t.rows),
		NextCursor:  t.nextCursor,
		HasCursor:   t.hasCursor,
		HasMore:     t.hasMore,
		Reloading:   t.reloading,
		LoadingMore: t.loadingMore,
		Loaded:      t.loaded,
		Err:         t.err,
		LoadMoreErr: t.loadMoreErr,
	}
}
