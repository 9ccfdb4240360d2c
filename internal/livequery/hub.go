// Package livequery turns a plain query function into a standing query that
// re-runs and pushes a full snapshot every time the backing collection
// changes.
package livequery

import (
	"context"
	"sync"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
)

// QueryFunc produces the current, ordered result set of a standing query.
type QueryFunc func(ctx context.Context) ([]domain.Post, error)

// Hub fans change notifications out to every open subscription. Stores call
// Notify after each committed mutation.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe starts a standing query. The first snapshot reflects the state
// at subscription time. The subscription ends when Close is called, when
// ctx is done, or after the query fails once.
func (h *Hub) Subscribe(ctx context.Context, query QueryFunc) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		hub:       h,
		query:     query,
		cancel:    cancel,
		dirty:     make(chan struct{}, 1),
		snapshots: make(chan domain.Snapshot),
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go s.run(ctx)
	return s
}

// Notify marks every subscription stale. Each one re-runs its query once;
// notifications arriving while a query is still pending are coalesced into
// a single re-run so a slow consumer never sees snapshots out of order.
func (h *Hub) Notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.dirty <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Subscription implements domain.Subscription.
type Subscription struct {
	hub       *Hub
	query     QueryFunc
	cancel    context.CancelFunc
	dirty     chan struct{}
	snapshots chan domain.Snapshot
	closeOnce sync.Once
}

// Snapshots returns the snapshot stream. It is closed when the
// subscription ends.
func (s *Subscription) Snapshots() <-chan domain.Snapshot {
	return s.snapshots
}

// Close cancels the standing query. Calling it again is a no-op.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.hub.remove(s)
	})
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.snapshots)
	defer s.Close()

	for {
		posts, err := s.query(ctx)
		if ctx.Err() != nil {
			return
		}

		select {
		case s.snapshots <- domain.Snapshot{Posts: posts, Err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}

		select {
		case <-s.dirty:
		case <-ctx.Done():
			return
		}
	}
}
