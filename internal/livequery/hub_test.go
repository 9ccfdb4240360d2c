package livequery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/livequery"
)

type fakeCollection struct {
	mu    sync.Mutex
	posts []domain.Post
	err   error
}

func (c *fakeCollection) add(p domain.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = append([]domain.Post{p}, c.posts...)
}

func (c *fakeCollection) query(ctx context.Context) ([]domain.Post, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make([]domain.Post, len(c.posts))
	copy(out, c.posts)
	return out, nil
}

func next(t *testing.T, sub domain.Subscription) domain.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		require.True(t, ok, "snapshot stream closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return domain.Snapshot{}
}

func TestHub_InitialSnapshot(t *testing.T) {
	hub := livequery.NewHub()
	coll := &fakeCollection{}
	coll.add(domain.Post{ID: "a"})

	sub := hub.Subscribe(context.Background(), coll.query)
	defer sub.Close()

	snap := next(t, sub)
	require.NoError(t, snap.Err)
	require.Len(t, snap.Posts, 1)
	assert.Equal(t, "a", snap.Posts[0].ID)
}

func TestHub_NotifyPushesFullSnapshot(t *testing.T) {
	hub := livequery.NewHub()
	coll := &fakeCollection{}

	sub := hub.Subscribe(context.Background(), coll.query)
	defer sub.Close()

	assert.Empty(t, next(t, sub).Posts)

	coll.add(domain.Post{ID: "a"})
	hub.Notify()
	assert.Len(t, next(t, sub).Posts, 1)

	coll.add(domain.Post{ID: "b"})
	hub.Notify()
	snap := next(t, sub)
	require.Len(t, snap.Posts, 2)
	assert.Equal(t, "b", snap.Posts[0].ID)
}

func TestHub_CloseStopsDelivery(t *testing.T) {
	hub := livequery.NewHub()
	coll := &fakeCollection{}

	sub := hub.Subscribe(context.Background(), coll.query)
	next(t, sub)

	sub.Close()
	sub.Close() // second close is a no-op

	coll.add(domain.Post{ID: "late"})
	hub.Notify()

	select {
	case snap, ok := <-sub.Snapshots():
		assert.False(t, ok, "expected closed stream, got snapshot %+v", snap)
	case <-time.After(2 * time.Second):
		t.Fatal("stream was not closed")
	}
	assert.Equal(t, 0, hub.Len())
}

func TestHub_ErrorEndsStream(t *testing.T) {
	hub := livequery.NewHub()
	coll := &fakeCollection{err: domain.ErrIndexMissing}

	sub := hub.Subscribe(context.Background(), coll.query)
	defer sub.Close()

	snap := next(t, sub)
	assert.True(t, errors.Is(snap.Err, domain.ErrIndexMissing))

	_, ok := <-sub.Snapshots()
	assert.False(t, ok)
}

func TestHub_ContextCancelEndsStream(t *testing.T) {
	hub := livequery.NewHub()
	coll := &fakeCollection{}
	ctx, cancel := context.WithCancel(context.Background())

	sub := hub.Subscribe(ctx, coll.query)
	next(t, sub)
	cancel()

	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
