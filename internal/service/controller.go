package service

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
)

// ErrControllerStopped is returned when starting a stopped Controller.
var ErrControllerStopped = errors.New("controller stopped")

// ViewState is what a post list view renders.
type ViewState struct {
	Items     []domain.Post
	IsLoading bool
	Err       error
}

// Notice is a user-facing message raised by a failing view.
type Notice struct {
	Source  string
	Message string
	Err     error
}

// Notifier shows a Notice to the user, e.g. as a toast.
type Notifier func(Notice)

// SubscribeFunc opens the live query a Controller binds to.
type SubscribeFunc func(ctx context.Context) (domain.Subscription, error)

// Controller binds a live post query to a view's state. A failed stream
// keeps the last items and records the error until Retry. After Stop
// returns no listener or notifier is called again.
type Controller struct {
	name      string
	subscribe SubscribeFunc
	notify    Notifier

	mu        sync.Mutex
	state     ViewState
	sub       domain.Subscription
	gen       uint64
	stopped   bool
	unscope   func()
	listeners map[int]func(ViewState)
	nextID    int
	done      chan struct{}
	// pumps counts running Start calls and stream goroutines.
	pumps sync.WaitGroup
}

// NewController creates a Controller named name. notify may be nil.
func NewController(name string, subscribe SubscribeFunc, notify Notifier) *Controller {
	if notify == nil {
		notify = func(Notice) {}
	}
	return &Controller{
		name:      name,
		subscribe: subscribe,
		notify:    notify,
		listeners: make(map[int]func(ViewState)),
		done:      make(chan struct{}),
	}
}

// NewFeedController binds to the live feed of all posts.
func NewFeedController(posts *PostService, notify Notifier) *Controller {
	return NewController("feed", posts.SubscribeFeed, notify)
}

// NewProfileController binds to ownerID's posts.
func NewProfileController(posts *PostService, ownerID string, notify Notifier) *Controller {
	return NewController("profile", func(ctx context.Context) (domain.Subscription, error) {
		return posts.SubscribeOwnedPosts(ctx, ownerID)
	}, notify)
}

// Start subscribes and marks the view loading. Starting again replaces the
// previous subscription.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrControllerStopped
	}
	c.pumps.Add(1)
	defer c.pumps.Done()
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.apply(gen, func(st *ViewState) { st.IsLoading = true })

	sub, err := c.subscribe(ctx)
	if err != nil {
		c.fail(gen, err)
		return err
	}

	c.mu.Lock()
	if c.stopped || c.gen != gen {
		c.mu.Unlock()
		sub.Close()
		return nil
	}
	c.sub = sub
	c.pumps.Add(1)
	c.mu.Unlock()

	go c.pump(gen, sub)
	return nil
}

// Retry discards the current subscription and subscribes again.
func (c *Controller) Retry(ctx context.Context) error {
	return c.Start(ctx)
}

// Stop closes the subscription and waits for in-flight callbacks, including
// those made by a Start that is still running. It is safe to call more than
// once but must not be called from a listener or the notifier.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	sub := c.sub
	c.sub = nil
	unscope := c.unscope
	c.unscope = nil
	close(c.done)
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if unscope != nil {
		unscope()
	}
	c.pumps.Wait()
}

// Done is closed once the controller stops.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// State returns a copy of the current view state.
func (c *Controller) State() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Items = slices.Clone(st.Items)
	return st
}

// OnChange calls fn after every state change until the returned func is
// called.
func (c *Controller) OnChange(fn func(ViewState)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// ScopeTo stops the controller as soon as store no longer holds ownerID's
// session. It is not restarted when the identity comes back.
func (c *Controller) ScopeTo(store *SessionStore, ownerID string) {
	inScope := func(st SessionState) bool {
		return st.Status == SessionAuthenticated && st.Identity != nil && st.Identity.ID == ownerID
	}

	cancel := store.Subscribe(func(st SessionState) {
		if !inScope(st) {
			c.Stop()
		}
	})

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		cancel()
		return
	}
	prev := c.unscope
	c.unscope = cancel
	c.mu.Unlock()
	if prev != nil {
		prev()
	}

	if !inScope(store.Current()) {
		c.Stop()
	}
}

func (c *Controller) pump(gen uint64, sub domain.Subscription) {
	defer c.pumps.Done()
	for snap := range sub.Snapshots() {
		if snap.Err != nil {
			c.fail(gen, snap.Err)
			continue
		}
		c.apply(gen, func(st *ViewState) {
			st.Items = snap.Posts
			st.IsLoading = false
			st.Err = nil
		})
	}
}

func (c *Controller) fail(gen uint64, err error) {
	applied := c.apply(gen, func(st *ViewState) {
		st.IsLoading = false
		st.Err = err
	})
	if applied {
		c.notify(Notice{Source: c.name, Message: domain.UserMessage(err), Err: err})
	}
}

// apply mutates the state if gen is still current and tells listeners.
func (c *Controller) apply(gen uint64, mutate func(*ViewState)) bool {
	c.mu.Lock()
	if c.stopped || gen != c.gen {
		c.mu.Unlock()
		return false
	}
	mutate(&c.state)
	st := c.state
	st.Items = slices.Clone(st.Items)
	fns := make([]func(ViewState), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
	return true
}
