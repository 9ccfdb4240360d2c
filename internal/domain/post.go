package domain

import (
	"context"
	"strings"
	"time"
)

// Category tells whether a post reports a found or a lost item.
type Category string

const (
	CategoryFound Category = "Found"
	CategoryLost  Category = "Lost"
)

// ParseCategory accepts "Found" or "Lost" (case-insensitive). An empty
// value defaults to Found.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "found":
		return CategoryFound, nil
	case "lost":
		return CategoryLost, nil
	}
	return "", InvalidValue("category", "category must be Found or Lost")
}

// Status is the stored lifecycle state of a post. Deletion removes the
// record, so there is no stored deleted status.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusResolved Status = "RESOLVED"
)

// Post is a single lost/found report authored by one identity.
type Post struct {
	ID          string
	Title       string
	Description string
	Location    string
	Contact     string
	Category    Category
	ImageURL    string
	PosterID    string
	Status      Status
	CreatedAt   time.Time
}

// PostInput is the authoring form.
type PostInput struct {
	Title       string
	Category    string
	Location    string
	Description string
	Contact     string
}

// Snapshot is one complete, ordered result set pushed by a live query, or
// the error that ended it.
type Snapshot struct {
	Posts []Post
	Err   error
}

// Subscription is a standing query. Snapshots is closed once the
// subscription ends; after an error snapshot no further snapshots follow.
// Close may be called any number of times.
type Subscription interface {
	Snapshots() <-chan Snapshot
	Close()
}

// PostRepository is the document store's post collection. MarkResolved
// and Delete enforce the author rule themselves: a non-author gets
// ErrForbidden and nothing changes.
type PostRepository interface {
	Create(ctx context.Context, post *Post) error
	GetByID(ctx context.Context, id string) (*Post, error)
	MarkResolved(ctx context.Context, id, actingID string) error
	Delete(ctx context.Context, id, actingID string) error
	ListAll(ctx context.Context) ([]Post, error)
	ListByPoster(ctx context.Context, posterID string) ([]Post, error)
	// SubscribeAll streams every post ordered by CreatedAt descending.
	SubscribeAll(ctx context.Context) (Subscription, error)
	// SubscribeByPoster streams the poster's posts ordered by CreatedAt
	// descending. It needs the compound (poster, created) index and
	// reports ErrIndexMissing through the stream when it is absent.
	SubscribeByPoster(ctx context.Context, posterID string) (Subscription, error)
}
