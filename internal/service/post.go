package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
)

// PostService is the application side of the posts collection: authoring,
// lifecycle transitions, and the feed and profile queries.
type PostService struct {
	posts    domain.PostRepository
	profiles domain.ProfileRepository
	media    *MediaUploader
}

// NewPostService creates a new PostService.
func NewPostService(posts domain.PostRepository, profiles domain.ProfileRepository, media *MediaUploader) *PostService {
	return &PostService{posts: posts, profiles: profiles, media: media}
}

// CreatePost validates in and stores it as an OPEN post by authorID,
// returning the new post's id.
func (s *PostService) CreatePost(ctx context.Context, in domain.PostInput, authorID string) (string, error) {
	post, err := newPost(in, authorID)
	if err != nil {
		return "", err
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	return post.ID, nil
}

// Author runs the full authoring flow: validate, upload the optional
// image, then create the post. Nothing is uploaded for invalid input and
// no post is written when the upload fails.
func (s *PostService) Author(ctx context.Context, in domain.PostInput, file *domain.File, authorID string) (*domain.Post, error) {
	post, err := newPost(in, authorID)
	if err != nil {
		return nil, err
	}

	url, err := s.media.Upload(ctx, file)
	if err != nil {
		return nil, err
	}
	post.ImageURL = url

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// ResolvePost marks the post RESOLVED. Only its author may do so.
func (s *PostService) ResolvePost(ctx context.Context, postID, actingID string) error {
	if err := s.guard(ctx, postID, ActionResolve, actingID); err != nil {
		return err
	}
	return s.posts.MarkResolved(ctx, postID, actingID)
}

// DeletePost removes the post for good. Only its author may do so.
func (s *PostService) DeletePost(ctx context.Context, postID, actingID string) error {
	if err := s.guard(ctx, postID, ActionDelete, actingID); err != nil {
		return err
	}
	return s.posts.Delete(ctx, postID, actingID)
}

// SubscribeFeed opens the live feed of every post, newest first.
func (s *PostService) SubscribeFeed(ctx context.Context) (domain.Subscription, error) {
	return s.posts.SubscribeAll(ctx)
}

// SubscribeOwnedPosts opens the live list of ownerID's posts, newest first.
func (s *PostService) SubscribeOwnedPosts(ctx context.Context, ownerID string) (domain.Subscription, error) {
	if ownerID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	return s.posts.SubscribeByPoster(ctx, ownerID)
}

// Feed returns the current feed once.
func (s *PostService) Feed(ctx context.Context) ([]domain.Post, error) {
	return s.posts.ListAll(ctx)
}

// OwnedPosts returns ownerID's posts once.
func (s *PostService) OwnedPosts(ctx context.Context, ownerID string) ([]domain.Post, error) {
	if ownerID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	return s.posts.ListByPoster(ctx, ownerID)
}

// Actions maps each post id to what viewerID may do with it. Posters are
// looked up once each; a poster without a profile gets no actions.
func (s *PostService) Actions(ctx context.Context, posts []domain.Post, viewerID string) map[string][]Action {
	known := make(map[string]bool)
	out := make(map[string][]Action, len(posts))
	for i := range posts {
		p := &posts[i]
		if p.PosterID != viewerID {
			out[p.ID] = nil
			continue
		}
		ok, seen := known[p.PosterID]
		if !seen {
			_, err := s.profiles.GetByID(ctx, p.PosterID)
			ok = err == nil
			known[p.PosterID] = ok
		}
		out[p.ID] = AllowedActions(p, viewerID, ok)
	}
	return out
}

func (s *PostService) guard(ctx context.Context, postID string, action Action, actingID string) error {
	if actingID == "" {
		return domain.ErrNotAuthenticated
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get post: %w", err)
	}
	return Guard(post, action, actingID)
}

func newPost(in domain.PostInput, authorID string) (*domain.Post, error) {
	if authorID == "" {
		return nil, domain.ErrNotAuthenticated
	}

	post := &domain.Post{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		Contact:     strings.TrimSpace(in.Contact),
		PosterID:    authorID,
		Status:      domain.StatusOpen,
	}

	required := []struct{ field, value string }{
		{"title", post.Title},
		{"description", post.Description},
		{"contact", post.Contact},
		{"location", post.Location},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, domain.MissingField(r.field)
		}
	}

	category, err := domain.ParseCategory(in.Category)
	if err != nil {
		return nil, err
	}
	post.Category = category
	return post, nil
}
