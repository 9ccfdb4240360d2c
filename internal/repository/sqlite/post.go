package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/livequery"
)

// PosterIndex is the compound (poster_id, created_at) index the owner-scoped
// live query depends on.
const PosterIndex = "idx_posts_poster_created"

const postColumns = `id, title, description, location, contact, category, image_url, poster_id, status, created_at`

// PostRepository implements domain.PostRepository using SQLite. Every
// committed mutation notifies the live queries opened through it.
type PostRepository struct {
	db  *sql.DB
	hub *livequery.Hub
}

// NewPostRepository creates a new SQLite-backed PostRepository.
func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db.SqlDB, hub: db.posts}
}

// Create inserts the post with a store-assigned id and a created_at strictly
// greater than every existing post's.
func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	id := uuid.NewString()
	var createdAt int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, MAX(?, COALESCE((SELECT MAX(created_at) FROM posts), 0) + 1))
		 RETURNING created_at`,
		id, post.Title, post.Description, post.Location, post.Contact,
		string(post.Category), post.ImageURL, post.PosterID, string(post.Status), time.Now().UnixNano(),
	).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	post.ID = id
	post.CreatedAt = time.Unix(0, createdAt).UTC()
	r.hub.Notify()
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query post: %w", err)
	}
	return p, nil
}

// MarkResolved moves an OPEN post to RESOLVED. The author check lives in
// the statement itself so no caller can bypass it.
func (r *PostRepository) MarkResolved(ctx context.Context, id, actingID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status = ? WHERE id = ? AND poster_id = ? AND status = ?`,
		string(domain.StatusResolved), id, actingID, string(domain.StatusOpen),
	)
	if err != nil {
		return fmt.Errorf("resolve post: %w", err)
	}
	if err := r.explainNoop(ctx, result, id, actingID); err != nil {
		return err
	}
	r.hub.Notify()
	return nil
}

// Delete removes the post permanently. Only the author may delete it.
func (r *PostRepository) Delete(ctx context.Context, id, actingID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = ? AND poster_id = ?`, id, actingID,
	)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if err := r.explainNoop(ctx, result, id, actingID); err != nil {
		return err
	}
	r.hub.Notify()
	return nil
}

func (r *PostRepository) ListAll(ctx context.Context) ([]domain.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC`)
}

func (r *PostRepository) ListByPoster(ctx context.Context, posterID string) ([]domain.Post, error) {
	if err := r.requirePosterIndex(ctx); err != nil {
		return nil, err
	}
	return r.list(ctx, `SELECT `+postColumns+` FROM posts WHERE poster_id = ? ORDER BY created_at DESC`, posterID)
}

func (r *PostRepository) SubscribeAll(ctx context.Context) (domain.Subscription, error) {
	return r.hub.Subscribe(ctx, r.ListAll), nil
}

func (r *PostRepository) SubscribeByPoster(ctx context.Context, posterID string) (domain.Subscription, error) {
	return r.hub.Subscribe(ctx, func(ctx context.Context) ([]domain.Post, error) {
		return r.ListByPoster(ctx, posterID)
	}), nil
}

// explainNoop turns a zero-row mutation into the reason it did nothing.
func (r *PostRepository) explainNoop(ctx context.Context, result sql.Result, id, actingID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.PosterID != actingID {
		return domain.ErrForbidden
	}
	return domain.AlreadyResolved()
}

func (r *PostRepository) requirePosterIndex(ctx context.Context) error {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?", PosterIndex,
	).Scan(&n)
	if err != nil {
		return &domain.StoreError{Kind: domain.StoreUnavailable, Err: err}
	}
	if n == 0 {
		return &domain.StoreError{Kind: domain.StoreIndexMissing, Err: fmt.Errorf("index %s does not exist", PosterIndex)}
	}
	return nil
}

func (r *PostRepository) list(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StoreError{Kind: domain.StoreUnavailable, Err: err}
	}
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Kind: domain.StoreUnavailable, Err: err}
	}
	return posts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var (
		p                domain.Post
		category, status string
		createdAt        int64
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Location, &p.Contact,
		&category, &p.ImageURL, &p.PosterID, &status, &createdAt); err != nil {
		return nil, err
	}
	p.Category = domain.Category(category)
	p.Status = domain.Status(status)
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	return &p, nil
}
