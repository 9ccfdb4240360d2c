package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/livequery"
)

// PosterIndex is the compound (poster_id, created_at) index the owner-scoped
// live query depends on.
const PosterIndex = "idx_posts_poster_created"

// createdAtLockKey serialises post inserts so created_at stays strictly
// increasing across instances.
const createdAtLockKey int64 = 0x706f737473

const postColumns = `id, title, description, location, contact, category, image_url, poster_id, status, created_at`

// PostRepository implements domain.PostRepository using PostgreSQL. Live
// queries are refreshed by the posts_changed trigger, so writes made by
// other instances show up too.
type PostRepository struct {
	pool *pgxpool.Pool
	hub  *livequery.Hub
}

// NewPostRepository creates a new PostgreSQL-backed PostRepository.
func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{pool: db.Pool, hub: db.posts}
}

// Create inserts the post with a store-assigned id and a created_at strictly
// greater than every existing post's.
func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	id := uuid.NewString()
	var createdAt int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, createdAtLockKey); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`INSERT INTO posts (`+postColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
			         GREATEST($10::BIGINT, COALESCE((SELECT MAX(created_at) FROM posts), 0) + 1))
			 RETURNING created_at`,
			id, post.Title, post.Description, post.Location, post.Contact,
			string(post.Category), post.ImageURL, post.PosterID, string(post.Status), time.Now().UnixNano(),
		).Scan(&createdAt)
	})
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	post.ID = id
	post.CreatedAt = time.Unix(0, createdAt).UTC()
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	p, err := scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query post: %w", err)
	}
	return p, nil
}

// MarkResolved moves an OPEN post to RESOLVED. The author check lives in
// the statement itself so no caller can bypass it.
func (r *PostRepository) MarkResolved(ctx context.Context, id, actingID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE posts SET status = $1 WHERE id = $2 AND poster_id = $3 AND status = $4`,
		string(domain.StatusResolved), id, actingID, string(domain.StatusOpen),
	)
	if err != nil {
		return fmt.Errorf("resolve post: %w", err)
	}
	return r.explainNoop(ctx, tag.RowsAffected(), id, actingID)
}

// Delete removes the post permanently. Only the author may delete it.
func (r *PostRepository) Delete(ctx context.Context, id, actingID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND poster_id = $2`, id, actingID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return r.explainNoop(ctx, tag.RowsAffected(), id, actingID)
}

func (r *PostRepository) ListAll(ctx context.Context) ([]domain.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC`)
}

func (r *PostRepository) ListByPoster(ctx context.Context, posterID string) ([]domain.Post, error) {
	if err := r.requirePosterIndex(ctx); err != nil {
		return nil, err
	}
	return r.list(ctx, `SELECT `+postColumns+` FROM posts WHERE poster_id = $1 ORDER BY created_at DESC`, posterID)
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
func (r *PostRepository) explainNoop(ctx context.Context, affected int64, id, actingID string) error {
	if affected > 0 {
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
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE tablename = 'posts' AND indexname = $1)`, PosterIndex,
	).Scan(&exists)
	if err != nil {
		return &domain.StoreError{Kind: domain.StoreUnavailable, Err: err}
	}
	if !exists {
		return &domain.StoreError{Kind: domain.StoreIndexMissing, Err: fmt.Errorf("index %s does not exist", PosterIndex)}
	}
	return nil
}

func (r *PostRepository) list(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	rows, err := r.pool.Query(ctx, query, args...)
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

func scanPost(row pgx.Row) (*domain.Post, error) {
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
