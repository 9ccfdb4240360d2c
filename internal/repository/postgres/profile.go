package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
)

type profileRepo struct {
	pool *pgxpool.Pool
}

func (r *profileRepo) Create(ctx context.Context, p *domain.Profile) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (id, email, display_name, student_id, department, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Email, p.DisplayName, p.StudentID, p.Department, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	p.CreatedAt = now
	return nil
}

func (r *profileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, display_name, student_id, department, created_at FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.Email, &p.DisplayName, &p.StudentID, &p.Department, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return p, nil
}
