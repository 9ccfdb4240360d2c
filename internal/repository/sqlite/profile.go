package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
)

// profileRepo implements domain.ProfileRepository using SQLite.
type profileRepo struct {
	db *sql.DB
}

func (r *profileRepo) Create(ctx context.Context, p *domain.Profile) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, display_name, student_id, department, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.DisplayName, p.StudentID, p.Department, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	p.CreatedAt = now
	return nil
}

func (r *profileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, student_id, department, created_at FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Email, &p.DisplayName, &p.StudentID, &p.Department, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return p, nil
}
