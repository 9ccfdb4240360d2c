package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/livequery"
	"github.com/fardin04/pu-found-lost-hub/internal/repository/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// DB is a SQLite-backed domain.Store.
type DB struct {
	SqlDB *sql.DB
	posts *livequery.Hub
}

var _ domain.Store = (*DB)(nil)

// New opens a SQLite database at the given path and configures it for use.
// It enables WAL mode and foreign keys.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// A single connection serialises writers, which also keeps post
	// timestamps strictly increasing.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: db, posts: livequery.NewHub()}, nil
}

// Migrate applies the embedded schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, db.SqlDB)
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.SqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.SqlDB.Close()
}

func (db *DB) Accounts() domain.AccountRepository { return NewAccountRepository(db) }

func (db *DB) Sessions() domain.SessionRepository { return &sessionRepo{db: db.SqlDB} }

func (db *DB) Profiles() domain.ProfileRepository { return &profileRepo{db: db.SqlDB} }

func (db *DB) Posts() domain.PostRepository { return NewPostRepository(db) }

func (db *DB) FileStore() domain.FileStore { return &fileStore{db: db.SqlDB} }

// isUniqueConstraintError checks if the error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
