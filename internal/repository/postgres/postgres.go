// Package postgres is the networked domain.Store. Post mutations from any
// server instance reach every live query through LISTEN/NOTIFY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/livequery"
)

// changeChannel is the NOTIFY channel the posts trigger publishes on.
const changeChannel = "posts_changed"

const reconnectDelay = time.Second

// DB is a PostgreSQL-backed domain.Store.
type DB struct {
	Pool  *pgxpool.Pool
	posts *livequery.Hub

	stopListen context.CancelFunc
	listenDone chan struct{}
}

var _ domain.Store = (*DB)(nil)

// New connects to the database at url and starts listening for post
// changes.
func New(ctx context.Context, url string) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse connection URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{Pool: pool, posts: livequery.NewHub(), listenDone: make(chan struct{})}

	conn, err := db.listenConn(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("listen for post changes: %w", err)
	}
	listenCtx, cancel := context.WithCancel(context.Background())
	db.stopListen = cancel
	go db.listen(listenCtx, conn)

	return db, nil
}

// Migrate applies the embedded schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return migrate(ctx, db.Pool)
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close stops the change listener and closes the pool.
func (db *DB) Close() error {
	db.stopListen()
	<-db.listenDone
	db.Pool.Close()
	return nil
}

func (db *DB) Accounts() domain.AccountRepository { return &accountRepo{pool: db.Pool} }

func (db *DB) Sessions() domain.SessionRepository { return &sessionRepo{pool: db.Pool} }

func (db *DB) Profiles() domain.ProfileRepository { return &profileRepo{pool: db.Pool} }

func (db *DB) Posts() domain.PostRepository { return NewPostRepository(db) }

func (db *DB) FileStore() domain.FileStore { return &fileStore{pool: db.Pool} }

// listenConn takes a dedicated connection out of the pool and subscribes it
// to the change channel.
func (db *DB) listenConn(ctx context.Context) (*pgx.Conn, error) {
	pooled, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	conn := pooled.Hijack()
	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		conn.Close(context.Background())
		return nil, err
	}
	return conn, nil
}

// listen turns notifications into hub wakeups until ctx is done. A lost
// connection is re-established and every live query refreshed, since
// changes made in between were never heard.
func (db *DB) listen(ctx context.Context, conn *pgx.Conn) {
	defer close(db.listenDone)
	for {
		err := db.wait(ctx, conn)
		conn.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		slog.Warn("post change listener lost its connection", "error", err)

		for conn = nil; conn == nil; {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			if conn, err = db.listenConn(ctx); err != nil {
				slog.Warn("post change listener reconnect failed", "error", err)
			}
		}
		db.posts.Notify()
	}
}

func (db *DB) wait(ctx context.Context, conn *pgx.Conn) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		slog.Debug("posts changed", "op", n.Payload)
		db.posts.Notify()
	}
}

// isUniqueViolation reports whether err is a unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
