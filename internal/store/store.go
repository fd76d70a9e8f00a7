// Package store is the persistence layer: products, orders, invoice records,
// and delivery logs on Postgres via database/sql.
//
// Single-row reads are plain queries; the multi-step writes (marking an order
// paid, fulfilling an order) run inside serializable transactions because
// both are read-then-write sequences that must not interleave.
//
// Dependency rule: store imports nothing from api, worker, invoice, or email.
// Callers map store rows into their own types.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store wraps a live connection pool. Construct with New after the pool has
// been opened and pinged.
type Store struct {
	pool *sql.DB
}

// New creates a Store from a verified connection pool.
func New(pool *sql.DB) *Store {
	return &Store{pool: pool}
}

// Open opens, tunes, and pings a Postgres pool.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return pool, nil
}

// withTx begins a serializable transaction, passes it to fn, and commits on
// success or rolls back on any error (including panics).
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	// Roll back on panic so the connection is never left in a broken state.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // re-panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}
