// Package postgres implements the fact store, dimension reads, and legacy
// table reads against PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Session owns the connection pool for one pipeline run and centralizes the
// reconnect-and-reload behavior: every consumer that needs an active,
// verified connection calls Verify, and any state that must be rebuilt
// after a reconnect (the dimension cache) registers a reload hook.
type Session struct {
	dsn         string
	pool        *pgxpool.Pool
	onReconnect []func(ctx context.Context) error
}

// Connect opens a pool and pings it once.
func Connect(ctx context.Context, dsn string) (*Session, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Session{dsn: dsn, pool: pool}, nil
}

// Pool exposes the underlying pool. Callers should have called Verify on
// the code path that led here.
func (s *Session) Pool() *pgxpool.Pool { return s.pool }

// OnReconnect registers a hook run after every successful reconnect, in
// registration order. Hooks rebuild per-run state that is only valid for a
// live connection.
func (s *Session) OnReconnect(fn func(ctx context.Context) error) {
	s.onReconnect = append(s.onReconnect, fn)
}

// Verify probes the connection cheaply and, if the probe fails, tears the
// pool down, reconnects, and runs the reload hooks before returning. After
// a nil return the caller may use the pool and every registered cache is
// fresh.
func (s *Session) Verify(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err == nil {
		return nil
	}
	log.Printf("postgres: connection lost, reconnecting")
	return s.reconnect(ctx)
}

func (s *Session) reconnect(ctx context.Context) error {
	s.pool.Close()
	pool, err := pgxpool.New(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("reconnect ping: %w", err)
	}
	s.pool = pool

	for _, fn := range s.onReconnect {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("reconnect reload: %w", err)
		}
	}
	log.Printf("postgres: reconnected, caches reloaded")
	return nil
}

// Close releases the pool.
func (s *Session) Close() { s.pool.Close() }

// ConnectionLost reports whether err looks like a dead or dropped
// connection rather than a statement-level failure. Statement failures
// carry a *pgconn.PgError; network-level errors do not.
func ConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "conn closed") || strings.Contains(msg, "connection reset")
}
