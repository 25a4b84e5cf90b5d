package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// kv_store is a single keyed table; primary-key uniqueness is the only
// schema element the service relies on.
const createTableSQL = `CREATE TABLE IF NOT EXISTS kv_store (key TEXT PRIMARY KEY, value BYTEA)`

// Postgres is a Store backed by a PostgreSQL table reached over a pooled
// connection. The pool is safe for concurrent use.
type Postgres struct {
	pool *pgxpool.Pool
	lastError
}

// OpenPostgres connects using a libpq-style conninfo string and ensures the
// kv_store table exists. An empty conninfo falls back to the PG* environment
// variables. Connection or schema failure here is fatal to the caller; the
// service must not serve traffic without its store.
func OpenPostgres(ctx context.Context, conninfo string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, conninfo)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse conninfo: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ensure kv_store table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Get returns the value for key, or ErrNotFound when no row exists.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, p.record(ErrNotFound)
	}
	if err != nil {
		return nil, p.record(fmt.Errorf("postgres: get %q: %w", key, err))
	}
	p.record(nil)
	return value, nil
}

// Put inserts or updates the record for key.
func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO kv_store(key, value) VALUES($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	if err != nil {
		return p.record(fmt.Errorf("postgres: put %q: %w", key, err))
	}
	return p.record(nil)
}

// Delete removes the record for key. Deleting an absent key succeeds.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
	if err != nil {
		return p.record(fmt.Errorf("postgres: delete %q: %w", key, err))
	}
	return p.record(nil)
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
