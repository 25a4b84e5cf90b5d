// Package store defines the persistent store contract consumed by the KV
// orchestrator, together with PostgreSQL, bbolt and Redis backends. The
// store is the single source of truth for key-value records; the cache in
// front of it is strictly a derived accelerator.
package store

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound reports that no record exists for the requested key. Absence
// is a normal outcome, never an operational failure, and implementations
// must never collapse the two.
var ErrNotFound = errors.New("store: key not found")

// Store is the abstract durable keyed store. Get returns ErrNotFound for an
// absent key; any other non-nil error is an operational failure. Delete is
// idempotent: deleting an absent key succeeds. Implementations must be safe
// for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)

	Put(ctx context.Context, key string, value []byte) error

	Delete(ctx context.Context, key string) error

	// LastError returns the message of the most recent failed operation, or
	// the empty string when the most recent operation did not fail.
	// ErrNotFound does not count as a failure.
	LastError() string

	Close() error
}

// lastError is the failure slot shared by the concrete backends. Each
// operation records its outcome; a success (including not-found) clears the
// slot.
type lastError struct {
	mu  sync.Mutex
	msg string
}

// record stores err's message when it is an operational failure, clears the
// slot otherwise, and passes err through unchanged.
func (l *lastError) record(err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil && !errors.Is(err, ErrNotFound) {
		l.msg = err.Error()
	} else {
		l.msg = ""
	}
	return err
}

func (l *lastError) LastError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.msg
}
