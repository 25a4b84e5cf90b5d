// Package kv implements the cache-aside orchestration between the bounded
// LRU cache and the persistent store. The service is the only component
// that knows both; the cache and the store are mutually unaware.
//
// The cache and the store are guarded by independent exclusion scopes and
// are never locked together across a logical operation. Under concurrent
// writes to the same key the store and cache updates can interleave so that
// the cache briefly holds an older value than the store; the next miss or
// eviction resynchronizes it. This divergence window is an accepted
// weak-consistency property. Closing it would require one lock spanning
// both resources, which serializes every read and write and defeats the
// cache.
package kv

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Ankit-Rajput1112/DECS-Project/cache"
	"github.com/Ankit-Rajput1112/DECS-Project/metrics"
	"github.com/Ankit-Rajput1112/DECS-Project/store"
)

// ErrNotFound reports that the authoritative store has no record for the
// key. It wraps store.ErrNotFound so either sentinel matches.
var ErrNotFound = store.ErrNotFound

// Service composes the cache, the store and the metrics registry into the
// three service operations. All methods are safe for concurrent use.
type Service struct {
	cache   *cache.LRU
	store   store.Store
	metrics *metrics.Registry
	log     *zap.Logger
}

// NewService wires the orchestrator. A nil logger disables logging; a nil
// registry gets replaced by a private one so the increments always have a
// destination.
func NewService(c *cache.LRU, st store.Store, m *metrics.Registry, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &Service{cache: c, store: st, metrics: m, log: log}
}

// Read returns the value for key. A cache hit is served immediately; on a
// miss the store is consulted and, on success, the value is filled back
// into the cache. ErrNotFound is a normal outcome, any other error is a
// store failure that leaves the cache untouched.
func (s *Service) Read(ctx context.Context, key string) ([]byte, error) {
	s.metrics.IncRequests()

	if v, ok := s.cache.Get(key); ok {
		s.metrics.IncCacheHit()
		s.metrics.IncSuccess()
		return v, nil
	}
	s.metrics.IncCacheMiss()

	v, err := s.storeGet(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Absence is a normal terminal outcome, not an error. The
			// transport boundary decides how to count and report it.
			s.log.Debug("read miss", zap.String("key", key))
			return nil, ErrNotFound
		}
		s.metrics.IncError()
		s.log.Warn("store read failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	// Read-fill: populate the cache even though this was not a write.
	s.cache.Put(key, v)
	s.metrics.IncSuccess()
	return v, nil
}

// Write persists the value to the store first and updates the cache only
// after the store acknowledged the write. On store failure the cache keeps
// its previous state for the key, which still matches the store's actual,
// unchanged record.
func (s *Service) Write(ctx context.Context, key string, value []byte) error {
	s.metrics.IncRequests()

	if err := s.storePut(ctx, key, value); err != nil {
		s.metrics.IncError()
		s.log.Warn("store write failed", zap.String("key", key), zap.Error(err))
		return err
	}

	s.cache.Put(key, value)
	s.metrics.IncSuccess()
	return nil
}

// Delete removes key from the store and then erases it from the cache
// unconditionally. Deleting an absent key is a success; after the call the
// cache is guaranteed not to hold the key either way. On store failure the
// cache is left untouched.
func (s *Service) Delete(ctx context.Context, key string) error {
	s.metrics.IncRequests()

	if err := s.storeDelete(ctx, key); err != nil {
		s.metrics.IncError()
		s.log.Warn("store delete failed", zap.String("key", key), zap.Error(err))
		return err
	}

	s.cache.Erase(key)
	s.metrics.IncSuccess()
	return nil
}

// Cache exposes the cache for observers (size, capacity). Callers must not
// use it to bypass the orchestration protocol.
func (s *Service) Cache() *cache.LRU {
	return s.cache
}

func (s *Service) storeGet(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	v, err := s.store.Get(ctx, key)
	s.metrics.ObserveStoreGet(time.Since(start))
	return v, err
}

func (s *Service) storePut(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.store.Put(ctx, key, value)
	s.metrics.ObserveStoreWrite(time.Since(start))
	return err
}

func (s *Service) storeDelete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.store.Delete(ctx, key)
	s.metrics.ObserveStoreWrite(time.Since(start))
	return err
}
