// Package cache provides URL-keyed persistent storage of raw geocoding
// responses, independent of the concrete storage technology.
package cache

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// TableName is the key/payload table every backend maintains.
const TableName = "geocode_cache"

// Well-known locators. When the default SQLite locator cannot be used the
// store degrades along DefaultSQLiteLocator -> DefaultCSVLocator ->
// MemoryCSVLocator, logging each substitution.
const (
	DefaultSQLiteLocator = "geocode_cache.sqlite"
	DefaultCSVLocator    = "geocode_cache.csv"
	MemoryCSVLocator     = "memory:geocode_cache.csv"
)

type backendKind int

const (
	kindSQLite backendKind = iota
	kindCSV
	kindMemoryCSV
	kindPostgres
)

// Backend is the capability surface a storage technology must provide.
type Backend interface {
	Get(ctx context.Context, url string) (string, bool, error)
	Put(ctx context.Context, url, blob string) error
	Count(ctx context.Context) (int64, error)
	Clear(ctx context.Context) (int64, error)
	Close() error
}

// kindOf resolves a locator to its backend technology.
func kindOf(locator string) (backendKind, error) {
	switch {
	case strings.HasPrefix(locator, "PG:"),
		strings.HasPrefix(locator, "postgres://"),
		strings.HasPrefix(locator, "postgresql://"):
		return kindPostgres, nil
	case strings.HasPrefix(locator, "memory:"):
		return kindMemoryCSV, nil
	}
	switch strings.ToLower(filepath.Ext(locator)) {
	case ".sqlite":
		return kindSQLite, nil
	case ".csv":
		return kindCSV, nil
	}
	return 0, eris.Errorf("cache: unsupported locator %q: only .csv, .sqlite or PG: locators are handled", locator)
}

// Store is a lazily-opened cache handle. The backend is resolved on first
// use under a mutex so concurrent sessions never race on initialization;
// reads and inserts against the open backend rely on the backend's own
// concurrency control.
type Store struct {
	mu      sync.Mutex
	locator string
	backend Backend
}

// New validates the locator and returns an unopened store.
func New(locator string) (*Store, error) {
	if _, err := kindOf(locator); err != nil {
		return nil, err
	}
	return &Store{locator: locator}, nil
}

// Locator returns the effective locator, reflecting any fallback
// substitution made while opening the backend.
func (s *Store) Locator() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locator
}

// attempt is one step of the fallback chain.
type attempt struct {
	locator string
	kind    backendKind
}

// fallbackChain lists the (locator, backend) pairs to try in order. Only the
// default SQLite locator degrades; any explicitly chosen locator is a single
// attempt. The in-memory step only applies when creation is requested.
func fallbackChain(locator string, create bool) []attempt {
	kind, err := kindOf(locator)
	if err != nil {
		return nil
	}
	if locator != DefaultSQLiteLocator {
		return []attempt{{locator, kind}}
	}
	chain := []attempt{
		{DefaultSQLiteLocator, kindSQLite},
		{DefaultCSVLocator, kindCSV},
	}
	if create {
		chain = append(chain, attempt{MemoryCSVLocator, kindMemoryCSV})
	}
	return chain
}

// openLocked resolves the backend, walking the fallback chain. Returns nil
// when no backend could be opened; the failure is logged, never fatal.
// Callers hold s.mu.
func (s *Store) openLocked(ctx context.Context, create bool) Backend {
	if s.backend != nil {
		return s.backend
	}

	for _, a := range fallbackChain(s.locator, create) {
		b, err := openBackend(ctx, a, create)
		if err != nil {
			zap.L().Debug("cache: backend attempt failed",
				zap.String("locator", a.locator),
				zap.Error(err),
			)
			continue
		}
		if b == nil {
			continue
		}
		if a.locator != s.locator {
			zap.L().Info("cache: switching cache locator",
				zap.String("from", s.locator),
				zap.String("to", a.locator),
			)
			s.locator = a.locator
		}
		s.backend = b
		return b
	}
	return nil
}

// openBackend opens one attempt. A (nil, nil) return means the datasource
// does not exist and creation was not requested.
func openBackend(ctx context.Context, a attempt, create bool) (Backend, error) {
	switch a.kind {
	case kindSQLite:
		return newSQLiteBackend(a.locator, create)
	case kindCSV:
		return newCSVBackend(a.locator, create)
	case kindMemoryCSV:
		return newMemoryCSVBackend(), nil
	case kindPostgres:
		return newPostgresBackend(ctx, a.locator, create)
	}
	return nil, eris.Errorf("cache: unknown backend kind %d", a.kind)
}

// Get looks up the payload cached for url. Backend errors degrade to a miss;
// the cache is strictly best-effort on the read side.
func (s *Store) Get(ctx context.Context, url string) (string, bool) {
	s.mu.Lock()
	b := s.openLocked(ctx, false)
	s.mu.Unlock()
	if b == nil {
		return "", false
	}

	blob, ok, err := b.Get(ctx, url)
	if err != nil {
		zap.L().Debug("cache: read failed, treating as miss",
			zap.String("url", url),
			zap.Error(err),
		)
		return "", false
	}
	return blob, ok
}

// Put inserts a payload for url, creating the backend and table as needed.
// Failure is reported to the caller but must not abort the geocode flow.
func (s *Store) Put(ctx context.Context, url, blob string) error {
	s.mu.Lock()
	b := s.openLocked(ctx, true)
	s.mu.Unlock()
	if b == nil {
		return eris.Errorf("cache: no usable backend for %q", s.Locator())
	}
	return b.Put(ctx, url, blob)
}

// Count returns the number of cached records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	b := s.openLocked(ctx, false)
	s.mu.Unlock()
	if b == nil {
		return 0, nil
	}
	return b.Count(ctx)
}

// Clear removes every cached record and reports how many were dropped.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	b := s.openLocked(ctx, false)
	s.mu.Unlock()
	if b == nil {
		return 0, nil
	}
	return b.Clear(ctx)
}

// Close releases the backend handle if one was opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}
