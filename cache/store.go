package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// Store binds a cache file to a lock file at <path>.lock so that several
// processes can update the same cache without losing each other's entries.
// Goroutines sharing a Store are serialized by mu, since a flock held by this
// process is re-entrant for the same handle.
type Store struct {
	mu          sync.Mutex
	path        string
	lock        *flock.Flock
	lockTimeout time.Duration
	logger      *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store) error

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithLockTimeout bounds how long Merge and Save wait for the lock.
func WithLockTimeout(d time.Duration) StoreOption {
	return func(s *Store) error {
		if d <= 0 {
			return fmt.Errorf("lock timeout must be positive, got %s", d)
		}
		s.lockTimeout = d
		return nil
	}
}

// NewStore creates a store for the cache file at path.
func NewStore(path string, opts ...StoreOption) (*Store, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	s := &Store{
		path:        path,
		lock:        flock.New(path + ".lock"),
		lockTimeout: 30 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "cache-store", "path", path)
	return s, nil
}

// Path returns the cache file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the cache file. It does not take the lock since the file is
// only ever replaced by rename.
func (s *Store) Load() (Cache, error) {
	return Load(s.path)
}

// Save overwrites the cache file with c under the lock.
func (s *Store) Save(ctx context.Context, c Cache) error {
	return s.withLock(ctx, func() error {
		return Save(s.path, c)
	})
}

// Merge reloads the cache from disk under the lock, overlays entries
// wholesale and saves the result, which is returned.
func (s *Store) Merge(ctx context.Context, entries Cache) (Cache, error) {
	var merged Cache
	err := s.withLock(ctx, func() error {
		current, err := Load(s.path)
		if err != nil {
			return err
		}
		for k, v := range entries {
			current[k] = v
		}
		if err := Save(s.path, current); err != nil {
			return err
		}
		merged = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("merged cache entries", "merged", len(entries), "total", len(merged))
	return merged, nil
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if lockCtx.Err() != nil && ctx.Err() == nil {
			return fmt.Errorf("%w: %s", ErrLockTimeout, s.path)
		}
		return fmt.Errorf("failed to lock cache: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLockTimeout, s.path)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to unlock cache", "err", err)
		}
	}()

	return fn()
}
