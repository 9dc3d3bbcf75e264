// Package sessionmock provides an in-memory repository with error injection
// for tests. It records the TTL each key was written with so tests can
// assert on expirations without a real store.
package sessionmock

import (
	"context"
	"sync"
	"time"

	"github.com/instapipe/dm-manager/internal/session"
)

type RepositoryOption func(*Repository)

type Repository struct {
	mu     sync.Mutex
	values map[string][]byte
	ttls   map[string]time.Duration

	setErr, getErr, deleteErr error
	setErrKeys                map[string]error
}

func WithSetError(err error) RepositoryOption {
	return func(r *Repository) { r.setErr = err }
}

// WithSetErrorFor fails writes to a single key while leaving every
// other key writable.
func WithSetErrorFor(key string, err error) RepositoryOption {
	return func(r *Repository) { r.setErrKeys[key] = err }
}
func WithGetError(err error) RepositoryOption {
	return func(r *Repository) { r.getErr = err }
}
func WithDeleteError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteErr = err }
}

var _ = session.Repository(&Repository{})

func NewInMemRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		values:     make(map[string][]byte),
		ttls:       make(map[string]time.Duration),
		setErrKeys: make(map[string]error),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Repository) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if r.setErr != nil {
		return r.setErr
	}
	if err, ok := r.setErrKeys[key]; ok {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	r.ttls[key] = ttl
	return nil
}

func (r *Repository) Get(_ context.Context, key string) ([]byte, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.values[key]
	if !ok {
		return nil, session.ErrNotFound
	}
	return value, nil
}

func (r *Repository) Delete(_ context.Context, key string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	delete(r.ttls, key)
	return nil
}

// Has reports whether the key currently holds a value.
func (r *Repository) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.values[key]
	return ok
}

// TTLOf returns the TTL the key was last written with.
func (r *Repository) TTLOf(key string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttls[key]
}

// Keys returns every key currently stored.
func (r *Repository) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	return keys
}
