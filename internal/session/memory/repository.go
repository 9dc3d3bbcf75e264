// Package sessionmemory provides an in-process repository used when ValKey
// is disabled. Entries expire the same way they would in the external store.
package sessionmemory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/instapipe/dm-manager/internal/session"
)

const cleanupInterval = time.Minute

type Repository struct {
	cache *gocache.Cache
}

var _ = session.Repository(&Repository{})

func NewRepository() *Repository {
	return &Repository{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

func (r *Repository) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	r.cache.Set(key, value, ttl)
	return nil
}

func (r *Repository) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := r.cache.Get(key)
	if !ok {
		return nil, session.ErrNotFound
	}
	return value.([]byte), nil
}

func (r *Repository) Delete(_ context.Context, key string) error {
	r.cache.Delete(key)
	return nil
}
