// Package session implements the encrypted, TTL-bound session store. Session
// state and refresh credentials are serialized, symmetrically encrypted and
// written to a key-value repository under identity-derived keys.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories for absent keys. The Store maps it
// to the caller-facing taxonomy.
var ErrNotFound = errors.New("not found")

// Repository is the key-value backend holding encrypted blobs. Set replaces
// any prior value for the key atomically and arms the TTL. Implementations
// are expected to be safe for concurrent use.
type Repository interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
