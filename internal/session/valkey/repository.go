// Package sessionvalkey provides the ValKey-backed key-value repository for
// encrypted session blobs and refresh credentials.
package sessionvalkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/instapipe/dm-manager/internal/session"
)

type Repository struct {
	valkey valkey.Client
	prefix string
}

var _ = session.Repository(&Repository{})

func NewRepository(valkeyClient valkey.Client, prefix string) *Repository {
	prefix = strings.TrimSuffix(prefix, ":")
	return &Repository{
		valkey: valkeyClient,
		prefix: prefix,
	}
}

func (r *Repository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := r.valkey.B().Set().Key(r.key(key)).Value(valkey.BinaryString(value)).Ex(ttl).Build()
	if err := r.valkey.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}

func (r *Repository) Get(ctx context.Context, key string) ([]byte, error) {
	bytes, err := r.valkey.Do(ctx, r.valkey.B().Get().Key(r.key(key)).Build()).AsBytes()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if ok && valkeyErr.IsNil() {
			return nil, session.ErrNotFound
		}

		return nil, fmt.Errorf("executing get command: %w", err)
	}

	return bytes, nil
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	if err := r.valkey.Do(ctx, r.valkey.B().Del().Key(r.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}

	return nil
}

// TTL reports the remaining lifetime of a key. Used by integration tests to
// verify expirations are armed.
func (r *Repository) TTL(ctx context.Context, key string) (time.Duration, error) {
	seconds, err := r.valkey.Do(ctx, r.valkey.B().Ttl().Key(r.key(key)).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("executing ttl command: %w", err)
	}

	return time.Duration(seconds) * time.Second, nil
}

func (r *Repository) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.prefix, key)
}
