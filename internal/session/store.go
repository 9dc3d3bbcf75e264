package session

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/instapipe/dm-manager/internal/serviceerr"
)

const (
	sessionKeySuffix = "_session"
	refreshKeySuffix = "_refresh_token"
)

// Store encrypts session blobs and refresh credentials at rest. The
// symmetric key is supplied once at construction; a missing or malformed key
// is a fatal configuration error there, never at use time.
type Store struct {
	repo Repository
	aead cipher.AEAD
}

func NewStore(repo Repository, key []byte) (*Store, error) {
	if len(key) != 32 {
		return nil, errors.New("session encryption key must be 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating AEAD: %w", err)
	}

	return &Store{repo: repo, aead: aead}, nil
}

// SaveSession encrypts and persists the session state of one identity,
// replacing any prior record and arming the TTL.
func (s *Store) SaveSession(ctx context.Context, identity string, state []byte, ttl time.Duration) error {
	sealed, err := s.encrypt(state)
	if err != nil {
		return fmt.Errorf("encrypting session: %w", err)
	}
	if err := s.repo.Set(ctx, identity+sessionKeySuffix, sealed, ttl); err != nil {
		return serviceerr.StoreUnavailable(err)
	}
	return nil
}

// GetSession loads and decrypts the session state, failing with
// SessionNotFound when absent or expired and SessionInvalid when the blob
// cannot be authenticated.
func (s *Store) GetSession(ctx context.Context, identity string) ([]byte, error) {
	sealed, err := s.repo.Get(ctx, identity+sessionKeySuffix)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, serviceerr.ErrSessionNotFound
		}
		return nil, serviceerr.StoreUnavailable(err)
	}

	state, err := s.decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", serviceerr.ErrSessionInvalid, err)
	}
	return state, nil
}

func (s *Store) DeleteSession(ctx context.Context, identity string) error {
	if err := s.repo.Delete(ctx, identity+sessionKeySuffix); err != nil {
		return serviceerr.StoreUnavailable(err)
	}
	return nil
}

// SaveRefreshCredential stores the currently accepted refresh token for the
// identity. Writing replaces the previous credential, which invalidates it
// for future refreshes.
func (s *Store) SaveRefreshCredential(ctx context.Context, identity, token string, ttl time.Duration) error {
	sealed, err := s.encrypt([]byte(token))
	if err != nil {
		return fmt.Errorf("encrypting refresh credential: %w", err)
	}
	if err := s.repo.Set(ctx, identity+refreshKeySuffix, sealed, ttl); err != nil {
		return serviceerr.StoreUnavailable(err)
	}
	return nil
}

// GetRefreshCredential returns the stored credential, or ErrNotFound when
// none is live.
func (s *Store) GetRefreshCredential(ctx context.Context, identity string) (string, error) {
	sealed, err := s.repo.Get(ctx, identity+refreshKeySuffix)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", serviceerr.StoreUnavailable(err)
	}

	token, err := s.decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("decrypting refresh credential: %w", err)
	}
	return string(token), nil
}

func (s *Store) DeleteRefreshCredential(ctx context.Context, identity string) error {
	if err := s.repo.Delete(ctx, identity+refreshKeySuffix); err != nil {
		return serviceerr.StoreUnavailable(err)
	}
	return nil
}

func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *Store) decrypt(sealed []byte) ([]byte, error) {
	if len(sealed) < s.aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("opening ciphertext: %w", err)
	}
	return plaintext, nil
}
