// Package token issues and verifies the signed access/refresh token pairs
// that gate every messaging operation. Access tokens are short-lived and
// only honoured while the identity still has a live browser session on
// record; refresh tokens are single-use and rotate on every refresh.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	slogctx "github.com/veqryn/slog-context"

	"github.com/instapipe/dm-manager/internal/serviceerr"
	"github.com/instapipe/dm-manager/internal/session"
)

// Pair bundles the two tokens returned to a caller after a successful
// login or refresh.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service signs and verifies HS256 tokens and keeps the refresh
// credential in the session store so each refresh token can be honoured
// at most once.
type Service struct {
	store      *session.Store
	signingKey []byte

	accessTTL  time.Duration
	refreshTTL time.Duration
}

var signatureAlgorithms = []jose.SignatureAlgorithm{jose.HS256}

// NewService creates a token service. The signing key is shared between
// access and refresh tokens; the TTLs come from configuration.
func NewService(store *session.Store, signingKey []byte, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		store:      store,
		signingKey: signingKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Issue signs a fresh access/refresh pair for the identity and persists
// the refresh token as the identity's sole valid refresh credential,
// replacing any previous one.
func (s *Service) Issue(ctx context.Context, identity string) (Pair, error) {
	accessToken, err := s.sign(identity, s.accessTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("signing access token: %w", err)
	}

	refreshToken, err := s.sign(identity, s.refreshTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("signing refresh token: %w", err)
	}

	if err := s.store.SaveRefreshCredential(ctx, identity, refreshToken, s.refreshTTL); err != nil {
		return Pair{}, fmt.Errorf("persisting refresh credential: %w", err)
	}

	slogctx.Debug(ctx, "Issued token pair", "identity", identity)

	return Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Validate verifies an access token and returns the identity it was
// issued to. A token with a valid signature and unexpired claims is
// still rejected when the identity no longer has a session on record.
func (s *Service) Validate(ctx context.Context, accessToken string) (string, error) {
	identity, err := s.verify(accessToken)
	if err != nil {
		return "", err
	}

	if _, err := s.store.GetSession(ctx, identity); err != nil {
		if errors.Is(err, serviceerr.ErrSessionNotFound) || errors.Is(err, serviceerr.ErrSessionInvalid) {
			return "", fmt.Errorf("no live session for %q: %w", identity, serviceerr.ErrTokenInvalid)
		}

		return "", fmt.Errorf("loading session: %w", err)
	}

	return identity, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token
// must match the stored credential exactly; the stored credential is
// rotated by the new issue, so a replayed refresh token fails. The
// identity's session expiry is re-armed to the access-token lifetime.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Pair, error) {
	identity, err := s.verify(refreshToken)
	if err != nil {
		return Pair{}, err
	}

	stored, err := s.store.GetRefreshCredential(ctx, identity)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Pair{}, fmt.Errorf("no refresh credential for %q: %w", identity, serviceerr.ErrTokenInvalid)
		}

		return Pair{}, fmt.Errorf("loading refresh credential: %w", err)
	}

	if stored != refreshToken {
		slogctx.Warn(ctx, "Refresh token does not match the stored credential", "identity", identity)
		return Pair{}, fmt.Errorf("refresh token superseded: %w", serviceerr.ErrTokenInvalid)
	}

	pair, err := s.Issue(ctx, identity)
	if err != nil {
		return Pair{}, err
	}

	if err := s.extendSession(ctx, identity); err != nil {
		return Pair{}, err
	}

	return pair, nil
}

// Revoke drops the identity's session record and refresh credential.
// Outstanding access tokens stop validating immediately because the
// session is gone.
func (s *Service) Revoke(ctx context.Context, identity string) error {
	if err := s.store.DeleteSession(ctx, identity); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	if err := s.store.DeleteRefreshCredential(ctx, identity); err != nil {
		return fmt.Errorf("deleting refresh credential: %w", err)
	}

	slogctx.Info(ctx, "Revoked credentials", "identity", identity)

	return nil
}

func (s *Service) sign(identity string, ttl time.Duration) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: s.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	// The ID claim makes every signed token distinct, so a rotated
	// refresh credential never collides with the one it replaces.
	claims := jwt.Claims{
		ID:      uuid.NewString(),
		Subject: identity,
		Expiry:  jwt.NewNumericDate(time.Now().Add(ttl)),
	}

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialising token: %w", err)
	}

	return token, nil
}

func (s *Service) verify(token string) (string, error) {
	parsed, err := jwt.ParseSigned(token, signatureAlgorithms)
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", serviceerr.ErrTokenInvalid)
	}

	var claims jwt.Claims
	if err := parsed.Claims(s.signingKey, &claims); err != nil {
		return "", fmt.Errorf("verifying signature: %w", serviceerr.ErrTokenInvalid)
	}

	if err := claims.Validate(jwt.Expected{Time: time.Now()}); err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return "", serviceerr.ErrTokenExpired
		}

		return "", fmt.Errorf("validating claims: %w", serviceerr.ErrTokenInvalid)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("missing subject: %w", serviceerr.ErrTokenInvalid)
	}

	return claims.Subject, nil
}

func (s *Service) extendSession(ctx context.Context, identity string) error {
	state, err := s.store.GetSession(ctx, identity)
	if err != nil {
		if errors.Is(err, serviceerr.ErrSessionNotFound) {
			return fmt.Errorf("no live session for %q: %w", identity, serviceerr.ErrTokenInvalid)
		}

		return fmt.Errorf("loading session: %w", err)
	}

	if err := s.store.SaveSession(ctx, identity, state, s.accessTTL); err != nil {
		return fmt.Errorf("re-arming session expiry: %w", err)
	}

	return nil
}
