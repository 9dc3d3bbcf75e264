package business

import (
	"context"
	"fmt"

	"github.com/instapipe/dm-manager/internal/browser"
	"github.com/instapipe/dm-manager/internal/flow"
	"github.com/instapipe/dm-manager/internal/token"
)

// Service exposes the core operations to the transport layer: login,
// token refresh, validation, logout, and message delivery.
type Service struct {
	login     *flow.Login
	messaging *flow.Messaging
	tokens    *token.Service
}

func NewService(login *flow.Login, messaging *flow.Messaging, tokens *token.Service) *Service {
	return &Service{
		login:     login,
		messaging: messaging,
		tokens:    tokens,
	}
}

// Login runs the login flow and returns a token pair on confirmation.
func (s *Service) Login(ctx context.Context, identity, secret string) (token.Pair, error) {
	return s.login.Execute(ctx, identity, secret)
}

// RefreshAccessToken rotates a refresh token into a new pair.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (token.Pair, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

// ValidateToken verifies an access token and returns its identity.
func (s *Service) ValidateToken(ctx context.Context, accessToken string) (string, error) {
	return s.tokens.Validate(ctx, accessToken)
}

// Logout revokes the identity's session and refresh credential.
func (s *Service) Logout(ctx context.Context, identity string) error {
	return s.tokens.Revoke(ctx, identity)
}

// SendMessage delivers one direct message using the identity's stored
// session.
func (s *Service) SendMessage(ctx context.Context, identity, recipient, message string) error {
	return s.messaging.Execute(ctx, identity, recipient, message)
}

// browserAdapter narrows the browser manager to the flow-facing
// interface; the indirection exists only because Go interfaces are not
// covariant over the concrete session type.
type browserAdapter struct {
	manager *browser.Manager
}

func (a browserAdapter) CreateStealthContext(ctx context.Context, storageState []byte) (flow.Session, error) {
	sess, err := a.manager.CreateStealthContext(ctx, storageState)
	if err != nil {
		return nil, fmt.Errorf("creating stealth context: %w", err)
	}

	return sess, nil
}
