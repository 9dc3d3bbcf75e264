package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	slogctx "github.com/veqryn/slog-context"
	"go.opentelemetry.io/otel/trace"

	"github.com/instapipe/dm-manager/internal/serviceerr"
	"github.com/instapipe/dm-manager/internal/session"
	"github.com/instapipe/dm-manager/internal/token"
)

const (
	typePauseMin = 500 * time.Millisecond
	typePauseMax = 1500 * time.Millisecond
)

// Login drives a credential login end to end: detect the form, type the
// credentials with human pacing, confirm the outcome, persist the
// encrypted storage state, and mint a token pair.
type Login struct {
	browser    Browser
	store      *session.Store
	tokens     *token.Service
	tracer     trace.Tracer
	loginURL   string
	sessionTTL time.Duration
}

func NewLogin(browser Browser, store *session.Store, tokens *token.Service, tracer trace.Tracer, loginURL string, sessionTTL time.Duration) *Login {
	return &Login{
		browser:    browser,
		store:      store,
		tokens:     tokens,
		tracer:     tracer,
		loginURL:   loginURL,
		sessionTTL: sessionTTL,
	}
}

// Execute runs the login state machine for one identity. A failed
// attempt never leaves a session record behind, and the browser session
// is released on every path.
func (f *Login) Execute(ctx context.Context, identity, secret string) (token.Pair, error) {
	ctx = slogctx.With(ctx, "flow", "login", "identity", identity, "correlation_id", uuid.NewString())
	ctx, span := f.tracer.Start(ctx, "flow.login")
	defer span.End()

	// Any previous session for the identity is invalid the moment a new
	// attempt starts.
	if err := f.store.DeleteSession(ctx, identity); err != nil {
		return token.Pair{}, fmt.Errorf("clearing previous session: %w", err)
	}

	sess, err := f.browser.CreateStealthContext(ctx, nil)
	if err != nil {
		return token.Pair{}, err
	}
	defer sess.Close(context.WithoutCancel(ctx))

	if err := sess.Navigate(ctx, f.loginURL); err != nil {
		return token.Pair{}, serviceerr.AutomationFault("login-navigate", err)
	}
	if err := sess.WaitReady(ctx); err != nil {
		return token.Pair{}, serviceerr.AutomationFault("login-ready", err)
	}

	res, err := sess.Resolve(ctx, loginFormQuery)
	if err != nil {
		return token.Pair{}, serviceerr.AutomationFault("login-form-query", err)
	}

	form := res.Field("login_form")
	username := form.Field("username_input")
	password := form.Field("password_input")
	submit := form.Field("login_btn")
	if !username.Present() || !password.Present() || !submit.Present() {
		slogctx.Warn(ctx, "Login form not detected")
		return token.Pair{}, serviceerr.ErrLoginFormNotDetected
	}

	if err := sess.HumanType(ctx, username.Element(), identity); err != nil {
		return token.Pair{}, serviceerr.AutomationFault("login-type-username", err)
	}
	sess.RandomDelay(ctx, typePauseMin, typePauseMax)

	if err := sess.HumanType(ctx, password.Element(), secret); err != nil {
		return token.Pair{}, serviceerr.AutomationFault("login-type-password", err)
	}
	sess.RandomDelay(ctx, typePauseMin, typePauseMax)

	if err := submit.Element().Click(); err != nil {
		return token.Pair{}, serviceerr.AutomationFault("login-submit", err)
	}
	if err := sess.WaitReady(ctx); err != nil {
		return token.Pair{}, serviceerr.AutomationFault("login-outcome-ready", err)
	}

	outcome, err := sess.Resolve(ctx, loginOutcomeQuery)
	if err != nil {
		return token.Pair{}, serviceerr.AutomationFault("login-outcome-query", err)
	}

	if !outcome.Field("home_icon").Present() &&
		!outcome.Field("messages_icon").Present() &&
		!outcome.Field("save_info_prompt").Present() {
		slogctx.Warn(ctx, "No post-login landmark found")
		return token.Pair{}, serviceerr.ErrLoginOutcomeUnconfirmed
	}

	state, err := sess.StorageState(ctx)
	if err != nil {
		return token.Pair{}, serviceerr.AutomationFault("login-storage-state", err)
	}

	if err := f.store.SaveSession(ctx, identity, state, f.sessionTTL); err != nil {
		return token.Pair{}, fmt.Errorf("persisting session: %w", err)
	}

	pair, err := f.tokens.Issue(ctx, identity)
	if err != nil {
		// A login that could not issue tokens must not leave a usable
		// session record behind.
		if delErr := f.store.DeleteSession(ctx, identity); delErr != nil {
			slogctx.Error(ctx, "Failed to clear session after token issue failure", "error", delErr)
		}
		return token.Pair{}, fmt.Errorf("issuing tokens: %w", err)
	}

	slogctx.Info(ctx, "Login confirmed")

	return pair, nil
}
