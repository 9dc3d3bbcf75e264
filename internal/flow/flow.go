// Package flow implements the login and messaging state machines. Each
// flow invocation owns one browser session for its whole lifetime and
// releases it on every exit path; failures surface as classified errors
// from the serviceerr taxonomy, never as raw engine faults.
package flow

import (
	"context"
	"errors"
	"time"

	"github.com/instapipe/dm-manager/internal/locator"
)

// Session is the browser surface a flow drives. The concrete
// implementation lives in the browser package; tests script fakes.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitReady(ctx context.Context) error
	Resolve(ctx context.Context, query locator.Query) (*locator.Result, error)
	RandomScroll(ctx context.Context) error
	RandomDelay(ctx context.Context, min, max time.Duration)
	HumanType(ctx context.Context, el locator.Element, text string) error
	RandomMouseMove(ctx context.Context) error
	StorageState(ctx context.Context) ([]byte, error)
	Close(ctx context.Context) error
}

// Browser hands out stealth sessions. A nil storage state starts a
// blank context; a non-nil one seeds the context with saved cookies and
// local storage.
type Browser interface {
	CreateStealthContext(ctx context.Context, storageState []byte) (Session, error)
}

var errControlMissing = errors.New("control not present")
