package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/instapipe/dm-manager/internal/locator"
)

// Session is one isolated browser context plus its page, tagged with the
// fingerprint it was created under. A session is owned exclusively by the
// flow that created it and must be released exactly once via Close.
type Session struct {
	context     playwright.BrowserContext
	page        playwright.Page
	fingerprint Fingerprint
	engine      *locator.Engine
	navTimeout  time.Duration
}

// Navigate loads the given URL, waiting for the DOM to be constructed.
// Readiness beyond that is the callers' concern via WaitReady/Resolve.
func (s *Session) Navigate(ctx context.Context, url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.navTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// WaitReady suspends until the page's network-idle signal or the bounded
// wait elapses, whichever comes first. A page that never settles is not an
// error; later queries simply see whatever is there.
func (s *Session) WaitReady(ctx context.Context) error {
	_ = s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(s.navTimeout.Milliseconds())),
	})
	return nil
}

// Resolve runs an element query against the session's page.
func (s *Session) Resolve(ctx context.Context, query locator.Query) (*locator.Result, error) {
	return s.engine.Resolve(s.page, query), nil
}

// RandomScroll simulates a few wheel scrolls with human pauses.
func (s *Session) RandomScroll(ctx context.Context) error {
	const numScrolls = 3
	for range numScrolls {
		if err := s.page.Mouse().Wheel(0, float64(100+rand.IntN(201))); err != nil {
			return fmt.Errorf("scrolling: %w", err)
		}
		sleep(ctx, jitter(500*time.Millisecond, 1500*time.Millisecond))
	}
	return nil
}

// RandomDelay pauses for a uniformly random duration in [min, max],
// respecting context cancellation.
func (s *Session) RandomDelay(ctx context.Context, min, max time.Duration) {
	sleep(ctx, jitter(min, max))
}

// HumanType types text into the element one character at a time with a
// jittered inter-key delay.
func (s *Session) HumanType(ctx context.Context, el locator.Element, text string) error {
	for _, r := range text {
		if err := el.Type(string(r)); err != nil {
			return fmt.Errorf("typing: %w", err)
		}
		sleep(ctx, jitter(50*time.Millisecond, 150*time.Millisecond))
	}
	return nil
}

// RandomMouseMove wanders the cursor across the viewport.
func (s *Session) RandomMouseMove(ctx context.Context) error {
	const numMoves = 5
	for range numMoves {
		x := float64(rand.IntN(s.fingerprint.ViewportWidth))
		y := float64(rand.IntN(s.fingerprint.ViewportHeight))
		if err := s.page.Mouse().Move(x, y); err != nil {
			return fmt.Errorf("moving mouse: %w", err)
		}
		sleep(ctx, jitter(500*time.Millisecond, 1500*time.Millisecond))
	}
	return nil
}

// StorageState captures the context's cookies and origin storage as a JSON
// blob suitable for seeding a future context.
func (s *Session) StorageState(ctx context.Context) ([]byte, error) {
	state, err := s.context.StorageState()
	if err != nil {
		return nil, fmt.Errorf("capturing storage state: %w", err)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding storage state: %w", err)
	}
	return raw, nil
}

// Close releases the page and context. Errors are ignored so cleanup always
// completes; the shared engine process stays up.
func (s *Session) Close(ctx context.Context) error {
	_ = s.page.Close()
	_ = s.context.Close()
	return nil
}

func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
