// Package browser owns the shared Playwright engine process and creates
// fingerprint-randomized, human-behavior-simulating browser contexts on top
// of it.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	slogctx "github.com/veqryn/slog-context"

	"github.com/instapipe/dm-manager/internal/config"
	"github.com/instapipe/dm-manager/internal/locator"
	"github.com/instapipe/dm-manager/internal/serviceerr"
)

const browserTracer = "browser.manager"

// stealthInitScript suppresses the automation-detection navigator flag
// before any page script runs.
const stealthInitScript = "Object.defineProperty(navigator, 'webdriver', {get: () => undefined})"

// Manager owns a single shared browser-engine process. Contexts are cheap
// and per-request; the engine itself is launched once and reused.
type Manager struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	browser     playwright.Browser
	initialized bool

	cfg    config.Browser
	engine *locator.Engine
	tracer trace.Tracer
}

func NewManager(cfg config.Browser) *Manager {
	return &Manager{
		cfg:    cfg,
		engine: locator.NewEngine(cfg.ReadyTimeout),
		tracer: otel.Tracer(browserTracer),
	}
}

// Initialize lazily starts the shared engine process. It is idempotent and
// safe for concurrent callers; the mutex guards against a double start.
// A launch failure is fatal and surfaces as an automation fault.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	ctx, span := m.tracer.Start(ctx, "Initialize")
	defer span.End()

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return serviceerr.AutomationFault("engine-install", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return serviceerr.AutomationFault("engine-start", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless:          playwright.Bool(m.cfg.Headless),
		Args:              m.cfg.LaunchArgs,
		IgnoreDefaultArgs: m.cfg.IgnoreDefaultArgs,
	})
	if err != nil {
		_ = pw.Stop()
		return serviceerr.AutomationFault("engine-launch", err)
	}

	m.playwright = pw
	m.browser = browser
	m.initialized = true

	slogctx.Info(ctx, "Browser engine started", "headless", m.cfg.Headless)

	return nil
}

// CreateStealthContext returns a fresh isolated context with a randomized
// fingerprint. When storageState is supplied the new context is seeded from
// it, restoring a previously persisted session.
func (m *Manager) CreateStealthContext(ctx context.Context, storageState []byte) (*Session, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}

	ctx, span := m.tracer.Start(ctx, "CreateStealthContext")
	defer span.End()

	fp := randomFingerprint(m.cfg)

	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  fp.ViewportWidth,
			Height: fp.ViewportHeight,
		},
		Geolocation: &playwright.Geolocation{
			Longitude: fp.Longitude,
			Latitude:  fp.Latitude,
		},
		Permissions: []string{"geolocation"},
	}
	if fp.Locale != "" {
		opts.Locale = playwright.String(fp.Locale)
	}
	if fp.UserAgent != "" {
		opts.UserAgent = playwright.String(fp.UserAgent)
	}
	if fp.Timezone != "" {
		opts.TimezoneId = playwright.String(fp.Timezone)
	}
	if fp.Proxy != nil {
		opts.Proxy = &playwright.Proxy{
			Server:   fp.Proxy.Server,
			Username: playwright.String(fp.Proxy.Username),
			Password: playwright.String(fp.Proxy.Password),
		}
	}
	if len(storageState) > 0 {
		var state playwright.OptionalStorageState
		if err := json.Unmarshal(storageState, &state); err != nil {
			return nil, fmt.Errorf("decoding storage state: %w", err)
		}
		opts.StorageState = &state
	}

	browserContext, err := m.browser.NewContext(opts)
	if err != nil {
		return nil, serviceerr.AutomationFault("context-create", err)
	}

	if err := browserContext.AddInitScript(playwright.Script{Content: playwright.String(stealthInitScript)}); err != nil {
		_ = browserContext.Close()
		return nil, serviceerr.AutomationFault("context-init-script", err)
	}

	page, err := browserContext.NewPage()
	if err != nil {
		_ = browserContext.Close()
		return nil, serviceerr.AutomationFault("page-create", err)
	}
	page.SetDefaultTimeout(float64(m.cfg.NavigationTimeout.Milliseconds()))

	session := &Session{
		context:     browserContext,
		page:        page,
		fingerprint: fp,
		engine:      m.engine,
		navTimeout:  m.cfg.NavigationTimeout,
	}

	// An initial scroll makes the fresh context look lived-in.
	_ = session.RandomScroll(ctx)

	slogctx.Debug(ctx, "Stealth context created",
		"locale", fp.Locale,
		"timezone", fp.Timezone,
		"viewport_width", fp.ViewportWidth,
		"viewport_height", fp.ViewportHeight,
	)

	return session, nil
}

// Shutdown stops the shared engine process. Safe to call when never
// initialized.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil
	}

	if err := m.browser.Close(); err != nil {
		slogctx.Warn(ctx, "Failed to close the shared browser", "error", err)
	}
	if err := m.playwright.Stop(); err != nil {
		return fmt.Errorf("stopping playwright: %w", err)
	}

	m.browser = nil
	m.playwright = nil
	m.initialized = false

	return nil
}
