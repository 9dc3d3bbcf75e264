package business

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"
	"go.opentelemetry.io/otel"

	slogctx "github.com/veqryn/slog-context"

	"github.com/instapipe/dm-manager/internal/browser"
	"github.com/instapipe/dm-manager/internal/business/server"
	"github.com/instapipe/dm-manager/internal/config"
	"github.com/instapipe/dm-manager/internal/flow"
	"github.com/instapipe/dm-manager/internal/session"
	sessionmemory "github.com/instapipe/dm-manager/internal/session/memory"
	sessionvalkey "github.com/instapipe/dm-manager/internal/session/valkey"
	"github.com/instapipe/dm-manager/internal/token"
)

const tracerName = "dm-manager"

// Main wires the service and runs the HTTP API until the context is
// cancelled.
func Main(ctx context.Context, cfg *config.Config) error {
	svc, closeFn, err := initService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the service: %w", err)
	}

	defer closeFn(context.WithoutCancel(ctx))

	return server.StartHTTPServer(ctx, cfg, svc)
}

func initService(ctx context.Context, cfg *config.Config) (_ *Service, closeFn func(context.Context), _ error) {
	key := cfg.EncryptionKeyBytes()

	var repo session.Repository

	closeValkey := func() {}
	if cfg.ValKey.Enabled {
		valkeyClient, err := valkey.NewClient(valkey.ClientOption{
			InitAddress: []string{cfg.ValKey.Host},
			Username:    cfg.ValKey.User,
			Password:    cfg.ValKey.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating a new valkey client: %w", err)
		}

		repo = sessionvalkey.NewRepository(valkeyClient, cfg.ValKey.Prefix)
		closeValkey = valkeyClient.Close
	} else {
		slogctx.Warn(ctx, "ValKey disabled, sessions are process-local")
		repo = sessionmemory.NewRepository()
	}

	store, err := session.NewStore(repo, key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating the session store: %w", err)
	}

	tokens := token.NewService(store, []byte(cfg.Token.SigningKey), cfg.Token.AccessTokenTTL, cfg.Token.RefreshTokenTTL)

	manager := browser.NewManager(cfg.Browser)
	adapter := browserAdapter{manager: manager}
	tracer := otel.Tracer(tracerName)

	svc := NewService(
		flow.NewLogin(adapter, store, tokens, tracer, cfg.Flow.LoginURL, cfg.Store.SessionTTL),
		flow.NewMessaging(adapter, store, tracer, cfg.Flow.InboxURL),
		tokens,
	)

	closeFn = func(ctx context.Context) {
		if err := manager.Shutdown(ctx); err != nil {
			slogctx.Error(ctx, "Failed to shut down the browser engine", "error", err)
		}

		closeValkey()
	}

	return svc, closeFn, nil
}
