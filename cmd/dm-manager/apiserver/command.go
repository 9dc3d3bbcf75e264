package apiserver

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/instapipe/dm-manager/internal/business"
	"github.com/instapipe/dm-manager/internal/config"
)

var configPath string

func run(ctx context.Context, cfg *config.Config) error {
	initLogger()

	slogctx.Debug(ctx, "Starting the application")

	if err := business.Main(ctx, cfg); err != nil {
		return oops.In("main").
			Wrapf(err, "Failed to start the main business application")
	}

	return nil
}

// initLogger installs a JSON handler that renders the attributes
// carried in the request context.
func initLogger() {
	handler := slogctx.NewHandler(slog.NewJSONHandler(os.Stdout, nil), nil)
	slog.SetDefault(slog.New(handler))
}

func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api-server",
		Short: "DM Manager API server",
		Long:  "DM Manager API server hosts the login, token, and messaging HTTP API.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validating config: %w", err)
			}

			if err := run(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("running the api server: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the configuration file")

	return cmd
}
