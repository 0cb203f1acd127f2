package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/driftline/roomcast/internal/app"
	"github.com/driftline/roomcast/internal/config"
	"github.com/driftline/roomcast/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "roomcast",
		Short:         "Horizontally scalable room chat server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
		jwtTTL     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrapLogger := log.New("info")

			cfg, resolvedPath, err := config.Load(bootstrapLogger, configPath)
			if err != nil {
				return err
			}
			overrides.JWTTTL = jwtTTL
			cfg.UpdateFrom(overrides)

			logger := log.New(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}

			logger.Info().
				Str("addr", cfg.Addr).
				Str("config", resolvedPath).
				Str("default_room", cfg.DefaultRoom).
				Msg("starting roomcast server")

			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	// Flags override the config file only when set to a non-zero value.
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&overrides.DatabasePath, "db", "", "path to SQLite database file")
	cmd.Flags().StringVar(&overrides.RedisURL, "redis-url", "", "Redis URL for the broadcast bus")
	cmd.Flags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&overrides.DefaultRoom, "default-room", "", "room subscribed at startup")
	cmd.Flags().DurationVar(&jwtTTL, "jwt-ttl", 0, "JWT token lifetime")

	return cmd
}
