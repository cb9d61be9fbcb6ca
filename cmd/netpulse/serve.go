package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/netpulse"
	"github.com/jpalmerr/netpulse/config"
)

const (
	shutdownTimeout = 10 * time.Second

	defaultEnvFile = ".env"
)

// newLogger creates a JSON logger for CLI use.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}

// loadEnv loads the --env-file flag. The default file may be absent.
func loadEnv(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("env-file")
	return config.LoadEnvFile(path, !cmd.Flags().Changed("env-file"))
}

// serveCmd starts the netpulse board and API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the board and API server",
	Long: `Start the netpulse board and API server.

The server will:
  - Load environment variables from --env-file (default .env, if present)
  - Load configuration from the specified YAML file
  - Mount one poller per widget, gated on dashboard page visibility
  - Serve /api/state, /api/sse, /api/visibility and /metrics on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  netpulse serve -c config.yaml
  netpulse serve --config /etc/netpulse/config.yaml --env-file /etc/netpulse/env`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().String("env-file", defaultEnvFile, "dotenv file loaded before the config is parsed")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(cmd.ErrOrStderr(), level)
	if err != nil {
		return err
	}

	if err := loadEnv(cmd); err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	baseURL := cfg.ResolveBaseURL()
	logger.Info("config loaded",
		"widgets", len(cfg.Widgets),
		"base_url", baseURL,
		"visibility", cfg.Visibility,
	)

	opts, err := config.BuildOptions(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build widgets: %w", err)
	}

	board, err := netpulse.New(baseURL, opts...)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	logger.Info("starting server",
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runUntilDone(ctx, logger, board.Start)
}

// runUntilDone runs start until it returns, allowing shutdownTimeout for
// cleanup once ctx is cancelled.
func runUntilDone(ctx context.Context, logger *slog.Logger, start func(context.Context) error) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
