package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/etlive/etlive"
	"github.com/etlive/etlive/config"
	"github.com/etlive/etlive/internal/shutdown"
)

// newLogger creates a JSON logger for CLI use.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// parseLevel accepts debug, info, warn and error, case-insensitively.
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll nodes and serve the read API",
	Long: `Start the etlive server.

The server will:
  - Load configuration from the specified YAML file
  - Poll every configured node once per poll interval
  - Serve /api/data/all, /api/data/{node}, /api/sse, /metrics and the dashboard
  - Publish node updates to NATS when configured

The server runs until interrupted (Ctrl+C) or receives SIGTERM, then stops
within the configured shutdown timeout.

Example:
  etlive serve -c etlive.yaml
  etlive serve --config /etc/etlive/etlive.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	levelFlag, _ := cmd.Flags().GetString("log-level")
	level, err := parseLevel(levelFlag)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, level)
	slog.SetDefault(logger)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"nodes", len(cfg.Nodes),
		"nats", cfg.NATS.URL != "",
	)

	opts, err := config.Options(cfg)
	if err != nil {
		return fmt.Errorf("failed to build nodes: %w", err)
	}
	opts = append(opts, etlive.WithLogger(logger))

	svc, err := etlive.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	ctx, stop := shutdown.WithSignals(context.Background(), logger)
	defer stop()

	return finishServe(svc.Start(ctx), logger)
}

// finishServe maps the result of Service.Start to the command result.
// Running out of shutdown time is logged but is not a failure.
func finishServe(err error, logger *slog.Logger) error {
	switch {
	case err == nil:
		logger.Info("shutdown complete")
		return nil
	case errors.Is(err, etlive.ErrShutdownTimeout):
		logger.Warn("shutdown timed out", "error", err, "action", "forcing exit")
		return nil
	default:
		return fmt.Errorf("server error: %w", err)
	}
}
