package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/disasterboard"
	"github.com/jpalmerr/disasterboard/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// serveCmd starts the dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the disaster dashboard server.

The server will:
  - Load configuration from the YAML file, if one is given
  - Start polling the disaster API for every enabled view
  - Serve the dashboard UI on the configured port

Flags override the matching config file values. The server runs until
interrupted (Ctrl+C) or receives SIGTERM.

Example:
  disasterboard serve
  disasterboard serve -c config.yaml
  disasterboard serve --api-url http://10.0.0.5:5000/api --port 9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file")
	serveCmd.Flags().String("api-url", "", "disaster API base URL")
	serveCmd.Flags().IntP("port", "p", 0, "HTTP server port")
	serveCmd.Flags().String("location", "", "initial location, e.g. \"Pune\"")
	serveCmd.Flags().Bool("debug", false, "enable debug logging")
}

// loadServeConfig reads the config file, if any, and applies flag overrides.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := &config.Config{}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("api-url") {
		cfg.APIURL, _ = cmd.Flags().GetString("api-url")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("location") {
		addr, _ := cmd.Flags().GetString("location")
		cfg.Location = &config.LocationConfig{Address: addr}
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	logger := newLogger(debug)

	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	b, err := config.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}

	logger.Info("starting server",
		"port", b.Port(),
		"views", len(b.Views()),
		"location", b.Location().Address,
	)

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serveUntilDone(ctx, b, logger)
}

// serveUntilDone runs b until ctx is cancelled, giving it shutdownTimeout
// to stop afterwards.
func serveUntilDone(ctx context.Context, b *disasterboard.Board, logger *slog.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- b.Start(ctx)
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
