package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	gateway "github.com/dmitrymomot/eventgateway"
	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/middleware"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Realtime event gateway",
	Long: `gateway accepts business events over HTTP, stores them in a durable
event log and fans them out to WebSocket subscribers while keeping
windowed metrics up to date.

Configuration is read from the environment and an optional .env file.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"gateway version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func newLogger(cfg gateway.Config) *slog.Logger {
	opts := []logger.Option{
		logger.WithContextValue("request_id", middleware.RequestIDKey()),
		logger.WithAttr(slog.String("version", Version)),
	}
	switch cfg.Env {
	case "production":
		opts = append(opts, logger.WithProduction(cfg.AppName))
	case "staging":
		opts = append(opts, logger.WithStaging(cfg.AppName))
	default:
		opts = append(opts, logger.WithDevelopment(cfg.AppName))
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	return logger.New(opts...)
}
