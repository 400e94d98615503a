package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pakmirror/pakmirror/internal/config"
	"github.com/pakmirror/pakmirror/internal/observability"
	"github.com/pakmirror/pakmirror/internal/server"
	"github.com/pakmirror/pakmirror/internal/server/handlers"
	"github.com/pakmirror/pakmirror/pkg/history"
	"github.com/pakmirror/pakmirror/pkg/jobregistry"
	"github.com/pakmirror/pakmirror/pkg/launcher"
	"github.com/pakmirror/pakmirror/pkg/monitor"
	"github.com/pakmirror/pakmirror/pkg/retry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mirror job API server",
	Long: `Start the HTTP server exposing the mirror job orchestration API.

Example:
  pakmirror serve
  pakmirror serve --port 9000
  pakmirror serve --config /etc/pakmirror.yaml`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rootConfigPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load configuration",
			zap.String("path", rootConfigPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	logger, err := observability.NewLogger(cfg.Logging.Level)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid log level", err)
	}
	defer func() { _ = logger.Sync() }()

	registry := jobregistry.New()
	hist := history.NewStore()
	mon := monitor.New(registry, hist, logger)
	mon.Interval = cfg.Jobs.PollInterval
	mon.Grace = cfg.Jobs.GracePeriod

	launch := launcher.New(registry, hist, mon, logger, cfg.Jobs.DownloaderCommand)
	engine := retry.New(launch, logger)

	srv := server.New(cfg.Server.Host, cfg.Server.Port, server.Deps{
		Launcher: launch,
		Retry:    engine,
		Logger:   logger,
		Handlers: handlers.Options{
			HomeDir:   cfg.Jobs.HomeDir,
			TailLines: cfg.Jobs.LogTailLines,
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		},
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Shutdown failed", err)
	}
	return nil
}
