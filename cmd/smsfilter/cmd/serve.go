package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/smsfilter/internal/core/api"
	"github.com/solatis/smsfilter/internal/core/auth"
	"github.com/solatis/smsfilter/internal/core/config"
	"github.com/solatis/smsfilter/internal/core/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC filter service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "gRPC listen host")
	serveCmd.Flags().Int("port", 50061, "gRPC listen port")
	serveCmd.Flags().String("metrics", "127.0.0.1:9161", "metrics listen address (empty disables)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set %s_HMAC_SECRET environment variable)", config.EnvPrefix)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	service, err := api.NewFilterService(a.engine, a.messages, a.backups, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, auth.NewAuthenticator(secrets, a.queries), logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var metricsServer *server.MetricsServer
	if cfg.MetricsAddr != "" {
		metricsServer = server.NewMetricsServer(cfg.MetricsAddr, a.metrics, logger)
		metricsServer.Start()
	}

	logger.Info("starting smsfilter", "version", Version, "addr", cfg.Addr(), "archive_blocked", cfg.ArchiveBlocked)

	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
	return grpcServer.Shutdown(shutdownCtx)
}
