package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jsirianni/gamemetrics/config"
	"github.com/jsirianni/gamemetrics/internal/api"
	"github.com/jsirianni/gamemetrics/internal/collector"
	"github.com/jsirianni/gamemetrics/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newGameCmd(root *rootOptions, variant collector.Variant) *cobra.Command {
	cmd := &cobra.Command{
		Use:   variant.Name,
		Short: variant.Description,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root.configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, variant)
		},
	}
	addRCONFlags(cmd.Flags())
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, variant collector.Variant) error {
	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	metricsProvider, err := metrics.NewProvider()
	if err != nil {
		logger.Error("metrics provider", zap.Error(err))
		return err
	}
	defer func() {
		_ = metricsProvider.Shutdown(context.Background())
	}()

	rconRecorder, err := metrics.NewRCONRecorder()
	if err != nil {
		logger.Error("rcon recorder", zap.Error(err))
		return err
	}
	playerRecorder, err := metrics.NewPlayerCountRecorder()
	if err != nil {
		logger.Error("player count recorder", zap.Error(err))
		return err
	}

	if cfg.Telemetry.Enabled() {
		telemetryServer := api.NewTelemetryServer(cfg.Telemetry.Addr(), metricsProvider.Handler())
		go func() {
			logger.Info("telemetry server listening", zap.String("addr", telemetryServer.Addr), zap.String("metrics", api.TelemetryPath))
			if err := telemetryServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("telemetry server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = telemetryServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("connecting to game server",
		zap.String("game", variant.Name),
		zap.String("address", cfg.RCON.Address()))

	c, err := collector.New(signalCtx, variant, collector.Options{
		Address:        cfg.RCON.Address(),
		Password:       cfg.RCON.Password,
		ReadTimeout:    cfg.RCON.ReadTimeout,
		WriteTimeout:   cfg.RCON.WriteTimeout,
		RetryInterval:  cfg.RCON.RetryInterval,
		Logger:         logger.With(zap.String("module", "collector")),
		RCONRecorder:   rconRecorder,
		PlayerRecorder: playerRecorder,
	})
	if err != nil {
		if signalCtx.Err() != nil {
			logger.Info("shutdown signal received before the game server was reachable")
			return nil
		}
		return err
	}
	defer func() {
		_ = c.Close()
	}()

	scrapeServer := api.NewScrapeServer(cfg.MetricsAddr(), c, logger.With(zap.String("module", "api")))
	logger.Info("scrape server listening", zap.String("addr", scrapeServer.Addr()))
	if err := scrapeServer.ListenAndServe(signalCtx); err != nil {
		logger.Error("scrape server stopped", zap.Error(err))
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
