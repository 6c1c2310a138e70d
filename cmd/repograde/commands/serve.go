package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repograde/internal/cache"
	"github.com/Sumatoshi-tech/repograde/internal/config"
	"github.com/Sumatoshi-tech/repograde/internal/jobs"
	"github.com/Sumatoshi-tech/repograde/internal/observability"
	"github.com/Sumatoshi-tech/repograde/internal/server"
	"github.com/Sumatoshi-tech/repograde/internal/store"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Start the repograde API server: accepts analysis submissions,
runs them on a bounded worker pool and serves results, listings,
the leaderboard and operational endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (default: .repograde.yaml in CWD or $HOME)")

	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)

	st, storeErr := store.New(cfg.Store.Path, logger)
	if storeErr != nil {
		return fmt.Errorf("open store: %w", storeErr)
	}
	defer st.Close()

	var responseCache *cache.Cache
	if cfg.Cache.Enabled {
		responseCache = cache.New(cfg.Cache.MaxEntries)
	}

	metrics := observability.NewMetrics()

	pipe, pipeErr := buildPipeline(ctx, cfg, logger)
	if pipeErr != nil {
		return pipeErr
	}

	pipe.WithMetrics(metrics)

	manager := jobs.NewManager(st, responseCache, pipe, cfg.Pipeline.Workers, logger).
		WithMetrics(metrics)
	defer manager.Close()

	api := server.New(st, responseCache, manager, metrics, logger).WithTTLs(
		time.Duration(cfg.Cache.ListTTL)*time.Second,
		time.Duration(cfg.Cache.DetailTTL)*time.Second,
		time.Duration(cfg.Cache.ChartTTL)*time.Second,
	)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  config.ParseDuration(cfg.Server.ReadTimeout, fallbackReadTimeout),
		WriteTimeout: config.ParseDuration(cfg.Server.WriteTimeout, fallbackWriteTimeout),
	}

	notifyCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	logger.Info("server listening", "addr", cfg.Server.Addr, "workers", cfg.Pipeline.Workers)

	select {
	case serveErr := <-errCh:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", serveErr)
		}

		return nil
	case <-notifyCtx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		config.ParseDuration(cfg.Server.ShutdownTimeout, fallbackShutdownTimeout),
	)
	defer cancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}

	return nil
}
