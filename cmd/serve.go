package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matrixise/loyalty-ledger/internal/api"
	"github.com/matrixise/loyalty-ledger/internal/config"
	"github.com/matrixise/loyalty-ledger/internal/health"
	"github.com/matrixise/loyalty-ledger/internal/history"
	"github.com/matrixise/loyalty-ledger/internal/logger"
	"github.com/matrixise/loyalty-ledger/internal/scheduler"
	"github.com/matrixise/loyalty-ledger/internal/storage"
	"github.com/spf13/cobra"
)

var refreshInterval string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transfer validation API",
	Long: `Serve the transfer validation and wallet history API. The exchange-wallet
registry is refreshed from PostgreSQL on the configured interval.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&refreshInterval, "refresh-interval", "", "wallet registry refresh - duration (5m, 1h) or cron (\"*/5 * * * *\") - overrides config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		slog.Info("Signal received, graceful shutdown", "signal", sig)
		cancel()
	}()

	cfg, databaseURL, err := config.LoadWithDefaults(cfgFile)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return err
	}
	if cfg.LogLevel != "" && !cmd.Flags().Changed("log-level") {
		logger.Setup(cfg.LogLevel)
	}

	interval := refreshInterval
	if interval == "" {
		interval = cfg.Exchange.RefreshInterval
	}
	if err := scheduler.ValidateScheduleInterval(interval); err != nil {
		return fmt.Errorf("refresh interval: %w", err)
	}

	slog.Info("Configuration loaded",
		"config_path", cfgFile,
		"tokens", len(cfg.Tokens),
		"static_wallets", len(cfg.Exchange.Wallets),
		"refresh_interval", interval,
	)

	store, err := storage.NewStore(ctx, databaseURL)
	if err != nil {
		slog.Error("Failed to connect to PostgreSQL", "error", err)
		return err
	}
	defer store.Close()
	slog.Info("PostgreSQL connection established")

	httpClient := &http.Client{Timeout: history.DefaultTimeout}
	c, err := buildCore(cfg, httpClient)
	if err != nil {
		slog.Error("Failed to initialise components", "error", err)
		return err
	}
	defer c.Close()

	chains := map[string]health.RPCStatus{"ledger": c.ledger, "mainnet": c.mainnet}
	var checker *health.Checker

	if interval != "" {
		sched, err := scheduler.NewScheduler(ctx, scheduler.Config{
			Name:           "wallet-registry-refresh",
			Interval:       interval,
			Timezone:       cfg.GetTimezone(),
			RunImmediately: cfg.ShouldRunImmediately(),
			Logger:         slog.Default(),
		}, func(jobCtx context.Context) error {
			return c.wallets.Refresh(jobCtx, store)
		})
		if err != nil {
			slog.Error("Failed to create scheduler", "error", err)
			return fmt.Errorf("scheduler creation failed: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				slog.Error("Scheduler shutdown error", "error", err)
			}
		}()

		if err := sched.Start(); err != nil {
			slog.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("scheduler start failed: %w", err)
		}
		slog.Info("Wallet registry refresh scheduled",
			"schedule", scheduler.DescribeSchedule(interval, cfg.GetTimezone()),
			"timezone", cfg.GetTimezone().String(),
			"run_immediately", cfg.ShouldRunImmediately())

		checker = health.NewChecker(store, chains, sched)
	} else {
		if err := c.wallets.Refresh(ctx, store); err != nil {
			slog.Warn("Initial wallet registry refresh failed", "error", err)
		}
		checker = health.NewChecker(store, chains, nil)
	}

	aggregator := history.NewAggregator(
		history.NewMainnetClient(cfg.HistoryAPI.URL, cfg.HistoryAPI.APIKey, httpClient),
		store,
	)

	router := api.NewRouter(api.Deps{
		Decoder:           c.ledger,
		Submitter:         c.ledger,
		Tokens:            c.tokens,
		Validator:         c.validator,
		History:           aggregator,
		Recorder:          store,
		Health:            checker.Handler(),
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown requested, stopping server")
	case err := <-serveErr:
		slog.Error("HTTP server error", "error", err)
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	return nil
}
