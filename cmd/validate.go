package cmd

import (
	"log/slog"

	"github.com/matrixise/loyalty-ledger/internal/config"
	"github.com/matrixise/loyalty-ledger/internal/logger"
	"github.com/matrixise/loyalty-ledger/internal/scheduler"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file syntax and values without running the application.`,
	RunE:  validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return err
	}

	// DATABASE_URL is only needed by serve and migrate.
	_, dbErr := config.DatabaseURL()

	slog.Info("✓ Configuration valid",
		"tokens", len(cfg.Tokens),
		"static_wallets", len(cfg.Exchange.Wallets),
		"ledger_rpc_urls", len(cfg.LedgerRPCUrls),
		"mainnet_rpc_urls", len(cfg.MainnetRPCUrls),
		"reference_pair", cfg.Market.ReferencePair,
		"fiat_pair", cfg.Market.FiatPair,
		"refresh", scheduler.DescribeSchedule(cfg.Exchange.RefreshInterval, cfg.GetTimezone()),
		"log_level", cfg.LogLevel,
		"database_url_set", dbErr == nil,
	)

	return nil
}
