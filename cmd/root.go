package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "loyalty-ledger",
	Short: "Loyalty token exchange validation service",
	Long: `loyalty-ledger values loyalty-token transfers sent to exchange-intake wallets
against live market rates and public-chain gas prices, rejects transfers whose net
value would be negative, and serves merged ledger and public-chain wallet history.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
