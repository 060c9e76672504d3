package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/matrixise/loyalty-ledger/internal/config"
	"github.com/matrixise/loyalty-ledger/internal/logger"
	"github.com/matrixise/loyalty-ledger/internal/storage"
	"github.com/spf13/cobra"
)

var walletsCmd = &cobra.Command{
	Use:   "wallets",
	Short: "Manage exchange-intake wallets",
}

var walletsAddCmd = &cobra.Command{
	Use:   "add <address>...",
	Short: "Register exchange-intake wallets in the database",
	Long: `Insert or re-activate exchange-intake wallets. Running services pick them up on
their next registry refresh.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWalletsAdd,
}

var walletsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active exchange-intake wallets",
	RunE:  runWalletsList,
}

func init() {
	rootCmd.AddCommand(walletsCmd)
	walletsCmd.AddCommand(walletsAddCmd)
	walletsCmd.AddCommand(walletsListCmd)
}

func openStore(ctx context.Context) (*storage.Store, error) {
	dsn, err := config.DatabaseURL()
	if err != nil {
		return nil, err
	}
	return storage.NewStore(ctx, dsn)
}

func runWalletsAdd(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)

	for _, a := range args {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("invalid address %q", a)
		}
	}

	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.UpsertExchangeWallets(ctx, args); err != nil {
		slog.Error("Failed to register wallets", "error", err)
		return err
	}
	slog.Info("Exchange wallets registered", "count", len(args))
	return nil
}

func runWalletsList(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)

	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	wallets, err := store.ExchangeWallets(ctx)
	if err != nil {
		return err
	}
	for _, w := range wallets {
		fmt.Fprintln(cmd.OutOrStdout(), w)
	}
	return nil
}
