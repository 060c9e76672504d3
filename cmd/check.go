package cmd

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/matrixise/loyalty-ledger/internal/blockchain"
	"github.com/matrixise/loyalty-ledger/internal/config"
	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/matrixise/loyalty-ledger/internal/history"
	"github.com/matrixise/loyalty-ledger/internal/logger"
	"github.com/matrixise/loyalty-ledger/internal/storage"
	"github.com/spf13/cobra"
)

var (
	checkToken  string
	checkTo     string
	checkAmount string
)

var checkCmd = &cobra.Command{
	Use:   "check-transfer",
	Short: "Value a transfer to an exchange wallet without submitting it",
	Long: `Run the exchange validation for a token amount sent to a destination wallet and
print the decision. The amount is given in raw base units. When DATABASE_URL is set the
exchange-wallet registry is loaded from PostgreSQL as well as from the config file.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkToken, "token", "", "token symbol as configured")
	checkCmd.Flags().StringVar(&checkTo, "to", "", "destination wallet address")
	checkCmd.Flags().StringVar(&checkAmount, "amount", "", "amount in raw base units")
	_ = checkCmd.MarkFlagRequired("token")
	_ = checkCmd.MarkFlagRequired("to")
	_ = checkCmd.MarkFlagRequired("amount")
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)
	ctx := context.Background()

	if !common.IsHexAddress(checkTo) {
		return fmt.Errorf("%w: invalid destination %q", domain.ErrInvalidInput, checkTo)
	}
	amount, ok := new(big.Int).SetString(checkAmount, 10)
	if !ok || amount.Sign() < 0 {
		return fmt.Errorf("%w: invalid amount %q", domain.ErrInvalidInput, checkAmount)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	c, err := buildCore(cfg, &http.Client{Timeout: history.DefaultTimeout})
	if err != nil {
		return err
	}
	defer c.Close()

	token, err := c.tokens.BySymbol(checkToken)
	if err != nil {
		return err
	}

	if dsn, err := config.DatabaseURL(); err == nil {
		store, err := storage.NewStore(ctx, dsn)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := c.wallets.Refresh(ctx, store); err != nil {
			return err
		}
	}

	destination := common.HexToAddress(checkTo)
	decision := c.validator.Validate(ctx, token, destination, domain.DecodedTransfer{
		Token:     token.Address,
		Recipient: destination,
		Amount:    amount,
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "token:    %s (%s)\n", token.Symbol, token.Address.Hex())
	fmt.Fprintf(out, "amount:   %s\n", blockchain.HumanBalance(amount, token.Decimals))
	fmt.Fprintf(out, "outcome:  %s\n", decision.Outcome)
	if decision.Message != "" {
		fmt.Fprintf(out, "message:  %s\n", decision.Message)
	}
	if decision.Valuation != nil {
		fmt.Fprintf(out, "valuation: %s\n", decision.Valuation)
	}

	if decision.Outcome == domain.OutcomeErrored {
		return decision.Err
	}
	if !decision.Valid() {
		return fmt.Errorf("transfer rejected: %s", decision.Message)
	}
	return nil
}
