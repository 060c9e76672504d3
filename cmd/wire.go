package cmd

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/matrixise/loyalty-ledger/internal/blockchain"
	"github.com/matrixise/loyalty-ledger/internal/config"
	"github.com/matrixise/loyalty-ledger/internal/exchange"
	"github.com/matrixise/loyalty-ledger/internal/gasoracle"
	"github.com/matrixise/loyalty-ledger/internal/market"
	"github.com/matrixise/loyalty-ledger/internal/registry"
	"github.com/matrixise/loyalty-ledger/internal/valuation"
)

// core holds the components shared by serve and check-transfer.
type core struct {
	ledger    *blockchain.Client
	mainnet   *blockchain.Client
	tokens    *registry.Tokens
	wallets   *registry.Wallets
	validator *exchange.Validator
}

func (c *core) Close() {
	if c.ledger != nil {
		c.ledger.Close()
	}
	if c.mainnet != nil {
		c.mainnet.Close()
	}
}

// buildCore connects both chains and assembles the valuation pipeline.
func buildCore(cfg *config.Config, httpClient *http.Client) (*core, error) {
	domainTokens, err := cfg.DomainTokens()
	if err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}
	tokens, err := registry.NewTokens(domainTokens)
	if err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}

	c := &core{tokens: tokens, wallets: registry.NewWallets(cfg.ExchangeWallets())}

	c.ledger, err = blockchain.NewClient(cfg.LedgerRPCUrls)
	if err != nil {
		return nil, fmt.Errorf("ledger RPC: %w", err)
	}
	logEndpoints("ledger", cfg.LedgerRPCUrls)

	c.mainnet, err = blockchain.NewClient(cfg.MainnetRPCUrls)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("mainnet RPC: %w", err)
	}
	logEndpoints("mainnet", cfg.MainnetRPCUrls)

	rates := market.NewClient(cfg.Market.URL, cfg.Market.AccessKey, cfg.Market.SecretKey, market.WithHTTPClient(httpClient))
	gas := gasoracle.NewClient(cfg.GasOracle.URL, httpClient)
	orchestrator := valuation.NewOrchestrator(rates, gas, valuation.Pairs{
		ReferenceToChain: cfg.Market.ReferencePair,
		ChainToFiat:      cfg.Market.FiatPair,
	})
	c.validator = exchange.NewValidator(c.wallets, c.mainnet, orchestrator, cfg.SampleAmount())

	return c, nil
}

func logEndpoints(chain string, urls []string) {
	if len(urls) == 1 {
		slog.Info("RPC connection established", "chain", chain, "endpoint", urls[0])
		return
	}
	slog.Info("RPC connection established with failover",
		"chain", chain,
		"endpoints", len(urls),
		"primary", urls[0])
}
