// Package history merges a wallet's public-chain and ledger transaction histories.
package history

import (
	"context"
	"fmt"
	"slices"

	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/matrixise/loyalty-ledger/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// MainnetFeed returns a wallet's public-chain transactions, newest first.
type MainnetFeed interface {
	Transactions(ctx context.Context, wallet string) ([]domain.HistoryRecord, error)
}

// LedgerQuery returns up to limit ledger records for a wallet.
type LedgerQuery interface {
	LedgerHistory(ctx context.Context, wallet string, limit int) ([]domain.HistoryRecord, error)
}

// Aggregator serves wallet history from one or both sources.
type Aggregator struct {
	mainnet MainnetFeed
	ledger  LedgerQuery
}

func NewAggregator(mainnet MainnetFeed, ledger LedgerQuery) *Aggregator {
	return &Aggregator{mainnet: mainnet, ledger: ledger}
}

// History returns the wallet's history. An empty source merges both sources,
// oldest first. A failure in either source fails the whole call.
func (a *Aggregator) History(ctx context.Context, wallet string, source domain.Source, limit int) ([]domain.HistoryRecord, error) {
	limit = clampLimit(limit)

	switch source {
	case domain.SourceChain:
		metrics.HistoryRequests.WithLabelValues(string(source)).Inc()
		records, err := a.chain(ctx, wallet)
		if err != nil {
			return nil, err
		}
		return truncate(records, limit), nil

	case domain.SourceLedger:
		metrics.HistoryRequests.WithLabelValues(string(source)).Inc()
		return a.ledgerHistory(ctx, wallet, limit)

	case "":
		metrics.HistoryRequests.WithLabelValues("all").Inc()
		return a.merged(ctx, wallet, limit)

	default:
		return nil, fmt.Errorf("%w: unknown history source %q", domain.ErrInvalidInput, source)
	}
}

func (a *Aggregator) merged(ctx context.Context, wallet string, limit int) ([]domain.HistoryRecord, error) {
	var chainRecords, ledgerRecords []domain.HistoryRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := a.chain(gctx, wallet)
		if err != nil {
			return err
		}
		chainRecords = truncate(r, DefaultLimit)
		return nil
	})
	g.Go(func() error {
		r, err := a.ledgerHistory(gctx, wallet, DefaultLimit)
		if err != nil {
			return err
		}
		ledgerRecords = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]domain.HistoryRecord, 0, len(chainRecords)+len(ledgerRecords))
	all = append(all, chainRecords...)
	all = append(all, ledgerRecords...)
	slices.SortStableFunc(all, func(x, y domain.HistoryRecord) int {
		return x.Timestamp.Compare(y.Timestamp)
	})
	return truncate(all, limit), nil
}

// chain fetches public-chain records and drops zero-value entries.
func (a *Aggregator) chain(ctx context.Context, wallet string) ([]domain.HistoryRecord, error) {
	records, err := a.mainnet.Transactions(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("mainnet history: %w", err)
	}
	out := make([]domain.HistoryRecord, 0, len(records))
	for _, r := range records {
		if r.Value.IsPositive() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a *Aggregator) ledgerHistory(ctx context.Context, wallet string, limit int) ([]domain.HistoryRecord, error) {
	records, err := a.ledger.LedgerHistory(ctx, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	return truncate(records, limit), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

func truncate(records []domain.HistoryRecord, limit int) []domain.HistoryRecord {
	if len(records) > limit {
		return records[:limit]
	}
	return records
}
