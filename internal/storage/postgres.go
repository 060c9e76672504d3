package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/matrixise/loyalty-ledger/internal/domain"
)

const ledgerHistorySQL = `
SELECT hash, block_time, from_address, to_address, token_address, amount
FROM ledger_transactions
WHERE from_address = $1 OR to_address = $1
ORDER BY block_time DESC, id DESC
LIMIT $2`

// Store manages PostgreSQL operations
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new PostgreSQL store with connection pooling
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	// NUMERIC columns scan into decimal.Decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// LedgerHistory returns up to limit ledger transfers sent or received by wallet, newest first.
func (s *Store) LedgerHistory(ctx context.Context, wallet string, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		return []domain.HistoryRecord{}, nil
	}

	rows, err := s.pool.Query(ctx, ledgerHistorySQL, normalizeAddress(wallet), limit)
	if err != nil {
		return nil, fmt.Errorf("query ledger history: %w", err)
	}
	ledgerRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[ledgerRow])
	if err != nil {
		return nil, fmt.Errorf("scan ledger history: %w", err)
	}

	records := make([]domain.HistoryRecord, 0, len(ledgerRows))
	for _, r := range ledgerRows {
		records = append(records, r.record())
	}
	return records, nil
}

// ExchangeWallets returns the active exchange-intake addresses.
func (s *Store) ExchangeWallets(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT address FROM exchange_wallets WHERE active ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("query exchange wallets: %w", err)
	}
	wallets, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan exchange wallets: %w", err)
	}
	return wallets, nil
}

// InsertLedgerTransfer records a submitted transfer. Re-inserting the same hash is a no-op.
func (s *Store) InsertLedgerTransfer(ctx context.Context, t LedgerTransfer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_transactions
		(hash, block_time, from_address, to_address, token_address, symbol, amount, outcome, net_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (hash) DO NOTHING`,
		t.Hash,
		t.BlockTime,
		normalizeAddress(t.From),
		normalizeAddress(t.To),
		normalizeAddress(t.TokenAddress),
		t.Symbol,
		t.Amount,
		string(t.Outcome),
		t.NetValue,
	)
	if err != nil {
		return fmt.Errorf("insert ledger transfer %s: %w", t.Hash, err)
	}
	return nil
}

// UpsertExchangeWallets registers intake wallets in a single batch.
func (s *Store) UpsertExchangeWallets(ctx context.Context, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range addresses {
		batch.Queue(`
			INSERT INTO exchange_wallets (address) VALUES ($1)
			ON CONFLICT (address) DO UPDATE SET active = TRUE`,
			normalizeAddress(a),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range addresses {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch upsert exchange wallets failed: %w", err)
		}
	}
	return nil
}

// Ping verifies the connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Addresses are stored lowercase so lookups do not depend on checksum casing.
func normalizeAddress(a string) string {
	return strings.ToLower(strings.TrimSpace(a))
}
