package storage

import (
	"time"

	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// LedgerTransfer is a validated transfer submitted to the ledger chain.
type LedgerTransfer struct {
	Hash         string
	BlockTime    time.Time
	From         string
	To           string
	TokenAddress string
	Symbol       string
	Amount       decimal.Decimal
	Outcome      domain.Outcome
	// NetValue is set for exchange-bound transfers only.
	NetValue decimal.NullDecimal
}

// ledgerRow is the ledger_transactions projection read by LedgerHistory.
type ledgerRow struct {
	Hash         string          `db:"hash"`
	BlockTime    time.Time       `db:"block_time"`
	FromAddress  string          `db:"from_address"`
	ToAddress    string          `db:"to_address"`
	TokenAddress string          `db:"token_address"`
	Amount       decimal.Decimal `db:"amount"`
}

func (r ledgerRow) record() domain.HistoryRecord {
	return domain.HistoryRecord{
		Hash:            r.Hash,
		Timestamp:       r.BlockTime.UTC(),
		From:            r.FromAddress,
		To:              r.ToAddress,
		Value:           r.Amount,
		Source:          domain.SourceLedger,
		ContractAddress: r.TokenAddress,
	}
}
