package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source tags where a history record came from.
type Source string

const (
	SourceChain  Source = "chain"
	SourceLedger Source = "ledger"
)

// HistoryRecord is one transaction in a wallet's merged history.
type HistoryRecord struct {
	Hash            string          `json:"hash"`
	Timestamp       time.Time       `json:"timestamp"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	Value           decimal.Decimal `json:"value"`
	Source          Source          `json:"source"`
	ContractAddress string          `json:"contract_address,omitempty"`
}
