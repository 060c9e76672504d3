package storage

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRowRecord(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	row := ledgerRow{
		Hash:         "0xabc",
		BlockTime:    time.Date(2024, 3, 1, 17, 0, 0, 0, bangkok),
		FromAddress:  "0x1111111111111111111111111111111111111111",
		ToAddress:    "0x2222222222222222222222222222222222222222",
		TokenAddress: "0x3333333333333333333333333333333333333333",
		Amount:       decimal.RequireFromString("400000000000000000000"),
	}

	rec := row.record()

	assert.Equal(t, "0xabc", rec.Hash)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), rec.Timestamp)
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
	assert.Equal(t, row.FromAddress, rec.From)
	assert.Equal(t, row.ToAddress, rec.To)
	assert.Equal(t, row.TokenAddress, rec.ContractAddress)
	assert.True(t, rec.Value.Equal(row.Amount))
	assert.Equal(t, domain.SourceLedger, rec.Source)
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0xAbCdEf0000000000000000000000000000000001", "0xabcdef0000000000000000000000000000000001"},
		{"  0xabc  ", "0xabc"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAddress(tt.in))
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrations, migrationsDir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{
		"00001_create_ledger_transactions.sql",
		"00002_create_exchange_wallets.sql",
	}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			body, err := fs.ReadFile(migrations, migrationsDir+"/"+name)
			require.NoError(t, err)
			assert.True(t, strings.Contains(string(body), "-- +goose Up"))
			assert.True(t, strings.Contains(string(body), "-- +goose Down"))
		})
	}
}
