package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenValidate(t *testing.T) {
	addr := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0")

	tests := []struct {
		name      string
		token     Token
		wantError bool
	}{
		{
			name:  "reference-backed with rate",
			token: Token{Symbol: "PTS", Address: addr, Decimals: 18, Backing: BackingReference, Rate: decimal.NewFromInt(100)},
		},
		{
			name:  "fiat-backed with fiat rate",
			token: Token{Symbol: "THB", Address: addr, Decimals: 2, Backing: BackingFiat, FiatRate: decimal.RequireFromString("35.5")},
		},
		{
			name:      "reference-backed with zero rate",
			token:     Token{Symbol: "PTS", Backing: BackingReference},
			wantError: true,
		},
		{
			name:      "reference-backed with negative rate",
			token:     Token{Symbol: "PTS", Backing: BackingReference, Rate: decimal.NewFromInt(-1)},
			wantError: true,
		},
		{
			name:      "both modes set",
			token:     Token{Symbol: "PTS", Backing: BackingReference, Rate: decimal.NewFromInt(1), FiatRate: decimal.NewFromInt(1)},
			wantError: true,
		},
		{
			name:      "fiat-backed without fiat rate",
			token:     Token{Symbol: "THB", Backing: BackingFiat},
			wantError: true,
		},
		{
			name:      "empty symbol",
			token:     Token{Backing: BackingReference, Rate: decimal.NewFromInt(1)},
			wantError: true,
		},
		{
			name:      "unknown backing",
			token:     Token{Symbol: "X", Backing: Backing(7), Rate: decimal.NewFromInt(1)},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.token.Validate()
			if tt.wantError {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTokenConstructors(t *testing.T) {
	addr := common.HexToAddress("0x0000000000000000000000000000000000000001")

	ref, err := NewReferenceToken("PTS", addr, 18, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.False(t, ref.FiatBacked())

	fiat, err := NewFiatToken("THB", addr, 2, decimal.NewFromInt(35))
	require.NoError(t, err)
	assert.True(t, fiat.FiatBacked())

	_, err = NewFiatToken("THB", addr, 2, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMalformedResponseIsExternalFetch(t *testing.T) {
	assert.ErrorIs(t, ErrMalformedResponse, ErrExternalFetch)
}

func TestDecisionValid(t *testing.T) {
	assert.True(t, Decision{Outcome: OutcomeNotApplicable}.Valid())
	assert.True(t, Decision{Outcome: OutcomeAccepted}.Valid())
	assert.False(t, Decision{Outcome: OutcomeRejected}.Valid())
	assert.False(t, Decision{Outcome: OutcomeErrored}.Valid())
}
