package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matrixise/loyalty-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedClock = func() time.Time { return time.UnixMilli(1700000000123) }

func TestSign(t *testing.T) {
	t.Run("known digest", func(t *testing.T) {
		// echo -n "a=1&b=2" | sha256sum
		got := Sign(map[string]string{"b": "2", "a": "1"})
		assert.Equal(t, "8e85be58c1c372ac29fe7bfa80d8ddcbd04a4032c7b51c1c026d67c55b1ab23f", got)
	})

	t.Run("independent of map order", func(t *testing.T) {
		a := Sign(map[string]string{"symbol": "KUB_ETH", "limit": "1", "timestamp": "1", "access_key": "k"})
		b := Sign(map[string]string{"access_key": "k", "timestamp": "1", "limit": "1", "symbol": "KUB_ETH"})
		assert.Equal(t, a, b)
	})

	t.Run("any parameter change alters digest", func(t *testing.T) {
		a := Sign(map[string]string{"symbol": "KUB_ETH", "secret_key": "s1"})
		b := Sign(map[string]string{"symbol": "KUB_ETH", "secret_key": "s2"})
		assert.NotEqual(t, a, b)
	})
}

func TestClientRate(t *testing.T) {
	var received map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"result":{"bids":[{"limitPrice":"0.000000001","amount":"12"},{"limitPrice":"0.0000000009","amount":"3"}]}}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "access", "secret", WithClock(fixedClock))
	rate, err := c.Rate(context.Background(), "KUB_ETH")
	require.NoError(t, err)

	assert.Equal(t, "0.000000001", rate.String())

	assert.Equal(t, "KUB_ETH", received["symbol"])
	assert.Equal(t, "1", received["limit"])
	assert.Equal(t, "access", received["access_key"])
	assert.Equal(t, "1700000000123", received["timestamp"])
	assert.NotContains(t, received, "secret_key")

	want := Sign(map[string]string{
		"symbol":     "KUB_ETH",
		"limit":      "1",
		"access_key": "access",
		"secret_key": "secret",
		"timestamp":  "1700000000123",
	})
	assert.Equal(t, want, received["signature"])
}

func TestClientRateNumericPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"result":{"bids":[{"limitPrice":1234.567890123456789,"amount":1}]}}}`))
	}))
	defer server.Close()

	rate, err := NewClient(server.URL, "a", "s").Rate(context.Background(), "ETH_THB")
	require.NoError(t, err)
	assert.Equal(t, "1234.567890123456789", rate.String())
}

func TestClientRateFailures(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantMalformed bool
	}{
		{"server error", http.StatusInternalServerError, `{"error":"down"}`, false},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad signature"}`, false},
		{"empty bids", http.StatusOK, `{"data":{"result":{"bids":[]}}}`, true},
		{"missing bids", http.StatusOK, `{"data":{"result":{}}}`, true},
		{"non-numeric price", http.StatusOK, `{"data":{"result":{"bids":[{"limitPrice":"abc"}]}}}`, true},
		{"zero price", http.StatusOK, `{"data":{"result":{"bids":[{"limitPrice":"0"}]}}}`, true},
		{"not JSON", http.StatusOK, `<html>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "a", "s").Rate(context.Background(), "KUB_ETH")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrExternalFetch)
			if tt.wantMalformed {
				assert.ErrorIs(t, err, domain.ErrMalformedResponse)
			}
		})
	}
}

func TestClientRateUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, "a", "s").Rate(context.Background(), "KUB_ETH")
	assert.ErrorIs(t, err, domain.ErrExternalFetch)
}
