package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// WalletSource lists exchange-intake wallet addresses, e.g. from the ledger database.
type WalletSource interface {
	ExchangeWallets(ctx context.Context) ([]string, error)
}

// Wallets is the set of exchange-intake addresses. It is safe for concurrent use.
type Wallets struct {
	static []common.Address

	mu          sync.RWMutex
	set         map[common.Address]struct{}
	lastRefresh time.Time
}

// NewWallets creates a registry seeded with addresses that are always present.
func NewWallets(static []common.Address) *Wallets {
	w := &Wallets{static: static}
	w.Replace(nil)
	return w
}

// Contains reports whether addr is an exchange-intake wallet.
func (w *Wallets) Contains(addr common.Address) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.set[addr]
	return ok
}

// Replace swaps the dynamic part of the set. Static addresses are kept.
func (w *Wallets) Replace(addrs []common.Address) {
	set := make(map[common.Address]struct{}, len(w.static)+len(addrs))
	for _, a := range w.static {
		set[a] = struct{}{}
	}
	for _, a := range addrs {
		set[a] = struct{}{}
	}

	w.mu.Lock()
	w.set = set
	w.lastRefresh = time.Now()
	w.mu.Unlock()
}

// Len returns the number of addresses in the set.
func (w *Wallets) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.set)
}

// LastRefresh returns when the set was last replaced.
func (w *Wallets) LastRefresh() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastRefresh
}

// Refresh reloads the dynamic addresses from src. On error the current set is kept.
func (w *Wallets) Refresh(ctx context.Context, src WalletSource) error {
	raw, err := src.ExchangeWallets(ctx)
	if err != nil {
		return fmt.Errorf("load exchange wallets: %w", err)
	}

	addrs := make([]common.Address, 0, len(raw))
	for _, a := range raw {
		if !common.IsHexAddress(a) {
			slog.Warn("Ignoring invalid exchange wallet address", "address", a)
			continue
		}
		addrs = append(addrs, common.HexToAddress(a))
	}

	w.Replace(addrs)
	slog.Debug("Exchange wallet registry refreshed", "wallets", w.Len())
	return nil
}
