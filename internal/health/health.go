// Package health reports the readiness of the service's dependencies.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/matrixise/loyalty-ledger/internal/scheduler"
)

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RPCStatus reports on a failover RPC client.
type RPCStatus interface {
	Probe(ctx context.Context) (string, error)
	GetEndpointsHealth() map[string]bool
}

// RefreshStatus reports on the periodic exchange-wallet refresh.
type RefreshStatus interface {
	LastSuccess() (time.Time, error)
	ExpectedInterval() time.Duration
}

// Checker performs health checks on application dependencies
type Checker struct {
	db      Pinger
	chains  map[string]RPCStatus
	refresh RefreshStatus
}

// NewChecker creates a health checker. chains maps a chain name ("ledger",
// "mainnet") to its client. refresh may be nil when no refresh is scheduled.
func NewChecker(db Pinger, chains map[string]RPCStatus, refresh RefreshStatus) *Checker {
	return &Checker{db: db, chains: chains, refresh: refresh}
}

// CheckStatus represents the health status of a component
type CheckStatus string

const (
	StatusOK       CheckStatus = "ok"
	StatusDegraded CheckStatus = "degraded"
	StatusError    CheckStatus = "error"
)

// HealthResponse is the JSON response structure
type HealthResponse struct {
	Status    CheckStatus            `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckDetail `json:"checks"`
	Uptime    string                 `json:"uptime,omitempty"`
}

// CheckDetail contains details about a specific health check
type CheckDetail struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

var startTime = time.Now()

// worse returns the more severe of two statuses.
func worse(a, b CheckStatus) CheckStatus {
	rank := map[CheckStatus]int{StatusOK: 0, StatusDegraded: 1, StatusError: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Check performs all health checks and returns the aggregated status
func (c *Checker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]CheckDetail)
	overall := StatusOK

	dbCheck := c.checkDatabase(ctx)
	checks["database"] = dbCheck
	overall = worse(overall, dbCheck.Status)

	names := make([]string, 0, len(c.chains))
	for name := range c.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rpcCheck := c.checkRPC(ctx, name, c.chains[name])
		checks["rpc_"+name] = rpcCheck
		overall = worse(overall, rpcCheck.Status)
	}

	// A stale wallet registry degrades the service but does not take it down.
	if c.refresh != nil {
		refreshCheck := c.checkRefresh()
		checks["wallet_registry"] = refreshCheck
		if refreshCheck.Status != StatusOK {
			overall = worse(overall, StatusDegraded)
		}
	}

	return HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Checks:    checks,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}
}

// checkDatabase verifies PostgreSQL connectivity
func (c *Checker) checkDatabase(ctx context.Context) CheckDetail {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		slog.Error("Health check: database ping failed", "error", err)
		return CheckDetail{
			Status:  StatusError,
			Message: "database unreachable: " + err.Error(),
		}
	}

	return CheckDetail{
		Status:  StatusOK,
		Message: "database connection healthy",
	}
}

// checkRPC verifies that at least one endpoint of a chain answers
func (c *Checker) checkRPC(ctx context.Context, chain string, rpc RPCStatus) CheckDetail {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if url, err := rpc.Probe(ctx); err != nil {
		slog.Error("Health check: RPC endpoint failed", "chain", chain, "endpoint", url, "error", err)
		return CheckDetail{
			Status:  StatusError,
			Message: "no responding RPC endpoint: " + err.Error(),
		}
	}

	healthy, total := 0, 0
	for _, ok := range rpc.GetEndpointsHealth() {
		total++
		if ok {
			healthy++
		}
	}

	if healthy == total {
		return CheckDetail{
			Status:  StatusOK,
			Message: "all RPC endpoints healthy",
		}
	}

	return CheckDetail{
		Status:  StatusDegraded,
		Message: fmt.Sprintf("%d/%d RPC endpoints healthy", healthy, total),
	}
}

// checkRefresh verifies the wallet registry is refreshed on schedule
func (c *Checker) checkRefresh() CheckDetail {
	last, err := c.refresh.LastSuccess()
	if errors.Is(err, scheduler.ErrNotRun) {
		return CheckDetail{
			Status:  StatusOK,
			Message: "wallet registry not yet refreshed (startup)",
		}
	}
	if err != nil {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: "last refresh failed: " + err.Error(),
		}
	}

	// allow a 2x interval grace period
	interval := c.refresh.ExpectedInterval()
	since := time.Since(last)
	if since > 2*interval {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("no refresh in %s (expected every %s)", since.Round(time.Second), interval),
		}
	}

	return CheckDetail{
		Status:  StatusOK,
		Message: fmt.Sprintf("last refreshed %s ago", since.Round(time.Second)),
	}
}

// Handler returns an http.HandlerFunc for the health endpoint
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.Check(r.Context())

		statusCode := http.StatusOK
		if status.Status == StatusError {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(status); err != nil {
			slog.Error("Failed to encode health response", "error", err)
		}
	}
}
