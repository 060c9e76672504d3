package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveFetch(t *testing.T) {
	okBefore := testutil.ToFloat64(ExternalFetches.WithLabelValues("test-source", "ok"))
	errBefore := testutil.ToFloat64(ExternalFetches.WithLabelValues("test-source", "error"))

	ObserveFetch("test-source", time.Now(), nil)
	ObserveFetch("test-source", time.Now(), errors.New("down"))
	ObserveFetch("test-source", time.Now(), errors.New("down"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ExternalFetches.WithLabelValues("test-source", "ok")))
	assert.Equal(t, errBefore+2, testutil.ToFloat64(ExternalFetches.WithLabelValues("test-source", "error")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ValidationDecisions.WithLabelValues("accepted").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loyalty_ledger_exchange_validation_decisions_total")
}
