package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordComposed(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.OperationsComposed.WithLabelValues("deposit"))
	beforeErr := testutil.ToFloat64(DefaultMetrics.ComposeErrors.WithLabelValues("deposit"))

	RecordComposed("deposit", nil)
	RecordComposed("deposit", errors.New("boom"))

	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.OperationsComposed.WithLabelValues("deposit")))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(DefaultMetrics.ComposeErrors.WithLabelValues("deposit")))
}

func TestUpdateProtocolStats(t *testing.T) {
	UpdateProtocolStats(1.25, 1000, 800)

	assert.Equal(t, 1.25, testutil.ToFloat64(DefaultMetrics.ExchangeRate))
	assert.Equal(t, 1000.0, testutil.ToFloat64(DefaultMetrics.TotalValueLocked))
	assert.Equal(t, 800.0, testutil.ToFloat64(DefaultMetrics.StSolSupply))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "2xx", statusLabel(200))
	assert.Equal(t, "3xx", statusLabel(304))
	assert.Equal(t, "4xx", statusLabel(429))
	assert.Equal(t, "5xx", statusLabel(502))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordSnapshot(nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "solido_stake_solido_snapshot_fetches_total"))
}
