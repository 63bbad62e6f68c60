package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCheck(t *testing.T) {
	c := NewCollector()
	before := testutil.ToFloat64(ChecksTotal.WithLabelValues("ingress", "ok"))

	c.RecordCheck("ingress", "ok", 10*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(ChecksTotal.WithLabelValues("ingress", "ok")))
}

func TestRecordVerificationAndMint(t *testing.T) {
	c := NewCollector()
	verBefore := testutil.ToFloat64(TokenVerificationsTotal.WithLabelValues("expired"))
	mintBefore := testutil.ToFloat64(TokensMintedTotal.WithLabelValues("false"))

	c.RecordVerification("expired")
	c.RecordMint(false)

	assert.Equal(t, verBefore+1, testutil.ToFloat64(TokenVerificationsTotal.WithLabelValues("expired")))
	assert.Equal(t, mintBefore+1, testutil.ToFloat64(TokensMintedTotal.WithLabelValues("false")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	NewCollector().RecordBootstrapAttempt("ca", true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meshtranslator_bootstrap_attempts_total")
}
