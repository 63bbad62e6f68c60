package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common label names for consistent metrics
const (
	LabelListener = "listener"
	LabelOutcome  = "outcome"
	LabelResult   = "result"
	LabelStep     = "step"
	LabelStatus   = "status"
	LabelPath     = "path"
	LabelSuccess  = "success"
)

// ResultValid is the verification result of an accepted token
const ResultValid = "valid"

var (
	// ChecksTotal counts all check calls by listener and rendered outcome
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshtranslator_checks_total",
			Help: "Total number of external authorization checks",
		},
		[]string{LabelListener, LabelOutcome},
	)

	// CheckDuration tracks the duration of check calls
	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshtranslator_check_duration_seconds",
			Help:    "Duration of external authorization checks in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelListener},
	)

	// TokenVerificationsTotal counts identity token verifications by result
	TokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshtranslator_token_verifications_total",
			Help: "Total number of identity token verifications",
		},
		[]string{LabelResult},
	)

	// TokensMintedTotal counts identity token minting attempts
	TokensMintedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshtranslator_tokens_minted_total",
			Help: "Total number of identity tokens minted",
		},
		[]string{LabelSuccess},
	)

	// BootstrapAttemptsTotal counts calls to the trust authority during bootstrap
	BootstrapAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshtranslator_bootstrap_attempts_total",
			Help: "Total number of trust authority requests during bootstrap",
		},
		[]string{LabelStep, LabelSuccess},
	)

	// AdminRequestsTotal counts requests to the admin server
	AdminRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshtranslator_admin_requests_total",
			Help: "Total number of admin HTTP requests",
		},
		[]string{LabelPath, LabelStatus},
	)
)

// Collector provides methods for recording metrics
type Collector struct{}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// RecordCheck records a finished check call
func (c *Collector) RecordCheck(listener, outcome string, duration time.Duration) {
	ChecksTotal.WithLabelValues(listener, outcome).Inc()
	CheckDuration.WithLabelValues(listener).Observe(duration.Seconds())
}

// RecordVerification records the result of an identity token verification
func (c *Collector) RecordVerification(result string) {
	TokenVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordMint records an identity token minting attempt
func (c *Collector) RecordMint(success bool) {
	TokensMintedTotal.WithLabelValues(boolToString(success)).Inc()
}

// RecordBootstrapAttempt records a request to the trust authority
func (c *Collector) RecordBootstrapAttempt(step string, success bool) {
	BootstrapAttemptsTotal.WithLabelValues(step, boolToString(success)).Inc()
}

// RecordAdminRequest records a request to the admin server
func (c *Collector) RecordAdminRequest(path string, status int) {
	AdminRequestsTotal.WithLabelValues(path, http.StatusText(status)).Inc()
}

// Handler returns an HTTP handler for exposing metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// boolToString converts a boolean to a string representation
func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
