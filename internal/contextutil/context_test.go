package contextutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"meshtranslator/internal/observability/logging"
)

func TestEnrichContextKeepsProxyRequestID(t *testing.T) {
	ctx, logger := EnrichContext(context.Background(), logging.Discard(), "ingress", "envoy-1")

	assert.Equal(t, "envoy-1", logging.GetRequestIDFromContext(ctx))
	assert.Same(t, logger, logging.LoggerFromContext(ctx))
}

func TestEnrichContextFallsBack(t *testing.T) {
	parent := logging.ContextWithRequestID(context.Background(), "upstream")
	ctx, _ := EnrichContext(parent, logging.Discard(), "egress", "")
	assert.Equal(t, "upstream", logging.GetRequestIDFromContext(ctx))

	ctx, _ = EnrichContext(context.Background(), logging.Discard(), "egress", "")
	assert.NotEmpty(t, logging.GetRequestIDFromContext(ctx))
}
