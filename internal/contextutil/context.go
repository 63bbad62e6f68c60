package contextutil

import (
	"context"

	"meshtranslator/internal/observability/logging"
)

// EnrichContext prepares the context of a single check call on listener.
// requestID is taken from the proxy when available, otherwise a new one is
// generated. The returned logger carries request id and listener.
func EnrichContext(ctx context.Context, logger *logging.Logger, listener, requestID string) (context.Context, *logging.Logger) {
	if requestID == "" {
		requestID = logging.GetRequestIDFromContext(ctx)
	}
	if requestID == "" {
		requestID = logging.NewRequestID()
	}

	ctx = logging.ContextWithRequestID(ctx, requestID)

	logger = logger.With(
		logging.RequestIDKey, requestID,
		logging.ListenerKey, listener,
	)
	return logging.ContextWithLogger(ctx, logger), logger
}
