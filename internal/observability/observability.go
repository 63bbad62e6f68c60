package observability

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"meshtranslator/internal/config"
	"meshtranslator/internal/contextutil"
	"meshtranslator/internal/httputils"
	"meshtranslator/internal/observability/logging"
	"meshtranslator/internal/observability/metrics"
)

// Provider provides observability capabilities
type Provider struct {
	Logger  *logging.Logger
	Metrics *metrics.Collector
}

// NewProvider creates a new observability provider
func NewProvider(cfg *config.Config) (*Provider, error) {
	logger, err := logging.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}

	return &Provider{
		Logger:  logger,
		Metrics: metrics.NewCollector(),
	}, nil
}

// UnaryInterceptor prepares the context of every call on listener and turns
// panics into an INTERNAL status so one faulty call cannot take the process
// down
func (p *Provider) UnaryInterceptor(listener string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		startTime := time.Now()

		var requestID string
		if check, ok := req.(*authv3.CheckRequest); ok {
			requestID = check.GetAttributes().GetRequest().GetHttp().GetId()
		}
		ctx, logger := contextutil.EnrichContext(ctx, p.Logger, listener, requestID)

		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic while handling call",
					"method", info.FullMethod,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
				p.Metrics.RecordCheck(listener, "panic", time.Since(startTime))
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()

		resp, err = handler(ctx, req)

		if logging.IsDebugEnabled() {
			logger.Debug("Call completed",
				"method", info.FullMethod,
				"code", status.Code(err).String(),
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		}
		return resp, err
	}
}

// RouteFunc maps a request to a bounded metrics label
type RouteFunc func(*http.Request) string

// Middleware observes requests to the admin server. route labels the request
// metrics.
func (p *Provider) Middleware(next http.Handler, route RouteFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		wrapper := httputils.NewResponseWriter(w)

		next.ServeHTTP(wrapper, r)

		p.Metrics.RecordAdminRequest(route(r), wrapper.StatusCode)
		p.Logger.Debug("Admin request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.StatusCode,
			"duration_ms", time.Since(startTime).Milliseconds(),
			"bytes_written", wrapper.BytesWritten,
		)
	})
}

// MetricsHandler returns an HTTP handler for exposing metrics
func (p *Provider) MetricsHandler() http.Handler {
	return metrics.Handler()
}
