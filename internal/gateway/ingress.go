package gateway

import (
	"context"
	"fmt"
	"time"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"

	"meshtranslator/internal/observability/logging"
	"meshtranslator/internal/observability/metrics"
	"meshtranslator/internal/pki"
	"meshtranslator/internal/translator"
)

// IngressServer handles checks for inbound traffic. Requests carrying a
// valid mesh identity are handed to the translator; all others pass through
// unchanged.
type IngressServer struct {
	authv3.UnimplementedAuthorizationServer

	translator translator.Translator
	verifier   TokenVerifier
	logger     *logging.Logger
	metrics    *metrics.Collector
}

// NewIngressServer creates the inbound check server
func NewIngressServer(t translator.Translator, verifier TokenVerifier, logger *logging.Logger, collector *metrics.Collector) *IngressServer {
	return &IngressServer{
		translator: t,
		verifier:   verifier,
		logger:     logger.WithModule("gateway.ingress"),
		metrics:    collector,
	}
}

// Check implements authv3.AuthorizationServer
func (s *IngressServer) Check(ctx context.Context, req *authv3.CheckRequest) (*authv3.CheckResponse, error) {
	start := time.Now()
	resp, outcome, err := s.check(ctx, req)
	s.metrics.RecordCheck(ListenerIngress, outcome, time.Since(start))
	return resp, err
}

func (s *IngressServer) check(ctx context.Context, req *authv3.CheckRequest) (*authv3.CheckResponse, string, error) {
	logger := logging.FromContextOr(ctx, s.logger)

	if err := validate(req); err != nil {
		logger.Warn("Rejecting malformed check request", logging.Err(err))
		return InvalidArgument(err.Error()), OutcomeInvalid, nil
	}
	logger = logger.With(translator.RequestLogAttrs(req)...)
	logger.Debug("Checking ingress request")

	token, ok := translator.RequestHeader(req, translator.IdentityHeader)
	if !ok || token == "" {
		logger.Debug("Request has no mesh identity, passing through")
		return NoOp(), OutcomePassThrough, nil
	}

	subjectID, err := s.verifier.Verify(ctx, token)
	if err != nil {
		reason := pki.Reason(err)
		s.metrics.RecordVerification(reason)
		logger.Info("Mesh identity rejected, passing through", "reason", reason, logging.Err(err))
		return NoOp(), OutcomePassThrough, nil
	}
	s.metrics.RecordVerification(metrics.ResultValid)
	logger = logger.With("subject", subjectID)

	decision, err := s.translator.Ingress(logging.ContextWithLogger(ctx, logger), subjectID, req)
	if cerr := abandoned(ctx); cerr != nil {
		logger.Debug("Check abandoned by caller")
		return nil, OutcomeCancelled, cerr
	}
	if err != nil {
		logger.Error("Ingress translation failed", logging.Err(err))
		return Internal(MessageTranslationFailed), OutcomeError, nil
	}

	switch d := decision.(type) {
	case translator.IngressSkip:
		logger.Debug("Translator skipped request")
		return NoOp(), OutcomePassThrough, nil

	case translator.IngressForbidden:
		logger.Info("Translator forbade request", "reason", d.Reason)
		return PermissionDenied(d.Reason), OutcomeDenied, nil

	case translator.IngressAllow:
		logger.Debug("Translator allowed request",
			"headers_added", len(d.HeadersToAdd),
			"headers_removed", d.HeadersToRemove,
		)
		return OK(d.HeadersToAdd, d.HeadersToRemove), OutcomeAllow, nil

	default:
		logger.Error("Translator returned unknown decision", "decision", fmt.Sprintf("%T", decision))
		return Internal(MessageTranslationFailed), OutcomeError, nil
	}
}
