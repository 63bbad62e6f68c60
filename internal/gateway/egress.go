package gateway

import (
	"context"
	"fmt"
	"time"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"

	"meshtranslator/internal/observability/logging"
	"meshtranslator/internal/observability/metrics"
	"meshtranslator/internal/translator"
)

// EgressServer handles checks for outbound traffic. Application credentials
// are resolved by the translator and replaced with a freshly minted mesh
// identity.
type EgressServer struct {
	authv3.UnimplementedAuthorizationServer

	translator translator.Translator
	minter     TokenMinter
	logger     *logging.Logger
	metrics    *metrics.Collector
}

// NewEgressServer creates the outbound check server
func NewEgressServer(t translator.Translator, minter TokenMinter, logger *logging.Logger, collector *metrics.Collector) *EgressServer {
	return &EgressServer{
		translator: t,
		minter:     minter,
		logger:     logger.WithModule("gateway.egress"),
		metrics:    collector,
	}
}

// Check implements authv3.AuthorizationServer
func (s *EgressServer) Check(ctx context.Context, req *authv3.CheckRequest) (*authv3.CheckResponse, error) {
	start := time.Now()
	resp, outcome, err := s.check(ctx, req)
	s.metrics.RecordCheck(ListenerEgress, outcome, time.Since(start))
	return resp, err
}

func (s *EgressServer) check(ctx context.Context, req *authv3.CheckRequest) (*authv3.CheckResponse, string, error) {
	logger := logging.FromContextOr(ctx, s.logger)

	if err := validate(req); err != nil {
		logger.Warn("Rejecting malformed check request", logging.Err(err))
		return InvalidArgument(err.Error()), OutcomeInvalid, nil
	}
	logger = logger.With(translator.RequestLogAttrs(req)...)
	logger.Debug("Checking egress request")

	decision, err := s.translator.Egress(logging.ContextWithLogger(ctx, logger), req)
	if cerr := abandoned(ctx); cerr != nil {
		logger.Debug("Check abandoned by caller")
		return nil, OutcomeCancelled, cerr
	}
	if err != nil {
		logger.Error("Egress translation failed", logging.Err(err))
		return Internal(MessageTranslationFailed), OutcomeError, nil
	}

	switch d := decision.(type) {
	case translator.EgressSkip:
		logger.Debug("Translator skipped request")
		return NoOp(), OutcomePassThrough, nil

	case translator.EgressForbidden:
		logger.Info("Translator forbade request", "reason", d.Reason)
		return PermissionDenied(d.Reason), OutcomeDenied, nil

	case translator.EgressAllow:
		if d.SubjectID == "" {
			logger.Info("Translator resolved no subject")
			return PermissionDenied(MessageNoUserID), OutcomeDenied, nil
		}
		return s.allow(ctx, logger.With("subject", d.SubjectID), d)

	default:
		logger.Error("Translator returned unknown decision", "decision", fmt.Sprintf("%T", decision))
		return Internal(MessageTranslationFailed), OutcomeError, nil
	}
}

func (s *EgressServer) allow(ctx context.Context, logger *logging.Logger, d translator.EgressAllow) (*authv3.CheckResponse, string, error) {
	token, err := s.minter.Mint(ctx, d.SubjectID)
	s.metrics.RecordMint(err == nil)
	if cerr := abandoned(ctx); cerr != nil {
		// the token, if any, is dropped here
		logger.Debug("Check abandoned by caller")
		return nil, OutcomeCancelled, cerr
	}
	if err != nil {
		logger.Error("Could not mint identity token", logging.Err(err))
		return Internal(fmt.Sprintf("%s: %v", MessageMintFailed, err)), OutcomeError, nil
	}

	headers := make([]translator.Header, 0, len(d.HeadersToAdd)+1)
	headers = append(headers, translator.Header{Name: translator.IdentityHeader, Value: token})
	headers = append(headers, d.HeadersToAdd...)

	logger.Debug("Attached mesh identity",
		"headers_added", len(headers),
		"headers_removed", d.HeadersToRemove,
	)
	return OK(headers, d.HeadersToRemove), OutcomeAllow, nil
}
