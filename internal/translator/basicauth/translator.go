// Package basicauth translates between mesh identities and HTTP basic auth.
package basicauth

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"

	"meshtranslator/internal/observability/logging"
	"meshtranslator/internal/translator"
)

// Reasons returned to the caller in forbidden decisions
const (
	ReasonNoCredential = "Could not find username/password for subject."
	ReasonCorrupted    = "The Basic Auth data was corrupted."
)

const scheme = "Basic "

// Translator adds basic auth credentials to inbound requests and resolves
// outbound basic auth credentials to subjects
type Translator struct {
	repository translator.CredentialRepository
	logger     *logging.Logger
}

var _ translator.Translator = (*Translator)(nil)

// New creates a basic auth translator backed by repository
func New(repository translator.CredentialRepository, logger *logging.Logger) *Translator {
	return &Translator{
		repository: repository,
		logger:     logger.WithModule("translator.basicauth"),
	}
}

// Ingress replaces the mesh identity with the subject's basic auth header
func (t *Translator) Ingress(ctx context.Context, subjectID string, req *authv3.CheckRequest) (translator.IngressDecision, error) {
	logger := logging.FromContextOr(ctx, t.logger).With("subject", subjectID)

	cred, ok, err := t.repository.LookupCredential(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up credential: %w", err)
	}
	if !ok {
		logger.Info("No credential found for subject")
		return translator.ForbidIngress(ReasonNoCredential), nil
	}

	logger.Debug("Credential found for subject", "user", cred)
	return translator.AllowIngress(
		[]translator.Header{{Name: translator.AuthorizationHeader, Value: Encode(cred)}},
		[]string{translator.IdentityHeader},
	), nil
}

// Egress resolves the subject of an outbound basic auth header and strips the
// header. Requests without basic auth are skipped.
func (t *Translator) Egress(ctx context.Context, req *authv3.CheckRequest) (translator.EgressDecision, error) {
	logger := logging.FromContextOr(ctx, t.logger)

	header, ok := translator.RequestHeader(req, translator.AuthorizationHeader)
	if !ok {
		logger.Debug("Request has no authorization header, skipping")
		return translator.SkipEgress(), nil
	}
	if !hasScheme(header) {
		logger.Debug("Request is not basic auth authorized, skipping")
		return translator.SkipEgress(), nil
	}

	cred, err := Decode(header)
	if err != nil {
		logger.Warn("Basic auth data corrupted", "header", logging.RedactHeader(header), logging.Err(err))
		return translator.ForbidEgress(ReasonCorrupted), nil
	}

	subjectID, ok, err := t.repository.LookupSubject(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to look up subject: %w", err)
	}
	if !ok {
		logger.Info("No subject found for credential", "user", cred)
		return translator.AllowEgress("", nil, []string{translator.AuthorizationHeader}), nil
	}

	logger.Debug("Subject found for credential", "subject", subjectID)
	return translator.AllowEgress(subjectID, nil, []string{translator.AuthorizationHeader}), nil
}

// Encode renders cred as an authorization header value
func Encode(cred translator.Credential) string {
	return scheme + base64.StdEncoding.EncodeToString([]byte(cred.Username+":"+cred.Password))
}

// Decode parses a basic auth authorization header value
func Decode(header string) (translator.Credential, error) {
	if !hasScheme(header) {
		return translator.Credential{}, fmt.Errorf("not a basic auth header")
	}
	payload, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(scheme):]))
	if err != nil {
		return translator.Credential{}, fmt.Errorf("invalid base64 payload: %w", err)
	}
	username, password, ok := strings.Cut(string(payload), ":")
	if !ok {
		return translator.Credential{}, fmt.Errorf("payload has no separator")
	}
	return translator.Credential{Username: username, Password: password}, nil
}

func hasScheme(header string) bool {
	return len(header) >= len(scheme) && strings.EqualFold(header[:len(scheme)], scheme)
}
