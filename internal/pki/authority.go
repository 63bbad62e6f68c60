package pki

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"

	"meshtranslator/internal/observability/logging"
	"meshtranslator/internal/observability/metrics"
)

const (
	stepCA  = "ca"
	stepCSR = "csr"

	// maxErrorBody limits how much of an error response ends up in errors
	maxErrorBody = 256
)

// NewAuthorityHTTPClient returns the client used to reach the trust authority.
// A non-empty token is sent as bearer token on every request.
func NewAuthorityHTTPClient(ctx context.Context, transport http.RoundTripper, token string) *http.Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	base := &http.Client{Transport: transport, Timeout: 30 * time.Second}
	if token == "" {
		return base
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	client.Timeout = base.Timeout
	return client
}

// authorityClient performs the two calls of the trust authority protocol
type authorityClient struct {
	cfg     Config
	client  *http.Client
	logger  *logging.Logger
	metrics *metrics.Collector
}

func newAuthorityClient(cfg Config, logger *logging.Logger, collector *metrics.Collector) *authorityClient {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &authorityClient{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		metrics: collector,
	}
}

// fetchCA downloads the PEM encoded CA certificate
func (a *authorityClient) fetchCA(ctx context.Context) (*x509.Certificate, []byte, error) {
	body, err := a.call(ctx, stepCA, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.caAddress(), nil)
	})
	if err != nil {
		return nil, nil, err
	}

	ca, err := decodeCertificate(body)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid CA certificate from trust authority: %w", err)
	}
	return ca, body, nil
}

// submitCSR posts a PEM encoded CSR and returns the issued certificate
func (a *authorityClient) submitCSR(ctx context.Context, csrPEM []byte) (*x509.Certificate, []byte, error) {
	body, err := a.call(ctx, stepCSR, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.csrAddress(), bytes.NewReader(csrPEM))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/pkcs10")
		return req, nil
	})
	if err != nil {
		return nil, nil, err
	}

	cert, err := decodeCertificate(body)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid certificate from trust authority: %w", err)
	}
	return cert, body, nil
}

// call executes a request with exponential backoff. Transport errors and
// server errors are retried until RetryTimeout; client errors are final.
func (a *authorityClient) call(ctx context.Context, step string, newRequest func() (*http.Request, error)) ([]byte, error) {
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if a.cfg.RetryTimeout > 0 {
		b := backoff.NewExponentialBackOff()
		if a.cfg.RetryInterval > 0 {
			b.InitialInterval = a.cfg.RetryInterval
		}
		b.MaxElapsedTime = a.cfg.RetryTimeout
		policy = b
	}

	operation := func() ([]byte, error) {
		req, err := newRequest()
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to build %s request: %w", step, err))
		}

		body, err := a.do(req)
		a.metrics.RecordBootstrapAttempt(step, err == nil)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return body, err
	}

	notify := func(err error, wait time.Duration) {
		a.logger.Warn("Trust authority not reachable, retrying",
			"step", step,
			"retry_in", wait.String(),
			logging.Err(err),
		)
	}

	return backoff.RetryNotifyWithData[[]byte](operation, backoff.WithContext(policy, ctx), notify)
}

func (a *authorityClient) do(req *http.Request) ([]byte, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to trust authority failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("trust authority returned %s", resp.Status)
	default:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s: %s", ErrAuthorityRejected, resp.Status, truncate(body)))
	}
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}

// IsPermanent reports whether a bootstrap error will not go away by retrying
func IsPermanent(err error) bool {
	return errors.Is(err, ErrAuthorityRejected)
}
