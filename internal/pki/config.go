package pki

import (
	"net/http"
	"net/url"
	"time"
)

// Default organization written into certificate signing requests
var DefaultOrganization = []string{"WirePact PKI", "Mesh Identity Translator"}

// Config describes how the local signing identity is provisioned from the
// trust authority.
type Config struct {
	// AuthorityURL is the base URL of the trust authority
	AuthorityURL *url.URL

	// CAPath is the path of the CA certificate endpoint
	CAPath string

	// CSRPath is the path of the certificate signing endpoint
	CSRPath string

	// CommonName is requested in the CSR
	CommonName string

	// Organization is requested in the CSR; DefaultOrganization when empty
	Organization []string

	// RetryTimeout bounds the time spent retrying an unreachable authority
	RetryTimeout time.Duration

	// RetryInterval is the first backoff interval; 500ms when zero
	RetryInterval time.Duration

	// HTTPClient talks to the authority; http.DefaultClient when nil
	HTTPClient *http.Client
}

func (c Config) caAddress() string {
	return c.AuthorityURL.JoinPath(c.CAPath).String()
}

func (c Config) csrAddress() string {
	return c.AuthorityURL.JoinPath(c.CSRPath).String()
}

func (c Config) organization() []string {
	if len(c.Organization) == 0 {
		return DefaultOrganization
	}
	return c.Organization
}

// TokenConfig configures minting and verification of identity tokens
type TokenConfig struct {
	// Lifetime is the validity of minted tokens
	Lifetime time.Duration

	// ClockSkew is tolerated when checking expiry
	ClockSkew time.Duration

	// Audience is written to and required in every token
	Audience string

	// Now returns the current time; time.Now when nil
	Now func() time.Time
}
