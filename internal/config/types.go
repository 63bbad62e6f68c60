// internal/config/types.go
package config

import (
	"net/url"
	"time"
)

// Repository modes
const (
	RepositoryCSV        = "csv"
	RepositoryKubernetes = "kubernetes"
	RepositoryRedis      = "redis"
)

// Config represents the complete application configuration
type Config struct {
	// Server holds listener configuration
	Server struct {
		// IngressAddress is the address of the ingress check listener
		IngressAddress string
		// EgressAddress is the address of the egress check listener
		EgressAddress string
		// ShutdownTimeout is the maximum time to wait for a graceful shutdown
		ShutdownTimeout time.Duration
	}

	// Admin holds admin server configuration
	Admin struct {
		// Address is the address to listen on for metrics and probes
		Address string
	}

	// TLS holds TLS configuration of the check listeners
	TLS struct {
		// Enabled indicates whether TLS is enabled
		Enabled bool
		// CertPath is the path to the TLS certificate
		CertPath string
		// KeyPath is the path to the TLS key
		KeyPath string
		// CAPath is the path to the CA certificate for client verification
		CAPath string
	}

	// PKI holds trust authority configuration
	PKI struct {
		// Address is the base URL of the trust authority
		Address *url.URL
		// CAPath is the path of the CA endpoint
		CAPath string
		// CSRPath is the path of the CSR endpoint
		CSRPath string
		// TLSCAPath is a CA bundle for the trust authority's TLS certificate
		TLSCAPath string
		// Token is an optional bearer token for the trust authority
		Token string
		// RetryTimeout bounds bootstrap retries
		RetryTimeout time.Duration
		// CommonName is requested in the CSR
		CommonName string
		// StorePath is where trust material is persisted
		StorePath string
	}

	// Token holds identity token configuration
	Token struct {
		// Lifetime is the validity of minted tokens
		Lifetime time.Duration
		// ClockSkew is the tolerance applied to expiry checks
		ClockSkew time.Duration
		// Audience is the audience of minted and accepted tokens
		Audience string
	}

	// Repository holds credential repository configuration
	Repository struct {
		// Mode selects the backend (csv, kubernetes, redis)
		Mode string

		CSV struct {
			// Path is the csv file path
			Path string
		}

		Kubernetes struct {
			// Secret is the secret name
			Secret string
			// Namespace overrides namespace detection
			Namespace string
			// Kubeconfig is used outside of a cluster
			Kubeconfig string
		}

		Redis struct {
			Address   string
			Password  string
			DB        int
			KeyPrefix string
		}
	}

	// Observability holds observability configuration
	Observability struct {
		// LogLevel is the minimum log level to emit
		LogLevel string
		// LogFormat is the log format (text, json)
		LogFormat string
	}
}
