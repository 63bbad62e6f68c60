// internal/tls/config.go
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"meshtranslator/internal/observability/logging"
)

// Config holds the TLS configuration
type Config struct {
	// Logger is the logger to use
	Logger *logging.Logger

	// RootCAPath is the path to a CA bundle. For servers it verifies client
	// certificates, for clients it verifies the remote server.
	RootCAPath string

	// CertPath is the path to the certificate
	CertPath string

	// KeyPath is the path to the key
	KeyPath string
}

// GetServerTLSConfig creates a TLS configuration for the check listeners
func (c *Config) GetServerTLSConfig() (*tls.Config, error) {
	c.Logger.Debug("Initializing server TLS configuration")

	cert, err := tls.LoadX509KeyPair(c.CertPath, c.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if c.RootCAPath != "" {
		pool, err := loadPool(c.RootCAPath)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		c.Logger.Debug("Client certificate verification enabled", "ca", c.RootCAPath)
	}

	c.Logger.Info("Server TLS configuration successful")
	return tlsConfig, nil
}

// GetClientTLSConfig creates a TLS configuration for outgoing requests, e.g. to
// the trust authority. Without a RootCAPath the system roots are used.
func (c *Config) GetClientTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if c.RootCAPath != "" {
		pool, err := loadPool(c.RootCAPath)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
		c.Logger.Debug("Custom root CA loaded for client TLS", "ca", c.RootCAPath)
	}

	return tlsConfig, nil
}

func loadPool(path string) (*x509.CertPool, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, fmt.Errorf("failed to parse CA file: %s", path)
	}
	return pool, nil
}
