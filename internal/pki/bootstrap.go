package pki

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"time"

	"meshtranslator/internal/observability/logging"
	"meshtranslator/internal/observability/metrics"
	"meshtranslator/internal/tls"
)

const keyBits = 2048

// Bootstrap provisions the trust material of the process. It fetches the CA
// from the trust authority, loads or creates the local key and reuses the
// stored certificate while it is valid for that key and CA. Otherwise a new
// certificate is requested via CSR. Everything is persisted in store.
//
// Unreachable authorities are retried up to cfg.RetryTimeout; a rejected
// request fails immediately.
func Bootstrap(ctx context.Context, cfg Config, store *Store, logger *logging.Logger, collector *metrics.Collector) (*Material, error) {
	logger = logger.WithModule("pki")
	if cfg.AuthorityURL == nil {
		return nil, fmt.Errorf("no trust authority configured")
	}
	if cfg.CommonName == "" {
		return nil, fmt.Errorf("no common name configured")
	}

	logger.Debug("Fetching CA certificate", "address", logging.RedactStringURL(cfg.caAddress()))
	client := newAuthorityClient(cfg, logger, collector)

	ca, caPEM, err := client.fetchCA(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch CA certificate: %w", err)
	}
	if !ca.IsCA {
		return nil, fmt.Errorf("certificate %s from trust authority is not a CA", ca.Subject)
	}
	if err := store.Write(CAFile, caPEM, 0o644); err != nil {
		return nil, err
	}
	logger.Info("Loaded CA certificate", "subject", ca.Subject.String())

	caPool := x509.NewCertPool()
	caPool.AddCert(ca)

	key, err := loadOrCreateKey(store, logger)
	if err != nil {
		return nil, err
	}

	cert := loadCertificate(store, key, caPool, logger)
	if cert == nil {
		cert, err = requestCertificate(ctx, client, cfg, key, caPool, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Write(CertFile, encodeCertificate(cert), 0o644); err != nil {
			return nil, err
		}
	}

	logger.Info("Local certificate ready",
		"issuer", cert.Issuer.String(),
		"subject", cert.Subject.String(),
		"serial", cert.SerialNumber.String(),
		"not_after", cert.NotAfter.Format(time.RFC3339),
	)

	return NewMaterial(ca, cert, key)
}

func loadOrCreateKey(store *Store, logger *logging.Logger) (*rsa.PrivateKey, error) {
	data, ok, err := store.Read(KeyFile)
	if err != nil {
		return nil, err
	}
	if ok {
		key, err := decodeKey(data)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", KeyFile, err)
		}
		logger.Debug("Loaded private key from trust store")
		return key, nil
	}

	logger.Debug("Private key does not exist, creating one")
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	if err := store.Write(KeyFile, encodeKey(key), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

// loadCertificate returns the stored certificate, or nil when it is missing
// or no longer usable with key and the current CA
func loadCertificate(store *Store, key *rsa.PrivateKey, caPool *x509.CertPool, logger *logging.Logger) *x509.Certificate {
	data, ok, err := store.Read(CertFile)
	if err != nil || !ok {
		return nil
	}

	cert, err := decodeCertificate(data)
	if err != nil {
		logger.Warn("Stored certificate unreadable, requesting a new one", logging.Err(err))
		return nil
	}
	if !keyMatches(cert, key) {
		logger.Info("Stored certificate does not match private key, requesting a new one")
		return nil
	}
	if err := tls.VerifyCertificate(cert, caPool, time.Now(), logger); err != nil {
		logger.Info("Stored certificate is not valid for the current CA, requesting a new one", logging.Err(err))
		return nil
	}
	return cert
}

func requestCertificate(ctx context.Context, client *authorityClient, cfg Config, key *rsa.PrivateKey, caPool *x509.CertPool, logger *logging.Logger) (*x509.Certificate, error) {
	logger.Debug("Creating CSR", "common_name", cfg.CommonName)

	template := x509.CertificateRequest{
		Subject: pkix.Name{
			Organization: cfg.organization(),
			CommonName:   cfg.CommonName,
		},
		SignatureAlgorithm: x509.SHA256WithRSA,
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, &template, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSR: %w", err)
	}
	csrPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der})

	cert, _, err := client.submitCSR(ctx, csrPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain certificate: %w", err)
	}
	if !keyMatches(cert, key) {
		return nil, fmt.Errorf("issued certificate does not match the private key")
	}
	if err := tls.VerifyCertificate(cert, caPool, time.Now(), logger); err != nil {
		return nil, fmt.Errorf("issued certificate is not valid: %w", err)
	}
	return cert, nil
}
