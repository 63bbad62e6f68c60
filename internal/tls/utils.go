// internal/tls/utils.go
package tls

import (
	"crypto/x509"
	"fmt"
	"time"

	"meshtranslator/internal/observability/logging"
)

// VerifyCertificate verifies a certificate against a CA pool at the given time.
// Mesh certificates are used for signing, so any extended key usage is accepted.
func VerifyCertificate(cert *x509.Certificate, caPool *x509.CertPool, now time.Time, logger *logging.Logger) error {
	opts := x509.VerifyOptions{
		Roots:         caPool,
		CurrentTime:   now,
		Intermediates: x509.NewCertPool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}

	_, err := cert.Verify(opts)
	if err != nil {
		if logger != nil {
			logger.Debug("Certificate verification failed", "subject", cert.Subject.String(), logging.Err(err))
		}
		return fmt.Errorf("certificate verification failed: %w", err)
	}

	return nil
}

// VerifyOptions returns chain verification options anchored at caPool
func VerifyOptions(caPool *x509.CertPool, now time.Time) x509.VerifyOptions {
	return x509.VerifyOptions{
		Roots:       caPool,
		CurrentTime: now,
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
}

// ExtractSubject extracts the subject from a certificate
// Returns the Common Name, or the first DNS name if CN is empty
func ExtractSubject(cert *x509.Certificate) (string, error) {
	if cert.Subject.CommonName != "" {
		return cert.Subject.CommonName, nil
	}
	if len(cert.DNSNames) > 0 {
		return cert.DNSNames[0], nil
	}
	return "", fmt.Errorf("certificate has no Common Name or DNS names")
}
