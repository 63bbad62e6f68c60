package pki

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// Material is the trust material of the process: the mesh CA, the local
// certificate issued by it and the matching private key. It is created once
// before serving and never modified, so it is shared without locking.
type Material struct {
	CA          *x509.Certificate
	Certificate *x509.Certificate
	PrivateKey  *rsa.PrivateKey

	caPool *x509.CertPool
}

// NewMaterial bundles the given certificates and key after checking that the
// key belongs to the certificate.
func NewMaterial(ca, cert *x509.Certificate, key *rsa.PrivateKey) (*Material, error) {
	if ca == nil || cert == nil || key == nil {
		return nil, fmt.Errorf("incomplete trust material")
	}
	if !keyMatches(cert, key) {
		return nil, fmt.Errorf("private key does not match certificate %s", cert.Subject)
	}

	pool := x509.NewCertPool()
	pool.AddCert(ca)

	return &Material{
		CA:          ca,
		Certificate: cert,
		PrivateKey:  key,
		caPool:      pool,
	}, nil
}

// CAPool returns a pool containing only the mesh CA
func (m *Material) CAPool() *x509.CertPool {
	return m.caPool
}

func keyMatches(cert *x509.Certificate, key *rsa.PrivateKey) bool {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	return ok && pub.Equal(&key.PublicKey)
}
