// Package pkitest provides an in-process trust authority for tests.
package pkitest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meshtranslator/internal/pki"
)

// Authority is a CA served over HTTP with the /ca and /csr endpoints
type Authority struct {
	CA    *x509.Certificate
	CAKey *rsa.PrivateKey

	// FailRequests answers this many requests with 503 before serving
	FailRequests atomic.Int32

	// CertLifetime is the validity of issued certificates
	CertLifetime time.Duration

	server *httptest.Server

	mu       sync.Mutex
	serial   int64
	requests map[string]int
	rejected string
}

// NewAuthority starts an authority that is closed with the test
func NewAuthority(t testing.TB) *Authority {
	t.Helper()

	ca, key := NewCA(t, "Test Mesh CA")
	a := &Authority{
		CA:           ca,
		CAKey:        key,
		CertLifetime: 24 * time.Hour,
		serial:       1,
		requests:     map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ca", a.serveCA)
	mux.HandleFunc("/csr", a.serveCSR)
	a.server = httptest.NewServer(mux)
	t.Cleanup(a.server.Close)

	return a
}

// URL returns the base URL of the authority
func (a *Authority) URL() *url.URL {
	u, _ := url.Parse(a.server.URL)
	return u
}

// RejectCommonName makes CSRs for commonName fail with 400
func (a *Authority) RejectCommonName(commonName string) {
	a.mu.Lock()
	a.rejected = commonName
	a.mu.Unlock()
}

// Requests returns how many requests reached path, failed ones included
func (a *Authority) Requests(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[path]
}

// Config returns a bootstrap configuration pointing at the authority
func (a *Authority) Config(commonName string) pki.Config {
	return pki.Config{
		AuthorityURL:  a.URL(),
		CAPath:        "/ca",
		CSRPath:       "/csr",
		CommonName:    commonName,
		RetryInterval: 10 * time.Millisecond,
		HTTPClient:    a.server.Client(),
	}
}

// Material issues a certificate for commonName without going through HTTP
func (a *Authority) Material(t testing.TB, commonName string) *pki.Material {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cert, err := a.issue(pkix.Name{CommonName: commonName}, &key.PublicKey, time.Now().Add(-time.Minute), a.CertLifetime)
	require.NoError(t, err)

	material, err := pki.NewMaterial(a.CA, cert, key)
	require.NoError(t, err)
	return material
}

func (a *Authority) count(path string) bool {
	a.mu.Lock()
	a.requests[path]++
	a.mu.Unlock()

	for {
		n := a.FailRequests.Load()
		if n <= 0 {
			return false
		}
		if a.FailRequests.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func (a *Authority) serveCA(w http.ResponseWriter, r *http.Request) {
	if a.count("/ca") {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/x-pem-file")
	_ = pem.Encode(w, &pem.Block{Type: "CERTIFICATE", Bytes: a.CA.Raw})
}

func (a *Authority) serveCSR(w http.ResponseWriter, r *http.Request) {
	if a.count("/csr") {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	block, _ := pem.Decode(body)
	if block == nil || block.Type != "CERTIFICATE REQUEST" {
		http.Error(w, "no certificate request", http.StatusBadRequest)
		return
	}
	csr, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := csr.CheckSignature(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.mu.Lock()
	rejected := a.rejected
	a.mu.Unlock()
	if csr.Subject.CommonName == "" || (rejected != "" && csr.Subject.CommonName == rejected) {
		http.Error(w, "common name not allowed", http.StatusBadRequest)
		return
	}

	cert, err := a.issue(csr.Subject, csr.PublicKey, time.Now().Add(-time.Minute), a.CertLifetime)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = pem.Encode(w, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

func (a *Authority) issue(subject pkix.Name, pub any, notBefore time.Time, lifetime time.Duration) (*x509.Certificate, error) {
	a.mu.Lock()
	a.serial++
	serial := a.serial
	a.mu.Unlock()

	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      subject,
		NotBefore:    notBefore,
		NotAfter:     notBefore.Add(lifetime),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, a.CA, pub, a.CAKey)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

// NewCA creates a self signed CA certificate
func NewCA(t testing.TB, commonName string) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"WirePact PKI"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	ca, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return ca, key
}
