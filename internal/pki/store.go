package pki

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Files kept in the trust store
const (
	CAFile   = "ca.crt"
	CertFile = "cert.crt"
	KeyFile  = "cert.key"
)

// Store persists trust material below a directory of an afero filesystem
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore returns a store rooted at dir
func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// NewOSStore returns a store on the local filesystem
func NewOSStore(dir string) *Store {
	return NewStore(afero.NewOsFs(), dir)
}

// Read returns the content of name. ok is false when the file does not exist.
func (s *Store) Read(name string) (data []byte, ok bool, err error) {
	data, err = afero.ReadFile(s.fs, filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, true, nil
}

// Write replaces name with data
func (s *Store) Write(name string, data []byte, perm os.FileMode) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create trust store %s: %w", s.dir, err)
	}
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, name), data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func encodeCertificate(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

func decodeCertificate(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no PEM encoded certificate found")
	}
	return x509.ParseCertificate(block.Bytes)
}

func encodeKey(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

func decodeKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, fmt.Errorf("no PEM encoded RSA private key found")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}
