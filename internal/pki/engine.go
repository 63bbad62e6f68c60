package pki

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"meshtranslator/internal/tls"
)

// Engine mints and verifies mesh identity tokens. Tokens are RS256 signed
// JWTs carrying the local certificate and the CA in the x5c header, so any
// participant trusting the same CA can verify them without a key exchange.
//
// Engine is read-only after construction and safe for concurrent use.
type Engine struct {
	material *Material
	cfg      TokenConfig
	issuer   string
	signer   jose.Signer
}

// NewEngine creates an engine signing with the given trust material
func NewEngine(material *Material, cfg TokenConfig) (*Engine, error) {
	if material == nil {
		return nil, fmt.Errorf("trust material is required")
	}
	if cfg.Lifetime <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive")
	}
	if cfg.ClockSkew < 0 {
		return nil, fmt.Errorf("token clock skew must not be negative")
	}
	if cfg.Audience == "" {
		return nil, fmt.Errorf("token audience is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	issuer, err := tls.ExtractSubject(material.Certificate)
	if err != nil {
		return nil, err
	}

	chain := []string{
		base64.StdEncoding.EncodeToString(material.Certificate.Raw),
		base64.StdEncoding.EncodeToString(material.CA.Raw),
	}
	opts := (&jose.SignerOptions{}).WithType("JWT").WithHeader("x5c", chain)

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: material.PrivateKey}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}

	return &Engine{
		material: material,
		cfg:      cfg,
		issuer:   issuer,
		signer:   signer,
	}, nil
}

// Issuer returns the name written into the iss claim
func (e *Engine) Issuer() string {
	return e.issuer
}

// Mint returns a signed token asserting subjectID
func (e *Engine) Mint(ctx context.Context, subjectID string) (string, error) {
	if subjectID == "" {
		return "", ErrEmptySubject
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := e.cfg.Now()
	claims := jwt.Claims{
		ID:        uuid.NewString(),
		Issuer:    e.issuer,
		Subject:   subjectID,
		Audience:  jwt.Audience{e.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(e.cfg.Lifetime)),
	}

	token, err := jwt.Signed(e.signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to sign identity token: %w", err)
	}
	return token, nil
}

// Verify checks the token signature against the CA and its expiry and
// returns the asserted subject. Errors wrap ErrMalformedToken, ErrTokenExpired
// or ErrSignatureInvalid.
func (e *Engine) Verify(ctx context.Context, token string) (string, error) {
	jws, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return "", verificationError(ErrMalformedToken, err)
	}
	if len(jws.Signatures) != 1 {
		return "", verificationError(ErrMalformedToken, fmt.Errorf("expected one signature, got %d", len(jws.Signatures)))
	}

	now := e.cfg.Now()
	chains, err := jws.Signatures[0].Protected.Certificates(tls.VerifyOptions(e.material.CAPool(), now))
	if err != nil {
		return "", verificationError(ErrSignatureInvalid, err)
	}
	leaf := chains[0][0]

	verifier := oidc.NewVerifier("", &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{leaf.PublicKey}}, &oidc.Config{
		ClientID:             e.cfg.Audience,
		SkipIssuerCheck:      true,
		SupportedSigningAlgs: []string{oidc.RS256},
		Now: func() time.Time {
			return now.Add(-e.cfg.ClockSkew)
		},
	})

	idToken, err := verifier.Verify(ctx, token)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return "", verificationError(ErrTokenExpired, err)
		}
		return "", verificationError(ErrSignatureInvalid, err)
	}
	if idToken.Subject == "" {
		return "", verificationError(ErrMalformedToken, ErrEmptySubject)
	}

	return idToken.Subject, nil
}
