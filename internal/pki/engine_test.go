package pki_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtranslator/internal/pki"
	"meshtranslator/internal/pki/pkitest"
)

func newEngine(t *testing.T, material *pki.Material, now func() time.Time) *pki.Engine {
	t.Helper()
	engine, err := pki.NewEngine(material, pki.TokenConfig{
		Lifetime:  time.Minute,
		ClockSkew: 5 * time.Second,
		Audience:  "WirePact",
		Now:       now,
	})
	require.NoError(t, err)
	return engine
}

func TestEngine_MintVerifyRoundTrip(t *testing.T) {
	authority := pkitest.NewAuthority(t)
	engine := newEngine(t, authority.Material(t, "translator-a"), nil)
	ctx := context.Background()

	for _, subject := range []string{"alice", "bob@example.com", "ユーザー", "with spaces and : colons"} {
		t.Run(subject, func(t *testing.T) {
			token, err := engine.Mint(ctx, subject)
			require.NoError(t, err)

			got, err := engine.Verify(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, subject, got)
		})
	}
	assert.Equal(t, "translator-a", engine.Issuer())
}

func TestEngine_VerifyAcrossParticipants(t *testing.T) {
	authority := pkitest.NewAuthority(t)
	sender := newEngine(t, authority.Material(t, "sender"), nil)
	receiver := newEngine(t, authority.Material(t, "receiver"), nil)

	token, err := sender.Mint(context.Background(), "alice")
	require.NoError(t, err)

	subject, err := receiver.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestEngine_MintEmptySubject(t *testing.T) {
	authority := pkitest.NewAuthority(t)
	engine := newEngine(t, authority.Material(t, "translator"), nil)

	_, err := engine.Mint(context.Background(), "")
	assert.ErrorIs(t, err, pki.ErrEmptySubject)
}

func TestEngine_VerifyExpired(t *testing.T) {
	authority := pkitest.NewAuthority(t)
	material := authority.Material(t, "translator")

	issued := time.Now()
	minter := newEngine(t, material, func() time.Time { return issued })
	token, err := minter.Mint(context.Background(), "alice")
	require.NoError(t, err)

	// within the tolerated skew
	lenient := newEngine(t, material, func() time.Time { return issued.Add(time.Minute + 3*time.Second) })
	subject, err := lenient.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)

	late := newEngine(t, material, func() time.Time { return issued.Add(2 * time.Minute) })
	_, err = late.Verify(context.Background(), token)
	require.Error(t, err)
	assert.ErrorIs(t, err, pki.ErrTokenExpired)
	assert.Equal(t, pki.ReasonExpired, pki.Reason(err))
}

func TestEngine_VerifyForeignCA(t *testing.T) {
	trusted := pkitest.NewAuthority(t)
	foreign := pkitest.NewAuthority(t)

	minter := newEngine(t, foreign.Material(t, "intruder"), nil)
	verifier := newEngine(t, trusted.Material(t, "translator"), nil)

	token, err := minter.Mint(context.Background(), "alice")
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	require.Error(t, err)
	assert.ErrorIs(t, err, pki.ErrSignatureInvalid)
	assert.Equal(t, pki.ReasonSignatureInvalid, pki.Reason(err))
}

func TestEngine_VerifyTampered(t *testing.T) {
	authority := pkitest.NewAuthority(t)
	engine := newEngine(t, authority.Material(t, "translator"), nil)

	token, err := engine.Mint(context.Background(), "alice")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	payload = []byte(strings.Replace(string(payload), `"alice"`, `"mallory"`, 1))
	parts[1] = base64.RawURLEncoding.EncodeToString(payload)

	_, err = engine.Verify(context.Background(), strings.Join(parts, "."))
	require.Error(t, err)
	assert.ErrorIs(t, err, pki.ErrSignatureInvalid)
}

func TestEngine_AudienceMatchesMeshDefault(t *testing.T) {
	authority := pkitest.NewAuthority(t)
	material := authority.Material(t, "translator")
	engine := newEngine(t, material, nil)

	token, err := engine.Mint(context.Background(), "alice")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"aud":"WirePact"`)

	lowercase, err := pki.NewEngine(material, pki.TokenConfig{Lifetime: time.Minute, Audience: "wirepact"})
	require.NoError(t, err)
	foreign, err := lowercase.Mint(context.Background(), "alice")
	require.NoError(t, err)

	_, err = engine.Verify(context.Background(), foreign)
	require.Error(t, err)
	assert.ErrorIs(t, err, pki.ErrSignatureInvalid)
}

func TestEngine_VerifyMalformed(t *testing.T) {
	authority := pkitest.NewAuthority(t)
	engine := newEngine(t, authority.Material(t, "translator"), nil)

	for name, token := range map[string]string{
		"empty":      "",
		"garbage":    "not-a-token",
		"two parts":  "abc.def",
		"bad base64": "!!!.???.***",
		"unsigned":   "eyJhbGciOiJub25lIn0.eyJzdWIiOiJhbGljZSJ9.",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := engine.Verify(context.Background(), token)
			require.Error(t, err)
			assert.ErrorIs(t, err, pki.ErrMalformedToken)
			assert.Equal(t, pki.ReasonMalformed, pki.Reason(err))
		})
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	authority := pkitest.NewAuthority(t)
	material := authority.Material(t, "translator")

	tests := map[string]pki.TokenConfig{
		"zero lifetime":  {Lifetime: 0, Audience: "WirePact"},
		"negative skew":  {Lifetime: time.Minute, ClockSkew: -time.Second, Audience: "WirePact"},
		"empty audience": {Lifetime: time.Minute},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := pki.NewEngine(material, cfg)
			assert.Error(t, err)
		})
	}

	_, err := pki.NewEngine(nil, pki.TokenConfig{Lifetime: time.Minute, Audience: "WirePact"})
	assert.Error(t, err)
}

func TestReason_Unknown(t *testing.T) {
	assert.Equal(t, pki.ReasonUnknown, pki.Reason(assert.AnError))
}
