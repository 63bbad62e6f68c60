package pki

import (
	"errors"
	"fmt"
)

// Verification failures. Callers deny on all of them alike; the distinction
// exists for logs and metrics.
var (
	ErrMalformedToken   = errors.New("malformed identity token")
	ErrTokenExpired     = errors.New("identity token expired")
	ErrSignatureInvalid = errors.New("identity token signature invalid")
)

// ErrEmptySubject is returned when a token is requested for an empty subject
var ErrEmptySubject = errors.New("subject id must not be empty")

// ErrAuthorityRejected is returned when the trust authority refuses a request
// with a client error. It is never retried.
var ErrAuthorityRejected = errors.New("trust authority rejected the request")

// Verification reasons as reported by Reason
const (
	ReasonMalformed        = "malformed"
	ReasonExpired          = "expired"
	ReasonSignatureInvalid = "signature_invalid"
	ReasonUnknown          = "error"
)

// Reason maps a verification error to a short label
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedToken):
		return ReasonMalformed
	case errors.Is(err, ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, ErrSignatureInvalid):
		return ReasonSignatureInvalid
	default:
		return ReasonUnknown
	}
}

func verificationError(kind, cause error) error {
	return fmt.Errorf("%w: %w", kind, cause)
}
