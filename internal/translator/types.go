// Package translator defines how mesh identities are mapped to and from the
// credentials an application understands.
package translator

import (
	"context"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
)

// Header names used on the wire
const (
	// IdentityHeader carries the mesh identity token between participants
	IdentityHeader = "x-wirepact-identity"

	// AuthorizationHeader carries the application native credential
	AuthorizationHeader = "authorization"
)

// Header is a single header to add to a request. Order is preserved when
// rendered.
type Header struct {
	Name  string
	Value string
}

// Translator converts between mesh identities and application credentials.
//
// Ingress is called for inbound requests that carry a verified mesh identity.
// Egress is called for every outbound request and resolves the subject the
// mesh identity is minted for.
//
// A returned error is a translation failure and is never confused with a
// deliberate forbidden decision. Implementations must be safe for concurrent
// use.
type Translator interface {
	Ingress(ctx context.Context, subjectID string, req *authv3.CheckRequest) (IngressDecision, error)
	Egress(ctx context.Context, req *authv3.CheckRequest) (EgressDecision, error)
}

// IngressDecision is one of IngressSkip, IngressForbidden or IngressAllow
type IngressDecision interface {
	ingressDecision()
}

// IngressSkip leaves the request untouched
type IngressSkip struct{}

// IngressForbidden rejects the request with a reason shown to the caller
type IngressForbidden struct {
	Reason string
}

// IngressAllow forwards the request with header mutations
type IngressAllow struct {
	HeadersToAdd    []Header
	HeadersToRemove []string
}

func (IngressSkip) ingressDecision()      {}
func (IngressForbidden) ingressDecision() {}
func (IngressAllow) ingressDecision()     {}

// EgressDecision is one of EgressSkip, EgressForbidden or EgressAllow
type EgressDecision interface {
	egressDecision()
}

// EgressSkip leaves the request untouched
type EgressSkip struct{}

// EgressForbidden rejects the request with a reason shown to the caller
type EgressForbidden struct {
	Reason string
}

// EgressAllow forwards the request with a mesh identity for SubjectID. An
// empty SubjectID means the credential could not be resolved.
type EgressAllow struct {
	SubjectID       string
	HeadersToAdd    []Header
	HeadersToRemove []string
}

func (EgressSkip) egressDecision()      {}
func (EgressForbidden) egressDecision() {}
func (EgressAllow) egressDecision()     {}

// SkipIngress returns an IngressSkip decision
func SkipIngress() IngressDecision {
	return IngressSkip{}
}

// ForbidIngress returns an IngressForbidden decision
func ForbidIngress(reason string) IngressDecision {
	return IngressForbidden{Reason: reason}
}

// AllowIngress returns an IngressAllow decision
func AllowIngress(add []Header, remove []string) IngressDecision {
	return IngressAllow{HeadersToAdd: add, HeadersToRemove: remove}
}

// SkipEgress returns an EgressSkip decision
func SkipEgress() EgressDecision {
	return EgressSkip{}
}

// ForbidEgress returns an EgressForbidden decision
func ForbidEgress(reason string) EgressDecision {
	return EgressForbidden{Reason: reason}
}

// AllowEgress returns an EgressAllow decision
func AllowEgress(subjectID string, add []Header, remove []string) EgressDecision {
	return EgressAllow{SubjectID: subjectID, HeadersToAdd: add, HeadersToRemove: remove}
}
