// Package gateway implements the Envoy external authorization servers for
// inbound and outbound traffic.
package gateway

import (
	"context"
	"errors"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"google.golang.org/grpc/status"
)

// Listener names
const (
	ListenerIngress = "ingress"
	ListenerEgress  = "egress"
)

// Deny messages returned to the caller
const (
	MessageInvalidRequest    = "check request has no http attributes"
	MessageTranslationFailed = "translation failed"
	MessageNoUserID          = "no user id"
	MessageMintFailed        = "could not mint identity token"
)

// TokenVerifier validates mesh identity tokens
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// TokenMinter issues mesh identity tokens
type TokenMinter interface {
	Mint(ctx context.Context, subjectID string) (string, error)
}

var errInvalidRequest = errors.New(MessageInvalidRequest)

func validate(req *authv3.CheckRequest) error {
	if req.GetAttributes().GetRequest().GetHttp() == nil {
		return errInvalidRequest
	}
	return nil
}

// abandoned returns the status of a call whose context ended, or nil
func abandoned(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}
	return nil
}
