package translator

import (
	"bytes"
	"log/slog"
	"testing"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkRequest(headers map[string]string) *authv3.CheckRequest {
	return &authv3.CheckRequest{
		Attributes: &authv3.AttributeContext{
			Request: &authv3.AttributeContext_Request{
				Http: &authv3.AttributeContext_HttpRequest{
					Id:      "req-1",
					Method:  "GET",
					Host:    "api.example.com",
					Path:    "/orders",
					Headers: headers,
				},
			},
		},
	}
}

func TestRequestHeader(t *testing.T) {
	req := checkRequest(map[string]string{
		"authorization": "Basic abc",
		"X-Custom":      "value",
	})

	v, ok := RequestHeader(req, AuthorizationHeader)
	assert.True(t, ok)
	assert.Equal(t, "Basic abc", v)

	v, ok = RequestHeader(req, "x-custom")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = RequestHeader(req, IdentityHeader)
	assert.False(t, ok)
}

func TestRequestHeaderOnIncompleteRequest(t *testing.T) {
	for name, req := range map[string]*authv3.CheckRequest{
		"nil":           nil,
		"no attributes": {},
		"no http":       {Attributes: &authv3.AttributeContext{Request: &authv3.AttributeContext_Request{}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := RequestHeader(req, AuthorizationHeader)
			assert.False(t, ok)
			assert.Nil(t, HTTPRequest(req))
		})
	}
}

func TestRequestLogAttrsOmitHeaders(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("check", RequestLogAttrs(checkRequest(map[string]string{"authorization": "Basic c2VjcmV0"}))...)

	out := buf.String()
	assert.Contains(t, out, "path=/orders")
	assert.Contains(t, out, "host=api.example.com")
	assert.NotContains(t, out, "c2VjcmV0")
}

func TestCredentialLogValueHidesPassword(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("lookup", "cred", Credential{Username: "alice", Password: "secret"})

	require.Contains(t, buf.String(), "alice")
	assert.NotContains(t, buf.String(), "secret")
}

func TestDecisionConstructors(t *testing.T) {
	add := []Header{{Name: AuthorizationHeader, Value: "Basic abc"}}

	assert.Equal(t, IngressSkip{}, SkipIngress())
	assert.Equal(t, IngressForbidden{Reason: "no"}, ForbidIngress("no"))
	assert.Equal(t, IngressAllow{HeadersToAdd: add, HeadersToRemove: []string{IdentityHeader}},
		AllowIngress(add, []string{IdentityHeader}))

	assert.Equal(t, EgressSkip{}, SkipEgress())
	assert.Equal(t, EgressForbidden{Reason: "no"}, ForbidEgress("no"))
	assert.Equal(t, EgressAllow{SubjectID: "alice", HeadersToRemove: []string{AuthorizationHeader}},
		AllowEgress("alice", nil, []string{AuthorizationHeader}))
}
