package translator

import (
	"log/slog"
	"strings"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
)

// HTTPRequest returns the HTTP attributes of a check request, or nil when the
// request does not describe an HTTP request
func HTTPRequest(req *authv3.CheckRequest) *authv3.AttributeContext_HttpRequest {
	return req.GetAttributes().GetRequest().GetHttp()
}

// RequestHeader returns the value of a request header. Envoy sends header
// names in lower case; other spellings are matched case-insensitively.
func RequestHeader(req *authv3.CheckRequest, name string) (string, bool) {
	headers := HTTPRequest(req).GetHeaders()
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// RequestLogAttrs describes a check request for logging without exposing
// header values
func RequestLogAttrs(req *authv3.CheckRequest) []any {
	http := HTTPRequest(req)
	return []any{
		slog.String("http_id", http.GetId()),
		slog.String("method", http.GetMethod()),
		slog.String("host", http.GetHost()),
		slog.String("path", http.GetPath()),
	}
}
