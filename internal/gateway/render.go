package gateway

import (
	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"

	"meshtranslator/internal/translator"
)

// Outcomes reported in logs and metrics
const (
	OutcomePassThrough = "pass_through"
	OutcomeAllow       = "allow"
	OutcomeDenied      = "denied"
	OutcomeError       = "error"
	OutcomeInvalid     = "invalid"
	OutcomeCancelled   = "cancelled"
)

// NoOp allows the request without touching it
func NoOp() *authv3.CheckResponse {
	return OK(nil, nil)
}

// OK allows the request, adding and removing the given headers
func OK(add []translator.Header, remove []string) *authv3.CheckResponse {
	ok := &authv3.OkHttpResponse{}
	for _, h := range add {
		ok.Headers = append(ok.Headers, &corev3.HeaderValueOption{
			Header:       &corev3.HeaderValue{Key: h.Name, Value: h.Value},
			AppendAction: corev3.HeaderValueOption_OVERWRITE_IF_EXISTS_OR_ADD,
		})
	}
	if len(remove) > 0 {
		ok.HeadersToRemove = append([]string(nil), remove...)
	}

	return &authv3.CheckResponse{
		Status:       &rpcstatus.Status{Code: int32(codes.OK)},
		HttpResponse: &authv3.CheckResponse_OkResponse{OkResponse: ok},
	}
}

// Denied rejects the request. message is both the status message and the
// body returned to the downstream client.
func Denied(code codes.Code, httpStatus typev3.StatusCode, message string) *authv3.CheckResponse {
	return &authv3.CheckResponse{
		Status: &rpcstatus.Status{Code: int32(code), Message: message},
		HttpResponse: &authv3.CheckResponse_DeniedResponse{
			DeniedResponse: &authv3.DeniedHttpResponse{
				Status: &typev3.HttpStatus{Code: httpStatus},
				Body:   message,
			},
		},
	}
}

// PermissionDenied rejects a request with 403
func PermissionDenied(message string) *authv3.CheckResponse {
	return Denied(codes.PermissionDenied, typev3.StatusCode_Forbidden, message)
}

// Internal rejects a request because of a server side fault with 500
func Internal(message string) *authv3.CheckResponse {
	return Denied(codes.Internal, typev3.StatusCode_InternalServerError, message)
}

// InvalidArgument rejects a check request the gateway cannot interpret with 400
func InvalidArgument(message string) *authv3.CheckResponse {
	return Denied(codes.InvalidArgument, typev3.StatusCode_BadRequest, message)
}
