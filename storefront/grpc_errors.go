package storefront

import (
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
)

// GRPCCode returns the gRPC code a CommandError status maps onto.
func (s StatusCode) GRPCCode() codes.Code {
	switch s {
	case StatusInvalidArgument:
		return codes.InvalidArgument
	case StatusFailedPrecondition:
		return codes.FailedPrecondition
	case StatusUnauthenticated:
		return codes.Unauthenticated
	case StatusPermissionDenied:
		return codes.PermissionDenied
	case StatusNotFound:
		return codes.NotFound
	case StatusAborted:
		return codes.Aborted
	case StatusUnavailable:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

// HTTPStatus maps err onto an HTTP status through its gRPC code, the way
// grpc-gateway does for transcoded calls.
func HTTPStatus(err error) int {
	if cmdErr := AsCommandError(err); cmdErr != nil {
		return runtime.HTTPStatusFromCode(cmdErr.Code.GRPCCode())
	}
	return runtime.HTTPStatusFromCode(codes.Internal)
}

// ErrorResponse is the JSON error body written by the HTTP servers.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Code   string `json:"code,omitempty"`
}

// NewErrorResponse describes err for an HTTP client. Non-CommandErrors are
// reported without detail.
func NewErrorResponse(err error) ErrorResponse {
	if cmdErr := AsCommandError(err); cmdErr != nil {
		return ErrorResponse{
			Error:  cmdErr.Error(),
			Reason: string(cmdErr.Reason),
			Code:   cmdErr.Code.String(),
		}
	}
	return ErrorResponse{Error: "internal error", Code: "INTERNAL"}
}
