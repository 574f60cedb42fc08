package hydrorpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a failed call.
type Kind string

const (
	KindNone        Kind = "none"
	KindUnavailable Kind = "unavailable"
	KindTimeout     Kind = "timeout"
	KindMalformed   Kind = "malformed"
	KindUnknown     Kind = "unknown"
)

// Classify maps err to a Kind using gRPC status codes and context errors.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrMalformed) {
		return KindMalformed
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	st, ok := status.FromError(err)
	if !ok {
		return KindUnknown
	}
	switch st.Code() {
	case codes.OK:
		return KindNone
	case codes.Unavailable:
		return KindUnavailable
	case codes.DeadlineExceeded, codes.Canceled:
		return KindTimeout
	default:
		return KindMalformed
	}
}
