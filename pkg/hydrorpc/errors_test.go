package hydrorpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"unavailable", status.Error(codes.Unavailable, "connection refused"), KindUnavailable},
		{"wrapped unavailable", fmt.Errorf("poll: %w", status.Error(codes.Unavailable, "down")), KindUnavailable},
		{"deadline status", status.Error(codes.DeadlineExceeded, "slow"), KindTimeout},
		{"deadline context", context.DeadlineExceeded, KindTimeout},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad batch"), KindMalformed},
		{"internal", status.Error(codes.Internal, "boom"), KindMalformed},
		{"malformed payload", fmt.Errorf("reading: %w", ErrMalformed), KindMalformed},
		{"plain error", errors.New("mystery"), KindUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
