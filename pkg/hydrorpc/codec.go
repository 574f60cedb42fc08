// Package hydrorpc defines the gRPC wire contract shared by benches, the
// calculation service and the collector: message types, service descriptors,
// typed clients and error classification.
//
// Messages travel as JSON through a codec registered under the "json"
// content-subtype, so no generated protobuf code is needed.
package hydrorpc

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype used by every hydrobench call.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Dial opens a lazily connected, plaintext channel to target. Extra options
// are appended after the defaults.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
		grpc.WithChainUnaryInterceptor(UnaryClientRequestID()),
	}
	return grpc.NewClient(target, append(base, opts...)...)
}
