// Package rpcapi carries the coordinator's gRPC-served RPC surface:
// GetCompactionJob, UpdateCompactionStatus, CompactionCompleted,
// CancelCompaction, GetCompactionStatus, IsCompactionCompleted.
//
// There are no .proto files or generated stubs available to build on,
// so rather than hand-fabricate protoc output this package keeps
// google.golang.org/grpc as the real transport but registers a small
// JSON codec and defines its service by hand - exactly the extension
// point google.golang.org/grpc/encoding exists for. See DESIGN.md.
package rpcapi

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is passed via grpc.CallContentSubtype on the client and
// matched against grpc's content-subtype negotiation on the server.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements google.golang.org/grpc/encoding.Codec using
// encoding/json instead of protobuf, since the message types here are
// plain structs rather than generated proto.Message implementations.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}
