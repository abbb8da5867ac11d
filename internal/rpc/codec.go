// Package rpc exposes the engine's full operation surface over gRPC and
// fans cluster operations out to peer nodes.
//
// There is no .proto schema here: icsd registers a JSON encoding.Codec
// with gRPC and carries every request/response as a plain Go struct
// tagged for encoding/json, the way a hand-rolled transport would on top
// of grpc's framing and connection management rather than reaching for
// protoc. A single service method, Invoke, receives an Envelope naming
// the operation and its JSON-encoded arguments and dispatches internally
// — this keeps the wire surface to one RPC instead of one per method,
// while every engine method is still reachable by name through it.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

// jsonCodec implements grpc/encoding.Codec using encoding/json in place
// of protobuf wire encoding.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
