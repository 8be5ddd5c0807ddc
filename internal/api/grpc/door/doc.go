// Package door implements the gRPC control API of the door monitor.
//
// The service is described by a hand-written grpc.ServiceDesc over protobuf
// well-known types, so no generated code is needed. Documents carried in
// google.protobuf.Struct and ListValue have the same shape as the HTTP API.
package door
