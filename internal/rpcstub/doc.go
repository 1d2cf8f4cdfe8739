// Package rpcstub turns a service definition loaded at runtime into a
// callable client.
//
// LoadService parses the definition (the embedded kms.proto, a .proto file
// compiled with protocompile, or a binary FileDescriptorSet) and returns the
// service descriptor. A Synthesizer then builds a Stub for a server address
// with one Operation per declared method; no per-procedure code exists.
//
// Requests are plain maps keyed by field name and are encoded into
// dynamicpb messages. Responses follow a data/error envelope: the response
// message has a "data" field carrying the result and an "error" string
// carrying a server-reported failure, never both.
//
// Two transports are supported: gRPC (default) and Connect over HTTP/1.1.
package rpcstub
