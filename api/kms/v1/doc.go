// Package kmsv1 carries the interface definition of the KMS service.
//
// kms-cli does not use generated bindings. The definition below is
// embedded into the binary and compiled at startup; every procedure the
// service declares becomes a callable operation through
// internal/rpcstub. A different definition can be supplied with the
// --proto flag, either as .proto source or as a binary FileDescriptorSet:
//
//	protoc --include_imports -o kms.protoset kms.proto
//
// Response messages follow one envelope: a `data` field carrying the
// result and an `error` string, never both set.
package kmsv1
