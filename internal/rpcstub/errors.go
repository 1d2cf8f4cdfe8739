package rpcstub

import "errors"

// Sentinel errors. Returned errors wrap one of these.
var (
	// ErrDescriptor indicates the interface definition could not be parsed.
	ErrDescriptor = errors.New("rpcstub: invalid interface definition")
	// ErrServiceNotFound indicates the definition does not declare the service.
	ErrServiceNotFound = errors.New("rpcstub: service not found")
	// ErrUnknownProcedure indicates a call to a method the service lacks.
	ErrUnknownProcedure = errors.New("rpcstub: unknown procedure")
	// ErrEncode indicates the request map does not fit the input message.
	ErrEncode = errors.New("rpcstub: cannot encode request")
	// ErrTransport indicates the call did not complete.
	ErrTransport = errors.New("rpcstub: transport failure")
	// ErrEnvelope indicates the response broke the data/error contract.
	ErrEnvelope = errors.New("rpcstub: malformed response envelope")
)
