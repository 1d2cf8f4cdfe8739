package rpcstub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/yndnr/kms-cli/internal/telemetry/logger"
	"github.com/yndnr/kms-cli/internal/telemetry/metric"
)

// Transports.
const (
	TransportGRPC    = "grpc"
	TransportConnect = "connect"
)

// Operation performs one remote procedure. It resolves exactly once: with
// a Response (which may carry a server-reported Error) or with an error
// wrapping ErrEncode, ErrTransport or ErrEnvelope.
type Operation func(ctx context.Context, req Request) (*Response, error)

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTransport selects TransportGRPC (default) or TransportConnect.
func WithTransport(transport string) Option {
	return func(s *Synthesizer) {
		s.transport = transport
	}
}

// WithMetrics records every call in reg.
func WithMetrics(reg *metric.Registry) Option {
	return func(s *Synthesizer) {
		s.metrics = reg
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Synthesizer) {
		s.log = l
	}
}

// WithDialOptions adds gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(s *Synthesizer) {
		s.dialOpts = append(s.dialOpts, opts...)
	}
}

// WithHTTPClient sets the HTTP client used by the Connect transport.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synthesizer) {
		s.httpClient = c
	}
}

// Synthesizer builds stubs for one service.
type Synthesizer struct {
	svc        protoreflect.ServiceDescriptor
	transport  string
	metrics    *metric.Registry
	log        logger.Logger
	dialOpts   []grpc.DialOption
	httpClient *http.Client
}

// NewSynthesizer creates a synthesizer for svc.
func NewSynthesizer(svc protoreflect.ServiceDescriptor, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		svc:       svc,
		transport: TransportGRPC,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Service returns the service descriptor.
func (s *Synthesizer) Service() protoreflect.ServiceDescriptor {
	return s.svc
}

// Synthesize creates a stub bound to address. The connection is created
// once and shared by every operation of the stub.
func (s *Synthesizer) Synthesize(address string) (*Stub, error) {
	var inv invoker
	switch s.transport {
	case TransportGRPC, "":
		g, err := newGRPCInvoker(address, s.dialOpts...)
		if err != nil {
			return nil, err
		}
		inv = g
	case TransportConnect:
		inv = newConnectInvoker(s.svc, address, s.httpClient)
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", ErrTransport, s.transport)
	}

	stub := &Stub{
		address: address,
		inv:     inv,
		ops:     make(map[string]Operation),
		metrics: s.metrics,
		log:     s.log.With("address", address, "transport", s.transport),
	}

	methods := s.svc.Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		name := string(md.Name())
		stub.names = append(stub.names, name)
		stub.ops[name] = stub.operation(md)
	}

	s.log.Debug("stub synthesized", "service", s.svc.FullName(), "procedures", len(stub.names))
	return stub, nil
}

// Stub maps procedure names to operations on one server.
type Stub struct {
	address string
	inv     invoker
	names   []string
	ops     map[string]Operation
	metrics *metric.Registry
	log     logger.Logger
}

// Address returns the server address.
func (s *Stub) Address() string {
	return s.address
}

// Procedures returns the procedure names in declaration order.
func (s *Stub) Procedures() []string {
	return append([]string(nil), s.names...)
}

// Operation returns the operation for procedure name.
func (s *Stub) Operation(name string) (Operation, bool) {
	op, ok := s.ops[name]
	return op, ok
}

// Call invokes procedure name with req.
func (s *Stub) Call(ctx context.Context, name string, req Request) (*Response, error) {
	op, ok := s.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcedure, name)
	}
	return op(ctx, req)
}

// Close releases the underlying connection.
func (s *Stub) Close() error {
	return s.inv.close()
}

func (s *Stub) operation(md protoreflect.MethodDescriptor) Operation {
	procedure := string(md.Name())

	return func(ctx context.Context, req Request) (*Response, error) {
		msg, err := encodeRequest(md.Input(), req)
		if err != nil {
			return nil, err
		}

		requestID := logger.RequestIDFromContext(ctx)
		log := s.log
		if requestID != "" {
			log = log.With("request_id", requestID)
		}
		log.Debug("rpc call", "procedure", procedure, "fields", logger.RedactFields(req))

		start := time.Now()
		out, err := s.inv.invoke(ctx, md, msg, requestID)
		elapsed := time.Since(start)
		if err != nil {
			s.metrics.ObserveRPC(procedure, metric.OutcomeTransport, elapsed)
			log.Debug("rpc failed", "procedure", procedure, "duration", elapsed, "error", err)
			return nil, err
		}

		resp, err := decodeResponse(out)
		if err != nil {
			s.metrics.ObserveRPC(procedure, metric.OutcomeTransport, elapsed)
			log.Debug("rpc envelope rejected", "procedure", procedure, "error", err)
			return nil, err
		}

		outcome := metric.OutcomeOK
		if resp.Failed() {
			outcome = metric.OutcomeRemoteError
		}
		s.metrics.ObserveRPC(procedure, outcome, elapsed)
		log.Debug("rpc done", "procedure", procedure, "duration", elapsed, "outcome", outcome)
		return resp, nil
	}
}

// IsRemote reports whether err is a call failure rather than a local one.
func IsRemote(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrEnvelope)
}
