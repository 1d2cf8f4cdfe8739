package rpcstub

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// RequestIDHeader carries the invocation's request ID.
const RequestIDHeader = "x-request-id"

// invoker performs one unary call on an established channel.
type invoker interface {
	invoke(ctx context.Context, md protoreflect.MethodDescriptor, req *dynamicpb.Message, requestID string) (*dynamicpb.Message, error)
	close() error
}

// procedurePath returns "/<service>/<method>".
func procedurePath(md protoreflect.MethodDescriptor) string {
	return "/" + string(md.Parent().FullName()) + "/" + string(md.Name())
}

// grpcInvoker calls methods over a single gRPC client connection.
type grpcInvoker struct {
	conn *grpc.ClientConn
}

func newGRPCInvoker(address string, opts ...grpc.DialOption) (*grpcInvoker, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	// NewClient does not dial; an unreachable server fails the first call.
	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, address, err)
	}
	return &grpcInvoker{conn: conn}, nil
}

func (g *grpcInvoker) invoke(ctx context.Context, md protoreflect.MethodDescriptor, req *dynamicpb.Message, requestID string) (*dynamicpb.Message, error) {
	if requestID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, RequestIDHeader, requestID)
	}

	resp := dynamicpb.NewMessage(md.Output())
	if err := g.conn.Invoke(ctx, procedurePath(md), req, resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return resp, nil
}

func (g *grpcInvoker) close() error {
	return g.conn.Close()
}

// connectInvoker calls methods with one Connect client per method, all
// sharing the same http.Client.
type connectInvoker struct {
	clients map[protoreflect.FullName]*connect.Client[dynamicpb.Message, dynamicpb.Message]
	http    *http.Client
}

func newConnectInvoker(svc protoreflect.ServiceDescriptor, address string, httpClient *http.Client) *connectInvoker {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	baseURL := address
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &connectInvoker{
		clients: make(map[protoreflect.FullName]*connect.Client[dynamicpb.Message, dynamicpb.Message]),
		http:    httpClient,
	}

	methods := svc.Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		c.clients[md.FullName()] = connect.NewClient[dynamicpb.Message, dynamicpb.Message](
			httpClient,
			baseURL+procedurePath(md),
			connect.WithSchema(md),
			connect.WithResponseInitializer(initDynamicResponse),
		)
	}
	return c
}

// initDynamicResponse gives the zero response message its descriptor.
func initDynamicResponse(spec connect.Spec, msg any) error {
	dynamic, ok := msg.(*dynamicpb.Message)
	if !ok {
		return nil
	}
	desc, ok := spec.Schema.(protoreflect.MethodDescriptor)
	if !ok {
		return fmt.Errorf("invalid schema type %T for %T message", spec.Schema, dynamic)
	}
	*dynamic = *dynamicpb.NewMessage(desc.Output())
	return nil
}

func (c *connectInvoker) invoke(ctx context.Context, md protoreflect.MethodDescriptor, req *dynamicpb.Message, requestID string) (*dynamicpb.Message, error) {
	client, ok := c.clients[md.FullName()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcedure, md.FullName())
	}

	creq := connect.NewRequest(req)
	if requestID != "" {
		creq.Header().Set(RequestIDHeader, requestID)
	}

	resp, err := client.CallUnary(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return resp.Msg, nil
}

func (c *connectInvoker) close() error {
	c.http.CloseIdleConnections()
	return nil
}
