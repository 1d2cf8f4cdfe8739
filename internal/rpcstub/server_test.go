package rpcstub

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// handlerFunc fills resp for one call.
type handlerFunc func(ctx context.Context, md protoreflect.MethodDescriptor, req, resp *dynamicpb.Message) error

func get(m protoreflect.Message, name string) protoreflect.Value {
	return m.Get(m.Descriptor().Fields().ByName(protoreflect.Name(name)))
}

func set(m protoreflect.Message, name string, v protoreflect.Value) {
	m.Set(m.Descriptor().Fields().ByName(protoreflect.Name(name)), v)
}

func xor(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[i] ^ 0x5a
	}
	return out
}

// fakeKMS answers Encrypt/Decrypt with a reversible transform, reports a
// server error for an unknown sender and records request IDs.
type fakeKMS struct {
	mu         sync.Mutex
	requestIDs []string
	senders    []string
	userAgents []string
}

func (f *fakeKMS) record(requestID, sender string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestIDs = append(f.requestIDs, requestID)
	f.senders = append(f.senders, sender)
}

func (f *fakeKMS) seenRequestIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requestIDs...)
}

func (f *fakeKMS) recordUserAgent(ua string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userAgents = append(f.userAgents, ua)
}

func (f *fakeKMS) seenUserAgents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.userAgents...)
}

func (f *fakeKMS) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.senders)
}

func (f *fakeKMS) handle(requestID string, md protoreflect.MethodDescriptor, req, resp *dynamicpb.Message) error {
	sender := get(req, "sender").String()
	f.record(requestID, sender)

	if sender != "good-token" {
		set(resp, "error", protoreflect.ValueOfString("Access denied"))
		return nil
	}

	switch md.Name() {
	case "Encrypt":
		set(resp, "data", protoreflect.ValueOfBytes(xor(get(req, "text").Bytes())))
	case "Decrypt":
		set(resp, "data", protoreflect.ValueOfBytes(xor(get(req, "cipher").Bytes())))
	case "Verify":
		set(resp, "data", protoreflect.ValueOfBool(false))
	case "ListNS":
		list := resp.Mutable(resp.Descriptor().Fields().ByName("data")).List()
		for _, name := range []string{"ns1", "ns2"} {
			entry := list.NewElement().Message()
			set(entry, "name", protoreflect.ValueOfString(name))
			set(entry, "active", protoreflect.ValueOfBool(name == "ns1"))
			list.Append(protoreflect.ValueOfMessage(entry))
		}
	case "NewNS":
		// Neither data nor error: envelope violation.
	default:
		return fmt.Errorf("unexpected method %s", md.Name())
	}
	return nil
}

// startGRPCServer serves svc on a loopback port with a handler that knows
// no generated code.
func startGRPCServer(t *testing.T, svc protoreflect.ServiceDescriptor, kms *fakeKMS) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		full, ok := grpc.MethodFromServerStream(stream)
		if !ok {
			return status.Error(codes.Internal, "no method in stream")
		}
		md := svc.Methods().ByName(protoreflect.Name(full[strings.LastIndex(full, "/")+1:]))
		if md == nil {
			return status.Errorf(codes.Unimplemented, "unknown method %s", full)
		}

		req := dynamicpb.NewMessage(md.Input())
		if err := stream.RecvMsg(req); err != nil {
			return err
		}

		var requestID string
		if meta, ok := metadata.FromIncomingContext(stream.Context()); ok {
			if ids := meta.Get(RequestIDHeader); len(ids) > 0 {
				requestID = ids[0]
			}
			if ua := meta.Get("user-agent"); len(ua) > 0 {
				kms.recordUserAgent(ua[0])
			}
		}

		resp := dynamicpb.NewMessage(md.Output())
		if err := kms.handle(requestID, md, req, resp); err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		return stream.SendMsg(resp)
	}))

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

// startConnectServer serves svc with one dynamic Connect handler per method.
func startConnectServer(t *testing.T, svc protoreflect.ServiceDescriptor, kms *fakeKMS) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	methods := svc.Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		path := procedurePath(md)

		handler := func(_ context.Context, req *connect.Request[dynamicpb.Message]) (*connect.Response[dynamicpb.Message], error) {
			resp := dynamicpb.NewMessage(md.Output())
			if err := kms.handle(req.Header().Get(RequestIDHeader), md, req.Msg, resp); err != nil {
				return nil, connect.NewError(connect.CodeInternal, err)
			}
			return connect.NewResponse(resp), nil
		}

		mux.Handle(path, connect.NewUnaryHandler(path, handler,
			connect.WithSchema(md),
			connect.WithRequestInitializer(func(spec connect.Spec, msg any) error {
				dynamic, ok := msg.(*dynamicpb.Message)
				if !ok {
					return nil
				}
				desc := spec.Schema.(protoreflect.MethodDescriptor)
				*dynamic = *dynamicpb.NewMessage(desc.Input())
				return nil
			}),
		))
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// closedAddress returns a loopback address nothing listens on.
func closedAddress(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	_ = lis.Close()
	return addr
}
