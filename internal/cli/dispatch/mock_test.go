package dispatch

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/yndnr/kms-cli/internal/cli/config"
	"github.com/yndnr/kms-cli/internal/rpcstub"
)

type recordedCall struct {
	procedure string
	req       rpcstub.Request
}

// mockCaller records calls and answers with respond.
type mockCaller struct {
	mu      sync.Mutex
	calls   []recordedCall
	closed  int
	respond func(procedure string, req rpcstub.Request) (*rpcstub.Response, error)
}

func (m *mockCaller) Call(_ context.Context, procedure string, req rpcstub.Request) (*rpcstub.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, recordedCall{procedure: procedure, req: req})
	respond := m.respond
	m.mu.Unlock()

	if respond == nil {
		return defaultResponse(procedure), nil
	}
	return respond(procedure, req)
}

func (m *mockCaller) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockCaller) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockCaller) last(t *testing.T) recordedCall {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		t.Fatal("no remote call was made")
	}
	return m.calls[len(m.calls)-1]
}

// mockConnector hands out one mockCaller per address.
type mockConnector struct {
	mu       sync.Mutex
	callers  map[string]*mockCaller
	connects int
	respond  func(procedure string, req rpcstub.Request) (*rpcstub.Response, error)
}

func (c *mockConnector) Connect(address, _ string) (Caller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.callers == nil {
		c.callers = make(map[string]*mockCaller)
	}
	m := &mockCaller{respond: c.respond}
	c.callers[address] = m
	return m, nil
}

func (c *mockConnector) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.callers {
		n += m.count()
	}
	return n
}

func (c *mockConnector) caller(t *testing.T) *mockCaller {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.callers {
		return m
	}
	t.Fatal("no caller was created")
	return nil
}

// fullTokens authorizes every command on ns1/k1.
func fullTokens() config.TokenTree {
	return config.TokenTree{
		Root:       "R",
		Namespaces: map[string]string{"ns1": "N1"},
		Keys:       map[string]map[string]string{"ns1": {"k1": "K1"}},
		Secrets:    map[string]map[string]string{"ns1": {"k1": "S1"}},
	}
}

type harness struct {
	d         *Dispatcher
	connector *mockConnector
	out       *bytes.Buffer
}

func newHarness(t *testing.T, tokens config.TokenTree, opts ...Option) *harness {
	t.Helper()
	h := &harness{connector: &mockConnector{}, out: &bytes.Buffer{}}

	cfg := &config.Config{Server: config.DefaultServer, Transport: config.TransportGRPC, Tokens: tokens}
	base := []Option{
		WithOutput(h.out),
		WithConfigLoader(func(_, server string) (*config.Config, error) {
			c := *cfg
			if server != "" {
				c.Server = server
			}
			return &c, nil
		}),
	}
	h.d = NewDispatcher(h.connector, append(base, opts...)...)
	t.Cleanup(func() { _ = h.d.Close() })
	return h
}

func (h *harness) respond(fn func(procedure string, req rpcstub.Request) (*rpcstub.Response, error)) {
	h.connector.respond = fn
}

func (h *harness) run(t *testing.T, command string, args Args) (State, error) {
	t.Helper()
	return h.d.Dispatch(context.Background(), Request{Command: command, Args: args})
}

func values(kv ...string) Args {
	a := Args{Values: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		a.Values[kv[i]] = kv[i+1]
	}
	return a
}

func reply(v any) func(string, rpcstub.Request) (*rpcstub.Response, error) {
	return func(string, rpcstub.Request) (*rpcstub.Response, error) {
		return &rpcstub.Response{Data: v}, nil
	}
}

// defaultResponse answers list procedures with an empty list and anything
// else with an empty object.
func defaultResponse(procedure string) *rpcstub.Response {
	if strings.HasPrefix(procedure, "List") {
		return &rpcstub.Response{Data: []any{}}
	}
	return &rpcstub.Response{Data: map[string]any{}}
}
