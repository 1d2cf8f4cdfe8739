package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/yndnr/kms-cli/internal/cli/config"
	"github.com/yndnr/kms-cli/internal/cli/output"
	"github.com/yndnr/kms-cli/internal/rpcstub"
	"github.com/yndnr/kms-cli/internal/telemetry/logger"
	"github.com/yndnr/kms-cli/internal/telemetry/metric"
	"github.com/yndnr/kms-cli/pkg/token"
)

// DefaultTimeout bounds one remote call.
const DefaultTimeout = 30 * time.Second

// State is the lifecycle position of one invocation.
type State int

// Invocation states.
const (
	StateIdle State = iota
	StateConfigLoading
	StateTokenResolving
	StateAborted
	StateRequestBuilding
	StateAwaitingResponse
	StateRendered
	StateFailed
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateConfigLoading:    "config_loading",
	StateTokenResolving:   "token_resolving",
	StateAborted:          "aborted",
	StateRequestBuilding:  "request_building",
	StateAwaitingResponse: "awaiting_response",
	StateRendered:         "rendered",
	StateFailed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends an invocation.
func (s State) Terminal() bool {
	return s == StateAborted || s == StateRendered || s == StateFailed
}

// Caller issues one remote procedure call.
type Caller interface {
	Call(ctx context.Context, procedure string, req rpcstub.Request) (*rpcstub.Response, error)
}

// Connector creates a Caller for a server.
type Connector interface {
	Connect(address, transport string) (Caller, error)
}

// StubConnector synthesizes rpcstub stubs for one service.
type StubConnector struct {
	svc  protoreflect.ServiceDescriptor
	opts []rpcstub.Option
}

// NewStubConnector creates a connector for svc. opts apply to every stub.
func NewStubConnector(svc protoreflect.ServiceDescriptor, opts ...rpcstub.Option) *StubConnector {
	return &StubConnector{svc: svc, opts: opts}
}

// Connect synthesizes a stub for address over transport.
func (c *StubConnector) Connect(address, transport string) (Caller, error) {
	opts := append(append([]rpcstub.Option(nil), c.opts...), rpcstub.WithTransport(transport))
	stub, err := rpcstub.NewSynthesizer(c.svc, opts...).Synthesize(address)
	if err != nil {
		return nil, err
	}
	return stub, nil
}

// CommandContext is what a renderer may use.
type CommandContext struct {
	Config *config.Config
	Caller Caller
	Out    io.Writer
	Format output.Format
	Log    logger.Logger
}

// Request is one command invocation.
type Request struct {
	Command    string
	ConfigPath string
	Server     string
	Args       Args
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOutput sets where results and diagnostics go. Default os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(d *Dispatcher) { d.out = w }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics records command outcomes in reg.
func WithMetrics(reg *metric.Registry) Option {
	return func(d *Dispatcher) { d.metrics = reg }
}

// WithFormat sets the list output format.
func WithFormat(f output.Format) Option {
	return func(d *Dispatcher) { d.format = f }
}

// WithTimeout bounds each remote call.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithSpinner shows a spinner on f while a call is in flight, when f is a
// terminal.
func WithSpinner(f *os.File) Option {
	return func(d *Dispatcher) { d.spinnerFile = f }
}

// WithFileReader replaces os.ReadFile for input files.
func WithFileReader(fn func(string) ([]byte, error)) Option {
	return func(d *Dispatcher) { d.readFile = fn }
}

// WithTokenMinter replaces token.Generate.
func WithTokenMinter(fn func() (string, error)) Option {
	return func(d *Dispatcher) { d.mint = fn }
}

// WithConfigLoader replaces config.Load.
func WithConfigLoader(fn func(path, server string) (*config.Config, error)) Option {
	return func(d *Dispatcher) { d.loadConfig = fn }
}

// Dispatcher runs commands one at a time. Callers are created lazily and
// cached per server address for the Dispatcher's lifetime.
type Dispatcher struct {
	connector   Connector
	out         io.Writer
	log         logger.Logger
	metrics     *metric.Registry
	format      output.Format
	timeout     time.Duration
	spinnerFile *os.File
	readFile    func(string) ([]byte, error)
	mint        func() (string, error)
	loadConfig  func(path, server string) (*config.Config, error)

	mu      sync.Mutex
	callers map[string]Caller
}

// NewDispatcher creates a Dispatcher that reaches servers through connector.
func NewDispatcher(connector Connector, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		connector:  connector,
		out:        os.Stdout,
		log:        logger.Nop(),
		format:     output.FormatTable,
		timeout:    DefaultTimeout,
		readFile:   os.ReadFile,
		mint:       token.Generate,
		loadConfig: config.Load,
		callers:    make(map[string]Caller),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs one command and returns its terminal state. Every failure
// has already been reported on the output when Dispatch returns; the error
// classifies it (see IsFatal).
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (state State, err error) {
	spec, ok := Lookup(req.Command)
	if !ok {
		e := ErrUnknownCommand.WithDetails(fmt.Sprintf("Unknown command %q", req.Command))
		d.report(e)
		return StateFailed, e
	}

	if logger.RequestIDFromContext(ctx) == "" {
		ctx = logger.WithRequestID(ctx, logger.NewRequestID())
	}
	log := d.log.With("request_id", logger.RequestIDFromContext(ctx), "command", spec.Name)
	ctx = logger.WithLogger(ctx, log)

	state = StateIdle
	advance := func(next State) {
		log.Debug("state", "from", state.String(), "to", next.String())
		state = next
	}
	defer func() {
		d.metrics.ObserveCommand(spec.Name, state.String())
		if err != nil {
			log.Debug("command ended", "state", state.String(), "code", Code(err))
		}
	}()

	advance(StateConfigLoading)
	cfg, lerr := d.loadConfig(req.ConfigPath, req.Server)
	if lerr != nil {
		e := ErrConfig.WithDetails(lerr.Error()).WithCause(lerr)
		d.report(e)
		advance(StateFailed)
		return state, e
	}

	advance(StateTokenResolving)
	scope := spec.Scope(req.Args)
	sender, ok := cfg.Tokens.Resolve(scope)
	if !ok {
		e := ErrTokenMissing.WithDetails(scope.MissingMessage())
		d.report(e)
		advance(StateAborted)
		return state, e
	}

	advance(StateRequestBuilding)
	inv := &Invocation{
		Spec:     spec,
		Args:     req.Args,
		readFile: d.readFile,
		mint:     d.mint,
	}
	body, berr := spec.Build(inv)
	if berr != nil {
		e := asError(berr, ErrInput)
		d.report(e)
		advance(StateAborted)
		return state, e
	}
	body["sender"] = sender
	if inv.Token != "" {
		log.Debug("token issued", "fingerprint", token.Fingerprint(inv.Token))
	}

	advance(StateAwaitingResponse)
	caller, cerr := d.caller(cfg.Server, cfg.Transport)
	if cerr != nil {
		e := ErrTransport.WithDetails("Error: " + cerr.Error()).WithCause(cerr)
		d.report(e)
		advance(StateFailed)
		return state, e
	}

	resp, rerr := d.call(ctx, caller, spec, body)
	if rerr != nil {
		e := ErrTransport.WithDetails("Error: " + rerr.Error()).WithCause(rerr)
		d.report(e)
		advance(StateFailed)
		return state, e
	}
	if resp.Failed() {
		e := ErrRemote.WithDetails(resp.Error)
		d.report(e)
		advance(StateFailed)
		return state, e
	}

	cc := &CommandContext{
		Config: cfg,
		Caller: caller,
		Out:    d.out,
		Format: d.format,
		Log:    log,
	}
	if rerr := spec.Render(cc, inv, resp.Data); rerr != nil {
		var we *output.WriteError
		var e *Error
		if errors.As(rerr, &we) {
			e = ErrOutput.WithDetails(we.Error()).WithCause(rerr)
		} else {
			e = ErrTransport.WithDetails("Error: " + rerr.Error()).WithCause(rerr)
		}
		d.report(e)
		advance(StateFailed)
		return state, e
	}

	advance(StateRendered)
	return state, nil
}

// call performs the remote call under the per-call timeout, with the
// spinner running until the call resolves. A panicking Caller is reported
// as a failed call.
func (d *Dispatcher) call(ctx context.Context, caller Caller, spec *CommandSpec, body rpcstub.Request) (resp *rpcstub.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("%s: %v", spec.Procedure, r)
		}
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	spinner := output.NewTerminalSpinner(d.spinnerFile, spec.Procedure)
	spinner.Start()
	defer spinner.Stop()

	resp, err = caller.Call(ctx, spec.Procedure, body)
	if err == nil && resp == nil {
		err = fmt.Errorf("%s: empty response", spec.Procedure)
	}
	return resp, err
}

// caller returns the cached Caller for address, creating it on first use.
func (d *Dispatcher) caller(address, transport string) (Caller, error) {
	key := transport + "://" + address

	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.callers[key]; ok {
		return c, nil
	}
	c, err := d.connector.Connect(address, transport)
	if err != nil {
		return nil, err
	}
	d.callers[key] = c
	d.log.Debug("caller created", "address", address, "transport", transport)
	return c, nil
}

// Close releases every cached Caller that holds resources.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for key, c := range d.callers {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", key, err))
			}
		}
		delete(d.callers, key)
	}
	return errors.Join(errs...)
}

// report prints the single diagnostic line for e.
func (d *Dispatcher) report(e *Error) {
	fmt.Fprintln(d.out, e.Diagnostic())
}

// asError returns err as an *Error, wrapping foreign errors in class.
func asError(err error, class *Error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return class.WithDetails(err.Error()).WithCause(err)
}
