package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"

	"github.com/yndnr/kms-cli/internal/cli/dispatch"
	"github.com/yndnr/kms-cli/internal/cli/output"
	"github.com/yndnr/kms-cli/internal/infra/buildinfo"
	"github.com/yndnr/kms-cli/internal/infra/shutdown"
	"github.com/yndnr/kms-cli/internal/rpcstub"
	"github.com/yndnr/kms-cli/internal/telemetry/logger"
	"github.com/yndnr/kms-cli/internal/telemetry/metric"
)

const (
	optionsKey = "kms.options"
	runtimeKey = "kms.runtime"

	shutdownTimeout = 5 * time.Second
)

// runtime is the per-process state shared by every command, including
// those run from the shell.
type runtime struct {
	opts       Options
	log        logger.Logger
	metrics    *metric.Registry
	dispatcher *dispatch.Dispatcher
	shutdown   *shutdown.Handler
	stopWatch  func()
}

// before builds the runtime once per process.
func before(c *cli.Context) error {
	if runtimeFrom(c) != nil {
		return nil
	}
	rt, err := newRuntime(c, optionsFrom(c))
	if err != nil {
		return err
	}
	c.App.Metadata[runtimeKey] = rt
	return nil
}

// after releases the runtime. It also runs when before failed.
func after(c *cli.Context) error {
	rt := runtimeFrom(c)
	if rt == nil {
		return nil
	}
	delete(c.App.Metadata, runtimeKey)
	return rt.close()
}

func newRuntime(c *cli.Context, opts Options) (*runtime, error) {
	flags := ParseGlobalFlags(c)

	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.ForCLI(flags.Verbose, flags.LogFormat, opts.Stderr))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	svc, err := rpcstub.LoadService(c.Context, flags.Proto, flags.Service)
	if err != nil {
		return nil, dispatch.ErrDescriptor.WithDetails(err.Error()).WithCause(err)
	}
	log.Debug("service loaded", "service", string(svc.FullName()), "procedures", svc.Methods().Len())

	metrics := metric.NewRegistry()

	connector := opts.Connector
	if connector == nil {
		connector = dispatch.NewStubConnector(svc,
			rpcstub.WithMetrics(metrics),
			rpcstub.WithLogger(log),
			rpcstub.WithDialOptions(grpc.WithUserAgent(userAgent())),
		)
	}

	dopts := []dispatch.Option{
		dispatch.WithOutput(opts.Stdout),
		dispatch.WithLogger(log),
		dispatch.WithMetrics(metrics),
		dispatch.WithFormat(format),
		dispatch.WithTimeout(flags.Timeout),
	}
	if f, ok := opts.Stderr.(*os.File); ok {
		dopts = append(dopts, dispatch.WithSpinner(f))
	}

	rt := &runtime{
		opts:       opts,
		log:        log,
		metrics:    metrics,
		dispatcher: dispatch.NewDispatcher(connector, dopts...),
		shutdown:   shutdown.NewHandler(shutdownTimeout),
	}

	// Hooks run in reverse: connections close before metrics are written.
	if flags.MetricsFile != "" {
		path := flags.MetricsFile
		rt.shutdown.OnShutdown(func(context.Context) error {
			return metrics.WriteTextfile(path)
		})
	}
	rt.shutdown.OnShutdown(func(context.Context) error {
		return rt.dispatcher.Close()
	})
	rt.stopWatch = rt.shutdown.Watch()

	return rt, nil
}

// userAgent identifies the client to gRPC servers, e.g. "kms-cli/1.2.0".
func userAgent() string {
	return AppName + "/" + buildinfo.Version
}

func (rt *runtime) close() error {
	rt.stopWatch()
	if err := rt.shutdown.Shutdown(); err != nil {
		rt.log.Warn("cleanup failed", "error", err)
		return err
	}
	return nil
}

func runtimeFrom(c *cli.Context) *runtime {
	rt, _ := c.App.Metadata[runtimeKey].(*runtime)
	return rt
}

func optionsFrom(c *cli.Context) Options {
	opts, _ := c.App.Metadata[optionsKey].(Options)
	return opts
}
