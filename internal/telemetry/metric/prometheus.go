package metric

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kms_cli"

// RPC outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeRemoteError = "remote_error"
	OutcomeTransport   = "transport_error"
)

// Registry holds all application metrics.
type Registry struct {
	RPCCalls    *prometheus.CounterVec
	RPCDuration *prometheus.HistogramVec
	Commands    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates the metrics on a fresh, private registry.
func NewRegistry() *Registry {
	r := &Registry{
		RPCCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Remote procedure calls issued, by procedure and outcome.",
		}, []string{"procedure", "outcome"}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "Round-trip time of remote procedure calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands dispatched, by command and terminal state.",
		}, []string{"command", "state"}),
		registry: prometheus.NewRegistry(),
	}

	r.registry.MustRegister(r.RPCCalls, r.RPCDuration, r.Commands)
	return r
}

// ObserveRPC records one finished remote call.
func (r *Registry) ObserveRPC(procedure, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.RPCCalls.WithLabelValues(procedure, outcome).Inc()
	r.RPCDuration.WithLabelValues(procedure).Observe(elapsed.Seconds())
}

// ObserveCommand records the terminal state of one dispatched command.
func (r *Registry) ObserveCommand(command, state string) {
	if r == nil {
		return
	}
	r.Commands.WithLabelValues(command, state).Inc()
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is written atomically.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
