// Package metric provides Prometheus metrics for kms-cli.
//
// The CLI owns a private registry rather than the global one: a process
// runs a handful of commands and exits, so metrics are not scraped but
// dumped once in the text exposition format (node_exporter textfile
// collector style) when --metrics-textfile is set.
//
// Metrics:
//
//   - kms_cli_rpc_calls_total{procedure,outcome}
//   - kms_cli_rpc_duration_seconds{procedure}
//   - kms_cli_commands_total{command,state}
package metric
