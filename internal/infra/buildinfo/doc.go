// Package buildinfo exposes build-time version information for kms-cli.
//
// Values are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/kms-cli/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
