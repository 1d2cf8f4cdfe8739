package config

import (
	"errors"
	"fmt"
)

// Defaults.
const (
	DefaultPath      = "kms-cli.json"
	DefaultServer    = "127.0.0.1:5000"
	DefaultTransport = TransportGRPC
)

// Transports.
const (
	TransportGRPC    = "grpc"
	TransportConnect = "connect"
)

// ErrConfig is returned when the configuration cannot be loaded.
var ErrConfig = errors.New("config error")

// Config is the kms-cli configuration.
type Config struct {
	Server    string    `koanf:"server"`
	Transport string    `koanf:"transport"`
	Tokens    TokenTree `koanf:"tokens"`
}

// TokenTree holds the bearer tokens by scope. Keys and Secrets are indexed
// by namespace, then by key name.
type TokenTree struct {
	Root       string                       `koanf:"root"`
	Namespaces map[string]string            `koanf:"namespaces"`
	Keys       map[string]map[string]string `koanf:"keys"`
	Secrets    map[string]map[string]string `koanf:"secrets"`
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if c.Server == "" {
		c.Server = DefaultServer
	}
	if c.Transport == "" {
		c.Transport = DefaultTransport
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportGRPC, TransportConnect:
	default:
		return fmt.Errorf("%w: unknown transport %q (want %s or %s)",
			ErrConfig, c.Transport, TransportGRPC, TransportConnect)
	}
	return nil
}
