package config

import (
	"errors"
	"fmt"

	"github.com/yndnr/kms-cli/internal/infra/confloader"
)

// EnvPrefix is the prefix of environment overrides (KMS_CLI_SERVER,
// KMS_CLI_TRANSPORT, KMS_CLI_TOKENS__ROOT). Path segments are joined by a
// double underscore, so KMS_CLI_TOKENS__KEYS__MY_NS__K1 sets the token of
// key k1 in namespace my_ns. Variable names are lowercased: tokens of
// names with upper-case letters must come from the config file.
const EnvPrefix = "KMS_CLI_"

// keyDelimiter separates koanf key paths. Namespace and key names may
// contain dots, so a slash is used instead.
const keyDelimiter = "/"

// Load reads the configuration file at path, then applies environment
// overrides and a non-empty server override. Precedence for the server
// address is server > env > file > DefaultServer.
func Load(path, server string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	l := confloader.NewLoader(confloader.WithDelimiter(keyDelimiter))
	err := l.Load(
		confloader.File(path),
		confloader.Env(EnvPrefix),
		confloader.Values("flags", map[string]any{"server": server}),
	)
	if err != nil {
		var le *confloader.LayerError
		if errors.As(err, &le) {
			err = le.Err
		}
		return nil, &LoadError{Path: path, Err: err}
	}

	var cfg Config
	if err := l.Unmarshal(&cfg); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadError reports a configuration file that could not be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("Read config %s failed: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is matches ErrConfig.
func (e *LoadError) Is(target error) bool {
	return target == ErrConfig
}
