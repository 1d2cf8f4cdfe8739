package confloader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultDelimiter separates key path segments.
const DefaultDelimiter = "."

// Layer is one configuration source. Layers are merged in order, so a
// later layer overrides keys set by an earlier one.
type Layer struct {
	// Name identifies the layer in errors, e.g. "file kms-cli.json".
	Name     string
	provider func(delim string) koanf.Provider
	parser   koanf.Parser
}

// File reads a JSON file, or YAML for .yaml and .yml.
func File(path string) Layer {
	return Layer{
		Name:     "file " + path,
		provider: func(string) koanf.Provider { return file.Provider(path) },
		parser:   parserFor(path),
	}
}

// EnvSeparator separates key path segments in variable names. A single
// underscore stays part of the segment.
const EnvSeparator = "__"

// Env reads variables starting with prefix. PREFIX_TOKENS__NAMESPACES__MY_NS
// becomes tokens<delim>namespaces<delim>my_ns. Names are lowercased, so
// keys holding upper-case letters can only be set by other layers. An
// empty prefix yields a layer that loads nothing.
func Env(prefix string) Layer {
	if prefix == "" {
		return Layer{Name: "env (disabled)"}
	}
	return Layer{
		Name: "env " + prefix + "*",
		provider: func(delim string) koanf.Provider {
			return env.Provider(prefix, delim, func(s string) string {
				s = strings.ToLower(strings.TrimPrefix(s, prefix))
				return strings.ReplaceAll(s, EnvSeparator, delim)
			})
		},
	}
}

// Values sets keys from a map, nested or flat with delimiter-joined keys.
// Empty string values are skipped so that unset flags do not clear
// settings from earlier layers.
func Values(name string, values map[string]any) Layer {
	set := make(map[string]any, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		set[k] = v
	}
	return Layer{
		Name:     name,
		provider: func(delim string) koanf.Provider { return confmap.Provider(set, delim) },
	}
}

// parserFor picks the koanf parser from the file extension.
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return json.Parser()
	}
}

// LayerError reports the layer that failed to load.
type LayerError struct {
	Layer string
	Err   error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Layer, e.Err)
}

func (e *LayerError) Unwrap() error {
	return e.Err
}

// Loader merges layers into a single key space.
type Loader struct {
	k      *koanf.Koanf
	delim  string
	layers []string
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithDelimiter sets the key path delimiter. Use one that cannot occur in
// key names, e.g. "/" when names contain dots.
func WithDelimiter(delim string) Option {
	return func(l *Loader) {
		l.delim = delim
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{delim: DefaultDelimiter}
	for _, opt := range opts {
		opt(l)
	}
	l.k = koanf.New(l.delim)
	return l
}

// Load merges layers in order. It stops at the first failing layer.
func (l *Loader) Load(layers ...Layer) error {
	for _, layer := range layers {
		if layer.provider == nil {
			continue
		}
		if err := l.k.Load(layer.provider(l.delim), layer.parser); err != nil {
			return &LayerError{Layer: layer.Name, Err: err}
		}
		l.layers = append(l.layers, layer.Name)
	}
	return nil
}

// Unmarshal decodes the merged configuration into target using koanf
// struct tags.
func (l *Loader) Unmarshal(target any) error {
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Layers lists the layers loaded so far, in order.
func (l *Loader) Layers() []string {
	return append([]string(nil), l.layers...)
}
