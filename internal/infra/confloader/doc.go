// Package confloader merges configuration layers with koanf.
//
// A Loader applies layers in order, later ones overriding earlier ones.
// The CLI uses three: the configuration file (YAML for .yaml and .yml,
// JSON otherwise), environment variables with a prefix, and values from
// command-line flags.
//
// The key delimiter is configurable so that map keys containing dots
// (namespace and key names) survive flattening.
package confloader
