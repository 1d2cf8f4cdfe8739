// Package output renders command results for kms-cli.
//
// List results are printed as an aligned table followed by an item count,
// or encoded as JSON or YAML. Cryptographic results are written as raw
// bytes (to stdout or a file), as lowercase hex, or as true/false.
package output
