// Package main provides the entry point for kms-cli.
//
// kms-cli is a command-line client for a remote key management service.
// It manages namespaces, keys and secrets and runs cryptographic
// operations on the server, authorizing each call with the token of the
// narrowest scope configured for it.
//
// Usage:
//
//	kms-cli [global options] <command> [options] <args>
//	kms-cli ns create -c kms-cli.json ns1
//	kms-cli encrypt -o plain.enc ns1 k1 plain.txt
//	kms-cli                      # interactive shell
package main
