// Package config loads the kms-cli configuration file and resolves the
// bearer token that authorizes each command.
//
// The file holds the server address, the transport and a token tree:
//
//	{
//	  "server": "127.0.0.1:5000",
//	  "transport": "grpc",
//	  "tokens": {
//	    "root": "...",
//	    "namespaces": {"ns1": "..."},
//	    "keys": {"ns1": {"k1": "..."}},
//	    "secrets": {"ns1": {"s1": "..."}}
//	  }
//	}
//
// Configuration is loaded fresh for every command and never written back.
package config
