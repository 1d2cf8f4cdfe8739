package config

import "fmt"

// ScopeKind identifies the level of the token tree a command needs.
type ScopeKind int

// Scope kinds.
const (
	ScopeRoot ScopeKind = iota
	ScopeNamespace
	ScopeKey
	ScopeSecret
)

// String returns the scope name.
func (k ScopeKind) String() string {
	switch k {
	case ScopeRoot:
		return "root"
	case ScopeNamespace:
		return "namespace"
	case ScopeKey:
		return "key"
	case ScopeSecret:
		return "secret"
	default:
		return "unknown"
	}
}

// TokenScope names the token that authorizes a command.
type TokenScope struct {
	Kind      ScopeKind
	Namespace string
	Name      string
}

// Root returns the root scope.
func Root() TokenScope {
	return TokenScope{Kind: ScopeRoot}
}

// Namespace returns the scope of namespace ns.
func Namespace(ns string) TokenScope {
	return TokenScope{Kind: ScopeNamespace, Namespace: ns}
}

// Key returns the scope of key name in namespace ns.
func Key(ns, name string) TokenScope {
	return TokenScope{Kind: ScopeKey, Namespace: ns, Name: name}
}

// Secret returns the scope of secret name in namespace ns.
func Secret(ns, name string) TokenScope {
	return TokenScope{Kind: ScopeSecret, Namespace: ns, Name: name}
}

// MissingMessage is the diagnostic printed when the scope's token is absent.
func (s TokenScope) MissingMessage() string {
	switch s.Kind {
	case ScopeNamespace:
		return fmt.Sprintf("Missing namespace token of %s in config", s.Namespace)
	case ScopeKey:
		return fmt.Sprintf("Missing key token of %s.%s in config", s.Namespace, s.Name)
	case ScopeSecret:
		return fmt.Sprintf("Missing secret token of %s.%s in config", s.Namespace, s.Name)
	default:
		return "Missing root token in config"
	}
}

// Resolve looks up the token for scope. A missing intermediate map, a
// missing leaf and an empty string all report false.
func (t TokenTree) Resolve(scope TokenScope) (string, bool) {
	var token string
	switch scope.Kind {
	case ScopeRoot:
		token = t.Root
	case ScopeNamespace:
		token = t.Namespaces[scope.Namespace]
	case ScopeKey:
		token = t.Keys[scope.Namespace][scope.Name]
	case ScopeSecret:
		token = t.Secrets[scope.Namespace][scope.Name]
	}
	return token, token != ""
}
