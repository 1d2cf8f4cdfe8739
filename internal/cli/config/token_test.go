package config

import "testing"

func TestTokenTree_Resolve(t *testing.T) {
	tree := TokenTree{
		Root:       "R",
		Namespaces: map[string]string{"ns1": "N1", "blank": ""},
		Keys:       map[string]map[string]string{"ns1": {"k1": "K1"}},
		Secrets:    map[string]map[string]string{"ns1": {"s1": "S1"}},
	}

	tests := []struct {
		name  string
		scope TokenScope
		want  string
		ok    bool
	}{
		{"root", Root(), "R", true},
		{"namespace", Namespace("ns1"), "N1", true},
		{"namespace missing", Namespace("ns2"), "", false},
		{"namespace empty", Namespace("blank"), "", false},
		{"key", Key("ns1", "k1"), "K1", true},
		{"key missing leaf", Key("ns1", "k2"), "", false},
		{"key missing intermediate", Key("ns9", "k1"), "", false},
		{"secret", Secret("ns1", "s1"), "S1", true},
		{"secret under key name", Secret("ns1", "k1"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tree.Resolve(tt.scope)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Resolve() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTokenTree_Resolve_Empty(t *testing.T) {
	var tree TokenTree
	if _, ok := tree.Resolve(Root()); ok {
		t.Error("empty tree should not resolve root")
	}
	if _, ok := tree.Resolve(Secret("a", "b")); ok {
		t.Error("empty tree should not resolve secret")
	}
}

func TestTokenScope_MissingMessage(t *testing.T) {
	tests := []struct {
		scope TokenScope
		want  string
	}{
		{Root(), "Missing root token in config"},
		{Namespace("ns1"), "Missing namespace token of ns1 in config"},
		{Key("ns1", "k1"), "Missing key token of ns1.k1 in config"},
		{Secret("ns1", "s1"), "Missing secret token of ns1.s1 in config"},
	}

	for _, tt := range tests {
		if got := tt.scope.MissingMessage(); got != tt.want {
			t.Errorf("MissingMessage() = %q, want %q", got, tt.want)
		}
	}
}

func TestScopeKind_String(t *testing.T) {
	if ScopeKey.String() != "key" {
		t.Errorf("ScopeKey.String() = %q", ScopeKey.String())
	}
	if ScopeKind(42).String() != "unknown" {
		t.Errorf("unknown kind = %q", ScopeKind(42).String())
	}
}
