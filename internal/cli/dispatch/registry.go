package dispatch

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/yndnr/kms-cli/internal/cli/config"
	"github.com/yndnr/kms-cli/internal/cli/output"
	"github.com/yndnr/kms-cli/internal/rpcstub"
)

// Flag marks a command-specific option.
type Flag uint8

const (
	// FlagAll adds -a: include inactive entries.
	FlagAll Flag = 1 << iota
	// FlagDisable adds -d: disable instead of issuing a new token.
	FlagDisable
	// FlagOutFile adds -o <file>: write the result to a file.
	FlagOutFile
)

// Args are the parsed arguments of one invocation.
type Args struct {
	// Values holds positional arguments keyed by parameter name.
	Values  map[string]string
	All     bool
	Disable bool
	OutFile string
}

// Renderer prints a successful result.
type Renderer func(cc *CommandContext, inv *Invocation, data any) error

// CommandSpec describes one command.
type CommandSpec struct {
	Name      string
	Usage     string
	Params    []string
	Flags     Flag
	Procedure string
	Scope     func(Args) config.TokenScope
	Build     func(*Invocation) (rpcstub.Request, error)
	Render    Renderer
}

// Has reports whether the command accepts flag f.
func (s *CommandSpec) Has(f Flag) bool {
	return s.Flags&f != 0
}

// Path splits the name into its words, e.g. ["key", "import"].
func (s *CommandSpec) Path() []string {
	return strings.Fields(s.Name)
}

// ArgsUsage renders the positional parameters, e.g. "<ns> <name>".
func (s *CommandSpec) ArgsUsage() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = "<" + p + ">"
	}
	return strings.Join(parts, " ")
}

func rootScope(Args) config.TokenScope { return config.Root() }

func nsScope(a Args) config.TokenScope { return config.Namespace(a.Values["ns"]) }

func keyScope(a Args) config.TokenScope { return config.Key(a.Values["ns"], a.Values["key"]) }

func secretScope(a Args) config.TokenScope { return config.Secret(a.Values["ns"], a.Values["key"]) }

var registry = []CommandSpec{
	{
		Name:      "ns list",
		Usage:     "List namespaces",
		Flags:     FlagAll,
		Procedure: "ListNS",
		Scope:     rootScope,
		Build:     func(*Invocation) (rpcstub.Request, error) { return rpcstub.Request{}, nil },
		Render:    renderList(output.NamespaceColumns),
	},
	{
		Name:      "ns create",
		Usage:     "Create a namespace",
		Params:    []string{"name"},
		Procedure: "NewNS",
		Scope:     rootScope,
		Build: func(inv *Invocation) (rpcstub.Request, error) {
			tok, err := inv.IssueToken()
			return rpcstub.Request{"ns": inv.Arg("name"), "token": tok}, err
		},
		Render: renderToken(),
	},
	{
		Name:      "ns reset",
		Usage:     "Reset a namespace token",
		Params:    []string{"name"},
		Flags:     FlagDisable,
		Procedure: "ResetNS",
		Scope:     rootScope,
		Build: func(inv *Invocation) (rpcstub.Request, error) {
			tok, err := inv.IssueToken()
			return rpcstub.Request{"ns": inv.Arg("name"), "token": tok}, err
		},
		Render: renderToken(),
	},
	{
		Name:      "key list",
		Usage:     "List keys in a namespace",
		Params:    []string{"ns"},
		Flags:     FlagAll,
		Procedure: "ListKey",
		Scope:     nsScope,
		Build: func(inv *Invocation) (rpcstub.Request, error) {
			return rpcstub.Request{"ns": inv.Arg("ns")}, nil
		},
		Render: renderList(output.KeyColumns),
	},
	{
		Name:      "key create",
		Usage:     "Create a key in a namespace",
		Params:    []string{"ns", "name", "type"},
		Procedure: "NewKey",
		Scope:     nsScope,
		Build: func(inv *Invocation) (rpcstub.Request, error) {
			tok, err := inv.IssueToken()
			return rpcstub.Request{
				"ns":    inv.Arg("ns"),
				"key":   inv.Arg("name"),
				"type":  inv.Arg("type"),
				"token": tok,
			}, err
		},
		Render: renderToken(),
	},
	{
		Name:      "key import",
		Usage:     "Import a PEM key into a namespace",
		Params:    []string{"ns", "name", "type", "keyfile"},
		Procedure: "ImportKey",
		Scope:     nsScope,
		Build: func(inv *Invocation) (rpcstub.Request, error) {
			keyval, err := inv.ReadFile("keyfile")
			if err != nil {
				return nil, err
			}
			tok, err := inv.IssueToken()
			return rpcstub.Request{
				"ns":     inv.Arg("ns"),
				"key":    inv.Arg("name"),
				"type":   inv.Arg("type"),
				"keyval": string(keyval),
				"token":  tok,
			}, err
		},
		Render: renderToken(),
	},
	{
		Name:      "key reset",
		Usage:     "Reset a key token",
		Params:    []string{"ns", "name"},
		Flags:     FlagDisable,
		Procedure: "ResetKey",
		Scope:     nsScope,
		Build: func(inv *Invocation) (rpcstub.Request, error) {
			tok, err := inv.IssueToken()
			return rpcstub.Request{"ns": inv.Arg("ns"), "key": inv.Arg("name"), "token": tok}, err
		},
		Render: renderToken(),
	},
	{
		Name:      "secret list",
		Usage:     "List secrets in a namespace",
		Params:    []string{"ns"},
		Flags:     FlagAll,
		Procedure: "ListSecret",
		Scope:     nsScope,
		Build: func(inv *Invocation) (rpcstub.Request, error) {
			return rpcstub.Request{"ns": inv.Arg("ns")}, nil
		},
		Render: renderList(output.SecretColumns),
	},
	{
		Name:      "secret create",
		Usage:     "Create a secret from a file",
		Params:    []string{"ns", "name", "secretfile"},
		Procedure: "NewSecret",
		Scope:     nsScope,
		Build: func(inv *Invocation) (rpcstub.Request, error) {
			secret, err := inv.ReadFile("secretfile")
			if err != nil {
				return nil, err
			}
			tok, err := inv.IssueToken()
			return rpcstub.Request{
				"ns":     inv.Arg("ns"),
				"key":    inv.Arg("name"),
				"token":  tok,
				"secret": string(secret),
			}, err
		},
		Render: renderToken(),
	},
	{
		Name:      "secret reset",
		Usage:     "Reset a secret token",
		Params:    []string{"ns", "name"},
		Flags:     FlagDisable,
		Procedure: "ResetSecret",
		Scope:     nsScope,
		Build: func(inv *Invocation) (rpcstub.Request, error) {
			tok, err := inv.IssueToken()
			return rpcstub.Request{"ns": inv.Arg("ns"), "key": inv.Arg("name"), "token": tok}, err
		},
		Render: renderToken(),
	},
	{
		Name:      "encrypt",
		Usage:     "Encrypt a file",
		Params:    []string{"ns", "key", "file"},
		Flags:     FlagOutFile,
		Procedure: "Encrypt",
		Scope:     keyScope,
		Build:     fileRequest("text"),
		Render:    renderRaw,
	},
	{
		Name:      "decrypt",
		Usage:     "Decrypt a file",
		Params:    []string{"ns", "key", "file"},
		Flags:     FlagOutFile,
		Procedure: "Decrypt",
		Scope:     keyScope,
		Build:     fileRequest("cipher"),
		Render:    renderRaw,
	},
	{
		Name:      "hmac",
		Usage:     "Calculate the HMAC of a file",
		Params:    []string{"ns", "key", "file"},
		Procedure: "Hmac",
		Scope:     keyScope,
		Build:     fileRequest("text"),
		Render:    renderHex,
	},
	{
		Name:      "sign",
		Usage:     "Sign a hash",
		Params:    []string{"ns", "key", "hexhash"},
		Flags:     FlagOutFile,
		Procedure: "Sign",
		Scope:     keyScope,
		Build: func(inv *Invocation) (rpcstub.Request, error) {
			hash, err := inv.HexArg("hexhash")
			if err != nil {
				return nil, err
			}
			return rpcstub.Request{"ns": inv.Arg("ns"), "key": inv.Arg("key"), "hash": hash}, nil
		},
		Render: renderRaw,
	},
	{
		Name:      "verify",
		Usage:     "Verify the signature of a hash",
		Params:    []string{"ns", "key", "hexhash", "sigfile"},
		Procedure: "Verify",
		Scope:     keyScope,
		Build: func(inv *Invocation) (rpcstub.Request, error) {
			hash, err := inv.HexArg("hexhash")
			if err != nil {
				return nil, err
			}
			sig, err := inv.ReadFile("sigfile")
			if err != nil {
				return nil, err
			}
			return rpcstub.Request{
				"ns":        inv.Arg("ns"),
				"key":       inv.Arg("key"),
				"hash":      hash,
				"signature": sig,
			}, nil
		},
		Render: renderBool,
	},
	{
		Name:      "get-secret",
		Usage:     "Read a secret",
		Params:    []string{"ns", "key"},
		Procedure: "GetSecret",
		Scope:     secretScope,
		Build: func(inv *Invocation) (rpcstub.Request, error) {
			return rpcstub.Request{"ns": inv.Arg("ns"), "key": inv.Arg("key")}, nil
		},
		Render: renderRaw,
	},
}

// Commands returns the registry in display order.
func Commands() []CommandSpec {
	return append([]CommandSpec(nil), registry...)
}

// Lookup finds a command by its full name, e.g. "key import".
func Lookup(name string) (*CommandSpec, bool) {
	for i := range registry {
		if registry[i].Name == name {
			return &registry[i], true
		}
	}
	return nil, false
}

// fileRequest reads the "file" parameter into field.
func fileRequest(field string) func(*Invocation) (rpcstub.Request, error) {
	return func(inv *Invocation) (rpcstub.Request, error) {
		data, err := inv.ReadFile("file")
		if err != nil {
			return nil, err
		}
		return rpcstub.Request{"ns": inv.Arg("ns"), "key": inv.Arg("key"), field: data}, nil
	}
}

func renderList(columns []output.Column) Renderer {
	return func(cc *CommandContext, inv *Invocation, data any) error {
		return output.RenderList(cc.Out, data, output.ListOptions{
			Format:  cc.Format,
			Columns: columns,
			All:     inv.Args.All,
		})
	}
}

// disabledMessage is printed by every reset -d, whatever the scope.
const disabledMessage = "Namespace disabled"

func renderToken() Renderer {
	return func(cc *CommandContext, inv *Invocation, _ any) error {
		if inv.Args.Disable {
			return output.WriteLine(cc.Out, disabledMessage)
		}
		return output.WriteLine(cc.Out, "Access token: "+inv.Token)
	}
}

func renderRaw(cc *CommandContext, inv *Invocation, data any) error {
	b, err := output.Bytes(data)
	if err != nil {
		return err
	}
	return output.WriteRaw(cc.Out, inv.Args.OutFile, b)
}

func renderHex(cc *CommandContext, _ *Invocation, data any) error {
	b, err := output.Bytes(data)
	if err != nil {
		return err
	}
	return output.WriteHex(cc.Out, b)
}

func renderBool(cc *CommandContext, _ *Invocation, data any) error {
	v, ok := data.(bool)
	if !ok {
		return fmt.Errorf("response holds %T, want bool", data)
	}
	return output.WriteBool(cc.Out, v)
}

// Invocation is one command being built.
type Invocation struct {
	Spec *CommandSpec
	Args Args
	// Token is the access token issued by this invocation, if any.
	Token string

	readFile func(string) ([]byte, error)
	mint     func() (string, error)
}

// Arg returns the positional argument name.
func (inv *Invocation) Arg(name string) string {
	return inv.Args.Values[name]
}

// ReadFile reads the file named by parameter param.
func (inv *Invocation) ReadFile(param string) ([]byte, error) {
	path := inv.Arg(param)
	data, err := inv.readFile(path)
	if err != nil {
		cause := err
		var pe *fs.PathError
		if errors.As(err, &pe) {
			cause = pe.Err
		}
		return nil, ErrInput.WithDetails(fmt.Sprintf("Read file %s failed: %v", path, cause)).WithCause(err)
	}
	return data, nil
}

// HexArg decodes the hex-encoded parameter param.
func (inv *Invocation) HexArg(param string) ([]byte, error) {
	raw := inv.Arg(param)
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, ErrInput.WithDetails(fmt.Sprintf("Invalid hex %s: %v", param, err)).WithCause(err)
	}
	return b, nil
}

// IssueToken mints a fresh access token and remembers it, or returns ""
// when the invocation disables the resource.
func (inv *Invocation) IssueToken() (string, error) {
	if inv.Args.Disable {
		inv.Token = ""
		return "", nil
	}
	tok, err := inv.mint()
	if err != nil {
		return "", ErrInput.WithDetails(fmt.Sprintf("Generate token failed: %v", err)).WithCause(err)
	}
	inv.Token = tok
	return tok, nil
}
