package confloader

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type testConfig struct {
	Server string `koanf:"server"`
	Tokens struct {
		Root       string            `koanf:"root"`
		Namespaces map[string]string `koanf:"namespaces"`
	} `koanf:"tokens"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func decode(t *testing.T, l *Loader) testConfig {
	t.Helper()
	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return cfg
}

func TestNewLoader_Delimiter(t *testing.T) {
	if l := NewLoader(); l.delim != DefaultDelimiter {
		t.Errorf("delim = %q, want %q", l.delim, DefaultDelimiter)
	}
	if l := NewLoader(WithDelimiter("/")); l.delim != "/" {
		t.Errorf("delim = %q, want /", l.delim)
	}
}

func TestLoader_File(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"json", "kms-cli.json", `{"server":"10.0.0.1:5000","tokens":{"root":"R"}}`},
		{"yaml", "kms-cli.yaml", "server: \"10.0.0.1:5000\"\ntokens:\n  root: R\n"},
		{"yml", "kms-cli.yml", "server: \"10.0.0.1:5000\"\ntokens:\n  root: R\n"},
		{"no extension", "kmsrc", `{"server":"10.0.0.1:5000","tokens":{"root":"R"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader()
			if err := l.Load(File(writeFile(t, tt.file, tt.content))); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			cfg := decode(t, l)
			if cfg.Server != "10.0.0.1:5000" {
				t.Errorf("Server = %q", cfg.Server)
			}
			if cfg.Tokens.Root != "R" {
				t.Errorf("Tokens.Root = %q", cfg.Tokens.Root)
			}
		})
	}
}

func TestLoader_File_NotFound(t *testing.T) {
	l := NewLoader()
	err := l.Load(File("/nonexistent/config.json"))

	var le *LayerError
	if !errors.As(err, &le) {
		t.Fatalf("Load() error = %v, want *LayerError", err)
	}
	if le.Layer != "file /nonexistent/config.json" {
		t.Errorf("Layer = %q", le.Layer)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error should wrap fs.ErrNotExist, got %v", err)
	}
}

func TestLoader_File_Invalid(t *testing.T) {
	path := writeFile(t, "broken.json", `{"server": `)
	if err := NewLoader().Load(File(path)); err == nil {
		t.Error("Load() should fail on invalid JSON")
	}
}

func TestLoader_Delimiter_KeepsDottedNames(t *testing.T) {
	path := writeFile(t, "kms-cli.json", `{"tokens":{"namespaces":{"prod.eu":"N"}}}`)

	l := NewLoader(WithDelimiter("/"))
	if err := l.Load(File(path)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := cfg.Tokens.Namespaces["prod.eu"]; got != "N" {
		t.Errorf("namespaces[prod.eu] = %q, want N (namespaces: %v)", got, cfg.Tokens.Namespaces)
	}
}

func TestLoader_Env(t *testing.T) {
	t.Setenv("KMS_CLI_SERVER", "127.0.0.1:7000")
	t.Setenv("KMS_CLI_TOKENS__ROOT", "from-env")

	l := NewLoader()
	if err := l.Load(Env("KMS_CLI_")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg := decode(t, l)
	if cfg.Server != "127.0.0.1:7000" {
		t.Errorf("Server = %q", cfg.Server)
	}
	if cfg.Tokens.Root != "from-env" {
		t.Errorf("Tokens.Root = %q", cfg.Tokens.Root)
	}
}

func TestLoader_Env_UnderscoreInName(t *testing.T) {
	t.Setenv("KMS_CLI_TOKENS__NAMESPACES__MY_NS", "N")

	l := NewLoader(WithDelimiter("/"))
	if err := l.Load(Env("KMS_CLI_")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg := decode(t, l)
	if got := cfg.Tokens.Namespaces["my_ns"]; got != "N" {
		t.Errorf("namespaces[my_ns] = %q, want N (namespaces: %v)", got, cfg.Tokens.Namespaces)
	}
}

func TestLoader_Env_Disabled(t *testing.T) {
	t.Setenv("KMS_CLI_SERVER", "127.0.0.1:7000")

	l := NewLoader()
	if err := l.Load(Env("")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg := decode(t, l); cfg.Server != "" {
		t.Errorf("Server = %q, want empty with env disabled", cfg.Server)
	}
	if len(l.Layers()) != 0 {
		t.Errorf("Layers() = %v, want none", l.Layers())
	}
}

func TestLoader_Priority(t *testing.T) {
	path := writeFile(t, "kms-cli.json", `{"server":"from-file:5000","tokens":{"root":"file-root"}}`)
	t.Setenv("KMS_CLI_SERVER", "from-env:5000")

	tests := []struct {
		name string
		flag string
		want string
	}{
		{"env overrides file", "", "from-env:5000"},
		{"flag overrides env", "from-flag:5000", "from-flag:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(WithDelimiter("/"))
			err := l.Load(File(path), Env("KMS_CLI_"), Values("flags", map[string]any{"server": tt.flag}))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			var cfg testConfig
			if err := l.Unmarshal(&cfg); err != nil {
				t.Fatal(err)
			}
			if cfg.Server != tt.want {
				t.Errorf("Server = %q, want %q", cfg.Server, tt.want)
			}
			if cfg.Tokens.Root != "file-root" {
				t.Errorf("Tokens.Root = %q, later layers should keep file keys", cfg.Tokens.Root)
			}
		})
	}
}

func TestLoader_Layers(t *testing.T) {
	path := writeFile(t, "kms-cli.json", `{}`)

	l := NewLoader()
	if err := l.Load(File(path), Values("flags", nil)); err != nil {
		t.Fatal(err)
	}
	want := []string{"file " + path, "flags"}
	if got := l.Layers(); !reflect.DeepEqual(got, want) {
		t.Errorf("Layers() = %v, want %v", got, want)
	}
}

func TestValues_Flat(t *testing.T) {
	l := NewLoader(WithDelimiter("/"))
	if err := l.Load(Values("flags", map[string]any{"tokens/root": "R"})); err != nil {
		t.Fatal(err)
	}
	if cfg := decode(t, l); cfg.Tokens.Root != "R" {
		t.Errorf("Tokens.Root = %q, want R", cfg.Tokens.Root)
	}
}
