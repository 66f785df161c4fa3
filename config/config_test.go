package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/jlvalue/abi"
	"github.com/wippyai/jlvalue/errors"
)

func isConfigErr(err error) bool {
	return stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput})
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Profile != abi.ProfileWasm32 || c.Layout.WordSize != 4 {
		t.Fatalf("default profile = %q word %d", c.Profile, c.Layout.WordSize)
	}
	if c.Engine.MemoryExport != "memory" || !c.Engine.WASI {
		t.Errorf("engine defaults = %+v", c.Engine)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestParseTOML(t *testing.T) {
	src := `
profile = "native64"

[layout.array]
nrows = 40

[engine]
init = "jl_init"
wasi = false

[handles]
jl_nothing = "jl_nothing_value"

[symbols]
jl_main_module = 4096

[log]
level = "debug"
`
	c, err := Parse([]byte(src), FormatTOML)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if c.Layout.WordSize != 8 {
		t.Errorf("word size = %d, want 8 from profile", c.Layout.WordSize)
	}
	if c.Layout.Array.NRows != 40 {
		t.Errorf("nrows = %d, want override 40", c.Layout.Array.NRows)
	}
	if c.Layout.Array.Length != 8 {
		t.Errorf("array length offset = %d, want profile default 8", c.Layout.Array.Length)
	}
	if c.Engine.InitExport != "jl_init" || c.Engine.WASI {
		t.Errorf("engine = %+v", c.Engine)
	}
	if c.Engine.MallocExport != "malloc" {
		t.Errorf("malloc default lost: %q", c.Engine.MallocExport)
	}
	if c.Handles["jl_nothing"] != "jl_nothing_value" {
		t.Errorf("handles = %v", c.Handles)
	}
	if c.Symbols["jl_main_module"] != 4096 {
		t.Errorf("symbols = %v", c.Symbols)
	}
}

func TestParseYAML(t *testing.T) {
	src := `
engine:
  malloc: jl_malloc
  free: jl_free
log:
  level: info
  encoding: json
`
	c, err := Parse([]byte(src), FormatYAML)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if c.Profile != abi.ProfileWasm32 {
		t.Errorf("profile = %q", c.Profile)
	}
	if c.Engine.MallocExport != "jl_malloc" || c.Engine.FreeExport != "jl_free" {
		t.Errorf("engine = %+v", c.Engine)
	}
	if c.Engine.MemoryExport != "memory" {
		t.Errorf("memory default lost: %q", c.Engine.MemoryExport)
	}
}

func TestParseEmpty(t *testing.T) {
	for _, f := range []Format{FormatTOML, FormatYAML} {
		c, err := Parse(nil, f)
		if err != nil {
			t.Fatalf("%s: Parse(empty) = %v", f, err)
		}
		if c.Layout != Default().Layout {
			t.Errorf("%s: empty file changed layout", f)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		src    string
	}{
		{"unknown profile", FormatTOML, `profile = "arm17"`},
		{"unknown toml key", FormatTOML, "[engine]\nmallocc = \"x\""},
		{"unknown yaml key", FormatYAML, "engine:\n  mallocc: x\n"},
		{"bad word size", FormatTOML, "[layout]\nword_size = 2"},
		{"half allocator", FormatYAML, "engine:\n  free: \"\"\n"},
		{"bad level", FormatTOML, "[log]\nlevel = \"loud\""},
		{"bad encoding", FormatTOML, "[log]\nencoding = \"xml\""},
		{"syntax", FormatTOML, "profile = "},
		{"unknown format", Format("ini"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), tt.format)
			if err == nil {
				t.Fatal("Parse() succeeded")
			}
			if !isConfigErr(err) {
				t.Errorf("error %v is not a config error", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jl.yml")
	if err := os.WriteFile(path, []byte("profile: native64\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if c.Layout.WordSize != 8 {
		t.Errorf("word size = %d", c.Layout.WordSize)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("Load(missing) succeeded")
	}
	if _, err := Load(filepath.Join(dir, "jl.json")); !isConfigErr(err) {
		t.Errorf("Load(.json) = %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	c, err := ForProfile(abi.ProfileNative64)
	if err != nil {
		t.Fatal(err)
	}
	c.Engine.InitExport = "_initialize"
	c.Handles = map[string]string{"jl_main_module": "main_mod"}

	for _, f := range []Format{FormatTOML, FormatYAML} {
		data, err := c.Encode(f)
		if err != nil {
			t.Fatalf("%s: Encode() = %v", f, err)
		}
		got, err := Parse(data, f)
		if err != nil {
			t.Fatalf("%s: Parse(Encode()) = %v\n%s", f, err, data)
		}
		if got.Layout != c.Layout || got.Engine != c.Engine {
			t.Errorf("%s: round trip changed layout or engine", f)
		}
		if got.Handles["jl_main_module"] != "main_mod" {
			t.Errorf("%s: handles = %v", f, got.Handles)
		}
	}
}

func TestLogger(t *testing.T) {
	c := Default()
	c.Log.Level = "error"
	l, err := c.Logger()
	if err != nil {
		t.Fatalf("Logger() = %v", err)
	}
	if l.Core().Enabled(-1) {
		t.Error("debug enabled at error level")
	}
	c.Log.Level = "nope"
	if _, err := c.Logger(); err == nil {
		t.Error("Logger() accepted bad level")
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{
		"a.toml": FormatTOML, "b.YAML": FormatYAML, "c.yml": FormatYAML,
	} {
		got, err := FormatOf(path)
		if err != nil || got != want {
			t.Errorf("FormatOf(%q) = %q, %v", path, got, err)
		}
	}
}
