package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"heapcore/internal/trace"
	"heapcore/internal/vm"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[vm]
stack_size = 64
max_heap_objects = 500

[gc]
marking = "shallow"

[trace]
level = "phase"
output = "trace.ndjson"

[journal]
format = "cbor"
path = "cycles.cbor"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != path {
		t.Fatalf("Path = %q", cfg.Path)
	}
	if cfg.VM.StackSize != 64 || cfg.VM.MaxHeapObjects != 500 {
		t.Fatalf("vm section = %+v", cfg.VM)
	}
	if !cfg.VM.Debug {
		t.Fatal("debug default lost for a key missing from the file")
	}
	if cfg.GC.InitialThreshold != vm.DefaultThreshold {
		t.Fatalf("initial_threshold = %d, want default", cfg.GC.InitialThreshold)
	}

	opts, err := cfg.VMOptions()
	if err != nil {
		t.Fatalf("VMOptions: %v", err)
	}
	if opts.Marking != vm.MarkShallow || opts.StackSize != 64 || opts.MaxHeapObjects != 500 {
		t.Fatalf("options = %+v", opts)
	}

	tc, err := cfg.TracerConfig()
	if err != nil {
		t.Fatalf("TracerConfig: %v", err)
	}
	if tc.Level != trace.LevelPhase || tc.Mode != trace.ModeStream || tc.OutputPath != "trace.ndjson" {
		t.Fatalf("tracer config = %+v", tc)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[vm]
stack_size = 8
stack_depth = 9

[extra]
x = 1
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown keys")
	}
	if !strings.Contains(err.Error(), "vm.stack_depth") || !strings.Contains(err.Error(), "extra") {
		t.Fatalf("error does not name the unknown keys: %v", err)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"negative stack", "[vm]\nstack_size = -1\n", "[vm].stack_size"},
		{"negative limit", "[vm]\nmax_heap_objects = -5\n", "[vm].max_heap_objects"},
		{"bad marking", "[gc]\nmarking = \"lazy\"\n", "[gc].marking"},
		{"bad level", "[trace]\nlevel = \"loud\"\n", "[trace].level"},
		{"bad mode", "[trace]\nmode = \"tape\"\n", "[trace].mode"},
		{"bad journal", "[journal]\nformat = \"xml\"\n", "[journal].format"},
		{"bad toml", "[vm\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root, "[vm]\nstack_size = 16\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	found, ok, err := Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find = %q, %v, %v", found, ok, err)
	}
	if found != path {
		t.Fatalf("Find = %q, want %q", found, path)
	}

	cfg, err := Resolve("", nested)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.VM.StackSize != 16 {
		t.Fatalf("Resolve picked stack_size %d", cfg.VM.StackSize)
	}
}

func TestResolveDefaultsAndExplicit(t *testing.T) {
	empty := t.TempDir()
	// A heapcore.toml further up the real filesystem would be picked up, so
	// only check the explicit path when one exists.
	if _, ok, _ := Find(empty); !ok {
		cfg, err := Resolve("", empty)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Path != "" || cfg.VM.StackSize != vm.DefaultStackSize {
			t.Fatalf("defaults = %+v", cfg)
		}
	}

	other := writeConfig(t, t.TempDir(), "[gc]\ninitial_threshold = 32\n")
	cfg, err := Resolve(other, empty)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GC.InitialThreshold != 32 {
		t.Fatalf("explicit config ignored: %+v", cfg.GC)
	}

	if _, err := Resolve(filepath.Join(empty, "missing.toml"), empty); err == nil {
		t.Fatal("missing explicit config must fail")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
