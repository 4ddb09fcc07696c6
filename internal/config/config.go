// Package config loads heapcore.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"heapcore/internal/trace"
	"heapcore/internal/vm"
)

// FileName is the configuration file looked up by Find.
const FileName = "heapcore.toml"

// Config mirrors heapcore.toml.
type Config struct {
	VM      VMConfig      `toml:"vm"`
	GC      GCConfig      `toml:"gc"`
	Trace   TraceConfig   `toml:"trace"`
	Journal JournalConfig `toml:"journal"`

	// Path is the file the configuration was read from; empty for defaults.
	Path string `toml:"-"`
}

type VMConfig struct {
	StackSize        int  `toml:"stack_size"`
	MaxHeapObjects   int  `toml:"max_heap_objects"`
	Debug            bool `toml:"debug"`
	NormalizeStrings bool `toml:"normalize_strings"`
}

type GCConfig struct {
	Marking          string `toml:"marking"`
	InitialThreshold int    `toml:"initial_threshold"`
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

type JournalConfig struct {
	Format string `toml:"format"`
	Path   string `toml:"path"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		VM: VMConfig{
			StackSize: vm.DefaultStackSize,
			Debug:     true,
		},
		GC: GCConfig{
			Marking:          vm.MarkDeep.String(),
			InitialThreshold: vm.DefaultThreshold,
		},
		Trace: TraceConfig{
			Level:  trace.LevelOff.String(),
			Mode:   trace.ModeStream.String(),
			Format: "auto",
			Output: "-",
		},
		Journal: JournalConfig{
			Format: "msgpack",
		},
	}
}

// Find walks up from startDir looking for heapcore.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads path on top of the defaults. Keys missing from the file keep
// their default; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads explicit when set, otherwise the nearest heapcore.toml above
// startDir, otherwise the defaults.
func Resolve(explicit, startDir string) (Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks value ranges and enum spellings.
func (c Config) Validate() error {
	if c.VM.StackSize < 0 {
		return fmt.Errorf("[vm].stack_size must not be negative (got %d)", c.VM.StackSize)
	}
	if c.VM.MaxHeapObjects < 0 {
		return fmt.Errorf("[vm].max_heap_objects must not be negative (got %d)", c.VM.MaxHeapObjects)
	}
	if c.GC.InitialThreshold < 0 {
		return fmt.Errorf("[gc].initial_threshold must not be negative (got %d)", c.GC.InitialThreshold)
	}
	if _, err := vm.ParseMarkMode(c.GC.Marking); err != nil {
		return fmt.Errorf("[gc].marking: %w", err)
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		return fmt.Errorf("[trace].level: %w", err)
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		return fmt.Errorf("[trace].mode: %w", err)
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		return fmt.Errorf("[trace].format: %w", err)
	}
	switch strings.ToLower(c.Journal.Format) {
	case "", "msgpack", "cbor", "sqlite":
	default:
		return fmt.Errorf("[journal].format: unsupported format %q (expected msgpack|cbor|sqlite)", c.Journal.Format)
	}
	return nil
}

// VMOptions converts the [vm] and [gc] sections. The tracer and collect hook
// are left for the caller.
func (c Config) VMOptions() (vm.Options, error) {
	marking, err := vm.ParseMarkMode(c.GC.Marking)
	if err != nil {
		return vm.Options{}, err
	}
	return vm.Options{
		StackSize:        c.VM.StackSize,
		MaxHeapObjects:   c.VM.MaxHeapObjects,
		Debug:            c.VM.Debug,
		NormalizeStrings: c.VM.NormalizeStrings,
		Marking:          marking,
		InitialThreshold: c.GC.InitialThreshold,
	}, nil
}

// TracerConfig converts the [trace] section.
func (c Config) TracerConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Trace.Output,
	}, nil
}
