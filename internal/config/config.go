// Package config loads the YAML session configuration: the instruction
// budget, trace verbosity, per-syscall overrides, and the scripting entry
// point a session is started with.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SyscallOverride changes how one named syscall is handled, independent of
// whatever the registered handler would otherwise do.
type SyscallOverride struct {
	// Status, when non-nil, is returned in place of running the handler at
	// all — useful for forcing a specific NTSTATUS without implementing the
	// syscall's real semantics.
	Status *uint32 `yaml:"status,omitempty"`
	// Skip, when true, advances past the syscall without invoking its
	// handler and without touching cax.
	Skip bool `yaml:"skip,omitempty"`
}

// Config is the on-disk session configuration.
type Config struct {
	// InstructionBudget caps how many instructions a single Start/Call may
	// run before the engine is forced to stop. Zero means unbounded.
	InstructionBudget uint64 `yaml:"instruction_budget"`

	// Trace holds trace settings parsed from the file. The session does not
	// read them: the per-instruction trace hook is installed only through
	// Session.EnableTrace, and Level is not consulted anywhere.
	Trace struct {
		Enabled bool   `yaml:"enabled"`
		Level   string `yaml:"level"` // "syscalls", "calls", "all"
	} `yaml:"trace"`

	// Syscalls maps a Zw*/Nt* name to the override applied to it.
	Syscalls map[string]SyscallOverride `yaml:"syscalls"`

	// Script is the path to a JS file evaluated before dispatch and on
	// stop, or empty to disable scripting entirely.
	Script string `yaml:"script"`
}

// Default returns the configuration a session runs with when no file is
// supplied: no budget, no tracing, no overrides, no script.
func Default() *Config {
	return &Config{Syscalls: map[string]SyscallOverride{}}
}

// Load reads and parses a YAML configuration file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Override looks up the configured override for a syscall name, if any.
func (c *Config) Override(name string) (SyscallOverride, bool) {
	if c == nil || c.Syscalls == nil {
		return SyscallOverride{}, false
	}
	o, ok := c.Syscalls[name]
	return o, ok
}
