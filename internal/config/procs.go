// Package config loads and watches the process definition file.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ProcConfig defines one managed process.
type ProcConfig struct {
	Name      string            `toml:"name" json:"name"`
	Command   string            `toml:"command" json:"command"`
	Args      []string          `toml:"args,omitempty" json:"args,omitempty"`
	Dir       string            `toml:"dir,omitempty" json:"dir,omitempty"`
	Env       map[string]string `toml:"env,omitempty" json:"env,omitempty"`
	Delimiter string            `toml:"delimiter,omitempty" json:"delimiter,omitempty"`
	Enabled   bool              `toml:"enabled" json:"enabled"`
}

// ProcsConfig is the full process definition file.
type ProcsConfig struct {
	Version int          `toml:"version" json:"version"`
	Procs   []ProcConfig `toml:"proc" json:"procs"`
}

// LoadProcs reads and validates a process definition file. A missing
// file yields an empty config so a node can start before it is
// provisioned.
func LoadProcs(path string) (*ProcsConfig, error) {
	cfg := &ProcsConfig{Version: 1}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read procs config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse procs config: %w", err)
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	seen := make(map[string]bool, len(cfg.Procs))
	for i := range cfg.Procs {
		p := &cfg.Procs[i]
		if p.Name == "" {
			return nil, fmt.Errorf("proc %d: name cannot be empty", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate proc name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Command == "" {
			return nil, fmt.Errorf("proc %q: command cannot be empty", p.Name)
		}
		if p.Delimiter == "" {
			p.Delimiter = "\n"
		}
	}
	return cfg, nil
}

// Enabled returns only the enabled process definitions.
func (c *ProcsConfig) Enabled() []ProcConfig {
	enabled := make([]ProcConfig, 0, len(c.Procs))
	for _, p := range c.Procs {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled
}

// Proc returns the named definition, or false.
func (c *ProcsConfig) Proc(name string) (ProcConfig, bool) {
	for _, p := range c.Procs {
		if p.Name == name {
			return p, true
		}
	}
	return ProcConfig{}, false
}

// Save writes the config back to disk.
func (c *ProcsConfig) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal procs config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write procs config: %w", err)
	}
	return nil
}
