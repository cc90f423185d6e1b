package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "procs.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadProcs(t *testing.T) {
	path := writeConfig(t, `
version = 1

[[proc]]
name = "worker"
command = "cat"
args = ["-u"]
enabled = true

[[proc]]
name = "csv"
command = "tail"
args = ["-f", "/var/log/data.csv"]
delimiter = ";"
enabled = false

[proc.env]
LANG = "C"
`)

	cfg, err := LoadProcs(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Procs) != 2 {
		t.Fatalf("procs = %d, want 2", len(cfg.Procs))
	}

	worker, ok := cfg.Proc("worker")
	if !ok {
		t.Fatal("missing proc worker")
	}
	if worker.Command != "cat" || len(worker.Args) != 1 || worker.Args[0] != "-u" {
		t.Errorf("worker = %+v", worker)
	}
	if worker.Delimiter != "\n" {
		t.Errorf("default delimiter = %q, want newline", worker.Delimiter)
	}

	csv, _ := cfg.Proc("csv")
	if csv.Delimiter != ";" {
		t.Errorf("csv delimiter = %q, want %q", csv.Delimiter, ";")
	}

	enabled := cfg.Enabled()
	if len(enabled) != 1 || enabled[0].Name != "worker" {
		t.Errorf("enabled = %+v, want [worker]", enabled)
	}
}

func TestLoadProcsMissingFile(t *testing.T) {
	cfg, err := LoadProcs(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if len(cfg.Procs) != 0 || cfg.Version != 1 {
		t.Errorf("got %+v, want empty v1 config", cfg)
	}
}

func TestLoadProcsValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{
			"missing name",
			"[[proc]]\ncommand = \"cat\"\n",
			"name cannot be empty",
		},
		{
			"missing command",
			"[[proc]]\nname = \"x\"\n",
			"command cannot be empty",
		},
		{
			"duplicate names",
			"[[proc]]\nname = \"x\"\ncommand = \"cat\"\n[[proc]]\nname = \"x\"\ncommand = \"cat\"\n",
			"duplicate proc name",
		},
		{
			"bad toml",
			"[[proc\n",
			"failed to parse",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProcs(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("err = %v, want containing %q", err, tt.errPart)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procs.toml")
	cfg := &ProcsConfig{
		Version: 1,
		Procs: []ProcConfig{
			{Name: "a", Command: "cat", Delimiter: "\n", Enabled: true},
		},
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadProcs(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Procs) != 1 || loaded.Procs[0].Name != "a" {
		t.Errorf("loaded = %+v", loaded)
	}
}
