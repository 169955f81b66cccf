package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// nodeOptions mirrors the shape of the service Options struct.
type nodeOptions struct {
	Config string `help:"Config file path"`

	Port        string        `toml:"server.port" env:"PORT"`
	AuthEnabled bool          `toml:"server.auth_enabled" env:"AUTH_ENABLED"`
	MaxTasks    int           `toml:"effects.max_tasks" env:"MAX_TASKS"`
	StopTimeout time.Duration `toml:"effects.stop_timeout" env:"STOP_TIMEOUT"`
	PWMScale    float64       `toml:"effects.pwm_scale" env:"PWM_SCALE"`
	Modules     []string      `toml:"logging.trace_modules" env:"TRACE_MODULES"`
}

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeTOML(t, `
[server]
port = ":9090"
auth_enabled = true

[effects]
max_tasks = 4
stop_timeout = "750ms"
pwm_scale = 0.5

[logging]
trace_modules = ["effects", "uart"]
`)

	opts := &nodeOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := nodeOptions{
		Config:      path,
		Port:        ":9090",
		AuthEnabled: true,
		MaxTasks:    4,
		StopTimeout: 750 * time.Millisecond,
		PWMScale:    0.5,
		Modules:     []string{"effects", "uart"},
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("LoadConfig() = %+v, want %+v", *opts, want)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("EFFECTNODE_PORT", ":7070")
	t.Setenv("EFFECTNODE_AUTH_ENABLED", "true")
	t.Setenv("EFFECTNODE_MAX_TASKS", "2")
	t.Setenv("EFFECTNODE_STOP_TIMEOUT", "3s")
	t.Setenv("EFFECTNODE_PWM_SCALE", "0.25")
	t.Setenv("EFFECTNODE_TRACE_MODULES", " effects , output ")

	opts := &nodeOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Port != ":7070" || !opts.AuthEnabled || opts.MaxTasks != 2 {
		t.Errorf("scalar env values not applied: %+v", opts)
	}
	if opts.StopTimeout != 3*time.Second {
		t.Errorf("StopTimeout = %v, want 3s", opts.StopTimeout)
	}
	if opts.PWMScale != 0.25 {
		t.Errorf("PWMScale = %v, want 0.25", opts.PWMScale)
	}
	if !reflect.DeepEqual(opts.Modules, []string{"effects", "output"}) {
		t.Errorf("Modules = %q", opts.Modules)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeTOML(t, `
[server]
port = ":9090"

[effects]
max_tasks = 4
stop_timeout = "1s"
`)
	t.Setenv("EFFECTNODE_PORT", ":7070")
	t.Setenv("EFFECTNODE_MAX_TASKS", "6")

	cmd := &cobra.Command{Use: "test"}
	opts := &nodeOptions{Config: path}
	cmd.Flags().IntVar(&opts.MaxTasks, "max-tasks", 8, "")
	if err := cmd.Flags().Set("max-tasks", "1"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"env beats toml", opts.Port, ":7070"},
		{"flag beats env and toml", opts.MaxTasks, 1},
		{"toml beats default", opts.StopTimeout, time.Second},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &nodeOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Port: ":8090"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
	if opts.Port != ":8090" {
		t.Errorf("default overwritten: %q", opts.Port)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	opts := &nodeOptions{Config: writeTOML(t, "[server\nport = ")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":         "port",
		"MaxTasks":     "max-tasks",
		"LoggingLevel": "logging-level",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"effects": map[string]any{
			"stepper": map[string]any{"delay": "10ms"},
			"max":     int64(8),
		},
		"root": "value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "value"},
		{"effects.max", int64(8)},
		{"effects.stepper.delay", "10ms"},
		{"missing", nil},
		{"root.child", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeTOML(t, `
[logging]
level = "warn"
format = "json"
buffer_size = 200
effects = "debug"
uart = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("level/format = %s/%s", cfg.Level, cfg.Format)
	}
	if cfg.BufferSize != 200 {
		t.Errorf("BufferSize = %d, want 200", cfg.BufferSize)
	}
	want := map[string]string{"effects": "debug", "uart": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}

	if def := LoadLoggingConfig(""); def.Level != "info" || def.Format != "text" {
		t.Errorf("default logging config = %+v", def)
	}
}
