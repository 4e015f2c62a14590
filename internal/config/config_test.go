package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing ip", mutate: func(c *Config) { c.Target.IP = " " }, wantErr: "target.ip"},
		{name: "bad port", mutate: func(c *Config) { c.Target.Port = 70000 }, wantErr: "target.port"},
		{name: "network type", mutate: func(c *Config) { c.Connection.Network.Type = 3 }, wantErr: "network.type"},
		{name: "priority", mutate: func(c *Config) { c.Connection.Network.Priority = 4 }, wantErr: "network.priority"},
		{name: "size type", mutate: func(c *Config) { c.Connection.Network.SizeType = 2 }, wantErr: "size_type"},
		{name: "zero size", mutate: func(c *Config) { c.Connection.Network.MaximumSize = 0 }, wantErr: "maximum_size"},
		{name: "transport class", mutate: func(c *Config) { c.Connection.Transport.Class = 4 }, wantErr: "connection.transport"},
		{name: "multiplier", mutate: func(c *Config) { c.Connection.TimeoutMultiplier = 8 }, wantErr: "timeout_multiplier"},
		{name: "route not hex", mutate: func(c *Config) { c.Connection.RouteHex = "zz" }, wantErr: "route_hex"},
		{name: "route odd length", mutate: func(c *Config) { c.Connection.RouteHex = "010203" }, wantErr: "even byte count"},
		{name: "route ok", mutate: func(c *Config) { c.Connection.RouteHex = "01 00" }},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
		{name: "log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CreateDefaultConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateConfig() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("ValidateConfig() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cipstack.yaml")
	content := `
target:
  ip: "10.0.0.20"
  connected: true
connection:
  network:
    maximum_size: 500
  route_hex: "0100"
logging:
  level: debug
metrics:
  file: run.csv
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Target.IP != "10.0.0.20" || !cfg.Target.Connected {
		t.Errorf("target = %+v", cfg.Target)
	}
	if cfg.Metrics.File != "run.csv" {
		t.Errorf("metrics file = %q", cfg.Metrics.File)
	}
	// Keys the file omits keep their defaults.
	if cfg.Target.Port != 44818 || cfg.Connection.VendorID != 0x1339 || cfg.Connection.Network.Type != 2 {
		t.Errorf("defaults lost: port %d vendor %#x type %d", cfg.Target.Port, cfg.Connection.VendorID, cfg.Connection.Network.Type)
	}
	if cfg.Address() != "10.0.0.20:44818" {
		t.Errorf("Address = %q", cfg.Address())
	}

	opts := cfg.ToConnectionOptions()
	if opts.Network.MaximumSize != 500 || opts.Network.Large() {
		t.Errorf("network = %+v", opts.Network)
	}
	if !bytes.Equal(opts.Route, []byte{0x01, 0x00}) {
		t.Errorf("route = % X", opts.Route)
	}
	if opts.DisconnectTimeout != 10*time.Second {
		t.Errorf("disconnect timeout = %v", opts.DisconnectTimeout)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("connection options invalid: %v", err)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cipstack.toml")
	content := `
[target]
ip = "192.168.1.10"
port = 2222
timeout_ms = 1500

[connection]
timeout_multiplier = 3
o_to_t_rpi_us = 500000

[connection.transport]
class = 1
production_trigger = 0
direction = 0

[pccc]
vendor_id = 7
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Address() != "192.168.1.10:2222" || cfg.Timeout() != 1500*time.Millisecond {
		t.Errorf("target = %+v", cfg.Target)
	}
	opts := cfg.ToConnectionOptions()
	if opts.TimeoutMultiplier != 3 || opts.OToTRPI != 500000 || opts.TToORPI != 2000000 {
		t.Errorf("options = %+v", opts)
	}
	if code, _ := opts.Transport.Code(); code != 0x01 {
		t.Errorf("transport code = 0x%02X, want 0x01", code)
	}
	if p := cfg.ToPCCCOptions(); p.VendorID != 7 || p.SerialNumber != 0x01020304 {
		t.Errorf("pccc = %+v", p)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := LoadConfig(path, false); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigAutoCreate(t *testing.T) {
	for _, name := range []string{"auto.yaml", "auto.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg, err := LoadConfig(path, true)
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("default config not written: %v", err)
			}
			want := CreateDefaultConfig()
			if cfg.Target != want.Target || cfg.Connection != want.Connection || cfg.Logging != want.Logging {
				t.Errorf("loaded %+v, want defaults %+v", cfg, want)
			}
		})
	}
}

func TestLoadConfigParseError(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"bad.yaml": "target: [",
		"bad.toml": "[target\nip = 1",
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadConfig(path, false); err == nil {
			t.Errorf("%s: expected parse error", name)
		}
	}
}
