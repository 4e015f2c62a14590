package config

// Configuration loading and validation for cipstack. Files are YAML or TOML,
// chosen by extension; keys missing from a file keep their defaults.

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/tturner/cipstack/internal/cip/connection"
	"github.com/tturner/cipstack/internal/cip/pccc"
	"github.com/tturner/cipstack/internal/errors"
	"github.com/tturner/cipstack/internal/logging"
)

// TargetConfig identifies the device.
type TargetConfig struct {
	IP        string `yaml:"ip" toml:"ip"`
	Port      int    `yaml:"port" toml:"port"`
	Connected bool   `yaml:"connected" toml:"connected"`
	TimeoutMs int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

// NetworkConfig is the network connection parameter word of a Forward Open.
type NetworkConfig struct {
	RedundantOwner uint8  `yaml:"redundant_owner" toml:"redundant_owner"`
	Type           uint8  `yaml:"type" toml:"type"`
	Priority       uint8  `yaml:"priority" toml:"priority"`
	SizeType       uint8  `yaml:"size_type" toml:"size_type"`
	MaximumSize    uint16 `yaml:"maximum_size" toml:"maximum_size"`
}

// TransportConfig is the transport class/trigger byte of a Forward Open.
type TransportConfig struct {
	Class             uint8 `yaml:"class" toml:"class"`
	ProductionTrigger uint8 `yaml:"production_trigger" toml:"production_trigger"`
	Direction         uint8 `yaml:"direction" toml:"direction"`
}

// ConnectionConfig configures the CIP connection.
type ConnectionConfig struct {
	Network             NetworkConfig   `yaml:"network" toml:"network"`
	Transport           TransportConfig `yaml:"transport" toml:"transport"`
	VendorID            uint16          `yaml:"vendor_id" toml:"vendor_id"`
	OriginatorSerial    uint32          `yaml:"originator_serial" toml:"originator_serial"`
	TimeoutMultiplier   uint8           `yaml:"timeout_multiplier" toml:"timeout_multiplier"`
	OToTRPIMicros       uint32          `yaml:"o_to_t_rpi_us" toml:"o_to_t_rpi_us"`
	TToORPIMicros       uint32          `yaml:"t_to_o_rpi_us" toml:"t_to_o_rpi_us"`
	RouteHex            string          `yaml:"route_hex,omitempty" toml:"route_hex,omitempty"`
	DisconnectTimeoutMs int             `yaml:"disconnect_timeout_ms" toml:"disconnect_timeout_ms"`
}

// PCCCConfig is the requester ID sent with Execute PCCC.
type PCCCConfig struct {
	VendorID     uint16 `yaml:"vendor_id" toml:"vendor_id"`
	SerialNumber uint32 `yaml:"serial_number" toml:"serial_number"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// CaptureConfig enables the pcap recorder when File is set.
type CaptureConfig struct {
	File string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// MetricsConfig enables per-request metrics when File is set. The file is
// CSV unless it ends in .json or .jsonl.
type MetricsConfig struct {
	File string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// Config is the complete client configuration.
type Config struct {
	Target     TargetConfig     `yaml:"target" toml:"target"`
	Connection ConnectionConfig `yaml:"connection" toml:"connection"`
	PCCC       PCCCConfig       `yaml:"pccc" toml:"pccc"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
	Capture    CaptureConfig    `yaml:"capture" toml:"capture"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
}

// CreateDefaultConfig returns the configuration used for keys a file omits.
func CreateDefaultConfig() *Config {
	defaults := connection.DefaultOptions()
	return &Config{
		Target: TargetConfig{
			IP:        "127.0.0.1",
			Port:      44818,
			TimeoutMs: 5000,
		},
		Connection: ConnectionConfig{
			Network: NetworkConfig{
				Type:        defaults.Network.Type,
				Priority:    defaults.Network.Priority,
				SizeType:    defaults.Network.SizeType,
				MaximumSize: defaults.Network.MaximumSize,
			},
			Transport: TransportConfig{
				Class:             defaults.Transport.Class,
				ProductionTrigger: defaults.Transport.Trigger,
				Direction:         defaults.Transport.Direction,
			},
			VendorID:            defaults.VendorID,
			OriginatorSerial:    defaults.OriginatorSerial,
			TimeoutMultiplier:   defaults.TimeoutMultiplier,
			OToTRPIMicros:       defaults.OToTRPI,
			TToORPIMicros:       defaults.TToORPI,
			DisconnectTimeoutMs: int(defaults.DisconnectTimeout / time.Millisecond),
		},
		PCCC: PCCCConfig{
			VendorID:     pccc.DefaultVendorID,
			SerialNumber: pccc.DefaultSerialNumber,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Marshal encodes cfg in the format matching path's extension.
func Marshal(cfg *Config, path string) ([]byte, error) {
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(cfg)
}

// WriteDefaultConfig writes the default configuration to path.
func WriteDefaultConfig(path string) error {
	data, err := Marshal(CreateDefaultConfig(), path)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadConfig reads and validates a configuration file. If the file doesn't
// exist and autoCreate is true, the default configuration is written first.
func LoadConfig(path string, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.WrapConfigError(fmt.Errorf("read config file: %w", err), path)
		}
		if !autoCreate {
			return nil, errors.WrapConfigError(fmt.Errorf("config file not found: %s", path), path)
		}
		if err := WriteDefaultConfig(path); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.WrapConfigError(fmt.Errorf("read created config file: %w", err), path)
		}
	}

	cfg := CreateDefaultConfig()
	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errors.WrapConfigError(fmt.Errorf("parse TOML: %w", err), path)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("validate config: %w", err), path)
	}
	return cfg, nil
}

// ValidateConfig checks ranges the connection and logger would reject later.
func ValidateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Target.IP) == "" {
		return fmt.Errorf("target.ip is required")
	}
	if cfg.Target.Port <= 0 || cfg.Target.Port > 65535 {
		return fmt.Errorf("target.port must be 1-65535, got %d", cfg.Target.Port)
	}
	if cfg.Target.TimeoutMs < 0 {
		return fmt.Errorf("target.timeout_ms must be >= 0")
	}

	c := cfg.Connection
	if c.Network.Type > connection.TypePointToPoint {
		return fmt.Errorf("connection.network.type must be 0-2, got %d", c.Network.Type)
	}
	if c.Network.Priority > connection.PriorityUrgent {
		return fmt.Errorf("connection.network.priority must be 0-3, got %d", c.Network.Priority)
	}
	if c.Network.RedundantOwner > 1 || c.Network.SizeType > 1 {
		return fmt.Errorf("connection.network.redundant_owner and size_type must be 0 or 1")
	}
	if c.Network.MaximumSize == 0 {
		return fmt.Errorf("connection.network.maximum_size must be > 0")
	}
	if c.DisconnectTimeoutMs < 0 {
		return fmt.Errorf("connection.disconnect_timeout_ms must be >= 0")
	}
	if _, err := (connection.Transport{Class: c.Transport.Class, Trigger: c.Transport.ProductionTrigger, Direction: c.Transport.Direction}).Code(); err != nil {
		return fmt.Errorf("connection.transport: %w", err)
	}
	if c.TimeoutMultiplier > 7 {
		return fmt.Errorf("connection.timeout_multiplier must be 0-7, got %d", c.TimeoutMultiplier)
	}
	if _, err := c.route(); err != nil {
		return err
	}

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if f := cfg.Logging.Format; f != "" && f != "text" && f != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got '%s'", f)
	}
	return nil
}

func (c ConnectionConfig) route() ([]byte, error) {
	s := strings.ReplaceAll(strings.TrimSpace(c.RouteHex), " ", "")
	if s == "" {
		return nil, nil
	}
	route, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("connection.route_hex: %w", err)
	}
	if len(route)%2 != 0 {
		return nil, fmt.Errorf("connection.route_hex must be a padded path with an even byte count, got %d bytes", len(route))
	}
	return route, nil
}

// Address returns the target as host:port.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Target.IP, c.Target.Port)
}

// Timeout returns the per-operation timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Target.TimeoutMs) * time.Millisecond
}

// ToConnectionOptions converts the connection section. The route must already
// have passed ValidateConfig.
func (c *Config) ToConnectionOptions() connection.Options {
	cc := c.Connection
	route, _ := cc.route()
	return connection.Options{
		Network: &connection.NetworkParameters{
			RedundantOwner: cc.Network.RedundantOwner,
			Type:           cc.Network.Type,
			Priority:       cc.Network.Priority,
			SizeType:       cc.Network.SizeType,
			MaximumSize:    cc.Network.MaximumSize,
		},
		Transport: &connection.Transport{
			Class:     cc.Transport.Class,
			Trigger:   cc.Transport.ProductionTrigger,
			Direction: cc.Transport.Direction,
		},
		VendorID:          cc.VendorID,
		OriginatorSerial:  cc.OriginatorSerial,
		TimeoutMultiplier: cc.TimeoutMultiplier,
		OToTRPI:           cc.OToTRPIMicros,
		TToORPI:           cc.TToORPIMicros,
		Route:             route,
		DisconnectTimeout: time.Duration(cc.DisconnectTimeoutMs) * time.Millisecond,
	}
}

// ToPCCCOptions converts the pccc section.
func (c *Config) ToPCCCOptions() pccc.Options {
	return pccc.Options{VendorID: c.PCCC.VendorID, SerialNumber: c.PCCC.SerialNumber}
}
