// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/netscope/internal/core"
)

// Config represents the top-level configuration.
// Maps to the `netscope:` root key in YAML.
type Config struct {
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Sinks   SinksConfig   `mapstructure:"sinks" yaml:"sinks"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ─── Capture ───

// CaptureConfig selects and tunes the frame source.
type CaptureConfig struct {
	Type         string `mapstructure:"type" yaml:"type"`     // pcap | afpacket | file
	Device       string `mapstructure:"device" yaml:"device"` // Interface name or IPv4 address; empty = first usable
	File         string `mapstructure:"file" yaml:"file"`     // Required when type=file
	SnapLen      int    `mapstructure:"snap_len" yaml:"snap_len"`
	BufferSizeMB int    `mapstructure:"buffer_size_mb" yaml:"buffer_size_mb"`
	Promiscuous  bool   `mapstructure:"promiscuous" yaml:"promiscuous"`
	TimeoutMS    int    `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// ─── Subscriber Server ───

// ServerConfig configures the WebSocket subscriber endpoint.
type ServerConfig struct {
	Listen        string `mapstructure:"listen" yaml:"listen"`
	Path          string `mapstructure:"path" yaml:"path"`
	StatusMessage string `mapstructure:"status_message" yaml:"status_message"`
	SendBuffer    int    `mapstructure:"send_buffer" yaml:"send_buffer"` // Per-subscriber record buffer
	WriteTimeout  string `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// WriteTimeoutDuration returns the parsed write timeout. Call after validation.
func (c ServerConfig) WriteTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
	return d
}

// ─── Sinks ───

// SinksConfig holds the built-in subscriber sinks.
type SinksConfig struct {
	Console ConsoleSinkConfig `mapstructure:"console" yaml:"console"`
	Kafka   KafkaSinkConfig   `mapstructure:"kafka" yaml:"kafka"`
}

// ConsoleSinkConfig prints records to stdout.
type ConsoleSinkConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Format  string `mapstructure:"format" yaml:"format"` // text | json
	Buffer  int    `mapstructure:"buffer" yaml:"buffer"`
}

// KafkaSinkConfig publishes records as JSON messages.
type KafkaSinkConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Brokers      []string `mapstructure:"brokers" yaml:"brokers"`
	Topic        string   `mapstructure:"topic" yaml:"topic"`
	BatchSize    int      `mapstructure:"batch_size" yaml:"batch_size"`
	BatchTimeout string   `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	Compression  string   `mapstructure:"compression" yaml:"compression"` // none | gzip | snappy | lz4 | zstd
	Buffer       int      `mapstructure:"buffer" yaml:"buffer"`
}

// BatchTimeoutDuration returns the parsed batch timeout. Call after validation.
func (c KafkaSinkConfig) BatchTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.BatchTimeout)
	return d
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level" yaml:"level"`   // trace / debug / info / warn / error
	Format     string           `mapstructure:"format" yaml:"format"` // json / text / pattern
	Pattern    string           `mapstructure:"pattern" yaml:"pattern"`
	TimeFormat string           `mapstructure:"time_format" yaml:"time_format"`
	Outputs    LogOutputsConfig `mapstructure:"outputs" yaml:"outputs"`
}

// LogOutputsConfig contains log output destinations besides stdout.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`   // MB
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// ─── Loading ───

// rootKey is the YAML root wrapper; env vars use the NETSCOPE_ prefix.
const rootKey = "netscope"

// MinSnapLen is the smallest snap length accepted for live capture.
const MinSnapLen = 65536

// configRoot is the top-level wrapper matching the YAML structure `netscope: ...`.
type configRoot struct {
	Netscope Config `mapstructure:"netscope"`
}

// Load loads configuration from file. An empty path yields defaults plus
// environment overrides (e.g. NETSCOPE_CAPTURE_DEVICE=eth0).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `netscope.` key prefix maps to `NETSCOPE_` via the key replacer
	// (e.g., key "netscope.log.level" → env "NETSCOPE_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Netscope

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var root configRoot
	// Defaults are static and always decode.
	_ = v.Unmarshal(&root)
	cfg := root.Netscope
	_ = cfg.ValidateAndApplyDefaults()
	return &cfg
}

func key(k string) string { return rootKey + "." + k }

// setDefaults sets default values for configuration.
// All keys use the "netscope." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Capture defaults
	v.SetDefault(key("capture.type"), "pcap")
	v.SetDefault(key("capture.device"), "")
	v.SetDefault(key("capture.file"), "")
	v.SetDefault(key("capture.snap_len"), MinSnapLen)
	v.SetDefault(key("capture.buffer_size_mb"), 10)
	v.SetDefault(key("capture.promiscuous"), true)
	v.SetDefault(key("capture.timeout_ms"), 500)

	// Server defaults
	v.SetDefault(key("server.listen"), ":3001")
	v.SetDefault(key("server.path"), "/")
	v.SetDefault(key("server.status_message"), "Connected to sniffer")
	v.SetDefault(key("server.send_buffer"), 256)
	v.SetDefault(key("server.write_timeout"), "5s")

	// Sink defaults
	v.SetDefault(key("sinks.console.enabled"), false)
	v.SetDefault(key("sinks.console.format"), "text")
	v.SetDefault(key("sinks.console.buffer"), 1024)
	v.SetDefault(key("sinks.kafka.enabled"), false)
	v.SetDefault(key("sinks.kafka.brokers"), []string{})
	v.SetDefault(key("sinks.kafka.topic"), "netscope-packets")
	v.SetDefault(key("sinks.kafka.batch_size"), 100)
	v.SetDefault(key("sinks.kafka.batch_timeout"), "100ms")
	v.SetDefault(key("sinks.kafka.compression"), "snappy")
	v.SetDefault(key("sinks.kafka.buffer"), 4096)

	// Metrics defaults
	v.SetDefault(key("metrics.enabled"), false)
	v.SetDefault(key("metrics.listen"), ":9091")
	v.SetDefault(key("metrics.path"), "/metrics")

	// Log defaults
	v.SetDefault(key("log.level"), "info")
	v.SetDefault(key("log.format"), "text")
	v.SetDefault(key("log.pattern"), "%time [%level] %caller: %msg%n")
	v.SetDefault(key("log.time_format"), "2006-01-02 15:04:05")
	v.SetDefault(key("log.outputs.file.enabled"), false)
	v.SetDefault(key("log.outputs.file.path"), "/var/log/netscope/netscope.log")
	v.SetDefault(key("log.outputs.file.rotation.max_size_mb"), 100)
	v.SetDefault(key("log.outputs.file.rotation.max_age_days"), 30)
	v.SetDefault(key("log.outputs.file.rotation.max_backups"), 5)
	v.SetDefault(key("log.outputs.file.rotation.compress"), true)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
// Every failure wraps core.ErrConfigInvalid.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return invalid("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text", "pattern":
	default:
		return invalid("invalid log format: %s (must be json/text/pattern)", cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return invalid("log.outputs.file.path is required when file output is enabled")
	}

	// ── Capture validation ──
	cfg.Capture.Type = strings.ToLower(cfg.Capture.Type)
	switch cfg.Capture.Type {
	case "pcap", "afpacket":
	case "file":
		if cfg.Capture.File == "" {
			return invalid("capture.file is required when capture.type=file")
		}
	default:
		return invalid("unsupported capture.type: %s (must be pcap/afpacket/file)", cfg.Capture.Type)
	}
	if cfg.Capture.SnapLen < MinSnapLen {
		cfg.Capture.SnapLen = MinSnapLen
	}
	if cfg.Capture.BufferSizeMB <= 0 {
		return invalid("capture.buffer_size_mb must be positive, got %d", cfg.Capture.BufferSizeMB)
	}
	if cfg.Capture.TimeoutMS < 0 {
		return invalid("capture.timeout_ms must not be negative, got %d", cfg.Capture.TimeoutMS)
	}

	// ── Server validation ──
	if cfg.Server.Listen == "" {
		return invalid("server.listen is required")
	}
	if !strings.HasPrefix(cfg.Server.Path, "/") {
		cfg.Server.Path = "/" + cfg.Server.Path
	}
	if cfg.Server.SendBuffer <= 0 {
		return invalid("server.send_buffer must be positive, got %d", cfg.Server.SendBuffer)
	}
	if d, err := time.ParseDuration(cfg.Server.WriteTimeout); err != nil || d <= 0 {
		return invalid("invalid server.write_timeout: %q", cfg.Server.WriteTimeout)
	}

	// ── Sink validation ──
	if cfg.Sinks.Console.Enabled {
		if cfg.Sinks.Console.Format != "text" && cfg.Sinks.Console.Format != "json" {
			return invalid("invalid sinks.console.format: %s (must be text/json)", cfg.Sinks.Console.Format)
		}
	}
	if cfg.Sinks.Kafka.Enabled {
		if len(cfg.Sinks.Kafka.Brokers) == 0 {
			return invalid("sinks.kafka.brokers is required when sinks.kafka.enabled=true")
		}
		if cfg.Sinks.Kafka.Topic == "" {
			return invalid("sinks.kafka.topic is required when sinks.kafka.enabled=true")
		}
		if _, err := time.ParseDuration(cfg.Sinks.Kafka.BatchTimeout); err != nil {
			return invalid("invalid sinks.kafka.batch_timeout: %q", cfg.Sinks.Kafka.BatchTimeout)
		}
		switch cfg.Sinks.Kafka.Compression {
		case "", "none", "gzip", "snappy", "lz4", "zstd":
		default:
			return invalid("unsupported sinks.kafka.compression: %s", cfg.Sinks.Kafka.Compression)
		}
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return invalid("metrics.listen is required when metrics.enabled=true")
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), core.ErrConfigInvalid)
}
