package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muurk/wsecho/internal/logging"
	"github.com/muurk/wsecho/internal/protocol"
)

// Config is the effective server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Protocol  ProtocolConfig  `mapstructure:"protocol" yaml:"protocol"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
}

// ServerConfig controls the listener and connection handling.
type ServerConfig struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	Cert           string        `mapstructure:"cert" yaml:"cert"`
	Key            string        `mapstructure:"key" yaml:"key"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ReadBufferSize int           `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	MaxOpenFiles   uint64        `mapstructure:"max_open_files" yaml:"max_open_files"`
	AnalysisDir    string        `mapstructure:"analysis_dir" yaml:"analysis_dir"`
}

// ProtocolConfig controls framing and negotiation.
type ProtocolConfig struct {
	MaxPayload   uint64   `mapstructure:"max_payload" yaml:"max_payload"`
	Version      string   `mapstructure:"version" yaml:"version"`
	Subprotocols []string `mapstructure:"subprotocols" yaml:"subprotocols"`
}

// LogConfig mirrors logging.Options.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Dir        string `mapstructure:"dir" yaml:"dir"`
	Prefix     string `mapstructure:"prefix" yaml:"prefix"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// DiscoveryConfig controls mDNS advertisement.
type DiscoveryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Instance string `mapstructure:"instance" yaml:"instance"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			IdleTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			ReadBufferSize: 4096,
			MaxOpenFiles:   262144,
		},
		Protocol: ProtocolConfig{
			MaxPayload:   protocol.DefaultMaxPayload,
			Version:      "13",
			Subprotocols: []string{},
		},
		Log: LogConfig{
			Level:      "info",
			Prefix:     appName,
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 30,
		},
		Discovery: DiscoveryConfig{
			Instance: appName,
		},
	}
}

// defaults flattens Default into viper keys.
func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"server.host":             d.Server.Host,
		"server.port":             d.Server.Port,
		"server.cert":             d.Server.Cert,
		"server.key":              d.Server.Key,
		"server.idle_timeout":     d.Server.IdleTimeout,
		"server.write_timeout":    d.Server.WriteTimeout,
		"server.read_buffer_size": d.Server.ReadBufferSize,
		"server.max_open_files":   d.Server.MaxOpenFiles,
		"server.analysis_dir":     d.Server.AnalysisDir,
		"protocol.max_payload":    d.Protocol.MaxPayload,
		"protocol.version":        d.Protocol.Version,
		"protocol.subprotocols":   d.Protocol.Subprotocols,
		"log.level":               d.Log.Level,
		"log.dir":                 d.Log.Dir,
		"log.prefix":              d.Log.Prefix,
		"log.max_size_mb":         d.Log.MaxSizeMB,
		"log.max_backups":         d.Log.MaxBackups,
		"log.max_age_days":        d.Log.MaxAgeDays,
		"log.compress":            d.Log.Compress,
		"discovery.enabled":       d.Discovery.Enabled,
		"discovery.instance":      d.Discovery.Instance,
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if (c.Server.Cert == "") != (c.Server.Key == "") {
		errs = append(errs, errors.New("server.cert and server.key must be set together"))
	}
	if c.Server.IdleTimeout <= 0 {
		errs = append(errs, errors.New("server.idle_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}
	if c.Server.ReadBufferSize <= 0 {
		errs = append(errs, errors.New("server.read_buffer_size must be positive"))
	}
	if c.Protocol.MaxPayload == 0 {
		errs = append(errs, errors.New("protocol.max_payload must be positive"))
	}
	if strings.TrimSpace(c.Protocol.Version) == "" {
		errs = append(errs, errors.New("protocol.version must not be empty"))
	}
	if c.Log.Level != "" {
		if _, err := logging.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("log.level: %w", err))
		}
	}
	if c.Discovery.Enabled && c.Discovery.Instance == "" {
		errs = append(errs, errors.New("discovery.instance is required when discovery is enabled"))
	}

	return errors.Join(errs...)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// LoggingOptions converts the log section for logging.Setup.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		Dir:        c.Log.Dir,
		Prefix:     c.Log.Prefix,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
