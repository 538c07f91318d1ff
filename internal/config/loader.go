package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WSECHO_SERVER_PORT.
const EnvPrefix = "WSECHO"

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"host":         "server.host",
	"port":         "server.port",
	"cert":         "server.cert",
	"key":          "server.key",
	"idle-timeout": "server.idle_timeout",
	"analysis-dir": "server.analysis_dir",
	"max-payload":  "protocol.max_payload",
	"subprotocol":  "protocol.subprotocols",
	"log-level":    "log.level",
	"log-dir":      "log.dir",
	"discovery":    "discovery.enabled",
}

// RegisterFlags adds the server flags to fs with their default values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("host", d.Server.Host, "Host to bind to (empty = all interfaces)")
	fs.IntP("port", "p", d.Server.Port, "Port to listen on")
	fs.String("cert", d.Server.Cert, "Path to TLS certificate (enables TLS with --key)")
	fs.String("key", d.Server.Key, "Path to TLS private key")
	fs.Duration("idle-timeout", d.Server.IdleTimeout, "Close connections idle for this long")
	fs.String("analysis-dir", d.Server.AnalysisDir, "Directory for JSONL frame captures (empty = disabled)")
	fs.Uint64("max-payload", d.Protocol.MaxPayload, "Largest accepted frame payload in bytes")
	fs.StringSlice("subprotocol", nil, "Subprotocols to accept; the first one the client offers is selected")
	fs.StringP("log-level", "l", d.Log.Level, "Log level (debug, info, warn, error)")
	fs.String("log-dir", d.Log.Dir, "Directory for rotated log files (empty = stdout only)")
	fs.Bool("discovery", d.Discovery.Enabled, "Advertise the server over mDNS")
}

// NewViper returns a viper instance with defaults, environment overrides and
// any flags from fs that RegisterFlags defined.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}
	return v, nil
}

// Load reads the config file into v and decodes the result. With an empty
// file, wsecho.yaml is looked up in the working directory and the user
// config directory; a missing file is not an error in that case.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(appName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return Decode(v)
}

// Decode converts the current viper state into a validated Config.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	v        *viper.Viper
	onChange func(*Config)
	onError  func(error)

	mu      sync.Mutex
	stopped bool
}

// Watch starts watching the file v was loaded from. onChange receives every
// successfully decoded reload; onError receives files that fail to decode.
// Watching is a no-op when no config file was loaded.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) *Watcher {
	w := &Watcher{v: v, onChange: onChange, onError: onError}
	if v.ConfigFileUsed() == "" {
		return w
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		w.mu.Lock()
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return
		}

		cfg, err := Decode(v)
		if err != nil {
			if w.onError != nil {
				w.onError(err)
			}
			return
		}
		if w.onChange != nil {
			w.onChange(cfg)
		}
	})
	v.WatchConfig()
	return w
}

// Stop silences further callbacks. viper offers no way to stop its
// underlying fsnotify watcher, so it keeps running for the process lifetime.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
}
