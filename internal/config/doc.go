// Package config loads the wsecho server configuration.
//
// Values come from four layers, highest priority first:
//
//  1. Command-line flags registered with RegisterFlags (only when set)
//  2. Environment variables: WSECHO_ plus the upper-cased key with dots
//     replaced by underscores, e.g. WSECHO_SERVER_PORT or WSECHO_LOG_LEVEL
//  3. The YAML config file
//  4. Built-in defaults (see Default)
//
// # Configuration File Location
//
// An explicit --config path is used as given. Otherwise wsecho.yaml is
// searched for in the working directory and then in:
//   - Linux: $XDG_CONFIG_HOME/wsecho or $HOME/.config/wsecho
//   - macOS: $HOME/.config/wsecho
//   - Windows: %LOCALAPPDATA%\wsecho
//
// # File Format
//
//	server:
//	  port: 8080
//	  idle_timeout: 60s
//	  analysis_dir: /var/lib/wsecho/captures
//	protocol:
//	  max_payload: 16777216
//	  subprotocols: [echo]
//	log:
//	  level: info
//	  dir: /var/log/wsecho
//	discovery:
//	  enabled: true
//
// # Usage Example
//
//	v, err := config.NewViper(cmd.Flags())
//	if err != nil {
//	    return err
//	}
//	cfg, err := config.Load(v, configPath)
//	if err != nil {
//	    return err
//	}
//	w := config.Watch(v, func(c *config.Config) {
//	    _ = logging.SetLevel(c.Log.Level)
//	}, nil)
//	defer w.Stop()
//
// Watch uses viper's fsnotify integration. Only settings that can change at
// runtime are applied by the server; today that is the log level.
package config
