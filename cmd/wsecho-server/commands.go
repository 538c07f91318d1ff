package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/config"
	"github.com/muurk/wsecho/internal/discovery"
	"github.com/muurk/wsecho/internal/logging"
	"github.com/muurk/wsecho/internal/server"
	"github.com/muurk/wsecho/internal/sysutil"
	"github.com/muurk/wsecho/internal/version"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the WebSocket echo server",
	Long: `Start the WebSocket echo server.

TLS is enabled when both --cert and --key are given. To capture every frame
for later analysis, point --analysis-dir at a directory; one JSON line is
written per frame to capture-<date>.jsonl.

The log level can be changed while the server runs by editing the config
file it was started with.`,
	Example: `  # Plain WebSocket on port 8080
  wsecho-server server

  # TLS with debug logging
  wsecho-server server --port 8443 --cert fullchain.pem --key privkey.pem -l debug

  # Accept the "echo" subprotocol and advertise over mDNS
  wsecho-server server --subprotocol echo --discovery

  # Capture frames and keep rotated JSON logs
  wsecho-server server --analysis-dir ./captures --log-dir ./logs`,
	RunE: runServer,
}

func init() {
	config.RegisterFlags(serverCmd.Flags())
}

func runServer(cmd *cobra.Command, args []string) error {
	v, err := config.NewViper(cmd.Flags())
	if err != nil {
		return err
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}

	if err := logging.Setup(cfg.LoggingOptions()); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	logging.Info("wsecho-server starting",
		zap.String("version", version.Full()),
		zap.String("config_file", v.ConfigFileUsed()))

	if cfg.Server.MaxOpenFiles > 0 {
		limit, err := sysutil.RaiseOpenFileLimit(cfg.Server.MaxOpenFiles)
		if err != nil {
			logging.Warn("Could not raise open file limit", zap.Error(err))
		} else {
			logging.Debug("Open file limit", zap.Uint64("limit", limit))
		}
	}

	watcher := config.Watch(v, applyReload, func(err error) {
		logging.Warn("Ignoring invalid config change", zap.Error(err))
	})
	defer watcher.Stop()

	srv, err := server.New(serverConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.Discovery.Enabled {
		if err := srv.Listen(); err != nil {
			return err
		}
		shutdown, err := advertise(cfg, srv.Addr())
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer shutdown()
		}
	}

	return srv.Start(cmd.Context())
}

// applyReload applies the settings that can change without a restart.
func applyReload(cfg *config.Config) {
	if cfg.Log.Level == logging.Level() {
		return
	}
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		logging.Warn("Ignoring log level change", zap.Error(err))
		return
	}
	logging.Info("Log level changed", zap.String("level", cfg.Log.Level))
}

func serverConfig(cfg *config.Config) *server.Config {
	return &server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CertPath:       cfg.Server.Cert,
		KeyPath:        cfg.Server.Key,
		IdleTimeout:    cfg.Server.IdleTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		ReadBufferSize: cfg.Server.ReadBufferSize,
		MaxPayload:     cfg.Protocol.MaxPayload,
		Version:        cfg.Protocol.Version,
		Subprotocols:   cfg.Protocol.Subprotocols,
		AnalysisDir:    cfg.Server.AnalysisDir,
	}
}

func advertise(cfg *config.Config, addr net.Addr) (func(), error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("cannot advertise non-TCP address %v", addr)
	}
	return discovery.Advertise(cfg.Discovery.Instance, tcp.Port, map[string]string{
		"version": version.String(),
		"tls":     strconv.FormatBool(cfg.Server.Cert != ""),
		"path":    "/",
	})
}

var initConfig bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration the server would run with, after merging the
config file, WSECHO_* environment variables and defaults.

With --init the result is also written to the config file path (the
--config value, or wsecho.yaml in the user config directory).`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&initConfig, "init", false, "Write the effective configuration to the config file")
}

func runConfig(cmd *cobra.Command, args []string) error {
	v, err := config.NewViper(nil)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return err
	}

	if !initConfig {
		return nil
	}
	path := configFile
	if path == "" {
		if path, err = config.GetConfigPath(); err != nil {
			return err
		}
	}
	if err := config.WriteFile(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
	return nil
}
