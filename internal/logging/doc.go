// Package logging provides structured logging for the wsecho server and client.
//
// It wraps a package-level zap logger with helpers for the events the server
// cares about: connections, the upgrade exchange, and individual frames.
//
// # Log Levels
//
//   - Debug: frame-level detail (opcodes, hex dumps, raw bytes)
//   - Info: connections, upgrades, lifecycle
//   - Warn: rejected handshakes, protocol violations from peers
//   - Error: startup failures and I/O errors
//
// The level lives in a zap.AtomicLevel, so SetLevel takes effect on the running
// logger. The server uses it to apply log.level changes from a reloaded
// config file.
//
// # Configuration
//
//	if err := logging.Setup(logging.Options{
//	    Level:  "info",
//	    Dir:    "/var/log/wsecho",
//	    Prefix: "wsecho",
//	}); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Console output goes to stdout in zap's console format. When Dir is set, the
// same entries are also written as JSON to Dir/Prefix.log, rotated by
// lumberjack according to the size, backup and age limits in Options.
//
// An empty level falls back to WSECHO_LOG_LEVEL. If that is unset as well the
// logger is a no-op, which keeps client commands quiet by default.
//
// # Connection Logging
//
//	logging.LogConnection(connID, remoteAddr, "connection_accepted")
//	logging.LogConnection(connID, remoteAddr, "websocket_upgraded")
//	logging.LogWebSocketFrame(connID, "received", frame.FIN, frame.OpcodeString(), frame.Payload)
//
// # Thread Safety
//
// All functions are safe for concurrent use.
package logging
