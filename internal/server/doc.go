// Package server implements the wsecho WebSocket echo server.
//
// The server accepts plain TCP or TLS connections, reads the HTTP upgrade
// request itself and then treats the socket as a raw byte stream. Frames are
// rebuilt by internal/stream and echoed back; nothing here depends on net/http's
// server or on a WebSocket library.
//
// # Connection Lifecycle
//
// Each accepted connection gets a UUID and its own goroutine:
//
//  1. The TLS handshake completes (when TLS is enabled).
//  2. The upgrade request is read with http.ReadRequest.
//  3. WebSocketHandler.OnHeadersComplete negotiates the upgrade. A rejected
//     request receives a complete 4xx response and the connection closes.
//  4. OnUpgrade creates the stream.Adapter.
//  5. The read loop passes every chunk to OnBody, starting with any bytes the
//     HTTP reader buffered past the request head. EOF becomes OnEOM and any
//     other read error, idle timeout included, becomes OnError.
//
// # Echo Behaviour
//
//   - Text, binary and continuation frames are sent back unmasked with the
//     same FIN bit and opcode, so fragmented messages stay fragmented.
//   - Ping is answered with a pong carrying the same payload.
//   - Pong is ignored.
//   - Close is echoed and the connection is closed after pending replies.
//   - A framing violation aborts the connection without a close handshake.
//
// # Transport and Backpressure
//
// Handlers write through the Transport interface. The connection transport
// queues writes for a single writer goroutine and signals OnEgressPaused once
// about 1 MiB is waiting. While paused the read loop stops reading and the
// handler holds further replies in a FIFO until OnEgressResumed.
//
// # Frame Capture
//
// When Config.AnalysisDir is set every inbound and outbound frame is appended
// to capture-YYYYMMDD.jsonl in that directory as one JSON object per line.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{
//	    Port:        8080,
//	    IdleTimeout: time.Minute,
//	})
//	if err != nil {
//	    return err
//	}
//
//	// Start blocks until SIGINT/SIGTERM or ctx is cancelled
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// Server methods are safe for concurrent use. A WebSocketHandler belongs to one
// connection; its read-side callbacks run on that connection's goroutine.
package server
