package server

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/handshake"
	"github.com/muurk/wsecho/internal/logging"
	"github.com/muurk/wsecho/internal/protocol"
	"github.com/muurk/wsecho/internal/stream"
)

// HandlerOptions configures a WebSocketHandler.
type HandlerOptions struct {
	ConnID     string
	RemoteAddr string
	Negotiator *handshake.Negotiator
	MaxPayload uint64
	BufferSize int
	Capture    *Capture
}

// WebSocketHandler drives one connection: it negotiates the upgrade, feeds
// body bytes through a stream.Adapter and echoes every frame back.
//
// OnHeadersComplete, OnUpgrade, OnBody, OnEOM and OnError are called from the
// connection's read goroutine. OnEgressPaused and OnEgressResumed come from
// the transport's writer.
type WebSocketHandler struct {
	opts      HandlerOptions
	transport Transport
	stats     *Stats

	mu          sync.Mutex
	adapter     *stream.Adapter
	backlog     *queue.Queue
	eomPending  bool
	closeSent   bool
	done        bool
	subprotocol string
	seqIn       uint64
	seqOut      uint64

	paused atomic.Bool
}

// NewWebSocketHandler returns a handler writing to t.
func NewWebSocketHandler(t Transport, opts HandlerOptions) *WebSocketHandler {
	if opts.Negotiator == nil {
		opts.Negotiator = &handshake.Negotiator{}
	}
	return &WebSocketHandler{
		opts:      opts,
		transport: t,
		stats:     newStats(),
		backlog:   queue.New(),
	}
}

// OnHeadersComplete negotiates the upgrade and writes either the 101 head or
// a complete rejection. It reports whether the connection was upgraded.
func (h *WebSocketHandler) OnHeadersComplete(req *http.Request) bool {
	res := h.opts.Negotiator.Negotiate(handshake.FromHTTP(req))

	if !res.Accepted() {
		rej := res.Reject
		logging.Warn("Rejected WebSocket upgrade",
			zap.String("conn_id", h.opts.ConnID),
			zap.Int("status", rej.Status),
			zap.Error(rej.Reason),
		)
		if err := h.transport.SendHeaders(rej.Status, rej.Header); err != nil {
			logging.Error("Failed to send rejection", zap.String("conn_id", h.opts.ConnID), zap.Error(err))
			h.transport.SendAbort()
			return false
		}
		_ = h.transport.SendBody([]byte(rej.Body))
		_ = h.transport.SendEOM()
		return false
	}

	if err := h.transport.SendHeaders(res.Accept.Status(), res.Accept.Header); err != nil {
		logging.Error("Failed to send upgrade response", zap.String("conn_id", h.opts.ConnID), zap.Error(err))
		h.transport.SendAbort()
		return false
	}
	h.subprotocol = res.Accept.Subprotocol
	return true
}

// OnUpgrade prepares the frame stream after a successful upgrade.
func (h *WebSocketHandler) OnUpgrade() {
	opts := []stream.Option{stream.WithParserOptions(protocol.WithMaxPayload(h.opts.MaxPayload))}
	if h.opts.BufferSize > 0 {
		opts = append(opts, stream.WithBufferSize(h.opts.BufferSize))
	}

	h.mu.Lock()
	h.adapter = stream.NewAdapter(stream.HandlerFunc(h.handleFrame), opts...)
	h.mu.Unlock()

	logging.LogConnection(h.opts.ConnID, h.opts.RemoteAddr, "websocket_upgraded")
	if h.subprotocol != "" {
		logging.Info("Subprotocol selected",
			zap.String("conn_id", h.opts.ConnID),
			zap.String("subprotocol", h.subprotocol),
		)
	}
}

// OnBody passes a chunk of the byte stream to the adapter. A framing
// violation aborts the connection and is returned so the caller stops reading.
func (h *WebSocketHandler) OnBody(chunk []byte) error {
	h.mu.Lock()
	if h.adapter == nil {
		h.mu.Unlock()
		return errors.New("body received before upgrade")
	}
	if h.done {
		h.mu.Unlock()
		return nil
	}
	logging.LogRawBytes("WebSocket chunk", chunk)
	err := h.adapter.OnBody(chunk)
	h.mu.Unlock()

	if err == nil {
		return nil
	}

	var perr *protocol.ProtocolError
	if errors.As(err, &perr) {
		logging.Warn("WebSocket protocol violation",
			zap.String("conn_id", h.opts.ConnID),
			zap.String("remote_addr", h.opts.RemoteAddr),
			zap.Error(err),
		)
	}
	h.OnError(err)
	return err
}

// OnEOM is called when the peer half-closes. The close is mirrored after any
// queued replies.
func (h *WebSocketHandler) OnEOM() {
	logging.LogConnection(h.opts.ConnID, h.opts.RemoteAddr, "peer_closed")

	h.mu.Lock()
	defer h.mu.Unlock()
	h.finishLocked()
}

// OnError aborts the connection.
func (h *WebSocketHandler) OnError(err error) {
	logging.Info("Aborting connection",
		zap.String("conn_id", h.opts.ConnID),
		zap.Error(err),
	)
	h.mu.Lock()
	h.done = true
	h.mu.Unlock()
	h.transport.SendAbort()
}

// OnEgressPaused makes further replies queue locally.
func (h *WebSocketHandler) OnEgressPaused() {
	h.paused.Store(true)
}

// OnEgressResumed flushes queued replies in order.
func (h *WebSocketHandler) OnEgressResumed() {
	h.paused.Store(false)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.flushLocked()
}

// Stats returns the connection's counters.
func (h *WebSocketHandler) Stats() *Stats {
	return h.stats
}

// Closing reports whether the handler has finished the connection.
func (h *WebSocketHandler) Closing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// handleFrame is the echo application. It runs with h.mu held.
func (h *WebSocketHandler) handleFrame(f *protocol.Frame) error {
	h.seqIn++
	h.stats.addIn(1, uint64(len(f.Payload)))
	logging.LogWebSocketFrame(h.opts.ConnID, "received", f.FIN, f.OpcodeString(), f.Payload)
	h.opts.Capture.Record(h.opts.ConnID, h.opts.RemoteAddr, DirectionInbound, h.seqIn, f)

	if h.closeSent {
		return nil
	}

	switch f.Opcode {
	case protocol.OpcodeText, protocol.OpcodeBinary, protocol.OpcodeContinuation:
		h.emitLocked(&protocol.Frame{FIN: f.FIN, Opcode: f.Opcode, Payload: f.Payload})

	case protocol.OpcodePing:
		h.emitLocked(protocol.NewFrame(protocol.OpcodePong, f.Payload))

	case protocol.OpcodePong:
		logging.Debug("Received pong", zap.String("conn_id", h.opts.ConnID))

	case protocol.OpcodeClose:
		logging.Info("Received close frame",
			zap.String("conn_id", h.opts.ConnID),
			zap.Int("payload_length", len(f.Payload)),
		)
		h.emitLocked(protocol.NewFrame(protocol.OpcodeClose, f.Payload))
		h.closeSent = true
		h.finishLocked()
	}
	return nil
}

// emitLocked queues a reply behind any backlog and flushes what it can.
func (h *WebSocketHandler) emitLocked(f *protocol.Frame) {
	h.seqOut++
	h.stats.addOut(1, uint64(len(f.Payload)))
	logging.LogWebSocketFrame(h.opts.ConnID, "sent", f.FIN, f.OpcodeString(), f.Payload)
	h.opts.Capture.Record(h.opts.ConnID, h.opts.RemoteAddr, DirectionOutbound, h.seqOut, f)

	h.backlog.Add(protocol.EncodeFrame(f))
	h.flushLocked()
}

func (h *WebSocketHandler) flushLocked() {
	for h.backlog.Length() > 0 && !h.paused.Load() {
		b := h.backlog.Remove().([]byte)
		if err := h.transport.SendBody(b); err != nil {
			logging.Debug("Dropping reply",
				zap.String("conn_id", h.opts.ConnID),
				zap.Error(err),
			)
		}
	}
	if h.eomPending && h.backlog.Length() == 0 {
		h.eomPending = false
		_ = h.transport.SendEOM()
	}
}

// finishLocked ends the connection once the backlog has drained.
func (h *WebSocketHandler) finishLocked() {
	if h.done {
		return
	}
	h.done = true
	h.eomPending = true
	h.flushLocked()
}
