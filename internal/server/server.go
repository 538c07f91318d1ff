package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/wsecho/internal/handshake"
	"github.com/muurk/wsecho/internal/logging"
	"github.com/muurk/wsecho/internal/protocol"
)

// Defaults applied by New to zero-valued Config fields
const (
	DefaultIdleTimeout    = 60 * time.Second
	DefaultReadBufferSize = 4096
	DefaultMaxHeaderBytes = 1 << 20
	shutdownGrace         = 10 * time.Second
	rstAvoidanceDelay     = 500 * time.Millisecond
)

// Config holds the server configuration
type Config struct {
	Host     string
	Port     int
	CertPath string // TLS is enabled when both CertPath and KeyPath are set
	KeyPath  string

	IdleTimeout    time.Duration // Read deadline between chunks
	WriteTimeout   time.Duration
	ReadBufferSize int
	MaxHeaderBytes int64 // Upper bound on the upgrade request head

	MaxPayload   uint64 // 0 means protocol.DefaultMaxPayload
	Version      string
	Subprotocols []string

	AnalysisDir string // Directory to write frame captures (empty = disabled)
}

// Server accepts connections, upgrades them and echoes WebSocket frames.
type Server struct {
	config     *Config
	tlsConfig  *tls.Config
	negotiator *handshake.Negotiator
	capture    *Capture

	mu          sync.Mutex
	listener    net.Listener
	cancel      context.CancelFunc
	done        chan struct{}
	activeConns map[string]net.Conn
}

// New creates a new Server instance
func New(config *Config) (*Server, error) {
	cfg := *config
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.MaxHeaderBytes <= 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.MaxPayload == 0 {
		cfg.MaxPayload = protocol.DefaultMaxPayload
	}
	if cfg.Version == "" {
		cfg.Version = handshake.DefaultVersion
	}

	var tlsConfig *tls.Config
	switch {
	case cfg.CertPath != "" && cfg.KeyPath != "":
		var err error
		tlsConfig, err = NewTLSConfig(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	case cfg.CertPath != "" || cfg.KeyPath != "":
		return nil, errors.New("both certificate and key are required for TLS")
	}

	capture, err := NewCapture(cfg.AnalysisDir)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:    &cfg,
		tlsConfig: tlsConfig,
		negotiator: &handshake.Negotiator{
			Version:      cfg.Version,
			Subprotocols: cfg.Subprotocols,
		},
		capture:     capture,
		activeConns: make(map[string]net.Conn),
	}, nil
}

// Listen binds the listening socket. It is called by Start; call it directly
// when the bound address is needed before serving.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	var (
		ln  net.Listener
		err error
	)
	if s.tlsConfig != nil {
		ln, err = tls.Listen("tcp", addr, s.tlsConfig)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logging.Info("Server listening for connections",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil),
	)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens, unless Listen was already called, and serves until SIGINT,
// SIGTERM or ctx cancellation.
func (s *Server) Start(ctx context.Context) error {
	logging.Info("Starting WebSocket echo server",
		zap.String("host", s.config.Host),
		zap.Int("port", s.config.Port),
		zap.Duration("idle_timeout", s.config.IdleTimeout),
		zap.Uint64("max_payload", s.config.MaxPayload),
		zap.Any("tls_info", GetTLSInfo(s.tlsConfig)),
	)

	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Serve(ctx)
}

// Serve accepts connections on the listener bound by Listen until ctx is
// cancelled or Shutdown is called. Every connection runs in its own goroutine
// and Serve returns once all of them have finished.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	if ln == nil {
		s.mu.Unlock()
		return errors.New("server is not listening")
	}
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New("server is already serving")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	defer close(done)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Stopping server...")
		_ = ln.Close()
		s.closeActive()
		return nil
	})

	g.Go(func() error {
		defer cancel()
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					logging.Warn("Temporary accept error", zap.Error(err))
					continue
				}
				return fmt.Errorf("failed to accept connection: %w", err)
			}

			g.Go(func() error {
				s.handleConnection(gctx, conn)
				return nil
			})
		}
	})

	err := g.Wait()
	logging.Info("Server stopped")
	return err
}

// Shutdown stops accepting, closes every connection and waits for the
// handlers to return or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, done, ln := s.cancel, s.done, s.listener
	s.mu.Unlock()

	if cancel == nil {
		if ln != nil {
			return ln.Close()
		}
		return nil
	}
	cancel()

	timer := time.NewTimer(shutdownGrace)
	defer timer.Stop()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
		return nil
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		return ctx.Err()
	case <-timer.C:
		logging.Warn("Shutdown timeout after 10 seconds, forcing close")
		return errors.New("shutdown timed out")
	}
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) track(id string, conn net.Conn) {
	s.mu.Lock()
	s.activeConns[id] = conn
	s.mu.Unlock()
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	delete(s.activeConns, id)
	s.mu.Unlock()
}

func (s *Server) closeActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("conn_id", id))
		_ = conn.Close()
	}
}

// handleConnection runs one connection from handshake to close.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	id := uuid.NewString()
	remoteAddr := conn.RemoteAddr().String()

	s.track(id, conn)
	defer func() {
		_ = conn.Close()
		s.untrack(id)
		logging.LogConnection(id, remoteAddr, "connection_closed")
	}()

	logging.LogConnection(id, remoteAddr, "connection_accepted")

	// A connection accepted while shutdown was in progress may have missed
	// closeActive.
	if ctx.Err() != nil {
		return
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout)); err != nil {
		return
	}

	if tlsConn, ok := conn.(*tls.Conn); ok {
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			logging.Error("TLS handshake failed",
				zap.String("conn_id", id),
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			return
		}
		state := tlsConn.ConnectionState()
		logging.LogTLSHandshake(remoteAddr, state.Version, state.CipherSuite, state.ServerName)
	}

	limiter := newHeadLimitReader(conn, s.config.MaxHeaderBytes)
	reader := bufio.NewReaderSize(limiter, s.config.ReadBufferSize)
	req, err := ReadHTTPRequest(reader)
	if err != nil {
		logging.Error("Failed to read HTTP request",
			zap.String("conn_id", id),
			zap.String("remote_addr", remoteAddr),
			zap.Bool("too_large", limiter.exceeded),
			zap.Error(err),
		)
		if limiter.exceeded {
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			_, _ = io.WriteString(conn, headerTooLargeResponse)
			closeWriteAndWait(conn)
		}
		return
	}
	limiter.lift()
	LogHTTPRequestDetails(req, id)

	transport := newConnTransport(conn, id, s.config.WriteTimeout)
	handler := NewWebSocketHandler(transport, HandlerOptions{
		ConnID:     id,
		RemoteAddr: remoteAddr,
		Negotiator: s.negotiator,
		MaxPayload: s.config.MaxPayload,
		BufferSize: s.config.ReadBufferSize,
		Capture:    s.capture,
	})
	transport.start(handler)
	defer transport.wait()

	if !handler.OnHeadersComplete(req) {
		return
	}
	handler.OnUpgrade()

	s.readLoop(reader, conn, handler, transport)

	logging.Info("WebSocket connection finished",
		append([]zap.Field{zap.String("conn_id", id)}, handler.Stats().Snapshot().Fields()...)...,
	)
}

// closeWriteAndWait half-closes conn and gives the peer a moment to read the
// response before the unread request bytes make the final close send a RST.
func closeWriteAndWait(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	time.Sleep(rstAvoidanceDelay)
}

// readLoop hands every chunk to the handler. reader drains the bytes
// http.ReadRequest buffered past the request head before reading conn again.
func (s *Server) readLoop(reader *bufio.Reader, conn net.Conn, h *WebSocketHandler, t *connTransport) {
	buf := make([]byte, s.config.ReadBufferSize)
	for {
		if !t.waitWritable() {
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout)); err != nil {
			return
		}

		n, err := reader.Read(buf)
		if n > 0 {
			if herr := h.OnBody(buf[:n]); herr != nil {
				return
			}
		}
		if err == nil {
			continue
		}

		switch {
		case t.closed() || h.Closing():
		case errors.Is(err, io.EOF):
			h.OnEOM()
		default:
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logging.Info("Idle timeout", zap.String("conn_id", h.opts.ConnID))
			}
			h.OnError(err)
		}
		return
	}
}
