package server

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/logging"
)

const (
	// Time allowed to write queued data to the peer
	writeWait = 10 * time.Second

	// Egress pauses once this many bytes are waiting to be written and resumes
	// when the backlog drains to lowWater.
	highWater = 1 << 20
	lowWater  = 256 << 10
)

var (
	// ErrTransportClosed is returned by Send calls after SendEOM or SendAbort.
	ErrTransportClosed = errors.New("transport closed")
	// ErrHeadersSent is returned when SendHeaders is called twice.
	ErrHeadersSent = errors.New("headers already sent")
)

// Transport is the downstream half of a connection as seen by a handler.
// Sends are ordered and never block on the network.
type Transport interface {
	// SendHeaders writes the HTTP response head.
	SendHeaders(status int, header http.Header) error
	// SendBody queues b for writing.
	SendBody(b []byte) error
	// SendEOM flushes queued data and closes the connection.
	SendEOM() error
	// SendAbort drops queued data and resets the connection.
	SendAbort()
}

// EgressListener is told when a transport's write backlog crosses the
// pause and resume watermarks. OnEgressPaused runs inside a Send call with
// the transport locked and must not call back into the transport.
// OnEgressResumed runs on the writer goroutine with no lock held.
type EgressListener interface {
	OnEgressPaused()
	OnEgressResumed()
}

// connTransport implements Transport over a net.Conn with a single writer
// goroutine.
type connTransport struct {
	conn         net.Conn
	connID       string
	writeTimeout time.Duration

	mu           sync.Mutex
	cond         *sync.Cond
	pending      [][]byte
	pendingBytes int
	paused       bool
	headersSent  bool
	closing      bool
	aborted      bool
	err          error
	listener     EgressListener

	done chan struct{}
}

func newConnTransport(conn net.Conn, connID string, writeTimeout time.Duration) *connTransport {
	if writeTimeout <= 0 {
		writeTimeout = writeWait
	}
	t := &connTransport{
		conn:         conn,
		connID:       connID,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// start launches the writer. l may be nil.
func (t *connTransport) start(l EgressListener) {
	t.listener = l
	go t.writeLoop()
}

// SendHeaders serializes an HTTP/1.1 response head.
func (t *connTransport) SendHeaders(status int, header http.Header) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	if err := header.Write(&buf); err != nil {
		return fmt.Errorf("failed to write response headers: %w", err)
	}
	buf.WriteString("\r\n")

	t.mu.Lock()
	if t.headersSent {
		t.mu.Unlock()
		return ErrHeadersSent
	}
	t.headersSent = true
	t.mu.Unlock()

	logging.LogRawBytes("HTTP response head", buf.Bytes())
	logging.LogHTTPResponse(t.connID, status, flattenHeader(header))

	return t.enqueue(buf.Bytes())
}

func (t *connTransport) SendBody(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return t.enqueue(append([]byte(nil), b...))
}

func (t *connTransport) enqueue(b []byte) error {
	t.mu.Lock()
	if t.closing || t.aborted {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	if t.err != nil {
		err := t.err
		t.mu.Unlock()
		return err
	}

	t.pending = append(t.pending, b)
	t.pendingBytes += len(b)
	pending := t.pendingBytes
	pause := !t.paused && pending >= highWater
	if pause {
		t.paused = true
		// under the lock so the writer cannot resume before the pause lands
		if t.listener != nil {
			t.listener.OnEgressPaused()
		}
	}
	t.cond.Broadcast()
	t.mu.Unlock()

	if pause {
		logging.Debug("Egress paused",
			zap.String("conn_id", t.connID),
			zap.Int("pending_bytes", pending),
		)
	}
	return nil
}

func (t *connTransport) SendEOM() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closing || t.aborted {
		return nil
	}
	t.closing = true
	t.cond.Broadcast()
	return nil
}

// SendAbort closes the socket immediately. On TCP the close is a reset.
func (t *connTransport) SendAbort() {
	t.mu.Lock()
	if t.aborted {
		t.mu.Unlock()
		return
	}
	t.aborted = true
	t.pending = nil
	t.pendingBytes = 0
	t.cond.Broadcast()
	t.mu.Unlock()

	if tcp := tcpConn(t.conn); tcp != nil {
		_ = tcp.SetLinger(0)
	}
	_ = t.conn.Close()
	logging.LogConnection(t.connID, t.conn.RemoteAddr().String(), "connection_aborted")
}

// waitWritable blocks while egress is paused. It returns false once the
// transport is closing or broken.
func (t *connTransport) waitWritable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.paused && !t.closing && !t.aborted && t.err == nil {
		t.cond.Wait()
	}
	return !t.closing && !t.aborted && t.err == nil
}

// closed reports whether the local side has ended the connection.
func (t *connTransport) closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closing || t.aborted
}

// wait blocks until the writer has exited.
func (t *connTransport) wait() {
	<-t.done
}

func (t *connTransport) writeLoop() {
	defer close(t.done)

	for {
		t.mu.Lock()
		for len(t.pending) == 0 && !t.closing && !t.aborted {
			t.cond.Wait()
		}
		if t.aborted {
			t.mu.Unlock()
			return
		}
		if len(t.pending) == 0 && t.closing {
			t.mu.Unlock()
			_ = t.conn.Close()
			return
		}
		batch := t.pending
		t.pending = nil
		t.mu.Unlock()

		written := 0
		var werr error
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			werr = err
		}
		for _, b := range batch {
			if werr != nil {
				break
			}
			if _, err := t.conn.Write(b); err != nil {
				werr = err
				break
			}
			written += len(b)
		}

		t.mu.Lock()
		if !t.aborted {
			t.pendingBytes -= written
		}
		resume := false
		if werr != nil {
			t.err = fmt.Errorf("failed to write to connection: %w", werr)
			t.paused = false
		} else if t.paused && t.pendingBytes <= lowWater {
			t.paused = false
			resume = true
		}
		t.cond.Broadcast()
		aborted := t.aborted
		t.mu.Unlock()

		if werr != nil {
			if !aborted {
				logging.Warn("Write failed",
					zap.String("conn_id", t.connID),
					zap.Error(werr),
				)
				_ = t.conn.Close()
			}
			return
		}
		if resume {
			logging.Debug("Egress resumed", zap.String("conn_id", t.connID))
			if t.listener != nil {
				t.listener.OnEgressResumed()
			}
		}
	}
}

func tcpConn(c net.Conn) *net.TCPConn {
	if tc, ok := c.(*tls.Conn); ok {
		c = tc.NetConn()
	}
	tcp, _ := c.(*net.TCPConn)
	return tcp
}
