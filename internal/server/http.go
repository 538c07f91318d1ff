package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/logging"
)

// ReadHTTPRequest reads the upgrade request from r. Bytes after the request
// head stay buffered in r and belong to the WebSocket stream.
func ReadHTTPRequest(r *bufio.Reader) (*http.Request, error) {
	req, err := http.ReadRequest(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read HTTP request: %w", err)
	}
	return req, nil
}

// ErrHeaderTooLarge is returned once the request head exceeds its byte budget.
var ErrHeaderTooLarge = errors.New("request head too large")

// headLimitReader caps the bytes read from the connection until lift is
// called after the request head has been parsed.
type headLimitReader struct {
	r         io.Reader
	remaining int64
	lifted    bool
	exceeded  bool
}

func newHeadLimitReader(r io.Reader, limit int64) *headLimitReader {
	return &headLimitReader{r: r, remaining: limit}
}

func (l *headLimitReader) Read(p []byte) (int, error) {
	if l.lifted {
		return l.r.Read(p)
	}
	if l.remaining <= 0 {
		l.exceeded = true
		return 0, ErrHeaderTooLarge
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}

func (l *headLimitReader) lift() { l.lifted = true }

const headerTooLargeResponse = "HTTP/1.1 431 Request Header Fields Too Large\r\n" +
	"Connection: close\r\nContent-Length: 0\r\n\r\n"

// LogHTTPRequestDetails logs all details of an HTTP request
func LogHTTPRequestDetails(req *http.Request, connID string) {
	logging.LogHTTPRequest(connID, req.Method, req.URL.Path, flattenHeader(req.Header))

	logging.Debug("WebSocket upgrade request details",
		zap.String("conn_id", connID),
		zap.String("host", req.Host),
		zap.String("origin", req.Header.Get("Origin")),
		zap.String("sec_websocket_key", req.Header.Get("Sec-WebSocket-Key")),
		zap.String("sec_websocket_version", req.Header.Get("Sec-WebSocket-Version")),
		zap.String("sec_websocket_protocol", req.Header.Get("Sec-WebSocket-Protocol")),
		zap.String("user_agent", req.Header.Get("User-Agent")),
	)
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}
