package server

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upgradeHead = "GET / HTTP/1.1\r\n" +
	"Host: localhost\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Sec-WebSocket-Version: 13\r\n\r\n"

func TestReadHTTPRequest_HeadLimit(t *testing.T) {
	head := "GET / HTTP/1.1\r\nX-Filler: " + strings.Repeat("a", 64<<10) + "\r\n\r\n"
	limiter := newHeadLimitReader(strings.NewReader(head), 4096)

	_, err := ReadHTTPRequest(bufio.NewReaderSize(limiter, 1024))
	require.Error(t, err)
	assert.True(t, limiter.exceeded)
}

func TestReadHTTPRequest_LiftKeepsStreamBytes(t *testing.T) {
	body := strings.Repeat("x", 5000)
	limiter := newHeadLimitReader(strings.NewReader(upgradeHead+body), int64(len(upgradeHead)+16))
	reader := bufio.NewReaderSize(limiter, 16)

	req, err := ReadHTTPRequest(reader)
	require.NoError(t, err)
	assert.Equal(t, "websocket", req.Header.Get("Upgrade"))
	assert.False(t, limiter.exceeded)

	limiter.lift()
	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, body, string(rest))
}

func TestServer_RejectsOversizedHead(t *testing.T) {
	srv := startServer(t, &Config{MaxHeaderBytes: 1024})

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	// stays under the socket buffers so the server reads it all before replying
	head := "GET / HTTP/1.1\r\nX-Filler: " + strings.Repeat("a", 8192) + "\r\n\r\n"
	_, err = io.WriteString(conn, head)
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestHeaderFieldsTooLarge, resp.StatusCode)

	require.Eventually(t, func() bool { return srv.ActiveConnections() == 0 }, 2*time.Second, 10*time.Millisecond)
}
