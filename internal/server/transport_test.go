package server

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type egressCounter struct {
	paused  atomic.Int32
	resumed atomic.Int32
}

func (e *egressCounter) OnEgressPaused()  { e.paused.Add(1) }
func (e *egressCounter) OnEgressResumed() { e.resumed.Add(1) }

func TestConnTransport_HeadersBodyEOM(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	tr := newConnTransport(server, "t1", time.Second)
	tr.start(nil)

	hdr := http.Header{}
	hdr.Set("Upgrade", "websocket")
	require.NoError(t, tr.SendHeaders(http.StatusSwitchingProtocols, hdr))
	assert.ErrorIs(t, tr.SendHeaders(http.StatusOK, hdr), ErrHeadersSent)
	require.NoError(t, tr.SendBody([]byte{0x81, 0x00}))
	require.NoError(t, tr.SendEOM())
	assert.ErrorIs(t, tr.SendBody([]byte{1}), ErrTransportClosed)

	br := bufio.NewReader(client)
	resp, err := http.ReadResponse(br, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	assert.Equal(t, "websocket", resp.Header.Get("Upgrade"))

	rest, err := io.ReadAll(br)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x00}, rest)

	tr.wait()
	assert.True(t, tr.closed())
}

func TestConnTransport_PauseResume(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	eg := &egressCounter{}
	tr := newConnTransport(server, "t2", 5*time.Second)
	tr.start(eg)

	chunk := make([]byte, 64<<10)
	total := 0
	for eg.paused.Load() == 0 {
		require.NoError(t, tr.SendBody(chunk))
		total += len(chunk)
		require.Less(t, total, 4*highWater, "egress never paused")
	}

	got := 0
	buf := make([]byte, 32<<10)
	for got < total {
		n, err := client.Read(buf)
		require.NoError(t, err)
		got += n
	}

	require.Eventually(t, func() bool { return eg.resumed.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, tr.waitWritable())

	tr.SendAbort()
	tr.wait()
	assert.False(t, tr.waitWritable())
}

func TestConnTransport_Abort(t *testing.T) {
	server, client := net.Pipe()
	tr := newConnTransport(server, "t3", time.Second)
	tr.start(nil)

	tr.SendAbort()
	tr.SendAbort()
	tr.wait()

	_, err := client.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.ErrorIs(t, tr.SendBody([]byte{1}), ErrTransportClosed)
}
