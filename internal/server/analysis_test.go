package server

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/wsecho/internal/protocol"
)

func TestReadCaptures_RoundTrip(t *testing.T) {
	c, err := NewCapture(t.TempDir())
	require.NoError(t, err)
	fixed := time.Date(2025, 11, 21, 3, 9, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	in := protocol.NewFrame(protocol.OpcodeText, []byte("hi"))
	c.Record("conn-1", "127.0.0.1:5000", DirectionInbound, 1, in)
	c.Record("conn-1", "127.0.0.1:5000", DirectionOutbound, 1, in)

	f, err := os.Open(c.Filename(fixed))
	require.NoError(t, err)
	defer f.Close()

	records, err := ReadCaptures(f)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "conn-1", records[0].ConnID)
	assert.Equal(t, DirectionOutbound, records[1].Direction)
	assert.Equal(t, hex.EncodeToString([]byte("hi")), records[1].PayloadHex)
	assert.Equal(t, "capture-20251121.jsonl", filepath.Base(c.Filename(fixed)))
}

func TestReadCaptures_BadLine(t *testing.T) {
	_, err := ReadCaptures(strings.NewReader("{}\n\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func capture(conn string, at int, dir string, op protocol.Opcode, payload string) FrameCapture {
	return FrameCapture{
		Timestamp:  time.Unix(int64(at), 0),
		ConnID:     conn,
		Direction:  dir,
		FrameType:  op.String(),
		Opcode:     byte(op),
		FIN:        true,
		PayloadLen: len(payload),
		PayloadHex: hex.EncodeToString([]byte(payload)),
	}
}

func TestSummarize(t *testing.T) {
	records := []FrameCapture{
		capture("b", 10, DirectionInbound, protocol.OpcodeText, "late"),
		capture("a", 1, DirectionInbound, protocol.OpcodeText, "one"),
		capture("a", 2, DirectionOutbound, protocol.OpcodeText, "one"),
		capture("a", 3, DirectionInbound, protocol.OpcodePing, "p"),
		capture("a", 4, DirectionOutbound, protocol.OpcodePong, "p"),
		capture("a", 5, DirectionInbound, protocol.OpcodeBinary, "two"),
		capture("a", 6, DirectionOutbound, protocol.OpcodeBinary, "TWO"),
		capture("a", 7, DirectionInbound, protocol.OpcodeText, "three"),
	}

	summaries := Summarize(records)
	require.Len(t, summaries, 2)

	a := summaries[0]
	assert.Equal(t, "a", a.ConnID)
	assert.Equal(t, 4, a.FramesIn)
	assert.Equal(t, 3, a.FramesOut)
	assert.Equal(t, len("one")+len("p")+len("two")+len("three"), a.BytesIn)
	assert.Equal(t, 1, a.Mismatched)
	assert.Equal(t, 1, a.Unechoed)
	assert.Equal(t, 2, a.Opcodes[protocol.OpcodeText.String()])
	assert.Equal(t, 6*time.Second, a.Duration())

	b := summaries[1]
	assert.Equal(t, "b", b.ConnID)
	assert.Equal(t, 1, b.Unechoed)
	assert.Zero(t, b.FramesOut)
}
