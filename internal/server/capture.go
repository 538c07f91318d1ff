package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wsecho/internal/logging"
	"github.com/muurk/wsecho/internal/protocol"
)

// Frame directions recorded in captures
const (
	DirectionInbound  = "client->server"
	DirectionOutbound = "server->client"
)

// FrameCapture is one captured frame, written as a JSON line.
type FrameCapture struct {
	Timestamp    time.Time `json:"timestamp"`
	ConnID       string    `json:"conn_id"`
	Sequence     uint64    `json:"sequence"`
	RemoteAddr   string    `json:"remote_addr"`
	Direction    string    `json:"direction"`
	FrameType    string    `json:"frame_type"`
	Opcode       byte      `json:"opcode"`
	FIN          bool      `json:"fin"`
	Masked       bool      `json:"masked"`
	PayloadLen   int       `json:"payload_length"`
	PayloadHex   string    `json:"payload_hex"`
	PayloadASCII string    `json:"payload_ascii"`
}

// Capture appends frames to a daily JSONL file. A nil *Capture or one with
// an empty directory records nothing.
type Capture struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewCapture returns a Capture writing under dir, creating it if needed.
// An empty dir disables capturing.
func NewCapture(dir string) (*Capture, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create analysis directory: %w", err)
	}
	return &Capture{dir: dir, now: time.Now}, nil
}

// Filename returns the capture file used for t.
func (c *Capture) Filename(t time.Time) string {
	return filepath.Join(c.dir, fmt.Sprintf("capture-%s.jsonl", t.Format("20060102")))
}

// Record appends f to the capture file. Failures are logged, not returned.
func (c *Capture) Record(connID, remoteAddr, direction string, seq uint64, f *protocol.Frame) {
	if c == nil || c.dir == "" {
		return
	}

	ts := c.now()
	rec := FrameCapture{
		Timestamp:    ts,
		ConnID:       connID,
		Sequence:     seq,
		RemoteAddr:   remoteAddr,
		Direction:    direction,
		FrameType:    f.OpcodeString(),
		Opcode:       byte(f.Opcode),
		FIN:          f.FIN,
		Masked:       f.Masked,
		PayloadLen:   len(f.Payload),
		PayloadHex:   hex.EncodeToString(f.Payload),
		PayloadASCII: toASCII(f.Payload),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		logging.Error("Failed to marshal frame capture", zap.Error(err))
		return
	}

	filename := c.Filename(ts)

	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Error("Failed to open analysis file",
			zap.String("filename", filename),
			zap.Error(err),
		)
		return
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(append(data, '\n')); err != nil {
		logging.Error("Failed to write to analysis file",
			zap.String("filename", filename),
			zap.Error(err),
		)
	}
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}
