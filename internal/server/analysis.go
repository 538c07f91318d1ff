package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/muurk/wsecho/internal/protocol"
)

// maxCaptureLine bounds one JSONL record; a 16 MiB payload is 32 MiB of hex.
const maxCaptureLine = 64 << 20

// ReadCaptures decodes JSONL frame captures from r. Blank lines are skipped.
func ReadCaptures(r io.Reader) ([]FrameCapture, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxCaptureLine)

	var records []FrameCapture
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec FrameCapture
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read captures: %w", err)
	}
	return records, nil
}

// ConnSummary aggregates the captured frames of one connection.
type ConnSummary struct {
	ConnID     string
	RemoteAddr string
	First      time.Time
	Last       time.Time
	FramesIn   int
	FramesOut  int
	BytesIn    int
	BytesOut   int
	Opcodes    map[string]int // inbound frames by type
	Unechoed   int            // inbound data frames with no matching echo
	Mismatched int            // echoes whose payload differs from the inbound frame
}

// Duration is the time between the first and last captured frame.
func (s *ConnSummary) Duration() time.Duration {
	return s.Last.Sub(s.First)
}

// Summarize groups records by connection, ordered by first frame. Inbound
// data frames are paired with outbound data frames in sequence order to
// check the echo.
func Summarize(records []FrameCapture) []*ConnSummary {
	byConn := make(map[string]*ConnSummary)
	pending := make(map[string][]FrameCapture)

	sorted := make([]FrameCapture, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ConnID != sorted[j].ConnID {
			return sorted[i].ConnID < sorted[j].ConnID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	for _, rec := range sorted {
		s, ok := byConn[rec.ConnID]
		if !ok {
			s = &ConnSummary{
				ConnID:     rec.ConnID,
				RemoteAddr: rec.RemoteAddr,
				First:      rec.Timestamp,
				Opcodes:    make(map[string]int),
			}
			byConn[rec.ConnID] = s
		}
		if rec.Timestamp.After(s.Last) {
			s.Last = rec.Timestamp
		}

		op := protocol.Opcode(rec.Opcode)
		data := op.Valid() && !op.IsControl()
		switch rec.Direction {
		case DirectionInbound:
			s.FramesIn++
			s.BytesIn += rec.PayloadLen
			s.Opcodes[rec.FrameType]++
			if data {
				pending[rec.ConnID] = append(pending[rec.ConnID], rec)
			}
		case DirectionOutbound:
			s.FramesOut++
			s.BytesOut += rec.PayloadLen
			if !data {
				continue
			}
			queue := pending[rec.ConnID]
			if len(queue) == 0 {
				continue
			}
			in := queue[0]
			pending[rec.ConnID] = queue[1:]
			if in.PayloadHex != rec.PayloadHex || in.Opcode != rec.Opcode || in.FIN != rec.FIN {
				s.Mismatched++
			}
		}
	}

	summaries := make([]*ConnSummary, 0, len(byConn))
	for id, s := range byConn {
		s.Unechoed = len(pending[id])
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].First.Equal(summaries[j].First) {
			return summaries[i].First.Before(summaries[j].First)
		}
		return summaries[i].ConnID < summaries[j].ConnID
	})
	return summaries
}
