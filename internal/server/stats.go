package server

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Stats counts traffic on one connection. Safe for concurrent use.
type Stats struct {
	started   time.Time
	framesIn  atomic.Uint64
	framesOut atomic.Uint64
	bytesIn   atomic.Uint64
	bytesOut  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	FramesIn  uint64
	FramesOut uint64
	BytesIn   uint64
	BytesOut  uint64
	Duration  time.Duration
}

func newStats() *Stats {
	return &Stats{started: time.Now()}
}

func (s *Stats) addIn(frames, bytes uint64) {
	s.framesIn.Add(frames)
	s.bytesIn.Add(bytes)
}

func (s *Stats) addOut(frames, bytes uint64) {
	s.framesOut.Add(frames)
	s.bytesOut.Add(bytes)
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		FramesIn:  s.framesIn.Load(),
		FramesOut: s.framesOut.Load(),
		BytesIn:   s.bytesIn.Load(),
		BytesOut:  s.bytesOut.Load(),
		Duration:  time.Since(s.started),
	}
}

// Fields renders the snapshot as log fields.
func (s StatsSnapshot) Fields() []zap.Field {
	return []zap.Field{
		zap.Uint64("frames_in", s.FramesIn),
		zap.Uint64("frames_out", s.FramesOut),
		zap.Uint64("bytes_in", s.BytesIn),
		zap.Uint64("bytes_out", s.BytesOut),
		zap.Duration("duration", s.Duration),
	}
}
