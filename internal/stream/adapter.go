// Package stream turns transport-delivered byte chunks into WebSocket frames.
//
// An Adapter owns one connection's accumulation buffer and Parser. Chunks of
// any size are appended with OnBody, every frame they complete is handed to a
// Handler in arrival order, and any trailing partial frame is kept for the
// next chunk. A framing violation puts the Adapter in a failed state that it
// never leaves; the caller is expected to abort the connection.
//
// An Adapter is not safe for concurrent use.
package stream

import (
	"errors"
	"fmt"

	"github.com/muurk/wsecho/internal/protocol"
)

// Handler receives completed frames. A non-nil error does not stop dispatch:
// OnBody still delivers the rest of the buffered frames and returns every
// handler error joined. The adapter itself stays usable.
type Handler interface {
	HandleFrame(f *protocol.Frame) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(f *protocol.Frame) error

// HandleFrame calls fn(f).
func (fn HandlerFunc) HandleFrame(f *protocol.Frame) error {
	return fn(f)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithParserOptions passes options to the underlying Parser.
func WithParserOptions(opts ...protocol.ParserOption) Option {
	return func(a *Adapter) {
		a.parserOpts = append(a.parserOpts, opts...)
	}
}

// WithBufferSize sets the initial capacity of the accumulation buffer.
func WithBufferSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.buf = make([]byte, 0, n)
		}
	}
}

// Adapter feeds buffered bytes to a Parser and dispatches completed frames.
type Adapter struct {
	handler    Handler
	parser     *protocol.Parser
	parserOpts []protocol.ParserOption
	buf        []byte
	err        error

	frames uint64
	bytes  uint64
}

// NewAdapter returns an Adapter dispatching to h.
func NewAdapter(h Handler, opts ...Option) *Adapter {
	a := &Adapter{handler: h}
	for _, opt := range opts {
		opt(a)
	}
	a.parser = protocol.NewParser(a.parserOpts...)
	return a
}

// OnBody appends chunk and dispatches every frame the buffer now completes.
//
// It returns the parser's *protocol.ProtocolError on a framing violation and
// keeps returning it for every later call without parsing again. Handler
// errors are wrapped and joined with any violation that follows them.
func (a *Adapter) OnBody(chunk []byte) error {
	if a.err != nil {
		return a.err
	}

	a.buf = append(a.buf, chunk...)
	a.bytes += uint64(len(chunk))

	var errs []error
	for len(a.buf) > 0 {
		frame, n, err := a.parser.Next(a.buf)
		if err != nil {
			a.err = err
			a.buf = nil
			return errors.Join(append(errs, err)...)
		}
		a.consume(n)

		if frame == nil {
			break
		}
		a.frames++
		if err := a.handler.HandleFrame(frame); err != nil {
			errs = append(errs, fmt.Errorf("failed to handle %s frame: %w", frame.OpcodeString(), err))
		}
	}

	return errors.Join(errs...)
}

// consume drops the first n bytes, shifting the remainder to the front so
// the buffer's capacity is reused.
func (a *Adapter) consume(n int) {
	if n == len(a.buf) {
		a.buf = a.buf[:0]
		return
	}
	rest := copy(a.buf, a.buf[n:])
	a.buf = a.buf[:rest]
}

// Buffered returns the number of bytes received but not yet consumed by the
// parser. A partial frame header shorter than two bytes is the only thing
// that stays here; everything else moves into the parser.
func (a *Adapter) Buffered() int {
	return len(a.buf)
}

// Failed reports whether a framing violation has been seen.
func (a *Adapter) Failed() bool {
	return a.err != nil
}

// Err returns the framing violation, or nil.
func (a *Adapter) Err() error {
	return a.err
}

// State exposes the parser state, mainly for diagnostics.
func (a *Adapter) State() protocol.ParseState {
	return a.parser.State()
}

// Frames returns the number of frames dispatched so far.
func (a *Adapter) Frames() uint64 {
	return a.frames
}

// BytesIn returns the total number of bytes passed to OnBody.
func (a *Adapter) BytesIn() uint64 {
	return a.bytes
}
