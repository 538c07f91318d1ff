package protocol

import (
	"encoding/binary"
	"fmt"
)

// ParseState is the position of a Parser inside the frame it is assembling.
type ParseState int

const (
	// StateWaitingForHeader needs the two fixed header bytes.
	StateWaitingForHeader ParseState = iota
	// StateWaitingForExtendedLength16 accumulates a 16-bit big-endian length.
	StateWaitingForExtendedLength16
	// StateWaitingForExtendedLength64 accumulates a 64-bit big-endian length.
	StateWaitingForExtendedLength64
	// StateWaitingForMaskingKey accumulates the 4-byte masking key.
	StateWaitingForMaskingKey
	// StateWaitingForPayload copies payload bytes until Length is reached.
	StateWaitingForPayload
	// StateFrameComplete holds a full, unmasked frame.
	StateFrameComplete
	// StateError is terminal: the stream violated the framing rules.
	StateError
)

func (s ParseState) String() string {
	switch s {
	case StateWaitingForHeader:
		return "waiting_for_header"
	case StateWaitingForExtendedLength16:
		return "waiting_for_extended_length_16"
	case StateWaitingForExtendedLength64:
		return "waiting_for_extended_length_64"
	case StateWaitingForMaskingKey:
		return "waiting_for_masking_key"
	case StateWaitingForPayload:
		return "waiting_for_payload"
	case StateFrameComplete:
		return "frame_complete"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("ParseState(%d)", int(s))
	}
}

const (
	// DefaultMaxPayload bounds the payload of a single frame.
	DefaultMaxPayload = 16 << 20

	// maxPrealloc caps the payload capacity reserved up front; larger payloads
	// grow as their bytes actually arrive.
	maxPrealloc = 64 << 10
)

// Parser reconstructs WebSocket frames from an arbitrarily fragmented byte
// stream. It keeps only the minimum state needed to resume after any
// truncation point: the current state, the frame being assembled, and a
// fixed scratch array for the multi-byte length and masking key fields.
//
// A Parser is owned by a single connection and must not be used concurrently.
type Parser struct {
	state ParseState
	frame Frame

	scratch [8]byte
	needed  int // size of the field being accumulated in scratch
	filled  int // bytes of that field received so far

	maxPayload uint64
	err        error
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMaxPayload sets the largest accepted payload length. Zero disables the limit.
func WithMaxPayload(n uint64) ParserOption {
	return func(p *Parser) {
		p.maxPayload = n
	}
}

// NewParser returns a Parser waiting for the first frame header.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		state:      StateWaitingForHeader,
		maxPayload: DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current parser state.
func (p *Parser) State() ParseState {
	return p.state
}

// Err returns the violation that moved the parser to StateError, or nil.
func (p *Parser) Err() error {
	return p.err
}

// Frame returns a copy of the completed frame, or nil unless the parser is in
// StateFrameComplete.
func (p *Parser) Frame() *Frame {
	if p.state != StateFrameComplete {
		return nil
	}
	f := p.frame
	return &f
}

// Reset discards all progress and waits for a new frame header. It also
// clears a previous error.
func (p *Parser) Reset() {
	p.state = StateWaitingForHeader
	p.frame = Frame{}
	p.scratch = [8]byte{}
	p.needed = 0
	p.filled = 0
	p.err = nil
}

// Parse makes as much progress as buf allows and returns the number of
// leading bytes of buf it consumed. Bytes held in the parser's scratch or
// payload accumulator count as consumed; the caller must not offer them again.
//
// Parsing stops as soon as a frame completes, so trailing bytes that belong
// to the next frame are left unconsumed. A parser left in StateFrameComplete
// is reset before any new byte is read.
//
// A zero return with a nil error means more data is needed. Once the parser
// is in StateError every call returns 0 and the same *ProtocolError.
// buf is never retained past the call.
func (p *Parser) Parse(buf []byte) (int, error) {
	switch p.state {
	case StateError:
		return 0, p.err
	case StateFrameComplete:
		p.Reset()
	}

	consumed := 0
	for p.state != StateFrameComplete {
		before := p.state
		n, err := p.step(buf[consumed:])
		if err != nil {
			p.fail(err)
			return 0, p.err
		}
		consumed += n
		if n == 0 && p.state == before {
			break
		}
	}
	return consumed, nil
}

// Next parses buf and, when that completes a frame, returns the frame and
// resets the parser in the same call. The returned count is the number of
// bytes consumed whether or not a frame was produced.
func (p *Parser) Next(buf []byte) (*Frame, int, error) {
	n, err := p.Parse(buf)
	if err != nil {
		return nil, 0, err
	}
	if p.state != StateFrameComplete {
		return nil, n, nil
	}
	f := p.frame
	p.Reset()
	return &f, n, nil
}

func (p *Parser) step(b []byte) (int, error) {
	switch p.state {
	case StateWaitingForHeader:
		return p.readHeader(b)
	case StateWaitingForExtendedLength16, StateWaitingForExtendedLength64:
		return p.readExtendedLength(b)
	case StateWaitingForMaskingKey:
		return p.readMaskingKey(b), nil
	case StateWaitingForPayload:
		return p.readPayload(b), nil
	}
	return 0, nil
}

func (p *Parser) readHeader(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, nil
	}

	f := &p.frame
	f.FIN = b[0]&finBit != 0
	f.RSV1 = b[0]&rsv1Bit != 0
	f.RSV2 = b[0]&rsv2Bit != 0
	f.RSV3 = b[0]&rsv3Bit != 0
	f.Opcode = Opcode(b[0] & opcodeMask)
	f.Masked = b[1]&maskBit != 0

	if f.RSV1 || f.RSV2 || f.RSV3 {
		return 0, ErrReservedBits
	}
	if !f.Opcode.Valid() {
		return 0, ErrInvalidOpcode
	}
	if f.Opcode.IsControl() && !f.FIN {
		return 0, ErrFragmentedControl
	}

	switch n := b[1] & lengthMask; n {
	case length16, length64:
		if f.Opcode.IsControl() {
			return 0, ErrControlTooLarge
		}
		if n == length16 {
			p.accumulate(StateWaitingForExtendedLength16, 2)
		} else {
			p.accumulate(StateWaitingForExtendedLength64, 8)
		}
	default:
		if err := p.setLength(uint64(n)); err != nil {
			return 0, err
		}
	}
	return 2, nil
}

func (p *Parser) readExtendedLength(b []byte) (int, error) {
	n, done := p.fill(b)
	if !done {
		return n, nil
	}

	var length uint64
	if p.state == StateWaitingForExtendedLength16 {
		length = uint64(binary.BigEndian.Uint16(p.scratch[:2]))
		if length <= maxInlineLn {
			return n, ErrNonMinimalLength
		}
	} else {
		length = binary.BigEndian.Uint64(p.scratch[:8])
		if length>>63 != 0 {
			return n, ErrLengthOverflow
		}
		if length <= 0xFFFF {
			return n, ErrNonMinimalLength
		}
	}

	p.clearScratch()
	return n, p.setLength(length)
}

func (p *Parser) readMaskingKey(b []byte) int {
	n, done := p.fill(b)
	if !done {
		return n
	}
	copy(p.frame.MaskKey[:], p.scratch[:4])
	p.clearScratch()
	p.beginPayload()
	return n
}

func (p *Parser) readPayload(b []byte) int {
	f := &p.frame
	remaining := f.Length - uint64(len(f.Payload))
	take := len(b)
	if uint64(take) > remaining {
		take = int(remaining)
	}
	f.Payload = append(f.Payload, b[:take]...)

	if uint64(len(f.Payload)) == f.Length {
		if f.Masked {
			ApplyMask(f.Payload, f.MaskKey)
		}
		p.state = StateFrameComplete
	}
	return take
}

// setLength records the final payload length and moves on to the masking
// key or the payload.
func (p *Parser) setLength(n uint64) error {
	if p.frame.Opcode.IsControl() && n > MaxControlPayload {
		return ErrControlTooLarge
	}
	if p.maxPayload > 0 && n > p.maxPayload {
		p.frame.Length = n
		return ErrFrameTooLarge
	}
	p.frame.Length = n

	if p.frame.Masked {
		p.accumulate(StateWaitingForMaskingKey, 4)
		return nil
	}
	p.beginPayload()
	return nil
}

func (p *Parser) beginPayload() {
	p.state = StateWaitingForPayload
	p.frame.Payload = make([]byte, 0, int(min(p.frame.Length, maxPrealloc)))
}

func (p *Parser) accumulate(next ParseState, size int) {
	p.state = next
	p.needed = size
	p.filled = 0
}

// fill copies as much of the pending field as b holds into scratch.
func (p *Parser) fill(b []byte) (int, bool) {
	n := copy(p.scratch[p.filled:p.needed], b)
	p.filled += n
	return n, p.filled == p.needed
}

func (p *Parser) clearScratch() {
	p.scratch = [8]byte{}
	p.needed = 0
	p.filled = 0
}

func (p *Parser) fail(reason error) {
	p.state = StateError
	p.err = &ProtocolError{
		Reason: reason,
		Opcode: p.frame.Opcode,
		Length: p.frame.Length,
	}
	p.frame.Payload = nil
}
