package protocol

import (
	"fmt"
)

// Opcode identifies the purpose of a WebSocket frame.
type Opcode byte

// WebSocket frame opcodes
const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA
)

// Header bit masks and length markers (RFC 6455 section 5.2)
const (
	finBit      = 0x80
	rsv1Bit     = 0x40
	rsv2Bit     = 0x20
	rsv3Bit     = 0x10
	opcodeMask  = 0x0F
	maskBit     = 0x80
	lengthMask  = 0x7F
	length16    = 126
	length64    = 127
	maxInlineLn = 125

	// MaxControlPayload is the largest payload a control frame may carry.
	MaxControlPayload = 125

	// MaxHeaderSize is the largest possible frame header: 2 + 8 length + 4 mask.
	MaxHeaderSize = 14
)

// Valid reports whether o is one of the six opcodes defined by RFC 6455.
func (o Opcode) Valid() bool {
	switch o {
	case OpcodeContinuation, OpcodeText, OpcodeBinary, OpcodeClose, OpcodePing, OpcodePong:
		return true
	}
	return false
}

// IsControl reports whether o is a control opcode (close, ping, pong).
func (o Opcode) IsControl() bool {
	return o&0x8 != 0
}

// String returns a human-readable opcode name
func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(0x%X)", byte(o))
	}
}

// Frame represents a single WebSocket frame.
//
// A Frame handed out by the Parser is always complete: len(Payload) == Length
// and the payload has already been unmasked.
type Frame struct {
	FIN     bool
	RSV1    bool
	RSV2    bool
	RSV3    bool
	Opcode  Opcode
	Masked  bool
	Length  uint64
	MaskKey [4]byte
	Payload []byte
}

// NewFrame builds a final, unmasked frame carrying payload.
func NewFrame(opcode Opcode, payload []byte) *Frame {
	return &Frame{
		FIN:     true,
		Opcode:  opcode,
		Length:  uint64(len(payload)),
		Payload: payload,
	}
}

// OpcodeString returns a human-readable opcode name
func (f *Frame) OpcodeString() string {
	return f.Opcode.String()
}

// Complete reports whether the full payload has been received.
func (f *Frame) Complete() bool {
	return uint64(len(f.Payload)) == f.Length
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{FIN=%v, Opcode=%s, Masked=%v, Length=%d}",
		f.FIN, f.OpcodeString(), f.Masked, f.Length)
}
