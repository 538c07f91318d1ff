package protocol

import (
	"errors"
	"fmt"
)

// ErrProtocolViolation is matched (via errors.Is) by every framing error the
// parser reports. A connection that produced one must be aborted.
var ErrProtocolViolation = errors.New("websocket protocol violation")

// Reasons a frame is rejected
var (
	ErrReservedBits      = errors.New("reserved bits set without a negotiated extension")
	ErrInvalidOpcode     = errors.New("invalid opcode")
	ErrLengthOverflow    = errors.New("64-bit payload length has the most significant bit set")
	ErrNonMinimalLength  = errors.New("payload length not encoded in the minimal form")
	ErrFrameTooLarge     = errors.New("payload length exceeds the configured maximum")
	ErrControlTooLarge   = errors.New("control frame payload exceeds 125 bytes")
	ErrFragmentedControl = errors.New("control frame is fragmented")
)

// ProtocolError describes a framing violation detected by the Parser.
type ProtocolError struct {
	Reason error
	Opcode Opcode
	Length uint64
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%v: %v (opcode=%s, length=%d)", ErrProtocolViolation, e.Reason, e.Opcode, e.Length)
}

// Unwrap returns the specific violation reason.
func (e *ProtocolError) Unwrap() error {
	return e.Reason
}

// Is makes every ProtocolError match ErrProtocolViolation.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocolViolation
}
