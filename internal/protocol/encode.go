package protocol

import (
	"encoding/binary"
)

// HeaderSize returns the encoded header size for a payload of the given
// length, with or without a masking key.
func HeaderSize(length uint64, masked bool) int {
	size := 2
	switch {
	case length > 0xFFFF:
		size += 8
	case length > maxInlineLn:
		size += 2
	}
	if masked {
		size += 4
	}
	return size
}

// AppendFrame appends the wire encoding of f to dst and returns the extended
// slice. The length is taken from len(f.Payload) and always uses the minimal
// form. When f.Masked is set the payload is masked with f.MaskKey on the wire;
// f.Payload itself is not modified.
func AppendFrame(dst []byte, f *Frame) []byte {
	length := uint64(len(f.Payload))

	var b0 byte
	if f.FIN {
		b0 |= finBit
	}
	if f.RSV1 {
		b0 |= rsv1Bit
	}
	if f.RSV2 {
		b0 |= rsv2Bit
	}
	if f.RSV3 {
		b0 |= rsv3Bit
	}
	b0 |= byte(f.Opcode) & opcodeMask

	var b1 byte
	if f.Masked {
		b1 = maskBit
	}

	var ext [8]byte
	var extLen int
	switch {
	case length <= maxInlineLn:
		b1 |= byte(length)
	case length <= 0xFFFF:
		b1 |= length16
		binary.BigEndian.PutUint16(ext[:2], uint16(length))
		extLen = 2
	default:
		b1 |= length64
		binary.BigEndian.PutUint64(ext[:], length)
		extLen = 8
	}

	dst = append(dst, b0, b1)
	dst = append(dst, ext[:extLen]...)
	if !f.Masked {
		return append(dst, f.Payload...)
	}

	dst = append(dst, f.MaskKey[:]...)
	start := len(dst)
	dst = append(dst, f.Payload...)
	ApplyMask(dst[start:], f.MaskKey)
	return dst
}

// EncodeFrame returns the wire encoding of f in a freshly allocated slice.
func EncodeFrame(f *Frame) []byte {
	buf := make([]byte, 0, HeaderSize(uint64(len(f.Payload)), f.Masked)+len(f.Payload))
	return AppendFrame(buf, f)
}
