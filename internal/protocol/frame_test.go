package protocol

import (
	"bytes"
	"testing"
)

func TestOpcode_Valid(t *testing.T) {
	for op := 0; op < 16; op++ {
		want := false
		switch Opcode(op) {
		case OpcodeContinuation, OpcodeText, OpcodeBinary, OpcodeClose, OpcodePing, OpcodePong:
			want = true
		}
		if got := Opcode(op).Valid(); got != want {
			t.Errorf("Opcode(0x%X).Valid() = %v, want %v", op, got, want)
		}
	}
}

func TestOpcode_IsControl(t *testing.T) {
	tests := []struct {
		opcode Opcode
		want   bool
	}{
		{OpcodeContinuation, false},
		{OpcodeText, false},
		{OpcodeBinary, false},
		{OpcodeClose, true},
		{OpcodePing, true},
		{OpcodePong, true},
	}
	for _, tt := range tests {
		if got := tt.opcode.IsControl(); got != tt.want {
			t.Errorf("%s.IsControl() = %v, want %v", tt.opcode, got, tt.want)
		}
	}
}

func TestFrame_OpcodeString(t *testing.T) {
	tests := []struct {
		opcode Opcode
		want   string
	}{
		{OpcodeContinuation, "continuation"},
		{OpcodeText, "text"},
		{OpcodeBinary, "binary"},
		{OpcodeClose, "close"},
		{OpcodePing, "ping"},
		{OpcodePong, "pong"},
		{Opcode(0x3), "unknown(0x3)"},
		{Opcode(0xF), "unknown(0xF)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			f := &Frame{Opcode: tt.opcode}
			if got := f.OpcodeString(); got != tt.want {
				t.Errorf("OpcodeString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFrame_String(t *testing.T) {
	f := &Frame{FIN: true, Opcode: OpcodeText, Masked: true, Length: 5}
	want := "Frame{FIN=true, Opcode=text, Masked=true, Length=5}"
	if got := f.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestNewFrame(t *testing.T) {
	f := NewFrame(OpcodeBinary, []byte{1, 2, 3})
	if !f.FIN || f.Masked || f.Opcode != OpcodeBinary {
		t.Errorf("unexpected frame %s", f)
	}
	if f.Length != 3 || !f.Complete() {
		t.Errorf("length = %d, complete = %v", f.Length, f.Complete())
	}
}

func TestEncodeFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		want  []byte
	}{
		{
			name:  "unmasked text",
			frame: NewFrame(OpcodeText, []byte("Hello")),
			want:  []byte{0x81, 0x05, 'H', 'e', 'l', 'l', 'o'},
		},
		{
			name:  "masked text",
			frame: &Frame{FIN: true, Opcode: OpcodeText, Masked: true, MaskKey: [4]byte{0x37, 0xFA, 0x21, 0x3D}, Payload: []byte("Hello")},
			want:  helloMasked,
		},
		{
			name:  "empty pong",
			frame: NewFrame(OpcodePong, nil),
			want:  []byte{0x8A, 0x00},
		},
		{
			name:  "non-final binary",
			frame: &Frame{Opcode: OpcodeBinary, Payload: []byte{0xFF}},
			want:  []byte{0x02, 0x01, 0xFF},
		},
		{
			name:  "reserved bit preserved",
			frame: &Frame{FIN: true, RSV1: true, Opcode: OpcodeText},
			want:  []byte{0xC1, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeFrame(tt.frame)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeFrame() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestEncodeFrame_LengthForms(t *testing.T) {
	tests := []struct {
		size       int
		wantHeader []byte
	}{
		{125, []byte{0x82, 0x7D}},
		{126, []byte{0x82, 0x7E, 0x00, 0x7E}},
		{0xFFFF, []byte{0x82, 0x7E, 0xFF, 0xFF}},
		{0x10000, []byte{0x82, 0x7F, 0, 0, 0, 0, 0, 0x01, 0x00, 0x00}},
	}

	for _, tt := range tests {
		wire := EncodeFrame(NewFrame(OpcodeBinary, make([]byte, tt.size)))
		if !bytes.HasPrefix(wire, tt.wantHeader) {
			t.Errorf("size %d: header = % X, want % X", tt.size, wire[:len(tt.wantHeader)], tt.wantHeader)
		}
		if len(wire) != len(tt.wantHeader)+tt.size {
			t.Errorf("size %d: encoded length = %d", tt.size, len(wire))
		}
		if HeaderSize(uint64(tt.size), false) != len(tt.wantHeader) {
			t.Errorf("size %d: HeaderSize = %d, want %d", tt.size, HeaderSize(uint64(tt.size), false), len(tt.wantHeader))
		}
	}
}

func TestEncodeFrame_DoesNotMaskSource(t *testing.T) {
	payload := []byte("keep me")
	f := &Frame{FIN: true, Opcode: OpcodeText, Masked: true, MaskKey: [4]byte{1, 2, 3, 4}, Payload: payload}
	_ = EncodeFrame(f)
	if string(payload) != "keep me" {
		t.Errorf("source payload modified: %q", payload)
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte("x"),
		bytes.Repeat([]byte("ab"), 62),
		bytes.Repeat([]byte("abc"), 1000),
		bytes.Repeat([]byte{0x00, 0xFF}, 40000),
	}

	for _, payload := range payloads {
		wire := EncodeFrame(NewFrame(OpcodeBinary, payload))
		p := NewParser()
		f, n, err := p.Next(wire)
		if err != nil {
			t.Fatalf("len %d: Next() error = %v", len(payload), err)
		}
		if f == nil || n != len(wire) {
			t.Fatalf("len %d: frame = %v, consumed = %d", len(payload), f, n)
		}
		if !bytes.Equal(f.Payload, payload) {
			t.Errorf("len %d: payload mismatch", len(payload))
		}
	}
}
