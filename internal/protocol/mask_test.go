package protocol

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestApplyMask(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		maskKey [4]byte
		want    []byte
	}{
		{
			name:    "simple unmasking",
			payload: []byte{0xAB, 0xBA, 0xCD, 0xDC},
			maskKey: [4]byte{0xAA, 0xBB, 0xCC, 0xDD},
			want:    []byte{0x01, 0x01, 0x01, 0x01},
		},
		{
			name:    "empty payload",
			payload: []byte{},
			maskKey: [4]byte{0x01, 0x02, 0x03, 0x04},
			want:    []byte{},
		},
		{
			name:    "payload longer than mask key",
			payload: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
			maskKey: [4]byte{0xFF, 0x00, 0xFF, 0x00},
			want:    []byte{0xFE, 0x02, 0xFC, 0x04, 0xFA, 0x06, 0xF8, 0x08},
		},
		{
			name:    "rfc example",
			payload: []byte{0x7F, 0x9F, 0x4D, 0x51, 0x58},
			maskKey: [4]byte{0x37, 0xFA, 0x21, 0x3D},
			want:    []byte("Hello"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskBytes(tt.payload, tt.maskKey)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("MaskBytes() = %x, want %x", got, tt.want)
			}

			inPlace := append([]byte{}, tt.payload...)
			ApplyMask(inPlace, tt.maskKey)
			if !bytes.Equal(inPlace, tt.want) {
				t.Errorf("ApplyMask() = %x, want %x", inPlace, tt.want)
			}
		})
	}
}

func TestMaskBytes_LeavesInputUntouched(t *testing.T) {
	in := []byte("unchanged")
	_ = MaskBytes(in, [4]byte{1, 2, 3, 4})
	if string(in) != "unchanged" {
		t.Errorf("input modified: %q", in)
	}
}

func TestApplyMask_Involution(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		payload := make([]byte, rng.Intn(300))
		rng.Read(payload)
		var key [4]byte
		rng.Read(key[:])

		masked := MaskBytes(payload, key)
		ApplyMask(masked, key)
		if !bytes.Equal(masked, payload) {
			t.Fatalf("iteration %d: unmask(mask(P)) != P", i)
		}
	}
}

func BenchmarkApplyMask(b *testing.B) {
	payload := make([]byte, 1024)
	key := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ApplyMask(payload, key)
	}
}
