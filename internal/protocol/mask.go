package protocol

// ApplyMask XORs b in place with the cyclic 4-byte key (RFC 6455 section 5.3).
// Applying it twice with the same key restores the original bytes.
func ApplyMask(b []byte, key [4]byte) {
	for i := range b {
		b[i] ^= key[i&3]
	}
}

// MaskBytes returns a masked copy of b, leaving b untouched.
func MaskBytes(b []byte, key [4]byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[i] ^ key[i&3]
	}
	return out
}
