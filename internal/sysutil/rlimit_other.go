//go:build !(linux || darwin)

package sysutil

// RaiseOpenFileLimit is a no-op on platforms without RLIMIT_NOFILE.
func RaiseOpenFileLimit(n uint64) (uint64, error) {
	return 0, ErrUnsupported
}

// OpenFileLimit is unsupported on this platform.
func OpenFileLimit() (soft, hard uint64, err error) {
	return 0, 0, ErrUnsupported
}
