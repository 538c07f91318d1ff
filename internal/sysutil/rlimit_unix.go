//go:build linux || darwin

package sysutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// RaiseOpenFileLimit raises the soft RLIMIT_NOFILE to n, capped at the hard
// limit, and returns the soft limit in effect afterwards. A limit already at
// or above n is left alone.
func RaiseOpenFileLimit(n uint64) (uint64, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, fmt.Errorf("failed to read open file limit: %w", err)
	}

	want := min(n, rl.Max)
	if rl.Cur >= want {
		return rl.Cur, nil
	}

	rl.Cur = want
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, fmt.Errorf("failed to raise open file limit to %d: %w", want, err)
	}

	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, fmt.Errorf("failed to read open file limit: %w", err)
	}
	return rl.Cur, nil
}

// OpenFileLimit returns the current soft and hard RLIMIT_NOFILE.
func OpenFileLimit() (soft, hard uint64, err error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, 0, fmt.Errorf("failed to read open file limit: %w", err)
	}
	return rl.Cur, rl.Max, nil
}
