//go:build linux || darwin

package sysutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaiseOpenFileLimit_NeverLowers(t *testing.T) {
	soft, _, err := OpenFileLimit()
	require.NoError(t, err)

	got, err := RaiseOpenFileLimit(1)
	require.NoError(t, err)
	assert.Equal(t, soft, got)
}

func TestRaiseOpenFileLimit_CappedAtHard(t *testing.T) {
	_, hard, err := OpenFileLimit()
	require.NoError(t, err)

	got, err := RaiseOpenFileLimit(^uint64(0))
	require.NoError(t, err)
	assert.LessOrEqual(t, got, hard)

	soft, _, err := OpenFileLimit()
	require.NoError(t, err)
	assert.Equal(t, soft, got)
}
