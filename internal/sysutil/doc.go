// Package sysutil adjusts process limits the server depends on.
//
// A busy echo server holds one descriptor per connection, so the server
// raises its open file limit at startup. On platforms without
// RLIMIT_NOFILE the calls return ErrUnsupported and the caller carries on
// with whatever the system grants.
package sysutil

import "errors"

// ErrUnsupported is returned where the platform has no adjustable limit.
var ErrUnsupported = errors.New("open file limit not supported on this platform")
