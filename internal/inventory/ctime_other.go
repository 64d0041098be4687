//go:build !linux

package inventory

import (
	"syscall"
	"time"
)

// Non-Linux platforms fall straight back to mtime; only Linux's Stat_t
// layout is assumed above.
func ctimeBefore(*syscall.Stat_t, time.Time) bool { return false }

func ctimeToTime(*syscall.Stat_t) time.Time { return time.Time{} }
