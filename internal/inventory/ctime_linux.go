//go:build linux

package inventory

import (
	"syscall"
	"time"
)

func ctimeBefore(st *syscall.Stat_t, current time.Time) bool {
	t := ctimeToTime(st)
	return t.Before(current)
}

func ctimeToTime(st *syscall.Stat_t) time.Time {
	return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
}
