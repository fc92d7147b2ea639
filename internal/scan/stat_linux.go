//go:build linux

package scan

import (
	"os"
	"syscall"
	"time"
)

// platformStat extracts link count, change time and access time.
func platformStat(info os.FileInfo) (links uint64, ctime, atime time.Time, ok bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return 0, time.Time{}, time.Time{}, false
	}
	return uint64(st.Nlink), time.Unix(st.Ctim.Unix()), time.Unix(st.Atim.Unix()), true // #nosec G115
}
