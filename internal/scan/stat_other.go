//go:build !linux

package scan

import (
	"os"
	"time"
)

func platformStat(os.FileInfo) (uint64, time.Time, time.Time, bool) {
	return 0, time.Time{}, time.Time{}, false
}
