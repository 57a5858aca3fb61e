//go:build unix && !linux

package measure

import (
	"runtime"

	"golang.org/x/sys/unix"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
)

// residentBytes falls back to the peak RSS reported by getrusage; there is
// no portable current-RSS counter outside of procfs.
func residentBytes() (int64, error) {
	var usage unix.Rusage
	e := unix.Getrusage(unix.RUSAGE_SELF, &usage)
	if nil != e {
		return 0, rp.Classify(e)
	}
	var maxrss int64 = int64(usage.Maxrss)
	if "darwin" == runtime.GOOS || "ios" == runtime.GOOS {
		return maxrss, nil
	}
	return maxrss * 1024, nil
}
