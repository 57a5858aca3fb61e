//go:build linux

package measure

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
)

const statmPath string = "/proc/self/statm"

// residentBytes reads the resident page count (second field of statm).
func residentBytes() (int64, error) {
	raw, e := os.ReadFile(statmPath)
	if nil != e {
		return 0, rp.Classify(e)
	}
	return parseStatm(raw, unix.Getpagesize())
}

func parseStatm(raw []byte, pageSize int) (int64, error) {
	var fields [][]byte = bytes.Fields(raw)
	if len(fields) < 2 {
		return 0, fmt.Errorf("unexpected statm content: %q", raw)
	}
	pages, e := strconv.ParseInt(string(fields[1]), 10, 64)
	if nil != e {
		return 0, fmt.Errorf("invalid resident page count: %w", e)
	}
	return pages * int64(pageSize), nil
}
