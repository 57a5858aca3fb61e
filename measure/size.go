package measure

import (
	"os"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
)

const BytesPerMB float64 = 1024 * 1024

func BytesToMB(b int64) float64 { return float64(b) / BytesPerMB }

// FileSizeMB returns the size of the file in binary megabytes.
func FileSizeMB(path string) (float64, error) {
	info, e := os.Stat(path)
	if nil != e {
		return 0, rp.Classify(e)
	}
	return BytesToMB(info.Size()), nil
}
