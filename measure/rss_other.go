//go:build !unix

package measure

import (
	"fmt"
	"runtime"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
)

func residentBytes() (int64, error) {
	return 0, fmt.Errorf("%w: no rss counter on %s", rp.ErrPermission, runtime.GOOS)
}
