package measure

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
)

func PrintMeasurement(w io.Writer, m rp.Measurement) error {
	_, e := fmt.Fprintln(w, m.String())
	return e
}

type SizeSummary struct {
	Dataset     string
	Rows        int
	Columns     int
	Compression string
	SourceMB    float64
	ParquetMB   float64
}

// Ratio is source size over parquet size; zero when the parquet size is.
func (s SizeSummary) Ratio() float64 {
	if 0 == s.ParquetMB {
		return 0
	}
	return s.SourceMB / s.ParquetMB
}

func RenderSummary(w io.Writer, rows []SizeSummary) {
	var table *tablewriter.Table = tablewriter.NewWriter(w)
	table.SetHeader([]string{
		"dataset", "rows", "columns", "codec", "rowdump MB", "parquet MB", "ratio",
	})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, row := range rows {
		table.Append([]string{
			row.Dataset,
			fmt.Sprintf("%d", row.Rows),
			fmt.Sprintf("%d", row.Columns),
			row.Compression,
			fmt.Sprintf("%.2f", row.SourceMB),
			fmt.Sprintf("%.2f", row.ParquetMB),
			fmt.Sprintf("%.2f", row.Ratio()),
		})
	}
	table.Render()
}
