package measure_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	ms "github.com/takanoriyanagitani/go-rowdump2parquet/measure"
)

func TestFileSizeMB(t *testing.T) {
	t.Parallel()

	t.Run("matches stat", func(t *testing.T) {
		var path string = filepath.Join(t.TempDir(), "blob.bin")
		require.NoError(t, os.WriteFile(path, make([]byte, 3*1024*1024+512), 0o644))

		info, e := os.Stat(path)
		require.NoError(t, e)

		mb, e := ms.FileSizeMB(path)
		require.NoError(t, e)
		assert.InDelta(t, float64(info.Size())/1048576, mb, 1e-9)
		assert.InDelta(t, 3.00048828125, mb, 1e-9)
	})

	t.Run("missing", func(t *testing.T) {
		_, e := ms.FileSizeMB(filepath.Join(t.TempDir(), "absent"))
		assert.ErrorIs(t, e, rp.ErrNotFound)
	})
}

func TestProcessMemoryMB(t *testing.T) {
	t.Parallel()

	mb, e := ms.ProcessMemoryMB()
	require.NoError(t, e)
	assert.Greater(t, mb, 0.0)
	assert.False(t, math.IsInf(mb, 0))
	assert.False(t, math.IsNaN(mb))
}

func TestTimed(t *testing.T) {
	t.Parallel()

	calls := 0
	timing, e := ms.Timed(func(_ context.Context) (string, error) {
		calls++
		time.Sleep(10 * time.Millisecond)
		return "done", nil
	})(context.Background())
	require.NoError(t, e)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "done", timing.Value)
	assert.GreaterOrEqual(t, timing.Elapsed, 10*time.Millisecond)
}

func TestTimedFunc(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0
	_, elapsed, e := ms.TimedFunc(func() (int, error) {
		calls++
		return 0, boom
	})
	assert.ErrorIs(t, e, boom)
	assert.Equal(t, 1, calls)
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
}

func TestMeasure(t *testing.T) {
	t.Parallel()

	measured, e := ms.Measure("alloc", func(_ context.Context) (int, error) {
		var buf []byte = make([]byte, 8*1024*1024)
		for i := range buf {
			buf[i] = byte(i)
		}
		return len(buf), nil
	})(context.Background())
	require.NoError(t, e)

	assert.Equal(t, 8*1024*1024, measured.Value)
	assert.Equal(t, "alloc", measured.Measurement.Operation)
	assert.False(t, measured.Measurement.HasSize)
	assert.False(t, math.IsNaN(measured.Measurement.MemoryDeltaMB))
}

func TestMeasureDeltaSign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{name: "growth", samples: []float64{10, 14.5}, want: 4.5},
		{name: "release", samples: []float64{10, 7}, want: -3},
		{name: "flat", samples: []float64{10, 10}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			var sample ms.MemorySampler = func() (float64, error) {
				var v float64 = tt.samples[calls]
				calls++
				return v, nil
			}

			measured, e := ms.MeasureWith(sample, tt.name, func(_ context.Context) (int, error) {
				return 1, nil
			})(context.Background())
			require.NoError(t, e)
			assert.Equal(t, 2, calls)
			assert.InDelta(t, tt.want, measured.Measurement.MemoryDeltaMB, 1e-9)
		})
	}

	_, e := ms.MeasureWith(func() (float64, error) { return 0, rp.ErrPermission }, "x",
		func(_ context.Context) (int, error) { return 1, nil },
	)(context.Background())
	assert.ErrorIs(t, e, rp.ErrPermission)
}

func TestMeasurePropagatesError(t *testing.T) {
	t.Parallel()

	_, e := ms.Measure("fail", func(_ context.Context) (int, error) {
		return 0, rp.ErrDeserialization
	})(context.Background())
	assert.ErrorIs(t, e, rp.ErrDeserialization)
}

func TestPrintMeasurement(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, ms.PrintMeasurement(&buf, rp.Measurement{
		Operation:     "convert hits (parquet/gzip)",
		Elapsed:       2500 * time.Millisecond,
		MemoryDeltaMB: 1,
	}.WithSize(0.25)))

	assert.Equal(t, "convert hits (parquet/gzip): time 2.50 s, memory 1.00 MB, size 0.25 MB\n", buf.String())
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ms.RenderSummary(&buf, []ms.SizeSummary{{
		Dataset:     "sessions",
		Rows:        1000,
		Columns:     8,
		Compression: "gzip",
		SourceMB:    4,
		ParquetMB:   1,
	}})

	var out string = buf.String()
	assert.Contains(t, out, "sessions")
	assert.Contains(t, out, "4.00")
	assert.Contains(t, out, "gzip")
}

func TestSizeSummaryRatio(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, ms.SizeSummary{SourceMB: 1}.Ratio())
	assert.Equal(t, 2.5, ms.SizeSummary{SourceMB: 5, ParquetMB: 2}.Ratio())
}
