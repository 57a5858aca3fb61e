package measure

import (
	"context"
	"time"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	. "github.com/takanoriyanagitani/go-rowdump2parquet/util"
)

type Timing[T any] struct {
	Value   T
	Elapsed time.Duration
}

// Timed runs op once on the calling goroutine and records its wall-clock
// duration. The elapsed time is reported even when op fails.
func Timed[T any](op IO[T]) IO[Timing[T]] {
	return func(ctx context.Context) (Timing[T], error) {
		var started time.Time = time.Now()
		t, e := op(ctx)
		return Timing[T]{Value: t, Elapsed: time.Since(started)}, e
	}
}

func TimedFunc[T any](op func() (T, error)) (T, time.Duration, error) {
	timing, e := Timed(func(_ context.Context) (T, error) {
		return op()
	})(context.Background())
	return timing.Value, timing.Elapsed, e
}

type Measured[T any] struct {
	Value       T
	Measurement rp.Measurement
}

// MemorySampler reports the current process memory in MB.
type MemorySampler func() (float64, error)

// Measure wraps op with timing and a before/after RSS sample. The memory
// delta is the sample after op minus the sample before it, so growth is
// positive and a negative value means pages were released while op ran.
// It is best-effort: it attributes every process-wide change during op to
// op.
func Measure[T any](name string, op IO[T]) IO[Measured[T]] {
	return MeasureWith(ProcessMemoryMB, name, op)
}

// MeasureWith is Measure with an explicit memory source.
func MeasureWith[T any](sample MemorySampler, name string, op IO[T]) IO[Measured[T]] {
	return func(ctx context.Context) (Measured[T], error) {
		var ret Measured[T]

		before, e := sample()
		if nil != e {
			return ret, e
		}

		timing, e := Timed(op)(ctx)
		if nil != e {
			return ret, e
		}

		after, e := sample()
		if nil != e {
			return ret, e
		}

		ret.Value = timing.Value
		ret.Measurement = rp.Measurement{
			Operation:     name,
			Elapsed:       timing.Elapsed,
			MemoryDeltaMB: after - before,
		}
		return ret, nil
	}
}
