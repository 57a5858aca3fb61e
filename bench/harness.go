package bench

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	cl "github.com/takanoriyanagitani/go-rowdump2parquet/clean"
	cfg "github.com/takanoriyanagitani/go-rowdump2parquet/config"
	ms "github.com/takanoriyanagitani/go-rowdump2parquet/measure"
	pr "github.com/takanoriyanagitani/go-rowdump2parquet/reader"
	rd "github.com/takanoriyanagitani/go-rowdump2parquet/rowdump"
	. "github.com/takanoriyanagitani/go-rowdump2parquet/util"
	pw "github.com/takanoriyanagitani/go-rowdump2parquet/writer"
)

type Result struct {
	RunID        string
	Measurements []rp.Measurement
	Summaries    []ms.SizeSummary
}

// Plan runs load, convert and reload for every configured dataset, one
// step after another.
type Plan struct {
	Config cfg.Config
	Write  pw.WriteConfig
	Out    io.Writer
	Log    *Logger

	// refs collects the key sets later datasets are cleaned against.
	refs cl.Refs
}

func NewPlan(conf cfg.Config, out io.Writer, log *Logger) (Plan, error) {
	wc, e := conf.WriteConfig()
	if nil != e {
		return Plan{}, e
	}
	if nil == log {
		log = NoopLogger()
	}
	return Plan{Config: conf, Write: wc, Out: out, Log: log}, nil
}

func (p Plan) codec() string {
	if "" == p.Config.Compression {
		return pw.CompressionDefault
	}
	return p.Config.Compression
}

// step measures op, attaches the size of sizeOf (when not empty), prints
// the measurement line and records it. A canceled ctx stops the run before
// op starts.
func step[T any](
	p Plan,
	log *Logger,
	res *Result,
	name string,
	sizeOf string,
	op IO[T],
) IO[T] {
	return func(ctx context.Context) (t T, e error) {
		e = ctx.Err()
		if nil != e {
			log.LogFailure(ctx, name, e)
			return t, e
		}

		measured, e := ms.Measure(name, op)(ctx)
		if nil != e {
			log.LogFailure(ctx, name, e)
			return t, e
		}

		var m rp.Measurement = measured.Measurement
		if "" != sizeOf {
			size, e := ms.FileSizeMB(sizeOf)
			if nil != e {
				return t, e
			}
			m = m.WithSize(size)
		}

		log.LogMeasurement(ctx, m)
		res.Measurements = append(res.Measurements, m)
		return measured.Value, ms.PrintMeasurement(p.Out, m)
	}
}

func checkReload(original, reloaded rp.Dataset) error {
	if !rp.SameColumnSet(original, reloaded) {
		return fmt.Errorf(
			"%w: rowdump %v, parquet %v",
			rp.ErrColumnMismatch, original.ColumnNames(), reloaded.ColumnNames(),
		)
	}
	if original.Rows() != reloaded.Rows() {
		return fmt.Errorf(
			"%w: rowdump has %d rows, parquet %d",
			rp.ErrColumnMismatch, original.Rows(), reloaded.Rows(),
		)
	}
	return nil
}

// clean runs the measured clean step when cleaning is enabled, then keeps
// the key sets that later datasets reference.
func (p Plan) clean(
	ctx context.Context,
	log *Logger,
	res *Result,
	name string,
	ds rp.Dataset,
) (rp.Dataset, error) {
	if !p.Config.Clean.Enabled {
		return ds, nil
	}

	rules, found := p.Config.Clean.RulesFor(name)
	if found {
		cleaned, e := step(p, log, res,
			fmt.Sprintf("clean %s", name),
			"",
			rules.Cleaner(p.refs)(ds),
		)(ctx)
		if nil != e {
			return ds, e
		}
		log.LogCleaned(ctx, cleaned.Report)
		ds = cleaned.Dataset
	}

	if nil == p.refs {
		return ds, nil
	}
	for _, dc := range p.Config.Datasets {
		later, found := p.Config.Clean.RulesFor(dc.Name)
		if !found {
			continue
		}
		for _, ref := range later.References {
			if ref.Dataset != name {
				continue
			}
			keys, e := cl.KeysOf(ds, ref.Key)
			if nil != e {
				return ds, e
			}
			p.refs[cl.RefName(ref.Dataset, ref.Key)] = keys
		}
	}
	return ds, nil
}

func (p Plan) RunDataset(dc cfg.DatasetConfig, res *Result) IO[Void] {
	return func(ctx context.Context) (Void, error) {
		var log *Logger = p.Log.WithDataset(dc.Name)

		ds, e := step(p, log, res,
			fmt.Sprintf("load %s (rowdump)", dc.Name),
			dc.Source,
			rd.LoadIO(dc.Source),
		)(ctx)
		if nil != e {
			return Empty, e
		}

		ds, e = p.clean(ctx, log, res, dc.Name, ds)
		if nil != e {
			return Empty, e
		}

		_, e = step(p, log, res,
			fmt.Sprintf("convert %s (parquet/%s)", dc.Name, p.codec()),
			dc.Output,
			p.Write.ConvertDataset(ds, dc.Output),
		)(ctx)
		if nil != e {
			return Empty, e
		}

		reloaded, e := step(p, log, res,
			fmt.Sprintf("reload %s (parquet)", dc.Name),
			"",
			pr.LoadIO(dc.Output),
		)(ctx)
		if nil != e {
			return Empty, e
		}
		e = checkReload(ds, reloaded)
		if nil != e {
			return Empty, e
		}

		if 0 < len(dc.Columns) {
			_, e = step(p, log, res,
				fmt.Sprintf("reload %s (parquet, %d cols)", dc.Name, len(dc.Columns)),
				"",
				pr.LoadIO(dc.Output, dc.Columns...),
			)(ctx)
			if nil != e {
				return Empty, e
			}
		}

		sourceMB, e := ms.FileSizeMB(dc.Source)
		if nil != e {
			return Empty, e
		}
		parquetMB, e := ms.FileSizeMB(dc.Output)
		if nil != e {
			return Empty, e
		}
		res.Summaries = append(res.Summaries, ms.SizeSummary{
			Dataset:     dc.Name,
			Rows:        ds.Rows(),
			Columns:     len(ds.Columns),
			Compression: p.codec(),
			SourceMB:    sourceMB,
			ParquetMB:   parquetMB,
		})
		return Empty, nil
	}
}

// Run processes the datasets in configuration order and stops at the
// first error. The summary table is printed only for a complete run.
func (p Plan) Run() IO[Result] {
	return func(ctx context.Context) (Result, error) {
		var res Result = Result{RunID: uuid.NewString()}
		var log *Logger = p.Log.WithRun(res.RunID)
		log.InfoContext(ctx, "run started",
			"datasets", len(p.Config.Datasets),
			"compression", p.codec(),
		)

		var refs cl.Refs = cl.Refs{}
		var steps []IO[Void] = make([]IO[Void], 0, len(p.Config.Datasets))
		for _, dc := range p.Config.Datasets {
			steps = append(steps, Plan{
				Config: p.Config,
				Write:  p.Write,
				Out:    p.Out,
				Log:    log,
				refs:   refs,
			}.RunDataset(dc, &res))
		}

		_, e := All(steps...)(ctx)
		if nil != e {
			return res, e
		}

		ms.RenderSummary(p.Out, res.Summaries)
		log.InfoContext(ctx, "run finished", "operations", len(res.Measurements))
		return res, nil
	}
}
