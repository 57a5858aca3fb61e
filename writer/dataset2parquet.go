package wtr

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/gofrs/flock"
	pq "github.com/parquet-go/parquet-go"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	. "github.com/takanoriyanagitani/go-rowdump2parquet/util"
)

const MetaColumns string = "rowdump2parquet.columns"

var (
	ErrInvalidColumnBuffer error = errors.New("invalid column buffer")
	ErrInvalidValueWriter  error = errors.New("invalid value writer")
	ErrNoColumns           error = errors.New("no columns")
)

type Writer func(rp.Dataset) IO[Void]

func NodeOf(k rp.Kind) (pq.Node, error) {
	switch k {
	case rp.KindInt64:
		return pq.Leaf(pq.Int64Type), nil
	case rp.KindFloat64:
		return pq.Leaf(pq.DoubleType), nil
	case rp.KindString:
		return pq.String(), nil
	case rp.KindBool:
		return pq.Leaf(pq.BooleanType), nil
	case rp.KindTimestamp:
		return pq.Timestamp(pq.Microsecond), nil
	default:
		return nil, fmt.Errorf("%w: %v", rp.ErrInvalidKind, k)
	}
}

// SchemaOf builds a flat schema of required leaves. Parquet groups order
// their fields by name; the dataset order is kept in MetaColumns.
func SchemaOf(ds rp.Dataset) (*pq.Schema, error) {
	var group pq.Group = make(pq.Group, len(ds.Columns))
	for _, col := range ds.Columns {
		node, e := NodeOf(col.Kind)
		if nil != e {
			return nil, fmt.Errorf("column %q: %w", col.Name, e)
		}
		group[col.Name] = node
	}
	var name string = ds.Name
	if "" == name {
		name = "dataset"
	}
	return pq.NewSchema(name, group), nil
}

func WriteColumnChunk(
	cbuf pq.ColumnBuffer,
	col rp.Column,
	start, end int,
) error {
	var e error
	switch col.Kind {
	case rp.KindInt64:
		wi64, ok := cbuf.(pq.Int64Writer)
		if !ok {
			return ErrInvalidValueWriter
		}
		_, e = wi64.WriteInt64s(col.Int64s[start:end])
	case rp.KindFloat64:
		wf64, ok := cbuf.(pq.DoubleWriter)
		if !ok {
			return ErrInvalidValueWriter
		}
		_, e = wf64.WriteDoubles(col.Float64s[start:end])
	case rp.KindBool:
		wb, ok := cbuf.(pq.BooleanWriter)
		if !ok {
			return ErrInvalidValueWriter
		}
		_, e = wb.WriteBooleans(col.Bools[start:end])
	case rp.KindTimestamp:
		wi64, ok := cbuf.(pq.Int64Writer)
		if !ok {
			return ErrInvalidValueWriter
		}
		var micros []int64 = make([]int64, 0, end-start)
		for _, t := range col.Times[start:end] {
			micros = append(micros, t.UnixMicro())
		}
		_, e = wi64.WriteInt64s(micros)
	case rp.KindString:
		wv, ok := cbuf.(pq.ValueWriter)
		if !ok {
			return ErrInvalidValueWriter
		}
		var vals []pq.Value = make([]pq.Value, 0, end-start)
		for _, s := range col.Strings[start:end] {
			vals = append(vals, pq.ByteArrayValue([]byte(s)))
		}
		_, e = wv.WriteValues(vals)
	default:
		return fmt.Errorf("%w: %v", rp.ErrInvalidKind, col.Kind)
	}
	return e
}

// WriteRowGroup fills buf with rows [start, end) of every column.
func WriteRowGroup(
	buf *pq.Buffer,
	schema *pq.Schema,
	ds rp.Dataset,
	start, end int,
) error {
	var cols []pq.ColumnBuffer = buf.ColumnBuffers()
	if len(cols) != len(ds.Columns) {
		return ErrInvalidColumnBuffer
	}

	for _, col := range ds.Columns {
		leaf, found := schema.Lookup(col.Name)
		if !found || len(cols) <= leaf.ColumnIndex {
			return fmt.Errorf("%w: %q", ErrInvalidColumnBuffer, col.Name)
		}
		e := WriteColumnChunk(cols[leaf.ColumnIndex], col, start, end)
		if nil != e {
			return fmt.Errorf("column %q: %w", col.Name, e)
		}
	}
	return nil
}

type OverwritePolicy string

const (
	OverwriteAlways OverwritePolicy = "overwrite"
	OverwriteFail   OverwritePolicy = "fail"
)

type WriteConfig struct {
	Options      []pq.WriterOption
	BufOptions   []pq.RowGroupOption
	RowGroupSize int
	Overwrite    OverwritePolicy
	Lock         bool
}

func (c WriteConfig) WithWriterOptions(opts ...pq.WriterOption) WriteConfig {
	c.Options = opts
	return c
}

func (c WriteConfig) AddWriteOptions(opts ...pq.WriterOption) WriteConfig {
	c.Options = append(c.Options[:len(c.Options):len(c.Options)], opts...)
	return c
}

func (c WriteConfig) WithOverwrite(p OverwritePolicy) WriteConfig {
	c.Overwrite = p
	return c
}

func (c WriteConfig) WithRowGroupSize(n int) WriteConfig {
	c.RowGroupSize = n
	return c
}

var WriteConfigDefault WriteConfig = WriteConfig{
	Options:      nil,
	BufOptions:   nil,
	RowGroupSize: 65536,
	Overwrite:    OverwriteAlways,
	Lock:         true,
}

func (c WriteConfig) rowGroupSize() int {
	if c.RowGroupSize <= 0 {
		return WriteConfigDefault.RowGroupSize
	}
	return c.RowGroupSize
}

func columnOrderMeta(ds rp.Dataset) (pq.WriterOption, error) {
	raw, e := json.Marshal(ds.ColumnNames())
	if nil != e {
		return nil, e
	}
	return pq.KeyValueMetadata(MetaColumns, string(raw)), nil
}

func (c WriteConfig) DatasetWriter(wtr io.Writer) Writer {
	return func(ds rp.Dataset) IO[Void] {
		return func(ctx context.Context) (Void, error) {
			if 0 == len(ds.Columns) {
				return Empty, fmt.Errorf("%w: %w", rp.ErrSerialization, ErrNoColumns)
			}

			e := ds.Validate()
			if nil != e {
				return Empty, fmt.Errorf("%w: %w", rp.ErrSerialization, e)
			}

			schema, e := SchemaOf(ds)
			if nil != e {
				return Empty, fmt.Errorf("%w: %w", rp.ErrSerialization, e)
			}

			meta, e := columnOrderMeta(ds)
			if nil != e {
				return Empty, fmt.Errorf("%w: %w", rp.ErrSerialization, e)
			}

			var opts []pq.WriterOption = make([]pq.WriterOption, 0, len(c.Options)+2)
			opts = append(opts, schema, meta)
			opts = append(opts, c.Options...)

			var pw *pq.Writer = pq.NewWriter(wtr, opts...)

			var bufOpts []pq.RowGroupOption = make([]pq.RowGroupOption, 0, len(c.BufOptions)+1)
			bufOpts = append(bufOpts, schema)
			bufOpts = append(bufOpts, c.BufOptions...)
			var buf *pq.Buffer = pq.NewBuffer(bufOpts...)

			var rows int = ds.Rows()
			var size int = c.rowGroupSize()
			for start := 0; start < rows; start += size {
				select {
				case <-ctx.Done():
					return Empty, ctx.Err()
				default:
				}

				var end int = min(start+size, rows)

				buf.Reset()
				e = WriteRowGroup(buf, schema, ds, start, end)
				if nil != e {
					return Empty, fmt.Errorf("%w: %w", rp.ErrSerialization, e)
				}

				_, e = pw.WriteRowGroup(buf)
				if nil != e {
					return Empty, fmt.Errorf("%w: %w", rp.ErrSerialization, rp.Classify(e))
				}
			}

			e = pw.Close()
			if nil != e {
				return Empty, fmt.Errorf("%w: %w", rp.ErrSerialization, rp.Classify(e))
			}
			return Empty, nil
		}
	}
}

func (c WriteConfig) openFlags() int {
	switch c.Overwrite {
	case OverwriteFail:
		return os.O_WRONLY | os.O_CREATE | os.O_EXCL
	default:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
}

func (c WriteConfig) lock(out string) (unlock func(), e error) {
	if !c.Lock {
		return func() {}, nil
	}

	var fl *flock.Flock = flock.New(out + ".lock")
	locked, e := fl.TryLock()
	if nil != e {
		return nil, fmt.Errorf("%w: %w", rp.ErrSerialization, rp.Classify(e))
	}
	if !locked {
		return nil, fmt.Errorf("%w: %w: %s", rp.ErrSerialization, rp.ErrLocked, fl.Path())
	}
	return func() {
		_ = os.Remove(fl.Path())
		_ = fl.Unlock()
	}, nil
}

// ConvertDataset writes ds as a parquet file at out. Every failure wraps
// rp.ErrSerialization; filesystem causes also match rp.ErrNotFound,
// rp.ErrPermission or rp.ErrExists. A failed write leaves the partial file
// in place.
func (c WriteConfig) ConvertDataset(ds rp.Dataset, out string) IO[Void] {
	return func(ctx context.Context) (_ Void, e error) {
		unlock, e := c.lock(out)
		if nil != e {
			return Empty, e
		}
		defer unlock()

		f, e := os.OpenFile(out, c.openFlags(), 0o644)
		if nil != e {
			if errors.Is(e, fs.ErrExist) {
				return Empty, fmt.Errorf("%w: %w: %s", rp.ErrSerialization, rp.ErrExists, out)
			}
			return Empty, fmt.Errorf("%w: %w", rp.ErrSerialization, rp.Classify(e))
		}
		defer func() {
			var ce error = f.Close()
			if nil == e && nil != ce {
				e = fmt.Errorf("%w: %w", rp.ErrSerialization, rp.Classify(ce))
			}
		}()

		var bw *bufio.Writer = bufio.NewWriter(f)
		_, e = c.DatasetWriter(bw)(ds)(ctx)
		if nil != e {
			return Empty, e
		}

		e = bw.Flush()
		if nil != e {
			return Empty, fmt.Errorf("%w: %w", rp.ErrSerialization, rp.Classify(e))
		}
		return Empty, nil
	}
}

// ConvertDataset writes ds to out with the named codec using the default
// configuration.
func ConvertDataset(ds rp.Dataset, out string, compression string) error {
	conf, e := WriteConfigDefault.AddCompressOption(compression)
	if nil != e {
		return e
	}
	_, e = conf.ConvertDataset(ds, out)(context.Background())
	return e
}
