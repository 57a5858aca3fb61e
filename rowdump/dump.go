package rdump

import (
	"bufio"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	. "github.com/takanoriyanagitani/go-rowdump2parquet/util"
)

const (
	Magic   string = "RDMP"
	Version int    = 1
)

var (
	ErrInvalidMagic   error = errors.New("invalid row dump magic")
	ErrInvalidVersion error = errors.New("unsupported row dump version")
	ErrInvalidCell    error = errors.New("cell does not match column kind")
)

type header struct {
	Magic   string
	Version int
	Name    string
	Rows    int
	Columns []columnHeader
}

type columnHeader struct {
	Name string
	Kind rp.Kind
}

// cell holds one value; only the field matching the column kind is set.
// Timestamps travel as unix microseconds in I.
type cell struct {
	I int64
	F float64
	S string
	B bool
}

type record []cell

func toCell(col rp.Column, row int) cell {
	switch col.Kind {
	case rp.KindInt64:
		return cell{I: col.Int64s[row]}
	case rp.KindFloat64:
		return cell{F: col.Float64s[row]}
	case rp.KindString:
		return cell{S: col.Strings[row]}
	case rp.KindBool:
		return cell{B: col.Bools[row]}
	case rp.KindTimestamp:
		return cell{I: col.Times[row].UnixMicro()}
	default:
		return cell{}
	}
}

func appendCell(col *rp.Column, c cell) {
	switch col.Kind {
	case rp.KindInt64:
		col.Int64s = append(col.Int64s, c.I)
	case rp.KindFloat64:
		col.Float64s = append(col.Float64s, c.F)
	case rp.KindString:
		col.Strings = append(col.Strings, c.S)
	case rp.KindBool:
		col.Bools = append(col.Bools, c.B)
	case rp.KindTimestamp:
		col.Times = append(col.Times, time.UnixMicro(c.I).UTC())
	}
}

// WriteDataset encodes the dataset row by row: a header followed by one
// record per row.
func WriteDataset(w io.Writer, ds rp.Dataset) error {
	e := ds.Validate()
	if nil != e {
		return fmt.Errorf("%w: %w", rp.ErrSerialization, e)
	}

	var hdr header = header{
		Magic:   Magic,
		Version: Version,
		Name:    ds.Name,
		Rows:    ds.Rows(),
		Columns: make([]columnHeader, 0, len(ds.Columns)),
	}
	for _, col := range ds.Columns {
		hdr.Columns = append(hdr.Columns, columnHeader{Name: col.Name, Kind: col.Kind})
	}

	var enc *gob.Encoder = gob.NewEncoder(w)
	e = enc.Encode(hdr)
	if nil != e {
		return fmt.Errorf("%w: header: %w", rp.ErrSerialization, rp.Classify(e))
	}

	var rec record = make(record, len(ds.Columns))
	for row := 0; row < hdr.Rows; row++ {
		for i, col := range ds.Columns {
			rec[i] = toCell(col, row)
		}
		e = enc.Encode(rec)
		if nil != e {
			return fmt.Errorf("%w: row %d: %w", rp.ErrSerialization, row, rp.Classify(e))
		}
	}
	return nil
}

func ReadDataset(r io.Reader) (rp.Dataset, error) {
	var ds rp.Dataset
	var dec *gob.Decoder = gob.NewDecoder(r)

	var hdr header
	e := dec.Decode(&hdr)
	if nil != e {
		return ds, fmt.Errorf("%w: header: %w", rp.ErrDeserialization, e)
	}
	if Magic != hdr.Magic {
		return ds, fmt.Errorf("%w: %w: %q", rp.ErrDeserialization, ErrInvalidMagic, hdr.Magic)
	}
	if Version != hdr.Version {
		return ds, fmt.Errorf("%w: %w: %d", rp.ErrDeserialization, ErrInvalidVersion, hdr.Version)
	}
	if hdr.Rows < 0 {
		return ds, fmt.Errorf("%w: negative row count %d", rp.ErrDeserialization, hdr.Rows)
	}

	ds.Name = hdr.Name
	ds.Columns = make([]rp.Column, 0, len(hdr.Columns))
	for _, ch := range hdr.Columns {
		ds.Columns = append(ds.Columns, rp.Column{Name: ch.Name, Kind: ch.Kind})
	}
	e = ds.Validate()
	if nil != e {
		return rp.Dataset{}, fmt.Errorf("%w: %w", rp.ErrDeserialization, e)
	}

	for row := 0; row < hdr.Rows; row++ {
		// gob leaves omitted zero fields untouched, so each row decodes
		// into a fresh record.
		var rec record
		e = dec.Decode(&rec)
		if nil != e {
			return rp.Dataset{}, fmt.Errorf("%w: row %d: %w", rp.ErrDeserialization, row, e)
		}
		if len(rec) != len(ds.Columns) {
			return rp.Dataset{}, fmt.Errorf(
				"%w: %w: row %d has %d cells, expected %d",
				rp.ErrDeserialization, ErrInvalidCell, row, len(rec), len(ds.Columns),
			)
		}
		for i := range ds.Columns {
			appendCell(&ds.Columns[i], rec[i])
		}
	}
	return ds, nil
}

// LoadDataset reads a row dump from path. Compression follows the file
// extension.
func LoadDataset(path string) (ds rp.Dataset, e error) {
	f, e := os.Open(path)
	if nil != e {
		return ds, rp.Classify(e)
	}
	defer f.Close()

	rc, e := CompressionFromPath(path).NewReader(bufio.NewReader(f))
	if nil != e {
		return ds, fmt.Errorf("%w: %w", rp.ErrDeserialization, e)
	}
	defer rc.Close()

	return ReadDataset(rc)
}

func SaveDataset(ds rp.Dataset, path string) (e error) {
	f, e := os.Create(path)
	if nil != e {
		return rp.Classify(e)
	}
	defer func() {
		var ce error = f.Close()
		if nil == e && nil != ce {
			e = rp.Classify(ce)
		}
	}()

	var bw *bufio.Writer = bufio.NewWriter(f)
	wc, e := CompressionFromPath(path).NewWriter(bw)
	if nil != e {
		return fmt.Errorf("%w: %w", rp.ErrSerialization, e)
	}

	e = WriteDataset(wc, ds)
	if nil != e {
		return e
	}
	e = wc.Close()
	if nil != e {
		return fmt.Errorf("%w: %w", rp.ErrSerialization, e)
	}
	return rp.Classify(bw.Flush())
}

var Loader rp.LoadDataset = func(_ context.Context, path string) (rp.Dataset, error) {
	return LoadDataset(path)
}

func LoadIO(path string) IO[rp.Dataset] {
	return func(ctx context.Context) (rp.Dataset, error) {
		return Loader(ctx, path)
	}
}
