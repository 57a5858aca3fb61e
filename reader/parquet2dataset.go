package rdr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	pq "github.com/parquet-go/parquet-go"
	"github.com/tidwall/gjson"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	. "github.com/takanoriyanagitani/go-rowdump2parquet/util"
	pw "github.com/takanoriyanagitani/go-rowdump2parquet/writer"
)

var ErrUnsupportedType error = errors.New("unsupported parquet type")

type Info struct {
	Name    string
	Columns []string
	Rows    int64
}

// KindOf maps a parquet leaf onto a column kind.
func KindOf(node pq.Node) (rp.Kind, error) {
	var typ pq.Type = node.Type()
	switch typ.Kind() {
	case pq.Boolean:
		return rp.KindBool, nil
	case pq.Int64:
		var lt = typ.LogicalType()
		if nil != lt && nil != lt.Timestamp {
			return rp.KindTimestamp, nil
		}
		return rp.KindInt64, nil
	case pq.Double:
		return rp.KindFloat64, nil
	case pq.ByteArray:
		return rp.KindString, nil
	default:
		return rp.KindInvalid, fmt.Errorf("%w: %v", ErrUnsupportedType, typ)
	}
}

// timeOf converts a raw timestamp according to the leaf's unit.
func timeOf(node pq.Node) func(int64) time.Time {
	var lt = node.Type().LogicalType()
	if nil == lt || nil == lt.Timestamp {
		return func(i int64) time.Time { return time.UnixMicro(i).UTC() }
	}
	switch {
	case nil != lt.Timestamp.Unit.Millis:
		return func(i int64) time.Time { return time.UnixMilli(i).UTC() }
	case nil != lt.Timestamp.Unit.Nanos:
		return func(i int64) time.Time { return time.Unix(0, i).UTC() }
	default:
		return func(i int64) time.Time { return time.UnixMicro(i).UTC() }
	}
}

// StoredColumnNames returns the column names in the order they were
// written when the file carries the order metadata, otherwise in schema
// order.
func StoredColumnNames(f *pq.File) []string {
	var fields []pq.Field = f.Schema().Fields()
	var names []string = make([]string, 0, len(fields))
	var inSchema map[string]struct{} = make(map[string]struct{}, len(fields))
	for _, field := range fields {
		names = append(names, field.Name())
		inSchema[field.Name()] = struct{}{}
	}

	raw, found := f.Lookup(pw.MetaColumns)
	if !found || !gjson.Valid(raw) {
		return names
	}

	var ordered []string = make([]string, 0, len(names))
	for _, v := range gjson.Parse(raw).Array() {
		if _, ok := inSchema[v.String()]; !ok {
			return names
		}
		ordered = append(ordered, v.String())
	}
	if len(ordered) != len(names) {
		return names
	}
	return ordered
}

func open(path string) (*os.File, *pq.File, error) {
	osf, e := os.Open(path)
	if nil != e {
		return nil, nil, rp.Classify(e)
	}
	info, e := osf.Stat()
	if nil != e {
		_ = osf.Close()
		return nil, nil, rp.Classify(e)
	}
	pf, e := pq.OpenFile(osf, info.Size())
	if nil != e {
		_ = osf.Close()
		return nil, nil, fmt.Errorf("%w: %s: %w", rp.ErrDeserialization, path, e)
	}
	return osf, pf, nil
}

// OpenColumnar reads the footer only.
func OpenColumnar(path string) (Info, error) {
	osf, pf, e := open(path)
	if nil != e {
		return Info{}, e
	}
	defer osf.Close()

	return Info{
		Name:    pf.Schema().Name(),
		Columns: StoredColumnNames(pf),
		Rows:    pf.NumRows(),
	}, nil
}

func appendValues(col *rp.Column, vals []pq.Value, toTime func(int64) time.Time) {
	for _, v := range vals {
		switch col.Kind {
		case rp.KindInt64:
			col.Int64s = append(col.Int64s, v.Int64())
		case rp.KindFloat64:
			col.Float64s = append(col.Float64s, v.Double())
		case rp.KindString:
			col.Strings = append(col.Strings, string(v.ByteArray()))
		case rp.KindBool:
			col.Bools = append(col.Bools, v.Boolean())
		case rp.KindTimestamp:
			col.Times = append(col.Times, toTime(v.Int64()))
		}
	}
}

func readPages(pages pq.Pages, col *rp.Column, toTime func(int64) time.Time) error {
	defer pages.Close()

	for {
		page, e := pages.ReadPage()
		if io.EOF == e {
			return nil
		}
		if nil != e {
			return e
		}

		var vals []pq.Value = make([]pq.Value, page.NumValues())
		n, e := page.Values().ReadValues(vals)
		if nil != e && io.EOF != e {
			return e
		}
		appendValues(col, vals[:n], toTime)
	}
}

// ReadColumn materializes one leaf across every row group.
func ReadColumn(f *pq.File, name string) (rp.Column, error) {
	leaf, found := f.Schema().Lookup(name)
	if !found {
		return rp.Column{}, &rp.SchemaError{Column: name}
	}
	kind, e := KindOf(leaf.Node)
	if nil != e {
		return rp.Column{}, fmt.Errorf("%w: column %q: %w", rp.ErrDeserialization, name, e)
	}

	var col rp.Column = rp.Column{Name: name, Kind: kind}
	var toTime func(int64) time.Time = timeOf(leaf.Node)
	for _, rg := range f.RowGroups() {
		var chunks []pq.ColumnChunk = rg.ColumnChunks()
		if len(chunks) <= leaf.ColumnIndex {
			return col, fmt.Errorf("%w: column %q: missing chunk", rp.ErrDeserialization, name)
		}
		e = readPages(chunks[leaf.ColumnIndex].Pages(), &col, toTime)
		if nil != e {
			return col, fmt.Errorf("%w: column %q: %w", rp.ErrDeserialization, name, e)
		}
	}
	return col, nil
}

// projection resolves the columns to read: nil means every stored column,
// an empty non-nil slice means none.
func projection(stored []string, requested []string) []string {
	if nil == requested {
		return stored
	}
	var seen map[string]struct{} = make(map[string]struct{}, len(requested))
	var names []string = make([]string, 0, len(requested))
	for _, name := range requested {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// LoadColumnar reads the parquet file at path. With no columns argument
// every column is read in its stored order. Otherwise only the named
// column chunks are read, in the requested order, so an explicitly empty
// slice (LoadColumnar(path, []string{}...)) yields a dataset without
// columns. A name absent from the schema is a *rp.SchemaError.
func LoadColumnar(path string, columns ...string) (rp.Dataset, error) {
	osf, pf, e := open(path)
	if nil != e {
		return rp.Dataset{}, e
	}
	defer osf.Close()

	var names []string = projection(StoredColumnNames(pf), columns)
	for _, name := range names {
		if _, found := pf.Schema().Lookup(name); !found {
			return rp.Dataset{}, &rp.SchemaError{Column: name, Path: path}
		}
	}

	var ds rp.Dataset = rp.Dataset{
		Name:    pf.Schema().Name(),
		Columns: make([]rp.Column, 0, len(names)),
	}
	for _, name := range names {
		col, e := ReadColumn(pf, name)
		if nil != e {
			return rp.Dataset{}, e
		}
		ds.Columns = append(ds.Columns, col)
	}

	e = ds.Validate()
	if nil != e {
		return rp.Dataset{}, fmt.Errorf("%w: %s: %w", rp.ErrDeserialization, path, e)
	}
	return ds, nil
}

func LoadIO(path string, columns ...string) IO[rp.Dataset] {
	return func(_ context.Context) (rp.Dataset, error) {
		return LoadColumnar(path, columns...)
	}
}
