package rowdump2parquet

import (
	"context"
	"fmt"
	"time"
)

type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt64
	KindFloat64
	KindString
	KindBool
	KindTimestamp
)

var kindNames map[Kind]string = map[Kind]string{
	KindInt64:     "int64",
	KindFloat64:   "float64",
	KindString:    "string",
	KindBool:      "bool",
	KindTimestamp: "timestamp",
}

func (k Kind) String() string {
	name, found := kindNames[k]
	if !found {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return name
}

// Column is a named, typed vector. Only the slice matching Kind is used.
type Column struct {
	Name string
	Kind Kind

	Int64s   []int64
	Float64s []float64
	Strings  []string
	Bools    []bool
	Times    []time.Time
}

func Int64Column(name string, vals []int64) Column {
	return Column{Name: name, Kind: KindInt64, Int64s: vals}
}

func Float64Column(name string, vals []float64) Column {
	return Column{Name: name, Kind: KindFloat64, Float64s: vals}
}

func StringColumn(name string, vals []string) Column {
	return Column{Name: name, Kind: KindString, Strings: vals}
}

func BoolColumn(name string, vals []bool) Column {
	return Column{Name: name, Kind: KindBool, Bools: vals}
}

func TimestampColumn(name string, vals []time.Time) Column {
	return Column{Name: name, Kind: KindTimestamp, Times: vals}
}

// Len returns the number of values held for the column's kind.
func (c Column) Len() int {
	switch c.Kind {
	case KindInt64:
		return len(c.Int64s)
	case KindFloat64:
		return len(c.Float64s)
	case KindString:
		return len(c.Strings)
	case KindBool:
		return len(c.Bools)
	case KindTimestamp:
		return len(c.Times)
	default:
		return 0
	}
}

// Take returns a column holding the values at rows, in that order.
func (c Column) Take(rows []int) Column {
	var out Column = Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case KindInt64:
		out.Int64s = take(c.Int64s, rows)
	case KindFloat64:
		out.Float64s = take(c.Float64s, rows)
	case KindString:
		out.Strings = take(c.Strings, rows)
	case KindBool:
		out.Bools = take(c.Bools, rows)
	case KindTimestamp:
		out.Times = take(c.Times, rows)
	}
	return out
}

func take[T any](vals []T, rows []int) []T {
	var out []T = make([]T, 0, len(rows))
	for _, i := range rows {
		out = append(out, vals[i])
	}
	return out
}

// ParseKind accepts the kind names printed by Kind.String and the common
// dataframe dtype aliases.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "int64", "int", "int32", "Int64":
		return KindInt64, nil
	case "float64", "float", "float32", "double":
		return KindFloat64, nil
	case "string", "str", "object", "category":
		return KindString, nil
	case "bool", "boolean":
		return KindBool, nil
	case "timestamp", "datetime", "datetime64", "datetime64[ns]", "date":
		return KindTimestamp, nil
	default:
		return KindInvalid, fmt.Errorf("%w: %q", ErrInvalidKind, name)
	}
}

// Dataset is an in-memory table: named columns of a uniform row count.
type Dataset struct {
	Name    string
	Columns []Column
}

func (d Dataset) Rows() int {
	if 0 == len(d.Columns) {
		return 0
	}
	return d.Columns[0].Len()
}

func (d Dataset) ColumnNames() []string {
	var names []string = make([]string, 0, len(d.Columns))
	for _, col := range d.Columns {
		names = append(names, col.Name)
	}
	return names
}

func (d Dataset) Column(name string) (Column, bool) {
	for _, col := range d.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Lookup returns the named column when it exists with kind k. A missing
// column is a *SchemaError naming the dataset.
func (d Dataset) Lookup(name string, k Kind) (Column, error) {
	col, found := d.Column(name)
	if !found {
		return Column{}, &SchemaError{Column: name, Path: d.Name}
	}
	if k != col.Kind {
		return Column{}, fmt.Errorf(
			"%w: column %q of %s is %v, expected %v",
			ErrInvalidKind, name, d.Name, col.Kind, k,
		)
	}
	return col, nil
}

// Take keeps the given rows of every column.
func (d Dataset) Take(rows []int) Dataset {
	var cols []Column = make([]Column, 0, len(d.Columns))
	for _, col := range d.Columns {
		cols = append(cols, col.Take(rows))
	}
	return Dataset{Name: d.Name, Columns: cols}
}

// Filter keeps the rows for which keep returns true.
func (d Dataset) Filter(keep func(row int) bool) Dataset {
	var n int = d.Rows()
	var rows []int = make([]int, 0, n)
	for i := 0; i < n; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	if len(rows) == n {
		return d
	}
	return d.Take(rows)
}

// Validate checks kinds, unique names and the uniform row count.
func (d Dataset) Validate() error {
	var seen map[string]struct{} = make(map[string]struct{}, len(d.Columns))
	var rows int = d.Rows()
	for _, col := range d.Columns {
		if _, found := kindNames[col.Kind]; !found {
			return fmt.Errorf("%w: column %q has %v", ErrInvalidKind, col.Name, col.Kind)
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name)
		}
		seen[col.Name] = struct{}{}

		if rows != col.Len() {
			return fmt.Errorf(
				"%w: column %q has %d rows, expected %d",
				ErrRaggedColumns, col.Name, col.Len(), rows,
			)
		}
	}
	return nil
}

// SameColumnSet reports whether both datasets carry the same column names,
// ignoring order.
func SameColumnSet(a, b Dataset) bool {
	if len(a.Columns) != len(b.Columns) {
		return false
	}
	var names map[string]struct{} = make(map[string]struct{}, len(a.Columns))
	for _, col := range a.Columns {
		names[col.Name] = struct{}{}
	}
	for _, col := range b.Columns {
		if _, found := names[col.Name]; !found {
			return false
		}
	}
	return true
}

type LoadDataset func(context.Context, string) (Dataset, error)

// Measurement is the result of one instrumented operation.
//
// MemoryDeltaMB is the resident set size sampled after the operation minus
// the sample taken before it. It is an approximation: garbage collection,
// unrelated allocations and paging all move the counter.
type Measurement struct {
	Operation     string
	Elapsed       time.Duration
	MemoryDeltaMB float64
	SizeMB        float64
	HasSize       bool
}

func (m Measurement) WithSize(sizeMB float64) Measurement {
	m.SizeMB = sizeMB
	m.HasSize = true
	return m
}

func (m Measurement) String() string {
	var line string = fmt.Sprintf(
		"%s: time %.2f s, memory %.2f MB",
		m.Operation,
		m.Elapsed.Seconds(),
		m.MemoryDeltaMB,
	)
	if m.HasSize {
		line += fmt.Sprintf(", size %.2f MB", m.SizeMB)
	}
	return line
}
