package clean

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	. "github.com/takanoriyanagitani/go-rowdump2parquet/util"
)

// Keys is a set of cell values.
type Keys map[string]struct{}

// Refs holds the key sets of already cleaned datasets, by RefName.
type Refs map[string]Keys

func RefName(dataset, column string) string { return dataset + "." + column }

// KeysOf collects the distinct values of column.
func KeysOf(ds rp.Dataset, column string) (Keys, error) {
	col, found := ds.Column(column)
	if !found {
		return nil, &rp.SchemaError{Column: column, Path: ds.Name}
	}
	var keys Keys = make(Keys, col.Len())
	for i := 0; i < col.Len(); i++ {
		keys[Cell(col, i)] = struct{}{}
	}
	return keys, nil
}

// Report counts what each step changed.
type Report struct {
	Rows     int
	Kept     int
	Dropped  map[string]int
	Filled   map[string]int
	Warnings []string
}

func (r *Report) dropped(step string, before, after int) {
	if before != after {
		r.Dropped[step] += before - after
	}
}

// Cleaner cleans one dataset.
type Cleaner func(rp.Dataset) IO[Cleaned]

type Cleaned struct {
	Dataset rp.Dataset
	Report  Report
}

// Apply runs the rules on ds. refs must hold every key set named in
// r.References.
func (r Rules) Apply(ds rp.Dataset, refs Refs) (rp.Dataset, Report, error) {
	var rep Report = Report{
		Rows:    ds.Rows(),
		Dropped: map[string]int{},
		Filled:  map[string]int{},
	}

	e := ds.Validate()
	if nil != e {
		return ds, rep, e
	}

	type stage struct {
		name string
		run  func(rp.Dataset) (rp.Dataset, error)
	}
	var stages []stage = []stage{
		{"duplicates", func(d rp.Dataset) (rp.Dataset, error) {
			if !r.DropDuplicates {
				return d, nil
			}
			return DropDuplicates(d), nil
		}},
		{"dates", func(d rp.Dataset) (rp.Dataset, error) { return CoerceDates(d, r.Dates...) }},
		{"strings", func(d rp.Dataset) (rp.Dataset, error) {
			if !r.LowerStrings {
				return d, nil
			}
			return LowerStrings(d), nil
		}},
		{"types", func(d rp.Dataset) (rp.Dataset, error) {
			out, warnings, e := CheckTypes(d, r.Types)
			rep.Warnings = append(rep.Warnings, warnings...)
			return out, e
		}},
		{"allow", func(d rp.Dataset) (rp.Dataset, error) { return KeepAllowed(d, r.Allow) }},
		{"references", func(d rp.Dataset) (rp.Dataset, error) { return KeepReferenced(d, r.References, refs) }},
		{"fill", func(d rp.Dataset) (rp.Dataset, error) {
			out, filled, e := FillMissing(d, r.Fill)
			for col, n := range filled {
				rep.Filled[col] += n
			}
			return out, e
		}},
		{"outliers", func(d rp.Dataset) (rp.Dataset, error) { return DropOutliers(d, r.Outliers...) }},
	}

	for _, st := range stages {
		var before int = ds.Rows()
		ds, e = st.run(ds)
		if nil != e {
			return ds, rep, fmt.Errorf("%s: %w", st.name, e)
		}
		rep.dropped(st.name, before, ds.Rows())
	}
	rep.Kept = ds.Rows()
	return ds, rep, nil
}

// Cleaner wraps Apply as an action for the measured harness.
func (r Rules) Cleaner(refs Refs) Cleaner {
	return func(ds rp.Dataset) IO[Cleaned] {
		return func(ctx context.Context) (Cleaned, error) {
			select {
			case <-ctx.Done():
				return Cleaned{}, ctx.Err()
			default:
			}
			out, rep, e := r.Apply(ds, refs)
			return Cleaned{Dataset: out, Report: rep}, e
		}
	}
}

// DropDuplicates keeps the first of every group of identical rows.
func DropDuplicates(ds rp.Dataset) rp.Dataset {
	var seen map[string]struct{} = make(map[string]struct{}, ds.Rows())
	var sb strings.Builder
	return ds.Filter(func(row int) bool {
		sb.Reset()
		for _, col := range ds.Columns {
			var cell string = Cell(col, row)
			sb.WriteString(strconv.Itoa(len(cell)))
			sb.WriteByte(':')
			sb.WriteString(cell)
		}
		var key string = sb.String()
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		return true
	})
}

// CoerceDates turns string columns into timestamps and drops the rows whose
// value does not parse. Timestamp columns lose their zero-time rows.
func CoerceDates(ds rp.Dataset, columns ...string) (rp.Dataset, error) {
	for _, name := range columns {
		col, found := ds.Column(name)
		if !found {
			return ds, &rp.SchemaError{Column: name, Path: ds.Name}
		}

		var valid []bool = make([]bool, col.Len())
		switch col.Kind {
		case rp.KindTimestamp:
			for i, t := range col.Times {
				valid[i] = !t.IsZero()
			}
		case rp.KindString:
			var times []time.Time = make([]time.Time, col.Len())
			for i, s := range col.Strings {
				t, e := parseTime(strings.TrimSpace(s))
				times[i], valid[i] = t, nil == e
			}
			ds = replace(ds, rp.TimestampColumn(name, times))
		default:
			return ds, fmt.Errorf("%w: date column %q is %v", rp.ErrInvalidKind, name, col.Kind)
		}
		ds = ds.Filter(func(row int) bool { return valid[row] })
	}
	return ds, nil
}

// LowerStrings lowercases and trims every string column.
func LowerStrings(ds rp.Dataset) rp.Dataset {
	var cols []rp.Column = make([]rp.Column, 0, len(ds.Columns))
	for _, col := range ds.Columns {
		if rp.KindString != col.Kind {
			cols = append(cols, col)
			continue
		}
		var vals []string = make([]string, len(col.Strings))
		for i, s := range col.Strings {
			vals[i] = strings.ToLower(strings.TrimSpace(s))
		}
		cols = append(cols, rp.StringColumn(col.Name, vals))
	}
	return rp.Dataset{Name: ds.Name, Columns: cols}
}

// CheckTypes casts columns to the expected kinds. A missing column or a
// failed cast is reported as a warning and the column is left unchanged.
func CheckTypes(ds rp.Dataset, types map[string]string) (rp.Dataset, []string, error) {
	var warnings []string
	for _, name := range sortedKeys(types) {
		k, e := rp.ParseKind(types[name])
		if nil != e {
			return ds, warnings, e
		}
		col, found := ds.Column(name)
		if !found {
			warnings = append(warnings, fmt.Sprintf("column %q missing", name))
			continue
		}
		cast, e := Cast(col, k)
		if nil != e {
			warnings = append(warnings, e.Error())
			continue
		}
		ds = replace(ds, cast)
	}
	return ds, warnings, nil
}

// KeepAllowed drops rows whose value is outside the column's allowlist.
func KeepAllowed(ds rp.Dataset, allow map[string][]string) (rp.Dataset, error) {
	for _, name := range sortedKeys(allow) {
		col, e := ds.Lookup(name, rp.KindString)
		if nil != e {
			return ds, e
		}
		var set Keys = make(Keys, len(allow[name]))
		for _, v := range allow[name] {
			set[v] = struct{}{}
		}
		ds = ds.Filter(func(row int) bool {
			_, ok := set[col.Strings[row]]
			return ok
		})
	}
	return ds, nil
}

// KeepReferenced drops rows whose key is absent from the referenced set.
func KeepReferenced(ds rp.Dataset, refs []Reference, known Refs) (rp.Dataset, error) {
	for _, ref := range refs {
		keys, found := known[RefName(ref.Dataset, ref.Key)]
		if !found {
			return ds, fmt.Errorf("%w: %s", ErrUnknownReference, RefName(ref.Dataset, ref.Key))
		}
		col, found := ds.Column(ref.Column)
		if !found {
			return ds, &rp.SchemaError{Column: ref.Column, Path: ds.Name}
		}
		ds = ds.Filter(func(row int) bool {
			_, ok := keys[Cell(col, row)]
			return ok
		})
	}
	return ds, nil
}

// IsMissing reports whether s stands for an absent value.
func IsMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "null", "none":
		return true
	default:
		return false
	}
}

// FillMissing replaces missing values of string columns. Columns the
// dataset does not have are skipped.
func FillMissing(ds rp.Dataset, fill map[string]string) (rp.Dataset, map[string]int, error) {
	var filled map[string]int = map[string]int{}
	for _, name := range sortedKeys(fill) {
		col, found := ds.Column(name)
		if !found {
			continue
		}
		if rp.KindString != col.Kind {
			return ds, filled, fmt.Errorf("%w: fill column %q is %v", rp.ErrInvalidKind, name, col.Kind)
		}
		var vals []string = slices.Clone(col.Strings)
		for i, s := range vals {
			if IsMissing(s) {
				vals[i] = fill[name]
				filled[name]++
			}
		}
		ds = replace(ds, rp.StringColumn(name, vals))
	}
	return ds, filled, nil
}

// Quantile interpolates linearly between the closest ranks of sorted.
func Quantile(sorted []float64, q float64) float64 {
	if 0 == len(sorted) {
		return math.NaN()
	}
	var pos float64 = q * float64(len(sorted)-1)
	var lo int = int(math.Floor(pos))
	var hi int = int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func numbers(col rp.Column) ([]float64, error) {
	switch col.Kind {
	case rp.KindInt64:
		var vals []float64 = make([]float64, len(col.Int64s))
		for i, v := range col.Int64s {
			vals[i] = float64(v)
		}
		return vals, nil
	case rp.KindFloat64:
		return col.Float64s, nil
	default:
		return nil, fmt.Errorf("%w: outlier column %q is %v", rp.ErrInvalidKind, col.Name, col.Kind)
	}
}

// DropOutliers keeps rows within 1.5 interquartile ranges of the quartiles
// of each column.
func DropOutliers(ds rp.Dataset, columns ...string) (rp.Dataset, error) {
	for _, name := range columns {
		col, found := ds.Column(name)
		if !found {
			return ds, &rp.SchemaError{Column: name, Path: ds.Name}
		}
		vals, e := numbers(col)
		if nil != e {
			return ds, e
		}
		if 0 == len(vals) {
			continue
		}

		var sorted []float64 = slices.Clone(vals)
		slices.Sort(sorted)
		var q1 float64 = Quantile(sorted, 0.25)
		var q3 float64 = Quantile(sorted, 0.75)
		var iqr float64 = q3 - q1
		var lower, upper float64 = q1 - 1.5*iqr, q3 + 1.5*iqr

		ds = ds.Filter(func(row int) bool {
			return lower <= vals[row] && vals[row] <= upper
		})
	}
	return ds, nil
}

func replace(ds rp.Dataset, col rp.Column) rp.Dataset {
	var cols []rp.Column = slices.Clone(ds.Columns)
	for i := range cols {
		if cols[i].Name == col.Name {
			cols[i] = col
		}
	}
	return rp.Dataset{Name: ds.Name, Columns: cols}
}
