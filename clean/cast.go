package clean

import (
	"fmt"
	"math"
	"strconv"
	"time"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	rd "github.com/takanoriyanagitani/go-rowdump2parquet/rowdump"
)

// DateLayouts are tried in order when a string column is read as dates.
var DateLayouts []string = []string{
	rd.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	var last error
	for _, layout := range DateLayouts {
		t, e := time.Parse(layout, s)
		if nil == e {
			return t, nil
		}
		last = e
	}
	return time.Time{}, last
}

// Cell renders one value of col as a string key.
func Cell(col rp.Column, row int) string {
	switch col.Kind {
	case rp.KindInt64:
		return strconv.FormatInt(col.Int64s[row], 10)
	case rp.KindFloat64:
		return strconv.FormatFloat(col.Float64s[row], 'g', -1, 64)
	case rp.KindString:
		return col.Strings[row]
	case rp.KindBool:
		return strconv.FormatBool(col.Bools[row])
	case rp.KindTimestamp:
		return col.Times[row].Format(time.RFC3339Nano)
	default:
		return ""
	}
}

func mapEach[S, T any](src []S, conv func(S) (T, error)) ([]T, error) {
	var out []T = make([]T, 0, len(src))
	for _, v := range src {
		t, e := conv(v)
		if nil != e {
			return nil, e
		}
		out = append(out, t)
	}
	return out, nil
}

func toString(col rp.Column) rp.Column {
	var vals []string = make([]string, col.Len())
	for i := range vals {
		vals[i] = Cell(col, i)
	}
	return rp.StringColumn(col.Name, vals)
}

// Cast converts col to kind k. A value that does not convert fails the
// whole column.
func Cast(col rp.Column, k rp.Kind) (rp.Column, error) {
	if col.Kind == k {
		return col, nil
	}
	if rp.KindString == k {
		return toString(col), nil
	}

	var e error
	var out rp.Column = rp.Column{Name: col.Name, Kind: k}
	switch {
	case rp.KindString == col.Kind && rp.KindInt64 == k:
		out.Int64s, e = mapEach(col.Strings, func(s string) (int64, error) {
			return strconv.ParseInt(s, 10, 64)
		})
	case rp.KindString == col.Kind && rp.KindFloat64 == k:
		out.Float64s, e = mapEach(col.Strings, func(s string) (float64, error) {
			return strconv.ParseFloat(s, 64)
		})
	case rp.KindString == col.Kind && rp.KindBool == k:
		out.Bools, e = mapEach(col.Strings, strconv.ParseBool)
	case rp.KindString == col.Kind && rp.KindTimestamp == k:
		out.Times, e = mapEach(col.Strings, parseTime)
	case rp.KindInt64 == col.Kind && rp.KindFloat64 == k:
		out.Float64s, e = mapEach(col.Int64s, func(i int64) (float64, error) {
			return float64(i), nil
		})
	case rp.KindFloat64 == col.Kind && rp.KindInt64 == k:
		out.Int64s, e = mapEach(col.Float64s, func(f float64) (int64, error) {
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				return 0, fmt.Errorf("%v is not integral", f)
			}
			return int64(f), nil
		})
	case rp.KindBool == col.Kind && rp.KindInt64 == k:
		out.Int64s, e = mapEach(col.Bools, func(b bool) (int64, error) {
			if b {
				return 1, nil
			}
			return 0, nil
		})
	default:
		return col, fmt.Errorf("%w: cannot cast %q from %v to %v", rp.ErrInvalidKind, col.Name, col.Kind, k)
	}
	if nil != e {
		return col, fmt.Errorf("%w: column %q to %v: %w", rp.ErrInvalidKind, col.Name, k, e)
	}
	return out, nil
}
