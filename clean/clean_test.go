package clean_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	cl "github.com/takanoriyanagitani/go-rowdump2parquet/clean"
	sy "github.com/takanoriyanagitani/go-rowdump2parquet/synth"
)

var day time.Time = time.Date(2021, 11, 24, 0, 0, 0, 0, time.UTC)

func texts(ds rp.Dataset, name string) []string {
	col, _ := ds.Column(name)
	return col.Strings
}

func ints(ds rp.Dataset, name string) []int64 {
	col, _ := ds.Column(name)
	return col.Int64s
}

func TestDropDuplicates(t *testing.T) {
	t.Parallel()

	ds := rp.Dataset{Name: "s", Columns: []rp.Column{
		rp.StringColumn("id", []string{"a", "b", "a", "a"}),
		rp.Int64Column("n", []int64{1, 1, 1, 2}),
		rp.StringColumn("x", []string{"1:", "", "1:", "1:"}),
	}}

	out := cl.DropDuplicates(ds)
	assert.Equal(t, []string{"a", "b", "a"}, texts(out, "id"))
	assert.Equal(t, []int64{1, 1, 2}, ints(out, "n"))

	// Length prefixes keep "ab"+"" apart from "a"+"b".
	split := rp.Dataset{Columns: []rp.Column{
		rp.StringColumn("l", []string{"ab", "a"}),
		rp.StringColumn("r", []string{"", "b"}),
	}}
	assert.Equal(t, 2, cl.DropDuplicates(split).Rows())
}

func TestCoerceDates(t *testing.T) {
	t.Parallel()

	t.Run("strings", func(t *testing.T) {
		ds := rp.Dataset{Name: "s", Columns: []rp.Column{
			rp.StringColumn("visit_date", []string{"2021-11-24", "24.11.2021", " 2021-11-25 ", ""}),
			rp.Int64Column("n", []int64{1, 2, 3, 4}),
		}}
		out, e := cl.CoerceDates(ds, "visit_date")
		require.NoError(t, e)

		col, _ := out.Column("visit_date")
		assert.Equal(t, rp.KindTimestamp, col.Kind)
		assert.Equal(t, []time.Time{day, day.AddDate(0, 0, 1)}, col.Times)
		assert.Equal(t, []int64{1, 3}, ints(out, "n"))
	})

	t.Run("timestamps", func(t *testing.T) {
		ds := rp.Dataset{Columns: []rp.Column{
			rp.TimestampColumn("hit_date", []time.Time{day, {}, day}),
		}}
		out, e := cl.CoerceDates(ds, "hit_date")
		require.NoError(t, e)
		assert.Equal(t, 2, out.Rows())
	})

	t.Run("errors", func(t *testing.T) {
		ds := rp.Dataset{Columns: []rp.Column{rp.Int64Column("n", []int64{1})}}

		_, e := cl.CoerceDates(ds, "n")
		assert.ErrorIs(t, e, rp.ErrInvalidKind)

		_, e = cl.CoerceDates(ds, "visit_date")
		assert.ErrorIs(t, e, rp.ErrSchema)
	})
}

func TestLowerStrings(t *testing.T) {
	t.Parallel()

	ds := rp.Dataset{Columns: []rp.Column{
		rp.StringColumn("utm_medium", []string{" CPC", "Organic "}),
		rp.Int64Column("n", []int64{1, 2}),
	}}
	out := cl.LowerStrings(ds)
	assert.Equal(t, []string{"cpc", "organic"}, texts(out, "utm_medium"))
	assert.Equal(t, []string{" CPC", "Organic "}, texts(ds, "utm_medium"))
	assert.Equal(t, []int64{1, 2}, ints(out, "n"))
}

func TestCheckTypes(t *testing.T) {
	t.Parallel()

	ds := rp.Dataset{Columns: []rp.Column{
		rp.StringColumn("visit_number", []string{"1", "2"}),
		rp.StringColumn("label", []string{"x", "y"}),
		rp.Int64Column("hit_number", []int64{3, 4}),
	}}

	out, warnings, e := cl.CheckTypes(ds, map[string]string{
		"visit_number": "int64",
		"label":        "int64",
		"hit_number":   "float64",
		"absent":       "object",
	})
	require.NoError(t, e)

	assert.Equal(t, []int64{1, 2}, ints(out, "visit_number"))
	label, _ := out.Column("label")
	assert.Equal(t, rp.KindString, label.Kind, "failed cast keeps the column")
	hits, _ := out.Column("hit_number")
	assert.Equal(t, []float64{3, 4}, hits.Float64s)
	assert.Len(t, warnings, 2)

	_, _, e = cl.CheckTypes(ds, map[string]string{"label": "complex"})
	assert.ErrorIs(t, e, rp.ErrInvalidKind)
}

func TestCast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		col     rp.Column
		kind    rp.Kind
		want    rp.Column
		wantErr bool
	}{
		{
			name: "int to string",
			col:  rp.Int64Column("c", []int64{7}),
			kind: rp.KindString,
			want: rp.StringColumn("c", []string{"7"}),
		},
		{
			name: "string to bool",
			col:  rp.StringColumn("c", []string{"true", "0"}),
			kind: rp.KindBool,
			want: rp.BoolColumn("c", []bool{true, false}),
		},
		{
			name: "string to timestamp",
			col:  rp.StringColumn("c", []string{"2021-11-24"}),
			kind: rp.KindTimestamp,
			want: rp.TimestampColumn("c", []time.Time{day}),
		},
		{
			name: "integral float to int",
			col:  rp.Float64Column("c", []float64{2}),
			kind: rp.KindInt64,
			want: rp.Int64Column("c", []int64{2}),
		},
		{
			name:    "fractional float to int",
			col:     rp.Float64Column("c", []float64{2.5}),
			kind:    rp.KindInt64,
			wantErr: true,
		},
		{
			name:    "timestamp to bool",
			col:     rp.TimestampColumn("c", []time.Time{day}),
			kind:    rp.KindBool,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, e := cl.Cast(tt.col, tt.kind)
			if tt.wantErr {
				assert.ErrorIs(t, e, rp.ErrInvalidKind)
				assert.Equal(t, tt.col, got)
				return
			}
			require.NoError(t, e)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeepAllowed(t *testing.T) {
	t.Parallel()

	ds := rp.Dataset{Columns: []rp.Column{
		rp.StringColumn("utm_medium", []string{"cpc", "(not set)", "organic", "unknown"}),
	}}
	out, e := cl.KeepAllowed(ds, map[string][]string{"utm_medium": cl.UTMMediums})
	require.NoError(t, e)
	assert.Equal(t, []string{"cpc", "organic"}, texts(out, "utm_medium"))

	_, e = cl.KeepAllowed(ds, map[string][]string{"utm_source": {"x"}})
	assert.ErrorIs(t, e, rp.ErrSchema)
}

func TestKeepReferenced(t *testing.T) {
	t.Parallel()

	sessions := rp.Dataset{Name: "sessions", Columns: []rp.Column{
		rp.StringColumn("session_id", []string{"s1", "s2"}),
	}}
	keys, e := cl.KeysOf(sessions, "session_id")
	require.NoError(t, e)

	hits := rp.Dataset{Name: "hits", Columns: []rp.Column{
		rp.StringColumn("session_id", []string{"s2", "s9", "s1"}),
	}}
	var refs []cl.Reference = []cl.Reference{
		{Column: "session_id", Dataset: "sessions", Key: "session_id"},
	}

	out, e := cl.KeepReferenced(hits, refs, cl.Refs{cl.RefName("sessions", "session_id"): keys})
	require.NoError(t, e)
	assert.Equal(t, []string{"s2", "s1"}, texts(out, "session_id"))

	_, e = cl.KeepReferenced(hits, refs, cl.Refs{})
	assert.ErrorIs(t, e, cl.ErrUnknownReference)
}

func TestFillMissing(t *testing.T) {
	t.Parallel()

	ds := rp.Dataset{Columns: []rp.Column{
		rp.StringColumn("device_brand", []string{"", "apple", "NaN", "null"}),
		rp.Int64Column("n", []int64{1, 2, 3, 4}),
	}}

	out, filled, e := cl.FillMissing(ds, map[string]string{
		"device_brand": "unknown",
		"utm_keyword":  "unknown",
	})
	require.NoError(t, e)
	assert.Equal(t, []string{"unknown", "apple", "unknown", "unknown"}, texts(out, "device_brand"))
	assert.Equal(t, map[string]int{"device_brand": 3}, filled)
	assert.Equal(t, "", texts(ds, "device_brand")[0])

	_, _, e = cl.FillMissing(ds, map[string]string{"n": "unknown"})
	assert.ErrorIs(t, e, rp.ErrInvalidKind)
}

func TestQuantile(t *testing.T) {
	t.Parallel()

	var sorted []float64 = []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, cl.Quantile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 3.25, cl.Quantile(sorted, 0.75), 1e-9)
	assert.InDelta(t, 1, cl.Quantile(sorted, 0), 1e-9)
	assert.InDelta(t, 4, cl.Quantile(sorted, 1), 1e-9)
	assert.True(t, math.IsNaN(cl.Quantile(nil, 0.5)))
}

func TestDropOutliers(t *testing.T) {
	t.Parallel()

	// q1 2.75, q3 6.25, iqr 3.5: bounds [-2.5, 11.5].
	ds := rp.Dataset{Columns: []rp.Column{
		rp.Int64Column("visit_number", []int64{1, 2, 3, 4, 5, 6, 7, 100}),
		rp.StringColumn("id", []string{"a", "b", "c", "d", "e", "f", "g", "h"}),
	}}
	out, e := cl.DropOutliers(ds, "visit_number")
	require.NoError(t, e)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, ints(out, "visit_number"))
	assert.Equal(t, 7, len(texts(out, "id")))

	_, e = cl.DropOutliers(ds, "id")
	assert.ErrorIs(t, e, rp.ErrInvalidKind)

	empty, e := cl.DropOutliers(rp.Dataset{Columns: []rp.Column{rp.Int64Column("visit_number", nil)}}, "visit_number")
	require.NoError(t, e)
	assert.Equal(t, 0, empty.Rows())
}

func TestApply(t *testing.T) {
	t.Parallel()

	ds := rp.Dataset{Name: "sessions", Columns: []rp.Column{
		rp.StringColumn("session_id", []string{"s1", "s1", "s2", "s3", "s4", "s5", "s6"}),
		rp.StringColumn("utm_medium", []string{"CPC", "CPC", "tv", "organic", "cpc", "cpm", "banner"}),
		rp.StringColumn("visit_date", []string{
			"2021-11-24", "2021-11-24", "2021-11-24", "bad", "2021-11-24", "2021-11-24", "2021-11-24",
		}),
		rp.Int64Column("visit_number", []int64{1, 1, 2, 2, 3, 2, 90}),
		rp.StringColumn("device_brand", []string{"", "", "apple", "nan", "Apple", "", "x"}),
	}}

	out, rep, e := cl.DefaultRules()["sessions"].Apply(ds, cl.Refs{})
	require.NoError(t, e)
	require.NoError(t, out.Validate())

	assert.Equal(t, 7, rep.Rows)
	assert.Equal(t, map[string]int{
		"duplicates": 1,
		"dates":      1,
		"allow":      1,
		"outliers":   1,
	}, rep.Dropped)
	assert.Equal(t, 3, rep.Kept)
	assert.Equal(t, []string{"s1", "s4", "s5"}, texts(out, "session_id"))
	assert.Equal(t, []string{"cpc", "cpc", "cpm"}, texts(out, "utm_medium"))
	assert.Equal(t, []string{"unknown", "apple", "unknown"}, texts(out, "device_brand"))
	assert.Equal(t, map[string]int{"device_brand": 2}, rep.Filled)

	date, _ := out.Column("visit_date")
	assert.Equal(t, rp.KindTimestamp, date.Kind)
}

func TestApplySyntheticKeepsRows(t *testing.T) {
	t.Parallel()

	var rules map[string]cl.Rules = cl.DefaultRules()
	sessions, rep, e := rules["sessions"].Apply(sy.Sessions(500, 3), cl.Refs{})
	require.NoError(t, e)
	assert.Equal(t, 500, rep.Kept)

	keys, e := cl.KeysOf(sessions, "session_id")
	require.NoError(t, e)

	var refs cl.Refs = cl.Refs{cl.RefName("sessions", "session_id"): keys}
	hits, rep, e := rules["hits"].Apply(sy.Hits(1000, 1000, 3), refs)
	require.NoError(t, e)
	assert.Less(t, hits.Rows(), 1000)
	assert.Positive(t, rep.Dropped["references"])

	var dropped int
	for _, n := range rep.Dropped {
		dropped += n
	}
	assert.Equal(t, 1000-hits.Rows(), dropped)
}

func TestCleanerCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, e := cl.DefaultRules()["sessions"].Cleaner(cl.Refs{})(sy.Sessions(10, 1))(ctx)
	assert.ErrorIs(t, e, context.Canceled)
}

func TestRulesValidate(t *testing.T) {
	t.Parallel()

	for name, r := range cl.DefaultRules() {
		assert.NoError(t, r.Validate(), name)
	}

	assert.ErrorIs(t, cl.Rules{Types: map[string]string{"x": "blob"}}.Validate(), cl.ErrInvalidRule)
	assert.ErrorIs(t, cl.Rules{References: []cl.Reference{{Column: "x"}}}.Validate(), cl.ErrInvalidRule)
}
