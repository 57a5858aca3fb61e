package rdump

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
)

const (
	DateLayout string = "2006-01-02"
	Unknown    string = "unknown"
)

var ErrInvalidJSON error = errors.New("invalid json")

type JSONKind string

const (
	JSONSessions JSONKind = "sessions"
	JSONHits     JSONKind = "hits"
)

// stringOr returns the field as a string, or Unknown when it is missing,
// null or the literal "NaN".
func stringOr(rec gjson.Result, field string) string {
	var v gjson.Result = rec.Get(field)
	if !v.Exists() || gjson.Null == v.Type || "NaN" == v.String() {
		return Unknown
	}
	return v.String()
}

func parseDate(rec gjson.Result, field string) (time.Time, error) {
	var raw string = rec.Get(field).String()
	d, e := time.Parse(DateLayout, raw)
	if nil != e {
		return d, fmt.Errorf("%w: %s %q: %w", rp.ErrDeserialization, field, raw, e)
	}
	return d, nil
}

type sessionsBuilder struct {
	sessionID, utmSource, utmMedium []string
	visitDate                       []time.Time
	visitNumber                     []int64
	deviceOS, deviceBrand, devModel []string
}

func (b *sessionsBuilder) add(rec gjson.Result) error {
	visit, e := parseDate(rec, "visit_date")
	if nil != e {
		return e
	}
	b.sessionID = append(b.sessionID, rec.Get("session_id").String())
	b.utmSource = append(b.utmSource, stringOr(rec, "utm_source"))
	b.utmMedium = append(b.utmMedium, stringOr(rec, "utm_medium"))
	b.visitDate = append(b.visitDate, visit)
	b.visitNumber = append(b.visitNumber, rec.Get("visit_number").Int())
	b.deviceOS = append(b.deviceOS, stringOr(rec, "device_os"))
	b.deviceBrand = append(b.deviceBrand, stringOr(rec, "device_brand"))
	b.devModel = append(b.devModel, stringOr(rec, "device_model"))
	return nil
}

func (b *sessionsBuilder) dataset() rp.Dataset {
	return rp.Dataset{
		Name: string(JSONSessions),
		Columns: []rp.Column{
			rp.StringColumn("session_id", b.sessionID),
			rp.StringColumn("utm_source", b.utmSource),
			rp.StringColumn("utm_medium", b.utmMedium),
			rp.TimestampColumn("visit_date", b.visitDate),
			rp.Int64Column("visit_number", b.visitNumber),
			rp.StringColumn("device_os", b.deviceOS),
			rp.StringColumn("device_brand", b.deviceBrand),
			rp.StringColumn("device_model", b.devModel),
		},
	}
}

type hitsBuilder struct {
	sessionID  []string
	hitDate    []time.Time
	hitNumber  []int64
	eventLabel []string
}

func (b *hitsBuilder) add(rec gjson.Result) error {
	hit, e := parseDate(rec, "hit_date")
	if nil != e {
		return e
	}
	b.sessionID = append(b.sessionID, rec.Get("session_id").String())
	b.hitDate = append(b.hitDate, hit)
	b.hitNumber = append(b.hitNumber, rec.Get("hit_number").Int())
	b.eventLabel = append(b.eventLabel, stringOr(rec, "event_label"))
	return nil
}

func (b *hitsBuilder) dataset() rp.Dataset {
	return rp.Dataset{
		Name: string(JSONHits),
		Columns: []rp.Column{
			rp.StringColumn("session_id", b.sessionID),
			rp.TimestampColumn("hit_date", b.hitDate),
			rp.Int64Column("hit_number", b.hitNumber),
			rp.StringColumn("event_label", b.eventLabel),
		},
	}
}

// FilePrefix is the marker a file name carries for this kind, as in
// ga_sessions_2022.json.
func (k JSONKind) FilePrefix() string { return "ga_" + string(k) }

// Matches reports whether the base name of path belongs to this kind.
func (k JSONKind) Matches(path string) bool {
	return strings.Contains(filepath.Base(path), k.FilePrefix())
}

type builder interface {
	add(gjson.Result) error
	dataset() rp.Dataset
}

func newBuilder(kind JSONKind) (builder, error) {
	switch kind {
	case JSONSessions:
		return &sessionsBuilder{}, nil
	case JSONHits:
		return &hitsBuilder{}, nil
	default:
		return nil, fmt.Errorf("unknown json dataset kind %q", kind)
	}
}

// feed walks a document shaped as {"<date>": [record, ...], ...}.
func feed(b builder, raw []byte, path string) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: %w: %s", rp.ErrDeserialization, ErrInvalidJSON, path)
	}
	var doc gjson.Result = gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return fmt.Errorf("%w: %w: %s: top level is not an object", rp.ErrDeserialization, ErrInvalidJSON, path)
	}

	var e error
	doc.ForEach(func(_, group gjson.Result) bool {
		for _, rec := range group.Array() {
			e = b.add(rec)
			if nil != e {
				return false
			}
		}
		return true
	})
	return e
}

func loadJSON(kind JSONKind, paths ...string) (rp.Dataset, error) {
	b, e := newBuilder(kind)
	if nil != e {
		return rp.Dataset{}, e
	}
	for _, path := range paths {
		raw, e := os.ReadFile(path)
		if nil != e {
			return rp.Dataset{}, rp.Classify(e)
		}
		e = feed(b, raw, path)
		if nil != e {
			return rp.Dataset{}, e
		}
	}
	return b.dataset(), nil
}

func LoadJSONSessions(path string) (rp.Dataset, error) {
	return loadJSON(JSONSessions, path)
}

func LoadJSONHits(path string) (rp.Dataset, error) {
	return loadJSON(JSONHits, path)
}

// LoadJSONDir merges the *.json files of dir whose name carries the kind's
// prefix (ga_sessions or ga_hits), in lexical order. Other files are
// skipped.
func LoadJSONDir(dir string, kind JSONKind) (rp.Dataset, error) {
	paths, e := filepath.Glob(filepath.Join(dir, "*.json"))
	if nil != e {
		return rp.Dataset{}, e
	}

	var matched []string = make([]string, 0, len(paths))
	for _, path := range paths {
		if kind.Matches(path) {
			matched = append(matched, path)
		}
	}
	if 0 == len(matched) {
		return rp.Dataset{}, fmt.Errorf(
			"%w: no %s*.json files in %s", rp.ErrNotFound, kind.FilePrefix(), dir,
		)
	}
	sort.Strings(matched)
	return loadJSON(kind, matched...)
}

// FilterHits keeps the hits whose session_id appears in sessions.
func FilterHits(hits, sessions rp.Dataset) (rp.Dataset, error) {
	known, e := sessions.Lookup("session_id", rp.KindString)
	if nil != e {
		return rp.Dataset{}, e
	}
	ids, e := hits.Lookup("session_id", rp.KindString)
	if nil != e {
		return rp.Dataset{}, e
	}

	var set map[string]struct{} = make(map[string]struct{}, len(known.Strings))
	for _, id := range known.Strings {
		set[id] = struct{}{}
	}
	return hits.Filter(func(row int) bool {
		_, found := set[ids.Strings[row]]
		return found
	}), nil
}

// LoadJSONExport reads a directory holding both ga_sessions*.json and
// ga_hits*.json files. Hits of unknown sessions are dropped.
func LoadJSONExport(dir string) (sessions, hits rp.Dataset, e error) {
	sessions, e = LoadJSONDir(dir, JSONSessions)
	if nil != e {
		return rp.Dataset{}, rp.Dataset{}, e
	}
	hits, e = LoadJSONDir(dir, JSONHits)
	if nil != e {
		return rp.Dataset{}, rp.Dataset{}, e
	}
	hits, e = FilterHits(hits, sessions)
	if nil != e {
		return rp.Dataset{}, rp.Dataset{}, e
	}
	return sessions, hits, nil
}
