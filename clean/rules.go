// Package clean applies the row-level cleaning of the sessions/hits
// pipeline to an in-memory dataset: duplicate removal, date coercion,
// string normalization, type checks, allowlists, key references, missing
// value fills and IQR outlier removal.
package clean

import (
	"errors"
	"fmt"
	"sort"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	rd "github.com/takanoriyanagitani/go-rowdump2parquet/rowdump"
)

var (
	ErrUnknownReference error = errors.New("referenced dataset not cleaned yet")
	ErrInvalidRule      error = errors.New("invalid cleaning rule")
)

// Reference keeps the rows whose Column value appears in column Key of the
// dataset named Dataset.
type Reference struct {
	Column  string `yaml:"column"`
	Dataset string `yaml:"dataset"`
	Key     string `yaml:"key"`
}

// Rules is the cleaning recipe of one dataset. Steps run in field order.
type Rules struct {
	DropDuplicates bool                `yaml:"drop_duplicates"`
	Dates          []string            `yaml:"dates"`
	LowerStrings   bool                `yaml:"lower_strings"`
	Types          map[string]string   `yaml:"types"`
	Allow          map[string][]string `yaml:"allow"`
	References     []Reference         `yaml:"references"`
	Fill           map[string]string   `yaml:"fill"`
	Outliers       []string            `yaml:"outliers"`
}

// UTMMediums is the set of traffic channels the sessions table accepts.
var UTMMediums []string = []string{
	"organic", "blogger_channel", "blogger_stories", "banner", "cpc",
	"referral", "cpm", "(none)", "app", "email", "smm", "vk_smm", "push",
	"stories", "tg", "smartbanner",
}

// DefaultRules returns the recipes for the sessions and hits datasets.
func DefaultRules() map[string]Rules {
	return map[string]Rules{
		"sessions": {
			DropDuplicates: true,
			Dates:          []string{"visit_date"},
			LowerStrings:   true,
			Types:          map[string]string{"visit_number": "int64"},
			Allow:          map[string][]string{"utm_medium": UTMMediums},
			Fill: fillUnknown(
				"utm_source", "utm_medium", "utm_campaign", "utm_adcontent",
				"utm_keyword", "device_os", "device_brand", "device_model",
			),
			Outliers: []string{"visit_number"},
		},
		"hits": {
			DropDuplicates: true,
			Dates:          []string{"hit_date"},
			LowerStrings:   true,
			Types:          map[string]string{"hit_number": "int64"},
			References: []Reference{
				{Column: "session_id", Dataset: "sessions", Key: "session_id"},
			},
			Fill:     fillUnknown("hit_referer", "event_label", "event_value"),
			Outliers: []string{"hit_number"},
		},
	}
}

func fillUnknown(columns ...string) map[string]string {
	var fill map[string]string = make(map[string]string, len(columns))
	for _, col := range columns {
		fill[col] = rd.Unknown
	}
	return fill
}

// Validate checks the type names and reference fields.
func (r Rules) Validate() error {
	for _, col := range sortedKeys(r.Types) {
		_, e := rp.ParseKind(r.Types[col])
		if nil != e {
			return fmt.Errorf("%w: types.%s: %w", ErrInvalidRule, col, e)
		}
	}
	for i, ref := range r.References {
		if "" == ref.Column || "" == ref.Dataset || "" == ref.Key {
			return fmt.Errorf("%w: references #%d needs column, dataset and key", ErrInvalidRule, i)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	var keys []string = make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
