// Package synth generates deterministic sessions/hits shaped datasets.
package synth

import (
	"fmt"
	"math/rand/v2"
	"time"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
)

var (
	utmSources = []string{
		"zpyowgxyqlzlgycrdfrp", "fddmsxfyjyjhsfamvzru", "kjsltyufjqxmstvdjtjd",
		"mvmsnzyfjoeucgbjjecl", "unknown",
	}
	utmMediums = []string{
		"organic", "blogger_channel", "banner", "cpc", "referral", "cpm",
		"(none)", "app", "email", "smm", "push", "stories", "tg",
	}
	deviceOS     = []string{"android", "ios", "windows", "macintosh", "linux", "unknown"}
	deviceBrands = []string{"samsung", "apple", "xiaomi", "huawei", "realme", "unknown"}
	deviceModels = []string{"unknown", "galaxy", "iphone", "redmi", "mate"}
	eventLabels  = []string{
		"click", "view", "quiz_show", "sub_car_claim_click", "start_chat", "unknown",
	}
)

var epoch time.Time = time.Date(2021, 5, 19, 0, 0, 0, 0, time.UTC)

func pick(r *rand.Rand, vals []string) string { return vals[r.IntN(len(vals))] }

// SessionID renders the i-th session identifier.
func SessionID(i int) string {
	return fmt.Sprintf("%d.%d.%d", 9055434745589932991-int64(i), 1637753792+i, 1637753792+i)
}

func Sessions(rows int, seed uint64) rp.Dataset {
	var r *rand.Rand = rand.New(rand.NewPCG(seed, seed^0x5e55))

	var ids, sources, mediums []string = make([]string, rows), make([]string, rows), make([]string, rows)
	var dates []time.Time = make([]time.Time, rows)
	var numbers []int64 = make([]int64, rows)
	var oses, brands, models []string = make([]string, rows), make([]string, rows), make([]string, rows)

	for i := 0; i < rows; i++ {
		ids[i] = SessionID(i)
		sources[i] = pick(r, utmSources)
		mediums[i] = pick(r, utmMediums)
		dates[i] = epoch.AddDate(0, 0, r.IntN(225))
		numbers[i] = 1 + int64(r.IntN(5))
		oses[i] = pick(r, deviceOS)
		brands[i] = pick(r, deviceBrands)
		models[i] = pick(r, deviceModels)
	}

	return rp.Dataset{
		Name: "sessions",
		Columns: []rp.Column{
			rp.StringColumn("session_id", ids),
			rp.StringColumn("utm_source", sources),
			rp.StringColumn("utm_medium", mediums),
			rp.TimestampColumn("visit_date", dates),
			rp.Int64Column("visit_number", numbers),
			rp.StringColumn("device_os", oses),
			rp.StringColumn("device_brand", brands),
			rp.StringColumn("device_model", models),
		},
	}
}

// Hits references session ids in [0, sessions).
func Hits(rows int, sessions int, seed uint64) rp.Dataset {
	var r *rand.Rand = rand.New(rand.NewPCG(seed, seed^0x4175))
	if sessions <= 0 {
		sessions = 1
	}

	var ids, labels []string = make([]string, rows), make([]string, rows)
	var dates []time.Time = make([]time.Time, rows)
	var numbers []int64 = make([]int64, rows)

	for i := 0; i < rows; i++ {
		ids[i] = SessionID(r.IntN(sessions))
		dates[i] = epoch.AddDate(0, 0, r.IntN(225))
		numbers[i] = 1 + int64(r.IntN(100))
		labels[i] = pick(r, eventLabels)
	}

	return rp.Dataset{
		Name: "hits",
		Columns: []rp.Column{
			rp.StringColumn("session_id", ids),
			rp.TimestampColumn("hit_date", dates),
			rp.Int64Column("hit_number", numbers),
			rp.StringColumn("event_label", labels),
		},
	}
}

// Mixed is a small integer/string table: id, name, score, flag, created.
func Mixed(rows int) rp.Dataset {
	var ids, scores []int64 = make([]int64, rows), make([]int64, rows)
	var names, flags, created []string = make([]string, rows), make([]string, rows), make([]string, rows)
	for i := 0; i < rows; i++ {
		ids[i] = int64(i)
		names[i] = fmt.Sprintf("name-%d", i%97)
		scores[i] = int64(i*31) % 1000
		flags[i] = []string{"yes", "no"}[i%2]
		created[i] = epoch.AddDate(0, 0, i%365).Format("2006-01-02")
	}
	return rp.Dataset{
		Name: "mixed",
		Columns: []rp.Column{
			rp.Int64Column("id", ids),
			rp.StringColumn("name", names),
			rp.Int64Column("score", scores),
			rp.StringColumn("flag", flags),
			rp.StringColumn("created", created),
		},
	}
}
