package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	cfg "github.com/takanoriyanagitani/go-rowdump2parquet/config"
	rd "github.com/takanoriyanagitani/go-rowdump2parquet/rowdump"
	sy "github.com/takanoriyanagitani/go-rowdump2parquet/synth"
	. "github.com/takanoriyanagitani/go-rowdump2parquet/util"
)

func envInt(key string, alt int) IO[int] {
	return Bind(
		cfg.GetEnvValByKey(key),
		Lift(strconv.Atoi),
	).Or(Of(alt))
}

var sessionsRows IO[int] = envInt("ENV_SESSIONS_ROWS", 100000)
var hitsRows IO[int] = envInt("ENV_HITS_ROWS", 500000)
var seed IO[int] = envInt("ENV_SEED", 42)

var jsonDir IO[string] = cfg.GetEnvValByKey("ENV_JSON_DIR").Or(Of(""))

type pair struct {
	sessions rp.Dataset
	hits     rp.Dataset
}

var synthetic IO[pair] = func(ctx context.Context) (pair, error) {
	ns, e := sessionsRows(ctx)
	if nil != e {
		return pair{}, e
	}
	nh, e := hitsRows(ctx)
	if nil != e {
		return pair{}, e
	}
	s, e := seed(ctx)
	if nil != e {
		return pair{}, e
	}
	return pair{
		sessions: sy.Sessions(ns, uint64(s)),
		hits:     sy.Hits(nh, ns, uint64(s)),
	}, nil
}

// fromJSON reads ga_sessions*.json and ga_hits*.json from one directory.
var fromJSON func(string) IO[pair] = Lift(func(dir string) (pair, error) {
	sessions, hits, e := rd.LoadJSONExport(dir)
	if nil != e {
		return pair{}, e
	}
	return pair{sessions: sessions, hits: hits}, nil
})

var datasets IO[pair] = Bind(
	jsonDir,
	func(dir string) IO[pair] {
		if "" == dir {
			return synthetic
		}
		return fromJSON(dir)
	},
)

// save writes each dataset to the source path the harness reads.
func save(conf cfg.Config) func(pair) IO[Void] {
	return Lift(func(p pair) (Void, error) {
		for _, dc := range conf.Datasets {
			var ds rp.Dataset
			switch dc.Name {
			case "sessions":
				ds = p.sessions
			case "hits":
				ds = p.hits
			default:
				continue
			}
			e := rd.SaveDataset(ds, dc.Source)
			if nil != e {
				return Empty, e
			}
			fmt.Printf("wrote %s: %d rows x %d columns\n", dc.Source, ds.Rows(), len(ds.Columns))
		}
		return Empty, nil
	})
}

var generate IO[Void] = Bind(
	cfg.FromEnv,
	func(conf cfg.Config) IO[Void] { return Bind(datasets, save(conf)) },
)

func main() {
	_, e := generate(context.Background())
	if nil != e {
		log.Printf("%v\n", e)
		os.Exit(1)
	}
}
