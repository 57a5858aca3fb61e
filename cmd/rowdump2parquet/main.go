package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	bn "github.com/takanoriyanagitani/go-rowdump2parquet/bench"
	cfg "github.com/takanoriyanagitani/go-rowdump2parquet/config"
	. "github.com/takanoriyanagitani/go-rowdump2parquet/util"
)

var newLogger func(cfg.Config) IO[*bn.Logger] = Lift(
	func(conf cfg.Config) (*bn.Logger, error) {
		level, e := conf.Logging.SlogLevel()
		if nil != e {
			return nil, e
		}
		return bn.NewLoggerFor(os.Stderr, conf.Logging.Format, level), nil
	},
)

var plan IO[bn.Plan] = Bind(
	cfg.FromEnv,
	func(conf cfg.Config) IO[bn.Plan] {
		return Bind(
			newLogger(conf),
			Lift(func(l *bn.Logger) (bn.Plan, error) {
				return bn.NewPlan(conf, os.Stdout, l)
			}),
		)
	},
)

var loadConvertReload IO[bn.Result] = Bind(
	plan,
	func(p bn.Plan) IO[bn.Result] { return p.Run() },
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_, e := loadConvertReload(ctx)
	if nil != e {
		log.Printf("%v\n", e)
		stop()
		os.Exit(1)
	}
}
