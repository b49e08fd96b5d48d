package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/integrail/pagewalk/pkg/config"
	"github.com/integrail/pagewalk/pkg/driver/cdpdriver"
	"github.com/integrail/pagewalk/pkg/driver/pwdriver"
	"github.com/integrail/pagewalk/pkg/report"
	"github.com/integrail/pagewalk/pkg/walk"
)

func newDriver(cfg config.Config, log logrus.FieldLogger) walk.Driver {
	if cfg.Driver == config.DriverChromedp {
		var opts []cdpdriver.Option
		if cfg.ChromePath != "" {
			opts = append(opts, cdpdriver.WithExecPath(cfg.ChromePath))
		}
		return cdpdriver.New(log, opts...)
	}
	return pwdriver.New(log)
}

// runWalk runs one walk and prints its summary once. Failures are contained in the result.
func runWalk(ctx context.Context, cfg config.Config, w walk.Walk, out io.Writer) *walk.Result {
	log := cfg.Logger()
	newWalker := func(reporter walk.Reporter) *walk.Walker {
		return walk.New(newDriver(cfg, log),
			walk.WithBrowser(cfg.BrowserOpts()),
			walk.WithOutDir(cfg.OutDir),
			walk.WithLogger(log),
			walk.WithReporter(reporter),
		)
	}

	var res *walk.Result
	if cfg.TUI {
		var err error
		res, err = report.RunTUI(ctx, fmt.Sprintf("pagewalk %s → %s", w.Name, cfg.Url), os.Stdin, out,
			func(ctx context.Context, r walk.Reporter) *walk.Result {
				return newWalker(r).Run(ctx, cfg.Url, w)
			})
		if err == nil {
			// the progress view already rendered the summary as its final frame
			return res
		}
		log.WithError(err).Warn("progress view failed")
	} else {
		res = newWalker(report.NewConsole(out, w.Name)).Run(ctx, cfg.Url, w)
	}
	_, _ = fmt.Fprint(out, report.Summary(res))
	return res
}
