package walk

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/integrail/pagewalk/pkg/storage"
	"github.com/integrail/pagewalk/pkg/walk/dto"
)

const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultActionTimeout     = 30 * time.Second
	DefaultOutDir            = "verification"

	errorCaptureTimeout = 10 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(w *Walker)

func WithReporter(reporter Reporter) Option {
	return func(w *Walker) {
		if reporter != nil {
			w.reporter = reporter
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(w *Walker) {
		if log != nil {
			w.log = log
		}
	}
}

func WithPersister(persister storage.FilePersister) Option {
	return func(w *Walker) {
		if persister != nil {
			w.persister = persister
		}
	}
}

func WithOutDir(dir string) Option {
	return func(w *Walker) {
		if dir != "" {
			w.outDir = dir
		}
	}
}

// WithBrowser sets the launch options passed to the driver. The walk viewport,
// when set, takes precedence over Width and Height.
func WithBrowser(opts dto.BrowserOpts) Option {
	return func(w *Walker) {
		w.browser = opts
		w.navigationTimeout = opts.TimeoutDuration(w.navigationTimeout)
	}
}

func WithNavigationTimeout(d time.Duration) Option {
	return func(w *Walker) {
		if d > 0 {
			w.navigationTimeout = d
		}
	}
}

func WithActionTimeout(d time.Duration) Option {
	return func(w *Walker) {
		if d > 0 {
			w.actionTimeout = d
		}
	}
}

// WithSleep replaces how settle delays are awaited.
func WithSleep(sleep SleepFunc) Option {
	return func(w *Walker) {
		if sleep != nil {
			w.sleep = sleep
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
