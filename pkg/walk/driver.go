package walk

import (
	"context"
	"time"

	"github.com/integrail/pagewalk/pkg/walk/dto"
)

// Driver starts browser sessions.
type Driver interface {
	Name() string
	Open(ctx context.Context, opts dto.BrowserOpts) (Session, error)
}

// Session is an exclusively owned browser process. Close releases it and is
// called exactly once by the walker.
type Session interface {
	NewPage(ctx context.Context, viewport *Viewport) (Page, error)
	Close() error
}

// Page is a single browsing context. Implementations translate Locator and
// LoadState to their engine and report timeouts as ErrWaitTimeout.
type Page interface {
	Goto(ctx context.Context, url string, until LoadState, timeout time.Duration) error
	Reload(ctx context.Context, until LoadState, timeout time.Duration) error
	WaitFor(ctx context.Context, loc Locator, timeout time.Duration) error
	WaitFunc(ctx context.Context, expr string, timeout time.Duration) error
	IsVisible(ctx context.Context, loc Locator) (bool, error)
	Click(ctx context.Context, loc Locator, timeout time.Duration) error
	ScrollTo(ctx context.Context, x, y int) error
	EvaluateBool(ctx context.Context, expr string) (bool, error)
	Screenshot(ctx context.Context) ([]byte, error)
	// Errors returns uncaught exceptions thrown by the page so far.
	Errors() []string
}

// Reporter receives human readable progress lines.
type Reporter interface {
	Report(msg string)
}

type ReporterFunc func(msg string)

func (f ReporterFunc) Report(msg string) { f(msg) }

var discardReporter = ReporterFunc(func(string) {})
