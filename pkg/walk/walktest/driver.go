// Package walktest provides an in-memory walk.Driver for tests.
package walktest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/integrail/pagewalk/pkg/walk"
	"github.com/integrail/pagewalk/pkg/walk/dto"
)

type Call struct {
	Method string
	Arg    string
}

func (c Call) String() string {
	if c.Arg == "" {
		return c.Method
	}
	return c.Method + " " + c.Arg
}

// Driver records every call made through its sessions and pages. Elements are
// invisible unless listed in Visible, keyed by walk.Locator.String().
type Driver struct {
	mu sync.Mutex

	OpenErr    error
	NewPageErr error
	CloseErr   error
	// PanicOnClose makes Session.Close panic with the given value.
	PanicOnClose any
	// PanicOnErrors makes Page.Errors panic with the given value.
	PanicOnErrors any
	Visible    map[string]bool
	Eval       map[string]bool
	PageErrors []string

	failures map[string]error
	panics   map[string]bool

	Opens      []dto.BrowserOpts
	Viewports  []*walk.Viewport
	Closes     int
	Calls      []Call
	Screenshot int
}

func New() *Driver {
	return &Driver{
		Visible:  map[string]bool{},
		Eval:     map[string]bool{},
		failures: map[string]error{},
		panics:   map[string]bool{},
	}
}

// FailOn makes the call described by method and arg return err.
func (d *Driver) FailOn(method, arg string, err error) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[Call{Method: method, Arg: arg}.String()] = err
	return d
}

// PanicOn makes the call described by method and arg panic.
func (d *Driver) PanicOn(method, arg string) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.panics[Call{Method: method, Arg: arg}.String()] = true
	return d
}

// Methods returns the recorded calls in order, rendered as "Method arg".
func (d *Driver) Methods() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.Calls))
	for _, c := range d.Calls {
		out = append(out, c.String())
	}
	return out
}

func (d *Driver) record(method, arg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := Call{Method: method, Arg: arg}
	d.Calls = append(d.Calls, c)
	if d.panics[c.String()] {
		panic(fmt.Sprintf("walktest: %s", c))
	}
	return d.failures[c.String()]
}

func (d *Driver) Name() string { return "walktest" }

func (d *Driver) Open(_ context.Context, opts dto.BrowserOpts) (walk.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Opens = append(d.Opens, opts)
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	return &session{d: d}, nil
}

type session struct {
	d *Driver
}

func (s *session) NewPage(_ context.Context, viewport *walk.Viewport) (walk.Page, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.Viewports = append(s.d.Viewports, viewport)
	if s.d.NewPageErr != nil {
		return nil, s.d.NewPageErr
	}
	return &page{d: s.d}, nil
}

func (s *session) Close() error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.Closes++
	if s.d.PanicOnClose != nil {
		panic(s.d.PanicOnClose)
	}
	return s.d.CloseErr
}

type page struct {
	d *Driver
}

func (p *page) Goto(ctx context.Context, url string, until walk.LoadState, _ time.Duration) error {
	return p.call(ctx, "Goto", url+" "+string(until))
}

func (p *page) Reload(ctx context.Context, until walk.LoadState, _ time.Duration) error {
	return p.call(ctx, "Reload", string(until))
}

func (p *page) WaitFor(ctx context.Context, loc walk.Locator, _ time.Duration) error {
	return p.call(ctx, "WaitFor", loc.String())
}

func (p *page) WaitFunc(ctx context.Context, expr string, _ time.Duration) error {
	return p.call(ctx, "WaitFunc", expr)
}

func (p *page) IsVisible(ctx context.Context, loc walk.Locator) (bool, error) {
	if err := p.call(ctx, "IsVisible", loc.String()); err != nil {
		return false, err
	}
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	return p.d.Visible[loc.String()], nil
}

func (p *page) Click(ctx context.Context, loc walk.Locator, _ time.Duration) error {
	return p.call(ctx, "Click", loc.String())
}

func (p *page) ScrollTo(ctx context.Context, x, y int) error {
	return p.call(ctx, "ScrollTo", fmt.Sprintf("%d,%d", x, y))
}

func (p *page) EvaluateBool(ctx context.Context, expr string) (bool, error) {
	if err := p.call(ctx, "EvaluateBool", expr); err != nil {
		return false, err
	}
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	return p.d.Eval[expr], nil
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.call(ctx, "Screenshot", ""); err != nil {
		return nil, err
	}
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	p.d.Screenshot++
	return []byte(fmt.Sprintf("png-%d", p.d.Screenshot)), nil
}

func (p *page) Errors() []string {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	if p.d.PanicOnErrors != nil {
		panic(p.d.PanicOnErrors)
	}
	return append([]string(nil), p.d.PageErrors...)
}

func (p *page) call(ctx context.Context, method, arg string) error {
	if err := p.d.record(method, arg); err != nil {
		return err
	}
	return ctx.Err()
}

// Sleeps records settle delays without waiting.
type Sleeps struct {
	mu     sync.Mutex
	Delays []time.Duration
}

func (s *Sleeps) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Delays = append(s.Delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Lines collects reported progress lines.
type Lines struct {
	mu    sync.Mutex
	Lines []string
}

func (l *Lines) Report(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Lines = append(l.Lines, msg)
}
