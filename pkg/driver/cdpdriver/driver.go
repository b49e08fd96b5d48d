// Package cdpdriver runs walks on a locally launched Chrome through chromedp.
package cdpdriver

import (
	"context"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/integrail/pagewalk/pkg/walk"
	"github.com/integrail/pagewalk/pkg/walk/dto"
)

const Name = "chromedp"

type Driver struct {
	log      logrus.FieldLogger
	execPath string
}

type Option func(d *Driver)

// WithExecPath points the allocator at a specific Chrome binary.
func WithExecPath(path string) Option {
	return func(d *Driver) {
		d.execPath = path
	}
}

func New(log logrus.FieldLogger, opts ...Option) *Driver {
	d := &Driver{log: log.WithField("driver", Name)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Name() string { return Name }

func (d *Driver) allocatorOptions(opts dto.BrowserOpts) []chromedp.ExecAllocatorOption {
	width, height := opts.Viewport()
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !opts.Headful),
		chromedp.WindowSize(width, height),
	)
	if d.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(d.execPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	return allocOpts
}

// Open launches Chrome. The returned session owns the browser process until Close.
func (d *Driver) Open(ctx context.Context, opts dto.BrowserOpts) (walk.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), d.allocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(d.log.Errorf))

	// the first Run on a fresh context starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, errors.Wrapf(err, "failed to start chrome")
	}
	return &session{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		opts:          opts,
		log:           d.log,
	}, nil
}

type session struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	opts          dto.BrowserOpts
	log           logrus.FieldLogger
	closeOnce     sync.Once
	closeErr      error
}

func (s *session) NewPage(ctx context.Context, viewport *walk.Viewport) (walk.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	p := newPage(tabCtx, tabCancel, s.opts.SlowMoDuration(), s.log)

	width, height := s.opts.Viewport()
	if viewport != nil {
		width, height = viewport.Width, viewport.Height
	}
	actions := []chromedp.Action{
		enableLifecycleEvents(),
		p.recordMainFrame(),
		chromedp.EmulateViewport(int64(width), int64(height)),
	}
	if len(s.opts.Cookies) > 0 {
		actions = append(actions, setCookies(s.opts.Cookies))
	}
	if err := p.run(ctx, 0, actions...); err != nil {
		tabCancel()
		return nil, errors.Wrapf(err, "failed to prepare tab")
	}
	return p, nil
}

// Close shuts Chrome down gracefully and then releases the allocator.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = errors.Wrapf(err, "failed to close chrome")
		}
		s.browserCancel()
		s.allocCancel()
	})
	return s.closeErr
}
