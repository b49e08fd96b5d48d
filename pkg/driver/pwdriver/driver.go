// Package pwdriver runs walks on Chromium through playwright.
package pwdriver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/integrail/pagewalk/pkg/walk"
	"github.com/integrail/pagewalk/pkg/walk/dto"
)

const Name = "playwright"

type Driver struct {
	log logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Driver {
	return &Driver{log: log.WithField("driver", Name)}
}

func (d *Driver) Name() string { return Name }

// Install downloads the chromium build playwright drives.
func Install() error {
	return playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
}

func (d *Driver) Open(ctx context.Context, opts dto.BrowserOpts) (walk.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start playwright")
	}
	s := &session{pw: pw, opts: opts, log: d.log}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(!opts.Headful),
	}
	if slowMo := opts.SlowMoDuration(); slowMo > 0 {
		launch.SlowMo = playwright.Float(float64(slowMo.Milliseconds()))
	}
	s.browser, err = pw.Chromium.Launch(launch)
	if err != nil {
		_ = s.Close()
		return nil, errors.Wrapf(err, "failed to launch chromium")
	}
	d.log.WithField("version", s.browser.Version()).Debug("chromium launched")
	return s, nil
}

type session struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	opts      dto.BrowserOpts
	log       logrus.FieldLogger
	closeOnce sync.Once
	closeErr  error
}

func (s *session) NewPage(ctx context.Context, viewport *walk.Viewport) (walk.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	contextOpts := playwright.BrowserNewContextOptions{}
	if viewport != nil {
		contextOpts.Viewport = &playwright.Size{Width: viewport.Width, Height: viewport.Height}
	}
	if s.opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(s.opts.UserAgent)
	}
	bctx, err := s.browser.NewContext(contextOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create browser context")
	}
	if len(s.opts.Cookies) > 0 {
		if err := bctx.AddCookies(toCookies(s.opts.Cookies)); err != nil {
			return nil, errors.Wrapf(err, "failed to set cookies")
		}
	}
	pg, err := bctx.NewPage()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create page")
	}
	p := &page{page: pg, log: s.log}
	pg.OnPageError(func(err error) {
		p.recordError(err.Error())
	})
	return p, nil
}

// Close closes the browser and stops the playwright driver process.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				s.closeErr = errors.Wrapf(err, "failed to close browser")
			}
		}
		if err := s.pw.Stop(); err != nil && s.closeErr == nil {
			s.closeErr = errors.Wrapf(err, "failed to stop playwright")
		}
	})
	return s.closeErr
}

func toCookies(cookies []dto.BrowserCookie) []playwright.OptionalCookie {
	return lo.Map(cookies, func(c dto.BrowserCookie, _ int) playwright.OptionalCookie {
		return playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   playwright.String(c.Domain),
			Path:     playwright.String(lo.Ternary(c.Path == "", "/", c.Path)),
			HttpOnly: playwright.Bool(c.HTTPOnly),
			Secure:   playwright.Bool(c.Secure),
		}
	})
}

type page struct {
	page playwright.Page
	log  logrus.FieldLogger

	mu     sync.Mutex
	errors []string
}

func (p *page) recordError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, msg)
	p.log.WithField("error", msg).Debug("page error")
}

func (p *page) Errors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.errors...)
}

func (p *page) Goto(ctx context.Context, url string, until walk.LoadState, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil(until),
		Timeout:   millis(timeout),
	})
	return translate(err)
}

func (p *page) Reload(ctx context.Context, until walk.LoadState, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Reload(playwright.PageReloadOptions{
		WaitUntil: waitUntil(until),
		Timeout:   millis(timeout),
	})
	return translate(err)
}

func (p *page) WaitFor(ctx context.Context, loc walk.Locator, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(p.locator(loc).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: millis(timeout),
	}))
}

func (p *page) WaitFunc(ctx context.Context, expr string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.WaitForFunction(expr, nil, playwright.PageWaitForFunctionOptions{
		Timeout: millis(timeout),
	})
	return translate(err)
}

func (p *page) IsVisible(ctx context.Context, loc walk.Locator) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	visible, err := p.locator(loc).IsVisible()
	return visible, translate(err)
}

func (p *page) Click(ctx context.Context, loc walk.Locator, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(p.locator(loc).Click(playwright.LocatorClickOptions{
		Timeout: millis(timeout),
	}))
}

func (p *page) ScrollTo(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Evaluate(fmt.Sprintf("window.scrollTo(%d, %d)", x, y))
	return translate(err)
}

func (p *page) EvaluateBool(ctx context.Context, expr string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	res, err := p.page.Evaluate(fmt.Sprintf("Boolean(%s)", expr))
	if err != nil {
		return false, translate(err)
	}
	b, ok := res.(bool)
	if !ok {
		return false, errors.Errorf("expression %q returned %T, expected bool", expr, res)
	}
	return b, nil
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	return buf, translate(err)
}

func (p *page) locator(loc walk.Locator) playwright.Locator {
	return p.page.Locator(Selector(loc)).First()
}

// Selector renders a locator in playwright selector syntax.
func Selector(loc walk.Locator) string {
	if loc.IsText() {
		return "text=" + loc.Text
	}
	return loc.CSS
}

func waitUntil(state walk.LoadState) *playwright.WaitUntilState {
	if state == walk.LoadNetworkIdle {
		return playwright.WaitUntilStateNetworkidle
	}
	return playwright.WaitUntilStateLoad
}

func millis(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// translate maps playwright timeouts onto walk.ErrWaitTimeout.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return walk.Classify(walk.ErrWaitTimeout, err, "")
	}
	return err
}
