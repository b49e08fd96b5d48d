package cdpdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/integrail/pagewalk/pkg/walk"
	"github.com/integrail/pagewalk/pkg/walk/dto"
)

const networkIdleEvent = "networkIdle"

type page struct {
	tabCtx    context.Context
	tabCancel context.CancelFunc
	slowMo    time.Duration
	log       logrus.FieldLogger

	mu        sync.Mutex
	mainFrame cdp.FrameID
	idle      chan struct{}
	errors    []string
}

func newPage(tabCtx context.Context, tabCancel context.CancelFunc, slowMo time.Duration, log logrus.FieldLogger) *page {
	p := &page{tabCtx: tabCtx, tabCancel: tabCancel, slowMo: slowMo, log: log, idle: make(chan struct{}, 1)}
	chromedp.ListenTarget(tabCtx, p.onEvent)
	return p
}

func (p *page) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *cdppage.EventLifecycleEvent:
		if e.Name != networkIdleEvent {
			return
		}
		p.mu.Lock()
		// iframes report their own lifecycle; only the top-level document counts
		if p.mainFrame != "" && e.FrameID != p.mainFrame {
			p.mu.Unlock()
			return
		}
		select {
		case p.idle <- struct{}{}:
		default:
		}
		p.mu.Unlock()
	case *runtime.EventExceptionThrown:
		msg := e.ExceptionDetails.Text
		if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
			msg = e.ExceptionDetails.Exception.Description
		}
		p.mu.Lock()
		p.errors = append(p.errors, msg)
		p.mu.Unlock()
		p.log.WithField("error", msg).Debug("page error")
	}
}

// recordMainFrame remembers the top-level frame so lifecycle events from
// child frames are ignored.
func (p *page) recordMainFrame() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := cdppage.GetFrameTree().Do(ctx)
		if err != nil {
			return errors.Wrapf(err, "failed to read frame tree")
		}
		p.mu.Lock()
		p.mainFrame = tree.Frame.ID
		p.mu.Unlock()
		return nil
	})
}

// armIdle discards any idle signal left over from an earlier navigation.
func (p *page) armIdle() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle = make(chan struct{}, 1)
	return p.idle
}

func (p *page) Errors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.errors...)
}

// run executes actions on the tab, bounded by timeout when it is positive and
// by the caller's ctx.
func (p *page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := p.runContext(ctx, timeout)
	defer cancel()
	if p.slowMo > 0 {
		if err := chromedp.Run(runCtx, chromedp.Sleep(p.slowMo)); err != nil {
			return translate(err)
		}
	}
	return translate(chromedp.Run(runCtx, actions...))
}

// runContext derives a context from the tab context that is also canceled when
// the caller's ctx is done. Canceling the tab context itself would close the tab.
func (p *page) runContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.tabCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.tabCtx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *page) Goto(ctx context.Context, url string, until walk.LoadState, timeout time.Duration) error {
	idle := p.armIdle()
	return p.run(ctx, timeout, chromedp.Navigate(url), p.waitLoad(until, idle))
}

func (p *page) Reload(ctx context.Context, until walk.LoadState, timeout time.Duration) error {
	idle := p.armIdle()
	return p.run(ctx, timeout, chromedp.Reload(), p.waitLoad(until, idle))
}

// waitLoad relies on Navigate and Reload already waiting for the load event.
func (p *page) waitLoad(until walk.LoadState, idle <-chan struct{}) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if until != walk.LoadNetworkIdle {
			return nil
		}
		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (p *page) WaitFor(ctx context.Context, loc walk.Locator, timeout time.Duration) error {
	sel, by := query(loc)
	return p.run(ctx, timeout, chromedp.WaitVisible(sel, by))
}

func (p *page) WaitFunc(ctx context.Context, expr string, timeout time.Duration) error {
	var res interface{}
	return p.run(ctx, timeout, chromedp.Poll(expr, &res, chromedp.WithPollingTimeout(timeout)))
}

func (p *page) IsVisible(ctx context.Context, loc walk.Locator) (bool, error) {
	var visible bool
	err := p.run(ctx, 0, chromedp.Evaluate(visibleScript(loc), &visible))
	return visible, err
}

func (p *page) Click(ctx context.Context, loc walk.Locator, timeout time.Duration) error {
	sel, by := query(loc)
	return p.run(ctx, timeout, chromedp.Click(sel, by, chromedp.NodeVisible))
}

func (p *page) ScrollTo(ctx context.Context, x, y int) error {
	return p.run(ctx, 0, chromedp.Evaluate(fmt.Sprintf("window.scrollTo(%d, %d)", x, y), nil))
}

func (p *page) EvaluateBool(ctx context.Context, expr string) (bool, error) {
	var res bool
	err := p.run(ctx, 0, chromedp.Evaluate(fmt.Sprintf("Boolean(%s)", expr), &res))
	return res, err
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, 0, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

func enableLifecycleEvents() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return cdppage.SetLifecycleEventsEnabled(true).Do(ctx)
	})
}

func setCookies(cookies []dto.BrowserCookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			path := c.Path
			if path == "" {
				path = "/"
			}
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure).
				Do(ctx)
			if err != nil {
				return errors.Wrapf(err, "failed to set cookie %q", c.Name)
			}
		}
		return nil
	})
}

// query maps a locator to a chromedp selector. Text locators become an XPath
// matching the innermost element whose text contains the marker.
func query(loc walk.Locator) (string, chromedp.QueryOption) {
	if loc.IsText() {
		return TextXPath(loc.Text), chromedp.BySearch
	}
	return loc.CSS, chromedp.ByQuery
}

// TextXPath selects the first rendered-content element whose own text contains
// text, in document order. Matching a single node keeps WaitVisible and Click
// in line with IsVisible and with playwright's text= engine plus First().
func TextXPath(text string) string {
	lit := xpathLiteral(text)
	return fmt.Sprintf("(//body//*[not(self::script or self::style or self::noscript or self::template)"+
		" and contains(normalize-space(.), %s) and not(*[contains(normalize-space(.), %s)])])[1]", lit, lit)
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, 2*len(parts))
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		quoted = append(quoted, `"`+part+`"`)
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// visibleScript returns an expression that is true when the first element
// matching loc is rendered with a non-empty box.
func visibleScript(loc walk.Locator) string {
	var find string
	if loc.IsText() {
		find = fmt.Sprintf("document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue", jsString(TextXPath(loc.Text)))
	} else {
		find = fmt.Sprintf("document.querySelector(%s)", jsString(loc.CSS))
	}
	return fmt.Sprintf(`(() => {
	const el = %s;
	if (!el) return false;
	const style = window.getComputedStyle(el);
	if (style.visibility === 'hidden' || style.display === 'none') return false;
	const rect = el.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
})()`, find)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// translate maps chromedp deadline and polling errors onto walk.ErrWaitTimeout.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, chromedp.ErrPollingTimeout) {
		return walk.Classify(walk.ErrWaitTimeout, err, "")
	}
	return err
}
