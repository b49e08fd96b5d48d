package cdpdriver

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/integrail/pagewalk/pkg/driver/drivertest"
	"github.com/integrail/pagewalk/pkg/walk"
	"github.com/integrail/pagewalk/pkg/walk/dto"
)

func TestTextXPath(t *testing.T) {
	RegisterTestingT(t)

	Expect(TextXPath("Software Architect")).To(Equal(
		`(//body//*[not(self::script or self::style or self::noscript or self::template)` +
			` and contains(normalize-space(.), "Software Architect") and not(*[contains(normalize-space(.), "Software Architect")])])[1]`,
	))
}

func TestXPathLiteral(t *testing.T) {
	RegisterTestingT(t)

	Expect(xpathLiteral("Work")).To(Equal(`"Work"`))
	Expect(xpathLiteral(`say "hi"`)).To(Equal(`'say "hi"'`))
	Expect(xpathLiteral(`it's "x"`)).To(Equal(`concat("it's ", '"', "x", '"', "")`))
}

func TestQuery(t *testing.T) {
	RegisterTestingT(t)

	sel, _ := query(walk.CSS("canvas"))
	Expect(sel).To(Equal("canvas"))
	sel, _ = query(walk.Text("Info"))
	Expect(sel).To(HavePrefix("(//body//*["))
	Expect(sel).To(HaveSuffix(")[1]"))
}

func TestVisibleScript(t *testing.T) {
	RegisterTestingT(t)

	css := visibleScript(walk.CSS(`button[aria-label="Toggle dark mode"]`))
	Expect(css).To(ContainSubstring(`document.querySelector("button[aria-label=\"Toggle dark mode\"]")`))
	Expect(css).To(ContainSubstring("getBoundingClientRect"))

	text := visibleScript(walk.Text("Contact"))
	Expect(text).To(ContainSubstring("document.evaluate("))
	Expect(text).To(ContainSubstring(`normalize-space(.), \"Contact\")`))
}

func TestTranslate(t *testing.T) {
	RegisterTestingT(t)

	Expect(translate(nil)).To(BeNil())
	Expect(walk.IsTimeout(translate(context.DeadlineExceeded))).To(BeTrue())
	Expect(walk.IsTimeout(translate(errors.Wrap(context.DeadlineExceeded, "wait")))).To(BeTrue())
	Expect(walk.IsTimeout(translate(chromedp.ErrPollingTimeout))).To(BeTrue())
	Expect(walk.IsTimeout(translate(context.Canceled))).To(BeFalse())
}

func TestAllocatorOptions(t *testing.T) {
	RegisterTestingT(t)

	d := New(logrus.New(), WithExecPath("/usr/bin/chromium"))
	Expect(d.execPath).To(Equal("/usr/bin/chromium"))
	Expect(d.Name()).To(Equal(Name))

	base := len(chromedp.DefaultExecAllocatorOptions)
	Expect(d.allocatorOptions(dto.BrowserOpts{})).To(HaveLen(base + 3))
	Expect(d.allocatorOptions(dto.BrowserOpts{UserAgent: "pagewalk"})).To(HaveLen(base + 4))
	Expect(New(logrus.New()).allocatorOptions(dto.BrowserOpts{})).To(HaveLen(base + 2))
}

func TestOnEventIgnoresChildFrameIdle(t *testing.T) {
	RegisterTestingT(t)
	p := &page{log: logrus.New(), mainFrame: cdp.FrameID("main"), idle: make(chan struct{}, 1)}
	idle := p.armIdle()

	p.onEvent(&cdppage.EventLifecycleEvent{FrameID: "ad-iframe", Name: networkIdleEvent})
	Expect(idle).NotTo(Receive())

	p.onEvent(&cdppage.EventLifecycleEvent{FrameID: "main", Name: "load"})
	Expect(idle).NotTo(Receive())

	p.onEvent(&cdppage.EventLifecycleEvent{FrameID: "main", Name: networkIdleEvent})
	Expect(idle).To(Receive())
}

func TestOnEventCollectsExceptions(t *testing.T) {
	RegisterTestingT(t)
	p := &page{log: logrus.New(), idle: make(chan struct{}, 1)}

	p.onEvent(&runtime.EventExceptionThrown{ExceptionDetails: &runtime.ExceptionDetails{
		Text:      "Uncaught",
		Exception: &runtime.RemoteObject{Description: "Error: kaboom"},
	}})

	Expect(p.Errors()).To(Equal([]string{"Error: kaboom"}))
}

func TestConformance(t *testing.T) {
	var opts []Option
	if path := os.Getenv("PAGEWALK_CHROME_PATH"); strings.TrimSpace(path) != "" {
		opts = append(opts, WithExecPath(path))
	}
	drivertest.Conformance(t, New(logrus.New(), opts...))
}
