package walk_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/integrail/pagewalk/pkg/storage"
	"github.com/integrail/pagewalk/pkg/walk"
	"github.com/integrail/pagewalk/pkg/walk/dto"
	"github.com/integrail/pagewalk/pkg/walk/walktest"
)

const base = "http://localhost:3000"

type harness struct {
	driver *walktest.Driver
	files  *storage.MemoryPersister
	sleeps *walktest.Sleeps
	lines  *walktest.Lines
	walker *walk.Walker
}

func newHarness(opts ...walk.Option) *harness {
	h := &harness{
		driver: walktest.New(),
		files:  &storage.MemoryPersister{},
		sleeps: &walktest.Sleeps{},
		lines:  &walktest.Lines{},
	}
	h.walker = walk.New(h.driver, append([]walk.Option{
		walk.WithPersister(h.files),
		walk.WithSleep(h.sleeps.Sleep),
		walk.WithReporter(h.lines),
	}, opts...)...)
	return h
}

func sampleWalk() walk.Walk {
	return walk.Walk{
		Name:          "sample",
		Viewport:      &walk.Viewport{Width: 375, Height: 667},
		ErrorArtifact: "error",
		Steps: []walk.Step{
			walk.Navigate("", walk.LoadNetworkIdle).Say("Navigating..."),
			walk.Capture("home"),
			walk.ClickIfVisible(walk.CSS("button.menu"),
				walk.Settle(500*time.Millisecond),
				walk.Capture("menu"),
			).IfMissing("Menu button not found!"),
			walk.ScrollTo(0, 1000).ThenSettle(500 * time.Millisecond),
			walk.Capture("scrolled"),
		},
	}
}

func TestRunSucceeds(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	h.driver.Visible["button.menu"] = true

	res := h.walker.Run(context.Background(), base, sampleWalk())

	Expect(res.Err).To(BeNil())
	Expect(res.Succeeded()).To(BeTrue())
	Expect(res.Transitions).To(Equal([]walk.State{
		walk.StateStart, walk.StateSessionOpen, walk.StateStepExecuting,
		walk.StateSucceeded, walk.StateSessionClosed, walk.StateEnd,
	}))
	Expect(res.Artifacts).To(Equal([]string{"verification/home.png", "verification/menu.png", "verification/scrolled.png"}))
	Expect(h.files.Files).To(HaveLen(3))
	Expect(h.files.Files).NotTo(HaveKey("verification/error.png"))
	Expect(h.driver.Closes).To(Equal(1))
	Expect(h.driver.Methods()).To(Equal([]string{
		"Goto http://localhost:3000 networkidle",
		"Screenshot",
		"IsVisible button.menu",
		"Click button.menu",
		"Screenshot",
		"ScrollTo 0,1000",
		"Screenshot",
	}))
	Expect(h.sleeps.Delays).To(Equal([]time.Duration{500 * time.Millisecond, 500 * time.Millisecond}))
	Expect(h.lines.Lines).To(ContainElement("Navigating..."))
	Expect(lo.Map(res.Steps, func(s walk.StepResult, _ int) walk.Outcome { return s.Outcome })).
		To(HaveEach(walk.OutcomeDone))
}

func TestRunSkipsMissingOptionalElement(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()

	res := h.walker.Run(context.Background(), base, sampleWalk())

	Expect(res.Err).To(BeNil())
	Expect(res.Artifacts).To(Equal([]string{"verification/home.png", "verification/scrolled.png"}))
	Expect(res.Skipped()).To(HaveLen(1))
	Expect(res.Skipped()[0].Kind).To(Equal(walk.KindInteract))
	Expect(h.driver.Methods()).NotTo(ContainElement("Click button.menu"))
	Expect(h.lines.Lines).To(ContainElement("Menu button not found!"))
	// the follow-up settle never ran, only the scroll settle did
	Expect(h.sleeps.Delays).To(HaveLen(1))
}

func TestRunStopsOnWaitTimeout(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	timeout := fmt.Errorf("%w: locator not visible after 60000ms", walk.ErrWaitTimeout)
	h.driver.FailOn("WaitFor", `text="Software Architect"`, timeout)

	w := walk.Walk{
		Name:          "portfolio",
		ErrorArtifact: "error",
		Steps: []walk.Step{
			walk.Navigate("/portfolio", walk.LoadEvent),
			walk.WaitFor(walk.Text("Software Architect"), time.Minute),
			walk.WaitFor(walk.CSS("canvas"), 10*time.Second),
			walk.Capture("portfolio"),
		},
	}
	res := h.walker.Run(context.Background(), base, w)

	Expect(res.Succeeded()).To(BeFalse())
	Expect(walk.IsTimeout(res.Err)).To(BeTrue())
	var stepErr *walk.StepError
	Expect(errors.As(res.Err, &stepErr)).To(BeTrue())
	Expect(stepErr.Index).To(Equal(1))
	Expect(stepErr.Kind).To(Equal(walk.KindWaitFor))

	Expect(res.Artifacts).To(BeEmpty())
	Expect(res.ErrorArtifact).To(Equal("verification/error.png"))
	Expect(h.files.Files).To(HaveLen(1))
	Expect(h.driver.Methods()).NotTo(ContainElement("WaitFor canvas"))
	Expect(h.driver.Closes).To(Equal(1))
	Expect(res.Transitions).To(Equal([]walk.State{
		walk.StateStart, walk.StateSessionOpen, walk.StateStepExecuting,
		walk.StateFailed, walk.StateSessionClosed, walk.StateEnd,
	}))
	Expect(h.lines.Lines).To(ContainElement(ContainSubstring("Error: ")))
}

func TestRunWithoutErrorArtifact(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	h.driver.FailOn("Goto", "http://localhost:3000/portfolio load", errors.New("net::ERR_CONNECTION_REFUSED"))

	res := h.walker.Run(context.Background(), base, walk.Walk{
		Name:  "portfolio",
		Steps: []walk.Step{walk.Navigate("/portfolio", walk.LoadEvent), walk.Capture("portfolio")},
	})

	Expect(errors.Is(res.Err, walk.ErrNavigation)).To(BeTrue())
	Expect(walk.IsTimeout(res.Err)).To(BeFalse())
	Expect(res.Err.Error()).To(ContainSubstring("ERR_CONNECTION_REFUSED"))
	Expect(h.files.Files).To(BeEmpty())
	Expect(h.driver.Screenshot).To(Equal(0))
	Expect(h.driver.Closes).To(Equal(1))
}

func TestRunOpenFailure(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	h.driver.OpenErr = errors.New("chromium not installed")

	res := h.walker.Run(context.Background(), base, sampleWalk())

	Expect(res.Err).NotTo(BeNil())
	Expect(res.Err.Error()).To(ContainSubstring("chromium not installed"))
	Expect(res.Transitions).To(Equal([]walk.State{walk.StateStart, walk.StateFailed, walk.StateEnd}))
	Expect(h.driver.Closes).To(Equal(0))
	Expect(h.files.Files).To(BeEmpty())
}

func TestRunNewPageFailureClosesSession(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	h.driver.NewPageErr = errors.New("target crashed")

	res := h.walker.Run(context.Background(), base, sampleWalk())

	Expect(res.Err).NotTo(BeNil())
	Expect(h.driver.Closes).To(Equal(1))
	Expect(res.State()).To(Equal(walk.StateEnd))
	Expect(res.Transitions).To(ContainElement(walk.StateSessionClosed))
}

func TestRunRecoversDriverPanic(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	h.driver.PanicOn("ScrollTo", "0,1000")

	var res *walk.Result
	Expect(func() {
		res = h.walker.Run(context.Background(), base, sampleWalk())
	}).NotTo(Panic())

	Expect(res.Err).NotTo(BeNil())
	Expect(res.Err.Error()).To(ContainSubstring("panic"))
	Expect(res.ErrorArtifact).To(Equal("verification/error.png"))
	Expect(h.driver.Closes).To(Equal(1))
}

func TestRunCloseErrorIsContained(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	h.driver.CloseErr = errors.New("browser already gone")

	res := h.walker.Run(context.Background(), base, sampleWalk())

	Expect(res.Err).To(BeNil())
	Expect(h.driver.Closes).To(Equal(1))
	Expect(res.State()).To(Equal(walk.StateEnd))
}

func TestRunContainsPanicOnClose(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	h.driver.PanicOnClose = "browser process crashed during close"

	var res *walk.Result
	Expect(func() {
		res = h.walker.Run(context.Background(), base, sampleWalk())
	}).NotTo(Panic())

	Expect(res.Err).NotTo(BeNil())
	Expect(res.Err.Error()).To(ContainSubstring("browser process crashed during close"))
	Expect(h.driver.Closes).To(Equal(1))
	Expect(res.Transitions).To(Equal([]walk.State{
		walk.StateStart, walk.StateSessionOpen, walk.StateStepExecuting,
		walk.StateSucceeded, walk.StateSessionClosed, walk.StateEnd,
	}))
}

func TestRunPanicOnCloseKeepsStepError(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	h.driver.PanicOnClose = "crash"
	h.driver.FailOn("ScrollTo", "0,1000", errors.New("target closed"))

	res := h.walker.Run(context.Background(), base, sampleWalk())

	var stepErr *walk.StepError
	Expect(errors.As(res.Err, &stepErr)).To(BeTrue())
	Expect(res.Err.Error()).To(ContainSubstring("target closed"))
	Expect(res.State()).To(Equal(walk.StateEnd))
}

func TestRunContainsPanicCollectingPageErrors(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	h.driver.PanicOnErrors = "page gone"

	var res *walk.Result
	Expect(func() {
		res = h.walker.Run(context.Background(), base, sampleWalk())
	}).NotTo(Panic())

	Expect(res.Err).To(BeNil())
	Expect(res.PageErrors).To(BeEmpty())
	Expect(h.driver.Closes).To(Equal(1))
}

func TestRunWaitFunc(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()

	res := h.walker.Run(context.Background(), base, walk.Walk{
		Name: "scene",
		Steps: []walk.Step{
			walk.Navigate("", walk.LoadEvent),
			walk.WaitFunc("window.__sceneReady === true", 5*time.Second),
			walk.Capture("scene"),
		},
	})

	Expect(res.Err).To(BeNil())
	Expect(h.driver.Methods()).To(ContainElement("WaitFunc window.__sceneReady === true"))
	Expect(res.Artifacts).To(Equal([]string{"verification/scene.png"}))
}

func TestRunWaitFuncTimeout(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	h.driver.FailOn("WaitFunc", "window.__sceneReady === true",
		errors.Wrap(walk.ErrWaitTimeout, "waiting for function failed: timeout"))

	res := h.walker.Run(context.Background(), base, walk.Walk{
		Name:          "scene",
		ErrorArtifact: "scene-error",
		Steps: []walk.Step{
			walk.Navigate("", walk.LoadEvent),
			walk.WaitFunc("window.__sceneReady === true", time.Second),
			walk.Capture("scene"),
		},
	})

	Expect(walk.IsTimeout(res.Err)).To(BeTrue())
	var stepErr *walk.StepError
	Expect(errors.As(res.Err, &stepErr)).To(BeTrue())
	Expect(stepErr.Kind).To(Equal(walk.KindWaitFunc))
	Expect(res.Artifacts).To(BeEmpty())
	Expect(res.ErrorArtifact).To(Equal("verification/scene-error.png"))
}

func TestRunRejectsInvalidWalk(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()

	res := h.walker.Run(context.Background(), base, walk.Walk{
		Name:          "dup",
		ErrorArtifact: "home",
		Steps:         []walk.Step{walk.Navigate("", walk.LoadEvent), walk.Capture("home")},
	})

	Expect(errors.Is(res.Err, walk.ErrInvalidWalk)).To(BeTrue())
	Expect(h.driver.Opens).To(BeEmpty())
	Expect(res.Transitions).To(Equal([]walk.State{walk.StateStart, walk.StateFailed, walk.StateEnd}))
}

func TestRunCanceledContextStillCapturesError(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	h.walker = walk.New(h.driver,
		walk.WithPersister(h.files),
		walk.WithSleep(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)
	h.driver.Visible["button.menu"] = true

	res := h.walker.Run(ctx, base, sampleWalk())

	Expect(errors.Is(res.Err, context.Canceled)).To(BeTrue())
	Expect(res.ErrorArtifact).To(Equal("verification/error.png"))
	Expect(h.files.Files).To(HaveKey("verification/error.png"))
	Expect(h.driver.Closes).To(Equal(1))
}

func TestRunPassesViewportAndBrowserOptions(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness(
		walk.WithBrowser(dto.BrowserOpts{Headful: true, Timeout: "45s"}),
		walk.WithOutDir("out"),
	)
	h.driver.Visible["button.menu"] = true

	res := h.walker.Run(context.Background(), base, sampleWalk())

	Expect(res.Err).To(BeNil())
	Expect(h.driver.Opens).To(HaveLen(1))
	Expect(h.driver.Opens[0].Headful).To(BeTrue())
	width, height := h.driver.Opens[0].Viewport()
	Expect(width).To(Equal(375))
	Expect(height).To(Equal(667))
	Expect(h.driver.Viewports).To(Equal([]*walk.Viewport{{Width: 375, Height: 667}}))
	Expect(res.Artifacts[0]).To(Equal("out/home.png"))
	Expect(h.walker.ArtifactPath("x")).To(Equal("out/x.png"))
}

func TestRunRecordsChecksAndPageErrors(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	h.driver.Eval["document.documentElement.classList.contains('dark')"] = true
	h.driver.PageErrors = []string{"ReferenceError: THREE is not defined"}

	res := h.walker.Run(context.Background(), base, walk.Walk{
		Name: "checks",
		Steps: []walk.Step{
			walk.Navigate("", walk.LoadNetworkIdle),
			walk.Check("dark", "document.documentElement.classList.contains('dark')"),
			walk.Check("light", "!document.documentElement.classList.contains('dark')"),
		},
	})

	Expect(res.Err).To(BeNil())
	Expect(res.Checks).To(Equal([]walk.CheckResult{{Label: "dark", Passed: true}, {Label: "light", Passed: false}}))
	Expect(res.PageErrors).To(ConsistOf("ReferenceError: THREE is not defined"))
	Expect(h.lines.Lines).To(ContainElements("dark: ✓ YES", "light: ✗ NO"))
}

func TestRunRequiredClickFailure(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()
	h.driver.FailOn("Click", `text="Work"`, fmt.Errorf("%w: element not found", walk.ErrWaitTimeout))

	res := h.walker.Run(context.Background(), base, walk.Walk{
		Name:          "darkmode",
		ErrorArtifact: "darkmode-error",
		Steps: []walk.Step{
			walk.Navigate("", walk.LoadNetworkIdle),
			walk.Click(walk.Text("Work")),
			walk.Capture("work"),
		},
	})

	Expect(walk.IsTimeout(res.Err)).To(BeTrue())
	Expect(res.Artifacts).To(BeEmpty())
	Expect(res.ErrorArtifact).To(Equal("verification/darkmode-error.png"))
	// required clicks are not preceded by a visibility probe
	Expect(h.driver.Methods()).NotTo(ContainElement(`IsVisible text="Work"`))
}

func TestWalkerIsReusable(t *testing.T) {
	RegisterTestingT(t)
	h := newHarness()

	first := h.walker.Run(context.Background(), base, sampleWalk())
	second := h.walker.Run(context.Background(), base, sampleWalk())

	Expect(first.Err).To(BeNil())
	Expect(second.Err).To(BeNil())
	Expect(second.Steps).To(HaveLen(len(first.Steps)))
	Expect(h.driver.Closes).To(Equal(2))
	Expect(h.files.Files).To(HaveLen(2))
}
