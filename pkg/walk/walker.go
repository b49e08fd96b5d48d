package walk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/integrail/pagewalk/pkg/storage"
	"github.com/integrail/pagewalk/pkg/walk/dto"
)

// Walker drives one page through a walk. A Walker holds no per-run state and
// may be reused for several walks, one at a time.
type Walker struct {
	driver            Driver
	persister         storage.FilePersister
	reporter          Reporter
	log               logrus.FieldLogger
	outDir            string
	browser           dto.BrowserOpts
	navigationTimeout time.Duration
	actionTimeout     time.Duration
	sleep             SleepFunc
}

func New(driver Driver, opts ...Option) *Walker {
	w := &Walker{
		driver:            driver,
		persister:         &storage.LocalFilePersister{},
		reporter:          discardReporter,
		log:               nullLogger(),
		outDir:            DefaultOutDir,
		navigationTimeout: DefaultNavigationTimeout,
		actionTimeout:     DefaultActionTimeout,
		sleep:             sleepContext,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func nullLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// ArtifactPath returns where the artifact called name is written.
func (w *Walker) ArtifactPath(name string) string {
	return filepath.Join(w.outDir, name+".png")
}

// Run executes walk against baseURL. It never panics and never returns an
// error: failures end the walk early and are recorded in Result.Err. The
// browser session, once opened, is closed exactly once on every path.
func (w *Walker) Run(ctx context.Context, baseURL string, walk Walk) *Result {
	started := time.Now()
	res := &Result{Walk: walk.Name, Driver: w.driver.Name()}
	res.enter(StateStart)
	log := w.log.WithFields(logrus.Fields{"walk": walk.Name, "driver": w.driver.Name()})
	defer func() {
		res.enter(StateEnd)
		res.Duration = time.Since(started)
		log.WithField("duration", res.Duration.String()).Debug("walk finished")
	}()

	if err := walk.Validate(); err != nil {
		w.fail(log, res, err)
		return res
	}

	session, err := w.openSession(ctx, walk)
	if err != nil {
		w.fail(log, res, errors.Wrapf(err, "failed to open %s session", w.driver.Name()))
		return res
	}
	res.enter(StateSessionOpen)
	log.Debug("browser session open")
	defer func() {
		if err := closeSession(session); err != nil {
			log.WithError(err).Warn("failed to close browser session")
			if res.Err == nil && isPanic(err) {
				res.Err = err
			}
		}
		res.enter(StateSessionClosed)
		log.Debug("browser session closed")
	}()

	page, err := w.newPage(ctx, session, walk)
	if err != nil {
		w.fail(log, res, errors.Wrap(err, "failed to open page"))
		return res
	}

	r := &run{Walker: w, page: page, baseURL: baseURL, res: res, log: log}
	err = r.execute(ctx, walk.Steps)
	res.PageErrors = pageErrors(page, log)
	if err != nil {
		w.fail(log, res, err)
		r.captureError(ctx, walk.ErrorArtifact)
		return res
	}
	res.enter(StateSucceeded)
	log.WithField("artifacts", len(res.Artifacts)).Info("walk succeeded")
	return res
}

func (w *Walker) openSession(ctx context.Context, walk Walk) (session Session, err error) {
	defer func() {
		if p := recover(); p != nil {
			session, err = nil, errors.Errorf("driver panicked: %v", p)
		}
	}()
	opts := w.browser
	if walk.Viewport != nil {
		opts.Width = lo.ToPtr(walk.Viewport.Width)
		opts.Height = lo.ToPtr(walk.Viewport.Height)
	}
	return w.driver.Open(ctx, opts)
}

func (w *Walker) newPage(ctx context.Context, session Session, walk Walk) (page Page, err error) {
	defer func() {
		if p := recover(); p != nil {
			page, err = nil, errors.Errorf("driver panicked: %v", p)
		}
	}()
	return session.NewPage(ctx, walk.Viewport)
}

// errPanic marks errors recovered from a driver panic.
var errPanic = errors.New("driver panicked")

func isPanic(err error) bool {
	return errors.Is(err, errPanic)
}

func closeSession(session Session) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Wrapf(errPanic, "closing session: %v", p)
		}
	}()
	return session.Close()
}

func pageErrors(page Page, log logrus.FieldLogger) (errs []string) {
	defer func() {
		if p := recover(); p != nil {
			log.Warnf("collecting page errors panicked: %v", p)
			errs = nil
		}
	}()
	return page.Errors()
}

func (w *Walker) fail(log logrus.FieldLogger, res *Result, err error) {
	res.Err = err
	res.enter(StateFailed)
	log.WithError(err).Error("walk failed")
	w.reporter.Report(fmt.Sprintf("Error: %v", err))
}

// run carries the state of a single Run call.
type run struct {
	*Walker
	page    Page
	baseURL string
	res     *Result
	log     logrus.FieldLogger
	next    int
}

func (r *run) execute(ctx context.Context, steps []Step) (err error) {
	defer func() {
		if p := recover(); p != nil {
			idx := r.next - 1
			cause := errors.Errorf("panic: %v", p)
			r.res.Steps = append(r.res.Steps, StepResult{Index: idx, Outcome: OutcomeFailed, Err: cause})
			err = &StepError{Index: idx, Step: "unknown", Err: cause}
		}
	}()
	return r.steps(ctx, steps)
}

func (r *run) steps(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if err := r.step(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) step(ctx context.Context, step Step) error {
	idx := r.next
	r.next++
	r.res.enter(StateStepExecuting)
	if step.Message != "" {
		r.reporter.Report(step.Message)
	}
	log := r.log.WithFields(logrus.Fields{"step": idx, "kind": step.Kind})

	started := time.Now()
	sr := StepResult{Index: idx, Kind: step.Kind, Step: step.Describe()}
	outcome, err := r.do(ctx, log, step, &sr)
	if err == nil && outcome == OutcomeDone && step.Settle > 0 {
		err = r.sleep(ctx, step.Settle)
	}
	sr.Duration = time.Since(started)
	if err != nil {
		sr.Outcome, sr.Err = OutcomeFailed, err
		r.res.Steps = append(r.res.Steps, sr)
		log.WithError(err).Debug("step failed")
		return &StepError{Index: idx, Kind: step.Kind, Step: sr.Step, Err: err}
	}
	sr.Outcome = outcome
	r.res.Steps = append(r.res.Steps, sr)
	log.WithField("outcome", outcome).Debug(sr.Step)

	if outcome == OutcomeDone && len(step.Then) > 0 {
		return r.steps(ctx, step.Then)
	}
	return nil
}

func (r *run) do(ctx context.Context, log logrus.FieldLogger, step Step, sr *StepResult) (Outcome, error) {
	switch step.Kind {
	case KindNavigate:
		url := joinURL(r.baseURL, step.Path)
		if err := r.page.Goto(ctx, url, step.WaitUntil, r.timeout(step, r.navigationTimeout)); err != nil {
			return OutcomeFailed, navigationError(url, err)
		}
	case KindReload:
		if err := r.page.Reload(ctx, step.WaitUntil, r.timeout(step, r.navigationTimeout)); err != nil {
			return OutcomeFailed, navigationError("reload", err)
		}
	case KindWaitFor:
		if err := r.page.WaitFor(ctx, step.Locator, r.timeout(step, r.actionTimeout)); err != nil {
			return OutcomeFailed, errors.Wrapf(err, "waiting for %s", step.Locator)
		}
	case KindWaitFunc:
		if err := r.page.WaitFunc(ctx, step.Expr, r.timeout(step, r.actionTimeout)); err != nil {
			return OutcomeFailed, errors.Wrapf(err, "waiting for %q", step.Expr)
		}
	case KindInteract:
		if step.Optional {
			visible, err := r.page.IsVisible(ctx, step.Locator)
			if err != nil {
				return OutcomeFailed, errors.Wrapf(err, "failed to look up %s", step.Locator)
			}
			if !visible {
				r.reporter.Report(lo.Ternary(step.Missing != "", step.Missing, fmt.Sprintf("%s not found, skipping", step.Locator)))
				log.WithField("locator", step.Locator.String()).Warn("optional element not visible")
				return OutcomeSkipped, nil
			}
		}
		if err := r.page.Click(ctx, step.Locator, r.timeout(step, r.actionTimeout)); err != nil {
			return OutcomeFailed, errors.Wrapf(err, "failed to click %s", step.Locator)
		}
		if step.Optional && step.Found != "" {
			r.reporter.Report(step.Found)
		}
	case KindScroll:
		if err := r.page.ScrollTo(ctx, step.X, step.Y); err != nil {
			return OutcomeFailed, errors.Wrapf(err, "failed to scroll to (%d, %d)", step.X, step.Y)
		}
	case KindSettle:
		if err := r.sleep(ctx, step.Delay); err != nil {
			return OutcomeFailed, err
		}
	case KindCapture:
		path, err := r.capture(ctx, step.Artifact)
		if err != nil {
			return OutcomeFailed, err
		}
		sr.Artifact = path
		r.res.Artifacts = append(r.res.Artifacts, path)
		log.WithField("artifact", path).Info("screenshot saved")
	case KindCheck:
		passed, err := r.page.EvaluateBool(ctx, step.Expr)
		if err != nil {
			return OutcomeFailed, errors.Wrapf(err, "failed to evaluate %q", step.Label)
		}
		r.res.Checks = append(r.res.Checks, CheckResult{Label: step.Label, Passed: passed})
		r.reporter.Report(fmt.Sprintf("%s: %s", step.Label, lo.Ternary(passed, "✓ YES", "✗ NO")))
	default:
		return OutcomeFailed, errors.Wrapf(ErrInvalidWalk, "unknown step kind %q", step.Kind)
	}
	return OutcomeDone, nil
}

func (r *run) capture(ctx context.Context, name string) (string, error) {
	data, err := r.page.Screenshot(ctx)
	if err != nil {
		return "", errors.Wrapf(err, "failed to take screenshot %q", name)
	}
	path := r.ArtifactPath(name)
	if err := r.persister.Persist(ctx, path, bytes.NewReader(data)); err != nil {
		return "", errors.Wrapf(err, "failed to save screenshot %q", name)
	}
	r.reporter.Report(fmt.Sprintf("Screenshot saved to %s", path))
	return path, nil
}

// captureError takes the diagnostic screenshot after a failure. It runs on a
// context detached from cancellation so an interrupted walk still leaves one.
func (r *run) captureError(ctx context.Context, name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), errorCaptureTimeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			r.log.Warnf("error screenshot panicked: %v", p)
		}
	}()
	path, err := r.capture(ctx, name)
	if err != nil {
		r.log.WithError(err).Warn("failed to capture error screenshot")
		return
	}
	r.res.ErrorArtifact = path
}

func (r *run) timeout(step Step, def time.Duration) time.Duration {
	return lo.Ternary(step.Timeout > 0, step.Timeout, def)
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func navigationError(target string, err error) error {
	if IsTimeout(err) {
		return errors.Wrapf(err, "navigation to %s", target)
	}
	return Classify(ErrNavigation, err, target)
}
