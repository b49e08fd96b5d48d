package walk

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// LoadState is the readiness signal a navigation waits for.
type LoadState string

const (
	LoadNetworkIdle LoadState = "networkidle" // no in-flight requests for a short quiescence window
	LoadEvent       LoadState = "load"
)

// Viewport is a fixed page size in CSS pixels.
type Viewport struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (v Viewport) String() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// Locator describes an element either structurally (CSS) or by the text it shows.
// Exactly one of CSS and Text is set.
type Locator struct {
	CSS  string `json:"css,omitempty" yaml:"css,omitempty"`
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

func CSS(selector string) Locator { return Locator{CSS: selector} }

func Text(text string) Locator { return Locator{Text: text} }

func (l Locator) IsText() bool { return l.Text != "" }

func (l Locator) String() string {
	if l.IsText() {
		return fmt.Sprintf("text=%q", l.Text)
	}
	return l.CSS
}

func (l Locator) validate() error {
	if (l.CSS == "") == (l.Text == "") {
		return errors.Errorf("locator must set exactly one of css or text, got %+v", l)
	}
	return nil
}

type StepKind string

const (
	KindNavigate StepKind = "navigate"
	KindReload   StepKind = "reload"
	KindWaitFor  StepKind = "wait_for"
	KindWaitFunc StepKind = "wait_func"
	KindInteract StepKind = "interact"
	KindScroll   StepKind = "scroll_to"
	KindSettle   StepKind = "settle"
	KindCapture  StepKind = "capture"
	KindCheck    StepKind = "check"
)

// Step is a single action of a walk. Only the fields relevant to Kind are read.
type Step struct {
	Kind StepKind `json:"kind" yaml:"kind"`

	Path      string        `json:"path,omitempty" yaml:"path,omitempty"`           // navigate: appended to the base URL
	WaitUntil LoadState     `json:"waitUntil,omitempty" yaml:"waitUntil,omitempty"` // navigate, reload
	Locator   Locator       `json:"locator,omitempty" yaml:"locator,omitempty"`     // wait_for, interact
	Expr      string        `json:"expr,omitempty" yaml:"expr,omitempty"`           // wait_func, check: in-page javascript expression
	Label     string        `json:"label,omitempty" yaml:"label,omitempty"`         // check
	Optional  bool          `json:"optional,omitempty" yaml:"optional,omitempty"`   // interact: absence is not an error
	Then      []Step        `json:"then,omitempty" yaml:"then,omitempty"`           // interact: runs only after an optional element was acted on
	Missing   string        `json:"missing,omitempty" yaml:"missing,omitempty"`     // interact: reported when an optional element is absent
	Found     string        `json:"found,omitempty" yaml:"found,omitempty"`         // interact: reported after an optional element was clicked
	X         int           `json:"x,omitempty" yaml:"x,omitempty"`                 // scroll_to
	Y         int           `json:"y,omitempty" yaml:"y,omitempty"`                 // scroll_to
	Delay     time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`         // settle
	Artifact  string        `json:"artifact,omitempty" yaml:"artifact,omitempty"`   // capture
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`     // zero uses the walker default

	Message string        `json:"message,omitempty" yaml:"message,omitempty"` // reported before the step runs
	Settle  time.Duration `json:"settle,omitempty" yaml:"settle,omitempty"`   // awaited after the step succeeds
}

// Describe returns a short human readable form of the step, used in logs and errors.
func (s Step) Describe() string {
	switch s.Kind {
	case KindNavigate:
		return fmt.Sprintf("navigate %q (%s)", lo.Ternary(s.Path == "", "/", s.Path), s.WaitUntil)
	case KindReload:
		return fmt.Sprintf("reload (%s)", s.WaitUntil)
	case KindWaitFor:
		return fmt.Sprintf("wait for %s", s.Locator)
	case KindWaitFunc:
		return fmt.Sprintf("wait for %q", s.Expr)
	case KindInteract:
		return fmt.Sprintf("click %s", s.Locator)
	case KindScroll:
		return fmt.Sprintf("scroll to (%d, %d)", s.X, s.Y)
	case KindSettle:
		return fmt.Sprintf("settle %s", s.Delay)
	case KindCapture:
		return fmt.Sprintf("capture %q", s.Artifact)
	case KindCheck:
		return fmt.Sprintf("check %q", s.Label)
	}
	return string(s.Kind)
}

// Walk is a named, fixed sequence of steps against one page.
type Walk struct {
	Name          string    `json:"name" yaml:"name"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	Viewport      *Viewport `json:"viewport,omitempty" yaml:"viewport,omitempty"`           // nil keeps the browser default
	Steps         []Step    `json:"steps" yaml:"steps"`
	ErrorArtifact string    `json:"errorArtifact,omitempty" yaml:"errorArtifact,omitempty"` // empty skips the diagnostic screenshot
}

// Artifacts lists every artifact name the walk may write, in step order, excluding the error artifact.
func (w Walk) Artifacts() []string {
	var names []string
	var collect func(steps []Step)
	collect = func(steps []Step) {
		for _, s := range steps {
			if s.Kind == KindCapture {
				names = append(names, s.Artifact)
			}
			collect(s.Then)
		}
	}
	collect(w.Steps)
	return names
}

// Validate checks the walk is well formed before any browser is started.
func (w Walk) Validate() error {
	if w.Name == "" {
		return errors.Wrap(ErrInvalidWalk, "walk has no name")
	}
	if len(w.Steps) == 0 {
		return errors.Wrapf(ErrInvalidWalk, "walk %q has no steps", w.Name)
	}
	if w.Viewport != nil && (w.Viewport.Width <= 0 || w.Viewport.Height <= 0) {
		return errors.Wrapf(ErrInvalidWalk, "walk %q has invalid viewport %s", w.Name, w.Viewport)
	}
	seen := map[string]bool{}
	if w.ErrorArtifact != "" {
		seen[w.ErrorArtifact] = true
	}
	for _, name := range w.Artifacts() {
		if name == "" {
			return errors.Wrapf(ErrInvalidWalk, "walk %q has a capture step without artifact name", w.Name)
		}
		if seen[name] {
			return errors.Wrapf(ErrInvalidWalk, "walk %q writes artifact %q more than once", w.Name, name)
		}
		seen[name] = true
	}
	return validateSteps(w.Name, w.Steps, false)
}

func validateSteps(walk string, steps []Step, nested bool) error {
	for i, s := range steps {
		var err error
		switch s.Kind {
		case KindNavigate, KindReload:
			if s.WaitUntil != LoadNetworkIdle && s.WaitUntil != LoadEvent {
				err = errors.Errorf("unknown load state %q", s.WaitUntil)
			}
		case KindWaitFor:
			err = s.Locator.validate()
		case KindInteract:
			err = s.Locator.validate()
			if err == nil && len(s.Then) > 0 && !s.Optional {
				err = errors.New("only optional interactions may have follow-up steps")
			}
			if err == nil {
				err = validateSteps(walk, s.Then, true)
			}
		case KindWaitFunc, KindCheck:
			if s.Expr == "" {
				err = errors.New("missing expression")
			}
		case KindSettle:
			if s.Delay <= 0 {
				err = errors.New("settle needs a positive delay")
			}
		case KindScroll, KindCapture:
		default:
			err = errors.Errorf("unknown step kind %q", s.Kind)
		}
		if err != nil {
			return errors.Wrapf(ErrInvalidWalk, "walk %q step %d (nested: %t): %s", walk, i, nested, err)
		}
	}
	return nil
}
