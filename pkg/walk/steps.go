package walk

import "time"

// Navigate loads baseURL+path and waits for the given load state.
func Navigate(path string, until LoadState) Step {
	return Step{Kind: KindNavigate, Path: path, WaitUntil: until}
}

// Reload reloads the current page and waits for the given load state.
func Reload(until LoadState) Step {
	return Step{Kind: KindReload, WaitUntil: until}
}

// WaitFor suspends until the element is visible or timeout elapses.
func WaitFor(loc Locator, timeout time.Duration) Step {
	return Step{Kind: KindWaitFor, Locator: loc, Timeout: timeout}
}

// WaitFunc suspends until the in-page expression is truthy or timeout elapses.
func WaitFunc(expr string, timeout time.Duration) Step {
	return Step{Kind: KindWaitFunc, Expr: expr, Timeout: timeout}
}

// Click clicks an element that must be present.
func Click(loc Locator) Step {
	return Step{Kind: KindInteract, Locator: loc}
}

// ClickIfVisible clicks the element when it is visible and then runs the follow-up steps.
// A missing element is reported and skipped.
func ClickIfVisible(loc Locator, then ...Step) Step {
	return Step{Kind: KindInteract, Locator: loc, Optional: true, Then: then}
}

// ScrollTo scrolls the window to absolute coordinates.
func ScrollTo(x, y int) Step {
	return Step{Kind: KindScroll, X: x, Y: y}
}

// Settle pauses for d so transitions reach a steady state.
func Settle(d time.Duration) Step {
	return Step{Kind: KindSettle, Delay: d}
}

// Capture saves a screenshot of the current viewport under name.
func Capture(name string) Step {
	return Step{Kind: KindCapture, Artifact: name}
}

// Check evaluates a boolean expression in the page and records the outcome.
func Check(label, expr string) Step {
	return Step{Kind: KindCheck, Label: label, Expr: expr}
}

// Say sets the message reported before the step runs.
func (s Step) Say(msg string) Step {
	s.Message = msg
	return s
}

// ThenSettle sets a delay awaited after the step succeeds.
func (s Step) ThenSettle(d time.Duration) Step {
	s.Settle = d
	return s
}

// IfMissing sets the message reported when an optional element is absent.
func (s Step) IfMissing(msg string) Step {
	s.Missing = msg
	return s
}

// IfFound sets the message reported after an optional element was clicked.
func (s Step) IfFound(msg string) Step {
	s.Found = msg
	return s
}

// WithTimeout overrides the walker default timeout for the step.
func (s Step) WithTimeout(d time.Duration) Step {
	s.Timeout = d
	return s
}
