package walk

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrWaitTimeout = errors.New("timed out waiting")
	ErrNavigation  = errors.New("navigation failed")
	ErrInvalidWalk = errors.New("invalid walk")
)

// StepError is the failure that ended a walk.
type StepError struct {
	Index int // position in the flattened step sequence
	Kind  StepKind
	Step  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a wait that exceeded its timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrWaitTimeout)
}

// Classify marks err with one of the sentinels above while keeping its own
// chain, so errors.Is matches both the sentinel and the driver error.
func Classify(sentinel, err error, context string) error {
	if err == nil {
		return nil
	}
	return &classifiedError{sentinel: sentinel, cause: err, context: context}
}

type classifiedError struct {
	sentinel error
	cause    error
	context  string
}

func (e *classifiedError) Error() string {
	if e.context == "" {
		return fmt.Sprintf("%v: %v", e.sentinel, e.cause)
	}
	return fmt.Sprintf("%v: %s: %v", e.sentinel, e.context, e.cause)
}

func (e *classifiedError) Unwrap() []error {
	return []error{e.sentinel, e.cause}
}
