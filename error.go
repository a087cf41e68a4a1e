package railz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors.
var (
	// ErrNilEffect is raised when a zero Effect value is run.
	ErrNilEffect = errors.New("effect has no computation")
)

// Error describes a raised failure: something that went wrong outside the
// typed error channel of a Result. Domain failures never appear here; an
// Error means a computation panicked, a collaborator failed unexpectedly, or
// the run was canceled or timed out.
//
// Path records where the failure happened, outermost component first, e.g.
// ["register-user", "persist"].
type Error struct {
	Timestamp time.Time
	Input     any
	Err       error
	Path      []Name
	Duration  time.Duration
	Timeout   bool
	Canceled  bool
	Panic     bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	location := "effect"
	if len(e.Path) > 0 {
		location = strings.Join(e.Path, " -> ")
	}

	switch {
	case e.Timeout:
		return fmt.Sprintf("%s timed out after %v: %v", location, e.Duration, e.Err)
	case e.Canceled:
		return fmt.Sprintf("%s canceled after %v: %v", location, e.Duration, e.Err)
	case e.Panic:
		return fmt.Sprintf("%s panicked: %v", location, e.Err)
	}
	return fmt.Sprintf("%s failed after %v: %v", location, e.Duration, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the failure was caused by a deadline.
func (e *Error) IsTimeout() bool {
	return e.Timeout || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled reports whether the failure was caused by cancellation.
func (e *Error) IsCanceled() bool {
	return e.Canceled || errors.Is(e.Err, context.Canceled)
}

// IsCancellation reports whether err is a context cancellation or deadline,
// either directly or wrapped in an *Error.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	var railErr *Error
	if errors.As(err, &railErr) {
		return railErr.IsCanceled() || railErr.IsTimeout()
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// contextError builds the failure reported when a run observes a done context.
func contextError(ctx context.Context, path []Name, input any, now time.Time, elapsed time.Duration) *Error {
	err := ctx.Err()
	return &Error{
		Timestamp: now,
		Input:     input,
		Err:       err,
		Path:      path,
		Duration:  elapsed,
		Timeout:   errors.Is(err, context.DeadlineExceeded),
		Canceled:  errors.Is(err, context.Canceled),
	}
}

// withPath prefixes err's path with name. Errors that are not already an
// *Error are wrapped so the caller always sees where the failure happened.
// A path already starting with name is kept as is, so a pipeline embedded as
// a step under its own name appears once. An existing *Error is copied, never
// modified, since a step may return the same *Error from every run.
func withPath(err error, name Name, input any, now time.Time, elapsed time.Duration) *Error {
	var railErr *Error
	if errors.As(err, &railErr) {
		if len(railErr.Path) > 0 && railErr.Path[0] == name {
			return railErr
		}
		cp := *railErr
		cp.Path = append([]Name{name}, railErr.Path...)
		return &cp
	}
	return &Error{
		Timestamp: now,
		Input:     input,
		Err:       err,
		Path:      []Name{name},
		Duration:  elapsed,
		Timeout:   errors.Is(err, context.DeadlineExceeded),
		Canceled:  errors.Is(err, context.Canceled),
	}
}

// recoverFromPanic converts a panic in the current goroutine into an *Error
// stored in err. It must be deferred directly.
func recoverFromPanic(err *error, input any, path ...Name) {
	if r := recover(); r != nil {
		*err = &Error{
			Timestamp: time.Now(),
			Input:     input,
			Err:       fmt.Errorf("%v", r),
			Path:      path,
			Panic:     true,
		}
	}
}
