package railz

import (
	"time"

	"github.com/zoobzio/clockz"
)

// WithTimeout returns a copy of the step whose every run is bounded to d.
// When the deadline passes first the run raises an *Error with Timeout set;
// the step keeps the derived context, so a step that respects cancellation
// stops promptly. Steps that ignore the context may keep running in the
// background after the deadline.
//
//	notify := railz.Tap[*AppError]("notify", mailer.Welcome).
//	    WithTimeout(2*time.Second, nil)
//
// A nil clock uses the real clock.
func (s Step[In, Out, E]) WithTimeout(d time.Duration, clock clockz.Clock) Step[In, Out, E] {
	inner := s
	return NewStep(s.name, func(in In) Effect[Result[E, Out]] {
		return Timeout(inner.Run(in), d, clock)
	})
}
