package railz

// Step is a named unit of work in a sequential chain: a function from In to
// a deferred Result. Domain failures are reported through the E channel;
// a raised error (returned from the Effect run) is reserved for unexpected
// conditions such as an unavailable collaborator.
//
// Steps are immutable values built with NewStep or one of the adapters:
//
//   - Transform: pure mapping that cannot fail
//   - Apply: pure mapping that may fail with an E
//   - Perform: side-effecting work that may fail with an E or raise
//   - Tap: side effect that passes its input through
//   - Guard: predicate that rejects with an E
//
// Names appear in error paths and telemetry, so prefer constants:
//
//	const PersistUserName railz.Name = "persist-user"
type Step[In, Out, E any] struct {
	fn   func(In) Effect[Result[E, Out]]
	name Name
}

// NewStep wraps fn as a named Step.
func NewStep[In, Out, E any](name Name, fn func(In) Effect[Result[E, Out]]) Step[In, Out, E] {
	return Step[In, Out, E]{name: name, fn: fn}
}

// Name returns the step name.
func (s Step[In, Out, E]) Name() Name {
	return s.name
}

// Run returns the deferred outcome of the step for in. Nothing executes
// until the returned Effect is run.
func (s Step[In, Out, E]) Run(in In) Effect[Result[E, Out]] {
	if s.fn == nil {
		return Fail[Result[E, Out]](ErrNilEffect)
	}
	return s.fn(in)
}
