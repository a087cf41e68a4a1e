package railz

import "slices"

// State is a position in the workflow state machine.
//
//	Validating -> Rejected | Processing
//	Processing -> Rejected | Completed
//
// Rejected and Completed are terminal. There is no transition back to
// Validating.
type State int

// Workflow states.
const (
	Validating State = iota
	Processing
	Rejected
	Completed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Validating:
		return "validating"
	case Processing:
		return "processing"
	case Rejected:
		return "rejected"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Rejected || s == Completed
}

// Phase names the workflow phase a rejection came from.
type Phase int

// Workflow phases.
const (
	PhaseNone Phase = iota
	PhaseValidation
	PhaseProcessing
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseValidation:
		return "validation"
	case PhaseProcessing:
		return "processing"
	}
	return "none"
}

// Outcome is the terminal result of a workflow run: either Completed with an
// output, or Rejected with a non-empty list of errors. A rejection from the
// validation phase carries one error per failed check; a rejection from the
// processing phase carries exactly one.
type Outcome[E, Out any] struct {
	output     Out
	failedStep Name
	errs       []E
	state      State
	phase      Phase
}

func completed[E, Out any](out Out) Outcome[E, Out] {
	return Outcome[E, Out]{output: out, state: Completed}
}

func rejected[E, Out any](phase Phase, step Name, errs []E) Outcome[E, Out] {
	return Outcome[E, Out]{errs: errs, state: Rejected, phase: phase, failedStep: step}
}

// State returns Completed or Rejected for the outcome of a run. The zero
// Outcome, returned alongside a raised failure, reports Validating.
func (o Outcome[E, Out]) State() State {
	return o.state
}

// IsCompleted reports whether every phase succeeded.
func (o Outcome[E, Out]) IsCompleted() bool {
	return o.state == Completed
}

// IsRejected reports whether the run was rejected.
func (o Outcome[E, Out]) IsRejected() bool {
	return o.state == Rejected
}

// Output returns the final output and true when the run completed.
func (o Outcome[E, Out]) Output() (Out, bool) {
	if o.state != Completed {
		var zero Out
		return zero, false
	}
	return o.output, true
}

// Errors returns a copy of the rejection errors; nil unless rejected.
func (o Outcome[E, Out]) Errors() []E {
	return slices.Clone(o.errs)
}

// Phase returns the phase that rejected the run, or PhaseNone.
func (o Outcome[E, Out]) Phase() Phase {
	return o.phase
}

// FailedStep returns the name of the processing step that rejected the run.
// It is empty for validation rejections and completed runs.
func (o Outcome[E, Out]) FailedStep() Name {
	return o.failedStep
}

// Result narrows the outcome to a Result carrying the first error.
func (o Outcome[E, Out]) Result() Result[E, Out] {
	if o.state == Completed {
		return Ok[E](o.output)
	}
	if len(o.errs) == 0 {
		var zero E
		return Err[Out](zero)
	}
	return Err[Out](o.errs[0])
}

// Accumulated returns the outcome as an Accumulated keeping every error.
func (o Outcome[E, Out]) Accumulated() Accumulated[E, Out] {
	if o.state == Completed {
		return Valid[E](o.output)
	}
	if len(o.errs) == 0 {
		var zero E
		return Invalid[Out](zero)
	}
	return Accumulated[E, Out]{errs: slices.Clone(o.errs)}
}
