package railz

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Workflow.
const (
	// Metrics.
	WorkflowRunsTotal               = metricz.Key("workflow.runs.total")
	WorkflowCompletedTotal          = metricz.Key("workflow.completed.total")
	WorkflowRejectedValidationTotal = metricz.Key("workflow.rejected.validation.total")
	WorkflowRejectedProcessingTotal = metricz.Key("workflow.rejected.processing.total")
	WorkflowRecoveredTotal          = metricz.Key("workflow.recovered.total")
	WorkflowFailedTotal             = metricz.Key("workflow.failed.total")
	WorkflowDurationMs              = metricz.Key("workflow.duration.ms")

	// Spans.
	WorkflowRunSpan = tracez.Key("workflow.run")

	// Tags.
	WorkflowTagState      = tracez.Tag("workflow.state")
	WorkflowTagPhase      = tracez.Tag("workflow.phase")
	WorkflowTagErrorCount = tracez.Tag("workflow.error_count")
	WorkflowTagFailedStep = tracez.Tag("workflow.failed_step")
	WorkflowTagError      = tracez.Tag("workflow.error")

	// Hook event keys.
	WorkflowEventTransition = hookz.Key("workflow.transition")
)

// WorkflowEvent is emitted via hookz on every state transition.
type WorkflowEvent struct {
	Timestamp  time.Time     // When the transition happened
	Name       Name          // Workflow name
	FailedStep Name          // Rejecting step, for processing rejections
	From       State         // State left
	To         State         // State entered
	Phase      Phase         // Phase that rejected, when To is Rejected
	Errors     int           // Number of errors carried, when To is Rejected
	Duration   time.Duration // Time since the run started
}

// Workflow is the two-phase composition of a Validator and a Pipeline that
// share an error type. The validator turns a raw In into a Valid value, or
// rejects with every failed check; the pipeline then processes the Valid
// value into an Out, or rejects with the single error of the step that
// failed.
//
//	register := railz.NewWorkflow("register-user", fields, steps)
//	outcome, err := register.Run(ctx, input)
//	switch {
//	case err != nil:
//	    // raised: panic, cancellation, or an unrecovered infrastructure failure
//	case outcome.IsRejected():
//	    for _, e := range outcome.Errors() { ... }
//	default:
//	    user, _ := outcome.Output()
//	}
//
// The validation phase performs no side effects, so the pipeline never runs
// for input that failed validation.
//
// Raised failures are returned as the error result with a zero Outcome.
// WithRecover maps them into a single E instead, producing a Rejected
// outcome. Cancellation is never recovered: a canceled run always returns an
// error.
//
// # Observability
//
// Metrics:
//   - workflow.runs.total: Counter of runs
//   - workflow.completed.total: Counter of completed runs
//   - workflow.rejected.validation.total: Counter of validation rejections
//   - workflow.rejected.processing.total: Counter of processing rejections
//   - workflow.recovered.total: Counter of raised failures mapped by WithRecover
//   - workflow.failed.total: Counter of runs returning an error
//   - workflow.duration.ms: Gauge of the last run duration
//
// Traces:
//   - workflow.run: Span for a run, tagged with the final state
//
// Events (via hooks):
//   - workflow.transition: Fired on each state change
type Workflow[In, Valid, Out, E any] struct {
	clock     clockz.Clock
	recoverFn func(error) E
	obs       *telemetry[WorkflowEvent]
	name      Name
	validator Validator[In, Valid, E]
	pipeline  Pipeline[Valid, Out, E]
}

// NewWorkflow composes validator and pipeline into a Workflow.
func NewWorkflow[In, Valid, Out, E any](
	name Name,
	validator Validator[In, Valid, E],
	pipeline Pipeline[Valid, Out, E],
) Workflow[In, Valid, Out, E] {
	return Workflow[In, Valid, Out, E]{
		name:      name,
		validator: validator,
		pipeline:  pipeline,
		clock:     clockz.RealClock,
		obs:       newWorkflowTelemetry(),
	}
}

func newWorkflowTelemetry() *telemetry[WorkflowEvent] {
	return newTelemetry[WorkflowEvent](
		[]metricz.Key{
			WorkflowRunsTotal, WorkflowCompletedTotal, WorkflowRejectedValidationTotal,
			WorkflowRejectedProcessingTotal, WorkflowRecoveredTotal, WorkflowFailedTotal,
		},
		[]metricz.Key{WorkflowDurationMs},
	)
}

// WithRecover returns a copy that maps raised failures, other than
// cancellation, into a single E and rejects the run with it.
func (w Workflow[In, Valid, Out, E]) WithRecover(fn func(error) E) Workflow[In, Valid, Out, E] {
	w.recoverFn = fn
	return w
}

// WithClock returns a copy that measures time with clock.
func (w Workflow[In, Valid, Out, E]) WithClock(clock clockz.Clock) Workflow[In, Valid, Out, E] {
	w.clock = clock
	return w
}

// Run drives in through both phases.
func (w Workflow[In, Valid, Out, E]) Run(ctx context.Context, in In) (outcome Outcome[E, Out], err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	obs := w.telemetry()
	clock := w.getClock()

	obs.metrics.Counter(WorkflowRunsTotal).Inc()
	start := clock.Now()

	ctx, span := obs.tracer.StartSpan(ctx, WorkflowRunSpan)
	defer func() {
		obs.metrics.Gauge(WorkflowDurationMs).Set(float64(clock.Since(start).Milliseconds()))
		if err != nil {
			span.SetTag(WorkflowTagError, err.Error())
			obs.metrics.Counter(WorkflowFailedTotal).Inc()
		}
		span.SetTag(WorkflowTagState, outcome.state.String())
		if outcome.state == Rejected {
			span.SetTag(WorkflowTagPhase, outcome.phase.String())
			span.SetTag(WorkflowTagErrorCount, strconv.Itoa(len(outcome.errs)))
			if outcome.failedStep != "" {
				span.SetTag(WorkflowTagFailedStep, outcome.failedStep)
			}
		}
		span.Finish()
	}()

	transition := func(from State, o Outcome[E, Out]) {
		obs.emit(ctx, WorkflowEventTransition, WorkflowEvent{
			Name:       w.name,
			From:       from,
			To:         o.state,
			Phase:      o.phase,
			Errors:     len(o.errs),
			FailedStep: o.failedStep,
			Duration:   clock.Since(start),
			Timestamp:  clock.Now(),
		})
	}

	// Validating.
	checked, err := w.validator.Validate(ctx, in)
	if err != nil {
		return w.raised(obs, Validating, PhaseValidation, err, in, clock, start, transition)
	}
	if !checked.IsValid() {
		outcome = rejected[E, Out](PhaseValidation, "", checked.errs)
		obs.metrics.Counter(WorkflowRejectedValidationTotal).Inc()
		transition(Validating, outcome)
		return outcome, nil
	}

	valid, _ := checked.Value()
	if ctx.Err() != nil {
		return outcome, contextError(ctx, []Name{w.name}, in, clock.Now(), clock.Since(start))
	}
	transition(Validating, Outcome[E, Out]{state: Processing})

	// Processing.
	result, rejectedBy, err := w.pipeline.execute(ctx, valid)
	if err != nil {
		return w.raised(obs, Processing, PhaseProcessing, err, in, clock, start, transition)
	}
	if failure, failed := result.Error(); failed {
		outcome = rejected[E, Out](PhaseProcessing, rejectedBy, []E{failure})
		obs.metrics.Counter(WorkflowRejectedProcessingTotal).Inc()
		transition(Processing, outcome)
		return outcome, nil
	}

	out, _ := result.Value()
	outcome = completed[E](out)
	obs.metrics.Counter(WorkflowCompletedTotal).Inc()
	transition(Processing, outcome)
	return outcome, nil
}

// raised handles a failure raised while in state from. The failure is
// recovered into a rejection when a recover func is set and the failure is
// not a cancellation; otherwise it is returned with the workflow name
// prefixed to its path.
func (w Workflow[In, Valid, Out, E]) raised(
	obs *telemetry[WorkflowEvent],
	from State,
	phase Phase,
	err error,
	in In,
	clock clockz.Clock,
	start time.Time,
	transition func(State, Outcome[E, Out]),
) (Outcome[E, Out], error) {
	if w.recoverFn == nil || IsCancellation(err) {
		return Outcome[E, Out]{}, withPath(err, w.name, in, clock.Now(), clock.Since(start))
	}

	var step Name
	if phase == PhaseProcessing {
		step = failedStep(err)
	}
	outcome := rejected[E, Out](phase, step, []E{w.recoverFn(err)})
	obs.metrics.Counter(WorkflowRecoveredTotal).Inc()
	if phase == PhaseValidation {
		obs.metrics.Counter(WorkflowRejectedValidationTotal).Inc()
	} else {
		obs.metrics.Counter(WorkflowRejectedProcessingTotal).Inc()
	}
	transition(from, outcome)
	return outcome, nil
}

// failedStep extracts the step name from a failure raised by a pipeline,
// whose path is [pipeline, step, ...].
func failedStep(err error) Name {
	var railErr *Error
	if errors.As(err, &railErr) && len(railErr.Path) >= 2 {
		return railErr.Path[1]
	}
	return ""
}

// Effect returns the deferred run of in.
func (w Workflow[In, Valid, Out, E]) Effect(in In) Effect[Outcome[E, Out]] {
	return Suspend(func(ctx context.Context) (Outcome[E, Out], error) {
		return w.Run(ctx, in)
	})
}

// Name returns the workflow name.
func (w Workflow[In, Valid, Out, E]) Name() Name {
	return w.name
}

// Validator returns the validation phase.
func (w Workflow[In, Valid, Out, E]) Validator() Validator[In, Valid, E] {
	return w.validator
}

// Pipeline returns the processing phase.
func (w Workflow[In, Valid, Out, E]) Pipeline() Pipeline[Valid, Out, E] {
	return w.pipeline
}

func (w Workflow[In, Valid, Out, E]) getClock() clockz.Clock {
	if w.clock == nil {
		return clockz.RealClock
	}
	return w.clock
}

func (w Workflow[In, Valid, Out, E]) telemetry() *telemetry[WorkflowEvent] {
	if w.obs == nil {
		return newWorkflowTelemetry()
	}
	return w.obs
}

// Metrics returns the metrics registry for this workflow.
func (w Workflow[In, Valid, Out, E]) Metrics() *metricz.Registry {
	return w.telemetry().metrics
}

// Tracer returns the tracer for this workflow.
func (w Workflow[In, Valid, Out, E]) Tracer() *tracez.Tracer {
	return w.telemetry().tracer
}

// OnTransition registers a handler called asynchronously on every state
// change.
func (w Workflow[In, Valid, Out, E]) OnTransition(handler func(context.Context, WorkflowEvent) error) error {
	return w.telemetry().hook(WorkflowEventTransition, handler)
}

// Close shuts down the observability components of the workflow and of both
// phases.
func (w Workflow[In, Valid, Out, E]) Close() error {
	if w.obs != nil {
		w.obs.close()
	}
	_ = w.validator.Close() //nolint:errcheck
	_ = w.pipeline.Close()  //nolint:errcheck
	return nil
}
