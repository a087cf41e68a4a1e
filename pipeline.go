package railz

import (
	"context"
	"strconv"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Pipeline.
const (
	// Metrics.
	PipelineRunsTotal      = metricz.Key("pipeline.runs.total")
	PipelineCompletedTotal = metricz.Key("pipeline.completed.total")
	PipelineRejectedTotal  = metricz.Key("pipeline.rejected.total")
	PipelineFailedTotal    = metricz.Key("pipeline.failed.total")
	PipelineStepsCompleted = metricz.Key("pipeline.steps.completed")
	PipelineStepsTotal     = metricz.Key("pipeline.steps.total")
	PipelineDurationMs     = metricz.Key("pipeline.duration.ms")

	// Spans.
	PipelineRunSpan  = tracez.Key("pipeline.run")
	PipelineStepSpan = tracez.Key("pipeline.step")

	// Tags.
	PipelineTagStepCount  = tracez.Tag("pipeline.step_count")
	PipelineTagStepNumber = tracez.Tag("pipeline.step_number")
	PipelineTagStepName   = tracez.Tag("pipeline.step_name")
	PipelineTagOutcome    = tracez.Tag("pipeline.outcome")
	PipelineTagError      = tracez.Tag("pipeline.error")

	// Hook event keys.
	PipelineEventStepComplete = hookz.Key("pipeline.step_complete")
	PipelineEventRejected     = hookz.Key("pipeline.rejected")
	PipelineEventComplete     = hookz.Key("pipeline.complete")
)

// StepOutcome classifies how a step finished.
type StepOutcome string

// Step outcomes.
const (
	OutcomeOk       StepOutcome = "ok"
	OutcomeRejected StepOutcome = "rejected"
	OutcomeFailed   StepOutcome = "failed"
)

// PipelineEvent is emitted via hookz as steps finish and when a run ends.
type PipelineEvent struct {
	Timestamp      time.Time     // When the event occurred
	Rejection      any           // The E value when Outcome is rejected
	Error          error         // The raised failure when Outcome is failed
	Name           Name          // Pipeline name
	StepName       Name          // Step that finished (empty for pipeline.complete)
	Outcome        StepOutcome   // How the step finished
	StepNumber     int           // 1-based position of the step
	TotalSteps     int           // Number of steps in the pipeline
	CompletedSteps int           // Steps that succeeded before the event
	Duration       time.Duration // Step duration
	TotalDuration  time.Duration // Run duration so far
}

// stage is a step with its input and output types erased so a pipeline can
// keep an ordered list of heterogeneous steps. Then performs the only type
// conversions, so the assertions in stage.run cannot fail.
type stage[E any] struct {
	run  func(any) Effect[Result[E, any]]
	name Name
}

// call builds and runs the stage's effect for in. A panic while building the
// effect is raised like any other failure of the step.
func (st stage[E]) call(ctx context.Context, in any) (r Result[E, any], err error) {
	defer recoverFromPanic(&err, in, st.name)
	return st.run(in).Run(ctx)
}

// Pipeline chains steps that share the error type E. Running it executes the
// steps in the order they were added, feeding each step's output to the
// next, and stops at the first Err, which becomes the pipeline's result
// verbatim. Later steps never run, so none of their side effects happen.
//
// Pipelines are immutable values: Then returns a new Pipeline and leaves its
// argument untouched, so a partially built pipeline can be shared and
// extended in different directions.
//
//	register := railz.Then(railz.Then(railz.Then(
//	    railz.NewPipeline[Candidate, *AppError]("register"),
//	    checkUnique),
//	    persist),
//	    notify)
//
//	result, err := register.Run(candidate).Run(ctx)
//
// The context is checked before every step; a canceled or expired context
// raises an *Error instead of starting the next step. A raised failure
// inside a step stops the run and is returned with its path, e.g.
// ["register", "persist"].
//
// # Observability
//
// Pipelines derived from the same NewPipeline call share one metrics
// registry, tracer and hook set.
//
// Metrics:
//   - pipeline.runs.total: Counter of runs
//   - pipeline.completed.total: Counter of runs where every step succeeded
//   - pipeline.rejected.total: Counter of runs stopped by an Err
//   - pipeline.failed.total: Counter of runs stopped by a raised failure
//   - pipeline.steps.completed: Gauge of steps that succeeded in the last run
//   - pipeline.steps.total: Gauge of steps in the last run
//   - pipeline.duration.ms: Gauge of the last run duration
//
// Traces:
//   - pipeline.run: Parent span for a run
//   - pipeline.step: Child span for each executed step
//
// Events (via hooks):
//   - pipeline.step_complete: Fired as each executed step finishes
//   - pipeline.rejected: Fired when a step returns Err
//   - pipeline.complete: Fired when every step succeeded
type Pipeline[In, Out, E any] struct {
	clock  clockz.Clock
	obs    *telemetry[PipelineEvent]
	name   Name
	stages []stage[E]
}

// NewPipeline creates an empty pipeline. Running it returns its input
// unchanged; add steps with Then.
func NewPipeline[In, E any](name Name) Pipeline[In, In, E] {
	return Pipeline[In, In, E]{
		name:  name,
		clock: clockz.RealClock,
		obs:   newPipelineTelemetry(),
	}
}

func newPipelineTelemetry() *telemetry[PipelineEvent] {
	return newTelemetry[PipelineEvent](
		[]metricz.Key{PipelineRunsTotal, PipelineCompletedTotal, PipelineRejectedTotal, PipelineFailedTotal},
		[]metricz.Key{PipelineStepsCompleted, PipelineStepsTotal, PipelineDurationMs},
	)
}

// Start creates a pipeline whose first step is step.
func Start[In, Out, E any](name Name, step Step[In, Out, E]) Pipeline[In, Out, E] {
	return Then(NewPipeline[In, E](name), step)
}

// Then returns a new pipeline that runs p and then step. The compiler
// enforces that step accepts what p produces.
func Then[In, Mid, Out, E any](p Pipeline[In, Mid, E], step Step[Mid, Out, E]) Pipeline[In, Out, E] {
	stages := make([]stage[E], len(p.stages), len(p.stages)+1)
	copy(stages, p.stages)
	stages = append(stages, stage[E]{
		name: step.Name(),
		run: func(v any) Effect[Result[E, any]] {
			return MapOk(step.Run(cast[Mid](v)), func(out Out) any { return out })
		},
	})
	return Pipeline[In, Out, E]{
		name:   p.name,
		clock:  p.clock,
		obs:    p.obs,
		stages: stages,
	}
}

// Run returns the deferred outcome of the pipeline for in.
func (p Pipeline[In, Out, E]) Run(in In) Effect[Result[E, Out]] {
	return Suspend(func(ctx context.Context) (Result[E, Out], error) {
		result, _, err := p.execute(ctx, in)
		return result, err
	})
}

// execute runs every stage in order. On rejection it also reports the name
// of the step that returned Err.
func (p Pipeline[In, Out, E]) execute(ctx context.Context, in In) (result Result[E, Out], rejectedBy Name, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	obs := p.telemetry()
	clock := p.getClock()
	stages := p.stages

	obs.metrics.Counter(PipelineRunsTotal).Inc()
	obs.metrics.Gauge(PipelineStepsTotal).Set(float64(len(stages)))
	start := clock.Now()

	ctx, span := obs.tracer.StartSpan(ctx, PipelineRunSpan)
	span.SetTag(PipelineTagStepCount, strconv.Itoa(len(stages)))
	defer func() {
		obs.metrics.Gauge(PipelineDurationMs).Set(float64(clock.Since(start).Milliseconds()))
		switch {
		case err != nil:
			span.SetTag(PipelineTagOutcome, string(OutcomeFailed))
			span.SetTag(PipelineTagError, err.Error())
			obs.metrics.Counter(PipelineFailedTotal).Inc()
		case result.IsErr():
			span.SetTag(PipelineTagOutcome, string(OutcomeRejected))
			obs.metrics.Counter(PipelineRejectedTotal).Inc()
		default:
			span.SetTag(PipelineTagOutcome, string(OutcomeOk))
			obs.metrics.Counter(PipelineCompletedTotal).Inc()
		}
		span.Finish()
	}()

	var current any = in
	completed := 0
	obs.metrics.Gauge(PipelineStepsCompleted).Set(0)

	for i, st := range stages {
		if ctx.Err() != nil {
			return result, "", contextError(ctx, []Name{p.name, st.name}, current, clock.Now(), clock.Since(start))
		}

		stepCtx, stepSpan := obs.tracer.StartSpan(ctx, PipelineStepSpan)
		stepSpan.SetTag(PipelineTagStepNumber, strconv.Itoa(i+1))
		stepSpan.SetTag(PipelineTagStepName, st.name)

		stepStart := clock.Now()
		r, stepErr := st.call(stepCtx, current)
		stepDuration := clock.Since(stepStart)

		event := PipelineEvent{
			Name:           p.name,
			StepName:       st.name,
			StepNumber:     i + 1,
			TotalSteps:     len(stages),
			CompletedSteps: completed,
			Duration:       stepDuration,
			TotalDuration:  clock.Since(start),
			Timestamp:      clock.Now(),
		}

		switch {
		case stepErr != nil:
			stepSpan.SetTag(PipelineTagOutcome, string(OutcomeFailed))
			stepSpan.SetTag(PipelineTagError, stepErr.Error())
			stepSpan.Finish()

			event.Outcome = OutcomeFailed
			event.Error = stepErr
			obs.emit(ctx, PipelineEventStepComplete, event)

			railErr := withPath(stepErr, st.name, current, clock.Now(), stepDuration)
			return result, "", withPath(railErr, p.name, in, clock.Now(), clock.Since(start))

		case r.IsErr():
			rejection, _ := r.Error()
			stepSpan.SetTag(PipelineTagOutcome, string(OutcomeRejected))
			stepSpan.Finish()

			event.Outcome = OutcomeRejected
			event.Rejection = rejection
			obs.emit(ctx, PipelineEventStepComplete, event)
			obs.emit(ctx, PipelineEventRejected, event)
			return Err[Out](rejection), st.name, nil

		default:
			stepSpan.SetTag(PipelineTagOutcome, string(OutcomeOk))
			stepSpan.Finish()

			completed++
			obs.metrics.Gauge(PipelineStepsCompleted).Set(float64(completed))
			event.Outcome = OutcomeOk
			event.CompletedSteps = completed
			obs.emit(ctx, PipelineEventStepComplete, event)
			current, _ = r.Value()
		}
	}

	obs.emit(ctx, PipelineEventComplete, PipelineEvent{
		Name:           p.name,
		Outcome:        OutcomeOk,
		TotalSteps:     len(stages),
		CompletedSteps: completed,
		TotalDuration:  clock.Since(start),
		Timestamp:      clock.Now(),
	})
	return Ok[E](cast[Out](current)), "", nil
}

// Name returns the pipeline name.
func (p Pipeline[In, Out, E]) Name() Name {
	return p.name
}

// Len returns the number of steps.
func (p Pipeline[In, Out, E]) Len() int {
	return len(p.stages)
}

// Names returns the step names in execution order.
func (p Pipeline[In, Out, E]) Names() []Name {
	names := make([]Name, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.name
	}
	return names
}

// WithClock returns a copy of the pipeline that measures time with clock.
func (p Pipeline[In, Out, E]) WithClock(clock clockz.Clock) Pipeline[In, Out, E] {
	p.clock = clock
	return p
}

func (p Pipeline[In, Out, E]) getClock() clockz.Clock {
	if p.clock == nil {
		return clockz.RealClock
	}
	return p.clock
}

func (p Pipeline[In, Out, E]) telemetry() *telemetry[PipelineEvent] {
	if p.obs == nil {
		return newPipelineTelemetry()
	}
	return p.obs
}

// Metrics returns the metrics registry for this pipeline.
func (p Pipeline[In, Out, E]) Metrics() *metricz.Registry {
	return p.telemetry().metrics
}

// Tracer returns the tracer for this pipeline.
func (p Pipeline[In, Out, E]) Tracer() *tracez.Tracer {
	return p.telemetry().tracer
}

// OnStepComplete registers a handler called asynchronously whenever an
// executed step finishes, whatever its outcome.
func (p Pipeline[In, Out, E]) OnStepComplete(handler func(context.Context, PipelineEvent) error) error {
	return p.telemetry().hook(PipelineEventStepComplete, handler)
}

// OnRejected registers a handler called asynchronously when a step returns
// Err and the run stops.
func (p Pipeline[In, Out, E]) OnRejected(handler func(context.Context, PipelineEvent) error) error {
	return p.telemetry().hook(PipelineEventRejected, handler)
}

// OnComplete registers a handler called asynchronously when every step of a
// run succeeded.
func (p Pipeline[In, Out, E]) OnComplete(handler func(context.Context, PipelineEvent) error) error {
	return p.telemetry().hook(PipelineEventComplete, handler)
}

// Close shuts down the observability components shared by this pipeline and
// every pipeline derived from the same NewPipeline call.
func (p Pipeline[In, Out, E]) Close() error {
	if p.obs != nil {
		p.obs.close()
	}
	return nil
}

// cast converts an erased value back to T. A nil interface yields the zero T.
func cast[T any](v any) T {
	t, _ := v.(T)
	return t
}
