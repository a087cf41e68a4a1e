// Package railz builds typed business workflows out of small steps that
// either succeed or fail with a domain error, without hiding side effects.
//
// # Core Concepts
//
// Four building blocks, from the inside out:
//
//   - Effect[T]: a lazy, re-runnable computation. Nothing happens until Run.
//   - Result[E, A] and Accumulated[E, A]: outcomes carrying either a value or
//     domain errors, one or many.
//   - Pipeline[In, Out, E]: steps run in order, stopping at the first Err.
//   - Validator[In, Out, E]: independent checks run concurrently, reporting
//     every failure.
//
// Workflow[In, Valid, Out, E] composes a Validator and a Pipeline into the
// usual two-phase shape: validate everything, then process.
//
// # Two Kinds of Failure
//
// Expected failures, such as invalid input or a duplicate record, travel in
// the E channel of a Result and are part of a step's type. Unexpected ones,
// such as a panic, an unavailable database or a canceled context, are raised:
// they come back as the error return of Effect.Run and are usually an
// *Error carrying the path of the component that failed.
//
// A raised failure never becomes a success, and no component substitutes a
// default value for a failure. Callers that want to treat a raised failure as
// an E do so explicitly with Catch, Attempt, or Workflow.WithRecover.
//
// # Usage Example
//
//	type Input struct {
//	    Name  string
//	    Email string
//	}
//
//	checkName := railz.NewCheck("name", func(_ context.Context, in Input) railz.Result[string, string] {
//	    if in.Name == "" {
//	        return railz.Err[string]("name is required")
//	    }
//	    return railz.Ok[string](in.Name)
//	})
//	checkEmail := railz.NewCheck("email", func(_ context.Context, in Input) railz.Result[string, string] {
//	    if !strings.Contains(in.Email, "@") {
//	        return railz.Err[string]("email is invalid")
//	    }
//	    return railz.Ok[string](in.Email)
//	})
//
//	fields := railz.Validate2("fields", checkName, checkEmail,
//	    func(name, email string) Input { return Input{Name: name, Email: email} })
//
//	save := railz.Perform("save", func(ctx context.Context, in Input) (railz.Result[string, User], error) {
//	    return store.Save(ctx, in)
//	})
//	steps := railz.Start("register", save)
//
//	register := railz.NewWorkflow("register", fields, steps)
//	outcome, err := register.Run(ctx, Input{Name: "", Email: "nope"})
//	// outcome.Errors() == []string{"name is required", "email is invalid"}
//
// # Observability
//
// Pipeline, Validator and Workflow each own a metricz registry, a tracez
// tracer and a hookz hook set. Telemetry is safe for concurrent use and never
// changes the outcome of a run. See the constants next to each type for the
// metric keys, span names and event keys.
//
// # Concurrency
//
// Effects, Results, Steps, Pipelines, Validators and Workflows are immutable
// values and may be shared between goroutines. Shared mutable state, such as
// an in-memory store, belongs to the steps that use it and must be
// synchronized by them.
package railz
