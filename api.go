package railz

// Name is a type alias for step, check and component names.
// Using this type encourages storing names as constants rather than
// scattering string literals through the code.
//
// Example:
//
//	const (
//	    NormalizeName   railz.Name = "normalize"
//	    CheckUniqueName railz.Name = "check-unique-email"
//	)
type Name = string

// Runner is anything that turns an In into a deferred Result under a name.
// Step and Pipeline both implement it.
type Runner[In, Out, E any] interface {
	Run(In) Effect[Result[E, Out]]
	Name() Name
}

// Embed turns a Runner, typically a Pipeline, into a Step so it can be
// chained inside another pipeline. Raised failures from the embedded runner
// keep their own path beneath the step name.
func Embed[In, Out, E any](r Runner[In, Out, E]) Step[In, Out, E] {
	return NewStep(r.Name(), r.Run)
}
