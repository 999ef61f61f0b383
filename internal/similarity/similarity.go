// Package similarity scores how close a chart feature sits to a life-event
// description. Backends are interchangeable behind one contract; the verifier
// receives an injected Backend value and never reaches for a package-level
// default.
package similarity

import "context"

// Backend computes a similarity in [0,1] between two short strings. Scores
// need not be exactly symmetric but should be approximately so, and must be
// deterministic for a fixed backend.
type Backend interface {
	Name() string
	Score(ctx context.Context, a, b string) (float64, error)
}

// Primer is implemented by backends that benefit from batching: callers hand
// over every string of a verification run up front so an embedding model is
// consulted at most once per unique string.
type Primer interface {
	Prime(ctx context.Context, texts []string) error
}
