package htm

import "github.com/gonum/floats"

// Epsilon absorbs floating-point drift between environments when comparing
// permanences against a threshold, per the fixed tolerance policy for
// computeActivity's connected-synapse test and minPermanenceSynapse's
// eviction search.
const Epsilon = 1e-5

// approxGTE reports whether a is at least b, tolerating drift of Epsilon.
// Used by computeActivity's connected-synapse test: permanence >=
// connectedPermanence - Epsilon.
func approxGTE(a, b float32) bool {
	af, bf := float64(a), float64(b)
	return af >= bf || floats.EqualWithinAbs(af, bf, Epsilon)
}

// approxLess reports whether a is strictly less than b, once values within
// Epsilon of each other are treated as equal. Used by minPermanenceSynapse
// to find the synapse whose permanence is strictly less than the current
// candidate minus Epsilon.
func approxLess(a, b float32) bool {
	af, bf := float64(a), float64(b)
	if floats.EqualWithinAbs(af, bf, Epsilon) {
		return false
	}
	return af < bf
}
