// Package scoring holds the relationship scoring core: embedding similarity,
// trust signal aggregation and tier classification. Everything here is pure
// and safe for concurrent use.
package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when two vectors of different dimensionality
// are compared. It points at an upstream data bug and is never recovered here.
var ErrShapeMismatch = errors.New("vector shape mismatch")

// Float is the element type accepted by CosineSimilarity.
type Float interface {
	~float32 | ~float64
}

// CosineSimilarity returns dot(a,b) / (|a|·|b|).
// A zero-magnitude vector has no orientation and scores 0, as does any
// vector with a non-finite component. Components are scaled by the largest
// magnitude first, so very large or very small vectors neither overflow nor
// underflow.
func CosineSimilarity[T Float](a, b []T) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrShapeMismatch, len(a), len(b))
	}

	ma, mb := maxAbs(a), maxAbs(b)
	if ma == 0 || mb == 0 {
		return 0, nil
	}

	var dot, aSq, bSq float64
	for i := range a {
		x, y := float64(a[i])/ma, float64(b[i])/mb
		dot += x * y
		aSq += x * x
		bSq += y * y
	}

	sim := dot / (math.Sqrt(aSq) * math.Sqrt(bSq))
	if math.IsNaN(sim) {
		return 0, nil
	}
	return clamp(sim, -1, 1), nil
}

// HasOrientation reports whether v has any non-zero component. Vectors
// without one score 0 against everything and rank after directional matches.
func HasOrientation[T Float](v []T) bool {
	return maxAbs(v) != 0
}

func maxAbs[T Float](v []T) float64 {
	var m float64
	for _, f := range v {
		a := math.Abs(float64(f))
		if math.IsNaN(a) {
			return math.Inf(1)
		}
		if a > m {
			m = a
		}
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
