// Package simulation draws random long-only portfolios and evaluates them
// against shared mean and covariance estimates.
package simulation

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mathext/prng"

	"github.com/aristath/frontier/internal/domain"
)

// WeightEpsilon is added to every uniform draw so no asset gets zero weight.
const WeightEpsilon = 1e-9

// Source is the random stream portfolios are drawn from.
type Source interface {
	Float64() float64
}

// NewSource returns a Mersenne Twister (MT19937) stream seeded with seed.
// Two sources with the same seed produce the same sequence.
func NewSource(seed uint64) *rand.Rand {
	mt := prng.NewMT19937()
	mt.Seed(seed)
	return rand.New(mt)
}

// Weights is one candidate portfolio: non-negative, summing to 1, in label
// order. It is never modified after Sample returns it.
type Weights []float64

// Sample draws k uniforms from rng in order, offsets each by WeightEpsilon and
// normalizes by their sum. The procedure and draw order are fixed so that
// results are reproducible for a given seed.
func Sample(k int, rng Source) (Weights, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: cannot sample weights for %d assets", domain.ErrInvalidDimension, k)
	}

	w := make(Weights, k)
	sum := 0.0
	for i := range w {
		w[i] = rng.Float64() + WeightEpsilon
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w, nil
}
