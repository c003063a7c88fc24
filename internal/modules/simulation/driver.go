package simulation

import (
	"fmt"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/moments"
)

// Trials is a lazy, finite, single-pass sequence of simulated portfolios.
// Each Next draws one weight vector from the shared source and evaluates it,
// so trial i always consumes the stream after trial i-1.
//
//	trials, err := simulation.Run(k, n, rng, m, rf)
//	for trials.Next() {
//		r := trials.Result()
//	}
//	if err := trials.Err(); err != nil { ... }
type Trials struct {
	k       int
	n       int
	index   int
	rng     Source
	moments moments.Moments
	rf      float64

	current Result
	err     error
	done    bool
}

// Run validates its inputs and returns a cursor over n trials. n == 0 is a
// valid, empty run. A caller that wants to stop early simply stops calling
// Next.
func Run(k, n int, rng Source, m moments.Moments, rf float64) (*Trials, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: trial count must be non-negative, got %d", domain.ErrInvalidParameter, n)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d assets", domain.ErrInvalidDimension, k)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", domain.ErrInvalidParameter)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Assets() != k {
		return nil, fmt.Errorf("%w: run asked for %d assets, moments have %d", domain.ErrDimensionMismatch, k, m.Assets())
	}

	return &Trials{
		k:       k,
		n:       n,
		rng:     rng,
		moments: m,
		rf:      rf,
	}, nil
}

// Next advances to the next trial. It returns false when all trials are
// produced or a trial failed; it never restarts.
func (t *Trials) Next() bool {
	if t.done || t.index >= t.n {
		t.done = true
		return false
	}

	w, err := Sample(t.k, t.rng)
	if err == nil {
		t.current, err = Evaluate(w, t.moments.Mean, t.moments.Cov, t.rf, t.moments.Annualized)
	}
	if err != nil {
		t.err = fmt.Errorf("trial %d: %w", t.index, err)
		t.done = true
		return false
	}

	t.index++
	return true
}

// Result returns the trial produced by the last successful Next.
func (t *Trials) Result() Result { return t.current }

// Index returns how many trials have been produced so far.
func (t *Trials) Index() int { return t.index }

// Len returns the total number of trials requested.
func (t *Trials) Len() int { return t.n }

// Err returns the error that stopped the sequence, if any.
func (t *Trials) Err() error { return t.err }

// Collect drains t into a slice. Intended for small runs and tests.
func Collect(t *Trials) ([]Result, error) {
	out := make([]Result, 0, t.Len()-t.Index())
	for t.Next() {
		out = append(out, t.Result())
	}
	return out, t.Err()
}
