package simulation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/moments"
)

// SharpeEpsilon keeps the Sharpe ratio finite when volatility is zero.
const SharpeEpsilon = 1e-12

// Result is everything kept from one trial.
type Result struct {
	Sharpe     float64 `json:"sharpe" msgpack:"sharpe"`
	Return     float64 `json:"ret" msgpack:"ret"`
	Volatility float64 `json:"vol" msgpack:"vol"`
	Weights    Weights `json:"weights" msgpack:"weights"`
}

// Evaluate computes expected return, volatility and Sharpe ratio of w.
//
// rf is an annual rate and is subtracted only when annualized is set, so a
// daily return is never compared against an annual rate.
func Evaluate(w Weights, mu moments.Mean, cov *mat.SymDense, rf float64, annualized bool) (Result, error) {
	k := len(w)
	if cov == nil || len(mu) != k || cov.SymmetricDim() != k {
		n := 0
		if cov != nil {
			n = cov.SymmetricDim()
		}
		return Result{}, fmt.Errorf("%w: %d weights, %d means, %dx%d covariance",
			domain.ErrDimensionMismatch, k, len(mu), n, n)
	}

	ret := 0.0
	for i := range w {
		ret += w[i] * mu[i]
	}

	variance := 0.0
	for i := 0; i < k; i++ {
		row := 0.0
		for j := 0; j < k; j++ {
			row += cov.At(i, j) * w[j]
		}
		variance += w[i] * row
	}

	// round-off can push a true zero slightly negative
	vol := math.Sqrt(math.Max(variance, 0))

	excess := ret
	if annualized {
		excess = ret - rf
	}

	return Result{
		Sharpe:     excess / (vol + SharpeEpsilon),
		Return:     ret,
		Volatility: vol,
		Weights:    w,
	}, nil
}
