package moments

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/internal/modules/returns"
)

// HighCorrelationThreshold marks asset pairs worth reporting.
const HighCorrelationThreshold = 0.80

// CorrelationPair is a pair of assets with their Pearson correlation.
type CorrelationPair struct {
	Asset1      string  `json:"asset1"`
	Asset2      string  `json:"asset2"`
	Correlation float64 `json:"correlation"`
}

// Estimator computes Moments from a return table on a chosen basis.
type Estimator struct {
	log zerolog.Logger
}

// NewEstimator creates a new moment estimator.
func NewEstimator(log zerolog.Logger) *Estimator {
	return &Estimator{log: log.With().Str("component", "moments").Logger()}
}

// Estimate computes mean and covariance of r and places them on basis.
func (e *Estimator) Estimate(r *returns.Matrix, basis Basis) (Moments, error) {
	mu, err := ComputeMean(r)
	if err != nil {
		return Moments{}, fmt.Errorf("failed to compute mean: %w", err)
	}
	cov, err := ComputeCovariance(r, mu)
	if err != nil {
		return Moments{}, fmt.Errorf("failed to compute covariance: %w", err)
	}

	mu, cov, err = basis.Apply(mu, cov)
	if err != nil {
		return Moments{}, fmt.Errorf("failed to apply %s basis: %w", basis.Name(), err)
	}

	e.log.Debug().
		Int("rows", r.Rows()).
		Int("assets", r.Assets()).
		Str("basis", basis.Name()).
		Msg("Estimated moments")

	return Moments{
		Labels:         r.Labels(),
		Mean:           mu,
		Cov:            cov,
		Annualized:     basis.Annualized(),
		PeriodsPerYear: basis.Periods(),
	}, nil
}

// Correlations returns the asset pairs whose absolute correlation is at
// least threshold. Assets with zero variance are skipped.
func Correlations(cov *mat.SymDense, labels []string, threshold float64) []CorrelationPair {
	pairs := make([]CorrelationPair, 0)
	if cov == nil {
		return pairs
	}

	n := cov.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			vi, vj := cov.At(i, i), cov.At(j, j)
			if vi <= 0 || vj <= 0 {
				continue
			}
			rho := cov.At(i, j) / math.Sqrt(vi*vj)
			if math.Abs(rho) >= threshold {
				pairs = append(pairs, CorrelationPair{
					Asset1:      labels[i],
					Asset2:      labels[j],
					Correlation: rho,
				})
			}
		}
	}
	return pairs
}
