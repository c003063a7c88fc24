// Package moments estimates the first two sample moments of a return table
// and optionally rescales them to an annual basis.
package moments

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/returns"
)

// Mean holds one expected return per asset, in label order.
type Mean []float64

// Moments are the statistics shared read-only by every simulation trial.
type Moments struct {
	Labels         []string
	Mean           Mean
	Cov            *mat.SymDense
	Annualized     bool
	PeriodsPerYear float64 // 1 on the native basis
}

// Assets returns K.
func (m Moments) Assets() int { return len(m.Labels) }

// Validate checks that labels, mean and covariance agree on K.
func (m Moments) Validate() error {
	k := len(m.Labels)
	if k == 0 {
		return fmt.Errorf("%w: no assets", domain.ErrInvalidDimension)
	}
	if len(m.Mean) != k {
		return fmt.Errorf("%w: %d means for %d assets", domain.ErrDimensionMismatch, len(m.Mean), k)
	}
	if m.Cov == nil || m.Cov.SymmetricDim() != k {
		n := 0
		if m.Cov != nil {
			n = m.Cov.SymmetricDim()
		}
		return fmt.Errorf("%w: %dx%d covariance for %d assets", domain.ErrDimensionMismatch, n, n, k)
	}
	return nil
}

// ComputeMean returns the column-wise arithmetic mean of r.
func ComputeMean(r *returns.Matrix) (Mean, error) {
	T, K := r.Rows(), r.Assets()
	if K == 0 {
		return nil, fmt.Errorf("%w: no assets", domain.ErrInvalidDimension)
	}
	if T == 0 {
		return nil, fmt.Errorf("%w: mean needs at least 1 row", domain.ErrInsufficientData)
	}

	mu := make(Mean, K)
	for t := 0; t < T; t++ {
		for k := 0; k < K; k++ {
			mu[k] += r.At(t, k)
		}
	}
	for k := range mu {
		mu[k] /= float64(T)
	}
	return mu, nil
}

// ComputeCovariance returns the sample covariance of r around mu, with
// divisor T-1. Only the upper triangle is accumulated; the symmetric storage
// makes S[i][j] and S[j][i] the same value.
func ComputeCovariance(r *returns.Matrix, mu Mean) (*mat.SymDense, error) {
	T, K := r.Rows(), r.Assets()
	if K == 0 {
		return nil, fmt.Errorf("%w: no assets", domain.ErrInvalidDimension)
	}
	if len(mu) != K {
		return nil, fmt.Errorf("%w: %d means for %d assets", domain.ErrDimensionMismatch, len(mu), K)
	}
	if T < 2 {
		return nil, fmt.Errorf("%w: covariance needs at least 2 rows, got %d", domain.ErrInsufficientData, T)
	}

	acc := make([]float64, K*K)
	for t := 0; t < T; t++ {
		for i := 0; i < K; i++ {
			xi := r.At(t, i) - mu[i]
			for j := i; j < K; j++ {
				acc[i*K+j] += xi * (r.At(t, j) - mu[j])
			}
		}
	}

	denom := float64(T - 1)
	for i := 0; i < K; i++ {
		for j := i; j < K; j++ {
			acc[i*K+j] /= denom
		}
	}

	// NewSymDense reads the upper triangle only.
	return mat.NewSymDense(K, acc), nil
}
