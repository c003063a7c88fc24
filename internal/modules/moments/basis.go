package moments

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/internal/domain"
)

// DefaultPeriodsPerYear is the conventional number of trading days.
const DefaultPeriodsPerYear = 252.0

// Basis places mean and covariance on the basis results are reported in.
// Downstream code only sees the returned statistics and Annualized().
type Basis interface {
	Apply(mu Mean, cov *mat.SymDense) (Mean, *mat.SymDense, error)
	Annualized() bool
	Periods() float64
	Name() string
}

// NewBasis selects the annual basis when annualize is set, the native one
// otherwise.
func NewBasis(annualize bool, periodsPerYear float64) Basis {
	if annualize {
		return Annual{PeriodsPerYear: periodsPerYear}
	}
	return Native{}
}

// Native keeps statistics on the sampling frequency of the input.
type Native struct{}

func (Native) Apply(mu Mean, cov *mat.SymDense) (Mean, *mat.SymDense, error) {
	return mu, cov, nil
}

func (Native) Annualized() bool { return false }
func (Native) Periods() float64 { return 1 }
func (Native) Name() string     { return "native" }

// Annual scales statistics by PeriodsPerYear under the i.i.d. assumption.
type Annual struct {
	PeriodsPerYear float64
}

func (a Annual) Apply(mu Mean, cov *mat.SymDense) (Mean, *mat.SymDense, error) {
	return Annualize(mu, cov, a.PeriodsPerYear)
}

func (Annual) Annualized() bool   { return true }
func (a Annual) Periods() float64 { return a.PeriodsPerYear }
func (Annual) Name() string       { return "annual" }

// Annualize multiplies every mean and every covariance entry by
// periodsPerYear. Covariance scales linearly because it is a variance; the
// square-root scaling of volatility follows once the evaluator takes sqrt.
func Annualize(mu Mean, cov *mat.SymDense, periodsPerYear float64) (Mean, *mat.SymDense, error) {
	if periodsPerYear <= 0 {
		return nil, nil, fmt.Errorf("%w: periods per year must be positive, got %g", domain.ErrInvalidParameter, periodsPerYear)
	}
	if cov == nil || cov.SymmetricDim() != len(mu) {
		return nil, nil, fmt.Errorf("%w: covariance does not match %d means", domain.ErrDimensionMismatch, len(mu))
	}

	scaled := make(Mean, len(mu))
	for k, m := range mu {
		scaled[k] = m * periodsPerYear
	}

	var annual mat.SymDense
	annual.ScaleSym(periodsPerYear, cov)
	return scaled, &annual, nil
}
