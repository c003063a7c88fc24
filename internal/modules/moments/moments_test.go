package moments

import (
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/returns"
)

func newMatrix(t *testing.T, rows [][]float64) *returns.Matrix {
	t.Helper()
	labels := make([]string, len(rows[0]))
	for k := range labels {
		labels[k] = string(rune('A' + k))
	}
	m, err := returns.NewMatrix(labels, nil, rows)
	require.NoError(t, err)
	return m
}

func randomRows(seed uint64, T, K int) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, seed))
	rows := make([][]float64, T)
	for t := range rows {
		rows[t] = make([]float64, K)
		for k := range rows[t] {
			rows[t][k] = rng.NormFloat64()*0.02 + 0.0005*float64(k)
		}
	}
	return rows
}

func TestComputeMean(t *testing.T) {
	m := newMatrix(t, [][]float64{
		{0.01, 0.02},
		{0.03, -0.02},
		{0.02, 0.03},
	})

	mu, err := ComputeMean(m)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.02, 0.01}, mu, 1e-15)
}

func TestComputeMean_MatchesGonum(t *testing.T) {
	rows := randomRows(1, 300, 5)
	m := newMatrix(t, rows)

	mu, err := ComputeMean(m)
	require.NoError(t, err)
	col := make([]float64, len(rows))
	for k := 0; k < m.Assets(); k++ {
		for i, row := range rows {
			col[i] = row[k]
		}
		assert.InDelta(t, stat.Mean(col, nil), mu[k], 1e-12)
	}
}

func TestComputeMean_SingleRow(t *testing.T) {
	m := newMatrix(t, [][]float64{{0.5, -0.5}})
	mu, err := ComputeMean(m)
	require.NoError(t, err)
	assert.Equal(t, Mean{0.5, -0.5}, mu)
}

func TestComputeCovariance_MatchesGonum(t *testing.T) {
	rows := randomRows(2, 250, 6)
	m := newMatrix(t, rows)

	mu, err := ComputeMean(m)
	require.NoError(t, err)
	cov, err := ComputeCovariance(m, mu)
	require.NoError(t, err)

	var want mat.SymDense
	stat.CovarianceMatrix(&want, mat.NewDense(len(rows), len(rows[0]), flatten(rows)), nil)

	K := m.Assets()
	require.Equal(t, K, cov.SymmetricDim())
	for i := 0; i < K; i++ {
		for j := 0; j < K; j++ {
			assert.InEpsilon(t, want.At(i, j), cov.At(i, j), 1e-9, "S[%d][%d]", i, j)
		}
	}
}

func TestComputeCovariance_ExactlySymmetric(t *testing.T) {
	m := newMatrix(t, randomRows(3, 97, 8))
	mu, err := ComputeMean(m)
	require.NoError(t, err)
	cov, err := ComputeCovariance(m, mu)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			assert.Equal(t, cov.At(i, j), cov.At(j, i))
		}
		assert.GreaterOrEqual(t, cov.At(i, i), 0.0)
	}
}

func TestComputeCovariance_KnownValues(t *testing.T) {
	m := newMatrix(t, [][]float64{
		{1, 2},
		{3, 6},
	})
	mu, err := ComputeMean(m)
	require.NoError(t, err)
	cov, err := ComputeCovariance(m, mu)
	require.NoError(t, err)

	// deviations (-1,-2) and (1,2), divisor 1
	assert.Equal(t, 2.0, cov.At(0, 0))
	assert.Equal(t, 4.0, cov.At(0, 1))
	assert.Equal(t, 8.0, cov.At(1, 1))
}

func TestComputeCovariance_Errors(t *testing.T) {
	m := newMatrix(t, [][]float64{{0.1, 0.2}})
	mu, err := ComputeMean(m)
	require.NoError(t, err)

	_, err = ComputeCovariance(m, mu)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	two := newMatrix(t, [][]float64{{0.1, 0.2}, {0.3, 0.4}})
	_, err = ComputeCovariance(two, Mean{0.1})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestAnnualize_Linear(t *testing.T) {
	mu := Mean{0.001, -0.0005, 0.0002}
	cov := mat.NewSymDense(3, []float64{
		0.0004, 0.0001, 0.00005,
		0, 0.0009, -0.0002,
		0, 0, 0.0001,
	})

	aMu, aCov, err := Annualize(mu, cov, 252)
	require.NoError(t, err)

	for k := range mu {
		assert.Equal(t, mu[k]*252, aMu[k])
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, cov.At(i, j)*252, aCov.At(i, j))
		}
	}
	// inputs untouched
	assert.Equal(t, 0.001, mu[0])
	assert.Equal(t, 0.0004, cov.At(0, 0))
}

func TestAnnualize_IdentityAtOne(t *testing.T) {
	mu := Mean{0.1, 0.2}
	cov := mat.NewSymDense(2, []float64{0.04, 0.01, 0.01, 0.09})

	aMu, aCov, err := Annualize(mu, cov, 1)
	require.NoError(t, err)
	assert.Equal(t, mu, aMu)
	assert.True(t, mat.Equal(cov, aCov))
}

func TestAnnualize_Errors(t *testing.T) {
	cov := mat.NewSymDense(2, nil)
	_, _, err := Annualize(Mean{0, 0}, cov, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, _, err = Annualize(Mean{0, 0, 0}, cov, 252)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestBasis(t *testing.T) {
	mu := Mean{0.001}
	cov := mat.NewSymDense(1, []float64{0.0001})

	native := NewBasis(false, 252)
	assert.False(t, native.Annualized())
	assert.Equal(t, 1.0, native.Periods())
	nMu, nCov, err := native.Apply(mu, cov)
	require.NoError(t, err)
	assert.Equal(t, mu, nMu)
	assert.Same(t, cov, nCov)

	annual := NewBasis(true, 252)
	assert.True(t, annual.Annualized())
	assert.Equal(t, "annual", annual.Name())
	aMu, aCov, err := annual.Apply(mu, cov)
	require.NoError(t, err)
	assert.InDelta(t, 0.252, aMu[0], 1e-15)
	assert.InDelta(t, 0.0252, aCov.At(0, 0), 1e-15)
}

func TestEstimator_Estimate(t *testing.T) {
	m := newMatrix(t, randomRows(4, 60, 3))
	e := NewEstimator(zerolog.Nop())

	native, err := e.Estimate(m, Native{})
	require.NoError(t, err)
	require.NoError(t, native.Validate())
	assert.False(t, native.Annualized)
	assert.Equal(t, []string{"A", "B", "C"}, native.Labels)

	annual, err := e.Estimate(m, Annual{PeriodsPerYear: 252})
	require.NoError(t, err)
	assert.True(t, annual.Annualized)
	assert.Equal(t, 252.0, annual.PeriodsPerYear)
	for k := 0; k < 3; k++ {
		assert.InDelta(t, native.Mean[k]*252, annual.Mean[k], 1e-15)
		assert.InDelta(t, native.Cov.At(k, k)*252, annual.Cov.At(k, k), 1e-15)
	}
}

func TestEstimator_InsufficientData(t *testing.T) {
	m := newMatrix(t, [][]float64{{0.1}})
	_, err := NewEstimator(zerolog.Nop()).Estimate(m, Native{})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestMoments_Validate(t *testing.T) {
	cov := mat.NewSymDense(2, nil)

	assert.ErrorIs(t, Moments{}.Validate(), domain.ErrInvalidDimension)
	assert.ErrorIs(t, Moments{Labels: []string{"A", "B"}, Mean: Mean{0}, Cov: cov}.Validate(), domain.ErrDimensionMismatch)
	assert.ErrorIs(t, Moments{Labels: []string{"A", "B"}, Mean: Mean{0, 0}}.Validate(), domain.ErrDimensionMismatch)
	assert.NoError(t, Moments{Labels: []string{"A", "B"}, Mean: Mean{0, 0}, Cov: cov}.Validate())
}

func TestCorrelations(t *testing.T) {
	cov := mat.NewSymDense(3, []float64{
		0.04, 0.036, 0,
		0, 0.04, 0,
		0, 0, 0,
	})

	pairs := Correlations(cov, []string{"A", "B", "C"}, HighCorrelationThreshold)
	require.Len(t, pairs, 1)
	assert.Equal(t, "A", pairs[0].Asset1)
	assert.Equal(t, "B", pairs[0].Asset2)
	assert.InDelta(t, 0.9, pairs[0].Correlation, 1e-12)

	assert.Empty(t, Correlations(nil, nil, 0.5))
}

func flatten(rows [][]float64) []float64 {
	out := make([]float64, 0, len(rows)*len(rows[0]))
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}
