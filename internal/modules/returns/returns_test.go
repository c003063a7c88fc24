package returns

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/domain"
)

func TestLoad(t *testing.T) {
	input := "date,SPY,QQQ,GLD\n" +
		"2024-01-02,0.01,-0.02,0.003\n" +
		"2024-01-03,,0.015,-0.001\n" +
		"2024-01-04, 0.002 ,0.001,\n"

	m, err := Load(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 3, m.Assets())
	assert.Equal(t, []string{"SPY", "QQQ", "GLD"}, m.Labels())
	assert.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-04"}, m.Dates())

	assert.Equal(t, 0.01, m.At(0, 0))
	assert.Equal(t, 0.0, m.At(1, 0), "empty cell reads as a zero return")
	assert.Equal(t, 0.002, m.At(2, 0), "cells are trimmed")
	assert.Equal(t, 0.0, m.At(2, 2))
	assert.Equal(t, []float64{-0.02, 0.015, 0.001}, colOf(m, 1))
}

func TestLoad_CRLFAndTrailingNewline(t *testing.T) {
	m, err := Load(strings.NewReader("date,A\r\n2024-01-02,0.5\r\n2024-01-03,0.25\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, []float64{0.5, 0.25}, colOf(m, 0))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty file", "", domain.ErrMalformedInput},
		{"header only", "date,A,B\n", domain.ErrInsufficientData},
		{"no asset columns", "date\n2024-01-02\n", domain.ErrInvalidDimension},
		{"ragged row", "date,A,B\n2024-01-02,0.1\n", domain.ErrMalformedInput},
		{"too many cells", "date,A\n2024-01-02,0.1,0.2\n", domain.ErrMalformedInput},
		{"non numeric", "date,A\n2024-01-02,abc\n", domain.ErrMalformedInput},
		{"not a number", "date,A\n2024-01-02,NaN\n", domain.ErrMalformedInput},
		{"infinite", "date,A\n2024-01-02,+Inf\n", domain.ErrMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_ErrorNamesLine(t *testing.T) {
	_, err := Load(strings.NewReader("date,A\n2024-01-02,0.1\n2024-01-03,x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestMatrix_IsImmutable(t *testing.T) {
	rows := [][]float64{{1, 2}, {3, 4}}
	labels := []string{"A", "B"}
	m, err := NewMatrix(labels, nil, rows)
	require.NoError(t, err)

	rows[0][0] = 100
	labels[0] = "Z"
	m.Labels()[1] = "Y"

	assert.Equal(t, []string{"A", "B"}, m.Labels())
	assert.Equal(t, []float64{1, 2}, rowOf(m, 0))
	assert.Equal(t, []float64{3, 4}, rowOf(m, 1))
	assert.Nil(t, m.Dates())
}

func TestNewMatrix_Validation(t *testing.T) {
	_, err := NewMatrix(nil, nil, [][]float64{{1}})
	assert.ErrorIs(t, err, domain.ErrInvalidDimension)

	_, err = NewMatrix([]string{"A"}, []string{"d1"}, [][]float64{{1}, {2}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = NewMatrix([]string{"A", "B"}, nil, [][]float64{{1}})
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestFromPrices(t *testing.T) {
	input := "date,A,B\n" +
		"d0,100,50\n" +
		"d1,110,50\n" +
		"d2,99,55\n"

	p, err := LoadPrices(strings.NewReader(input))
	require.NoError(t, err)

	m, err := FromPrices(p)
	require.NoError(t, err)

	require.Equal(t, 2, m.Rows())
	assert.Equal(t, []string{"d1", "d2"}, m.Dates())
	assert.InDelta(t, 0.10, m.At(0, 0), 1e-12)
	assert.InDelta(t, -0.10, m.At(1, 0), 1e-12)
	assert.InDelta(t, 0.0, m.At(0, 1), 1e-12)
	assert.InDelta(t, 0.10, m.At(1, 1), 1e-12)
}

func TestFromPrices_FillsGaps(t *testing.T) {
	input := "date,A\n" +
		"d0,\n" +
		"d1,100\n" +
		"d2,\n" +
		"d3,120\n"

	p, err := LoadPrices(strings.NewReader(input))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(p.Prices[0][0]))

	m, err := FromPrices(p)
	require.NoError(t, err)

	// back-filled 100, 100, forward-filled 100, 120
	assert.Equal(t, []float64{0, 0, 0.2}, roundAll(colOf(m, 0)))
}

func TestFromPrices_Errors(t *testing.T) {
	p, err := LoadPrices(strings.NewReader("date,A\nd0,100\n"))
	require.NoError(t, err)
	_, err = FromPrices(p)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	p, err = LoadPrices(strings.NewReader("date,A,B\nd0,100,\nd1,101,\n"))
	require.NoError(t, err)
	_, err = FromPrices(p)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	m, err := NewMatrix([]string{"A", "B"}, []string{"d1", "d2"}, [][]float64{{0.1, -0.2}, {1e-5, 0.3333333333333333}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, m))
	assert.True(t, strings.HasPrefix(buf.String(), "date,A,B\n"))

	back, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Labels(), back.Labels())
	assert.Equal(t, m.Dates(), back.Dates())
	for t2 := 0; t2 < m.Rows(); t2++ {
		assert.Equal(t, rowOf(m, t2), rowOf(back, t2))
	}
}

func rowOf(m *Matrix, t int) []float64 {
	row := make([]float64, m.Assets())
	for k := range row {
		row[k] = m.At(t, k)
	}
	return row
}

func colOf(m *Matrix, k int) []float64 {
	col := make([]float64, m.Rows())
	for t := range col {
		col[t] = m.At(t, k)
	}
	return col
}

func roundAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = math.Round(x*1e9) / 1e9
	}
	return out
}

func TestMatrix_Select(t *testing.T) {
	m, err := NewMatrix([]string{"A", "B", "C"}, []string{"d1", "d2"}, [][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)

	sel, err := m.Select([]string{"C", "A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, sel.Labels())
	assert.Equal(t, []float64{3, 1}, rowOf(sel, 0))
	assert.Equal(t, []float64{6, 4}, rowOf(sel, 1))
	assert.Equal(t, []string{"d1", "d2"}, sel.Dates())

	same, err := m.Select(nil)
	require.NoError(t, err)
	assert.Same(t, m, same)

	_, err = m.Select([]string{"Z"})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = m.Select([]string{"A", "A"})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"single", "SPY", []string{"SPY"}},
		{"list keeps order", "GLD,SPY,QQQ", []string{"GLD", "SPY", "QQQ"}},
		{"trims spaces", " SPY ,  QQQ", []string{"SPY", "QQQ"}},
		{"internal spaces kept", "BRK B, S&P 500", []string{"BRK B", "S&P 500"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSelection(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSelection_Invalid(t *testing.T) {
	for _, input := range []string{"SPY,,GLD", "SPY,", ",SPY", "SPY, SPY", ","} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseSelection(input)
			assert.ErrorIs(t, err, domain.ErrInvalidParameter)
		})
	}
}

func TestMatrix_SelectRejectsEmptyName(t *testing.T) {
	m, err := NewMatrix([]string{"A", "B"}, nil, [][]float64{{1, 2}})
	require.NoError(t, err)

	_, err = m.Select([]string{"A", ""})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}
