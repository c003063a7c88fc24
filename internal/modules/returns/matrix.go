// Package returns loads the per-day, per-asset return table that feeds the
// moment estimator, and derives such tables from price histories.
package returns

import (
	"fmt"

	"github.com/aristath/frontier/internal/domain"
)

// Matrix is an immutable T×K table of daily returns with K asset labels.
// Column k of every row lines up with Labels()[k].
type Matrix struct {
	labels []string
	dates  []string
	rows   [][]float64
}

// NewMatrix validates and copies the given table. Every row must carry exactly
// len(labels) values. dates may be nil; when set it must have one entry per row.
func NewMatrix(labels []string, dates []string, rows [][]float64) (*Matrix, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no asset columns", domain.ErrInvalidDimension)
	}
	if dates != nil && len(dates) != len(rows) {
		return nil, fmt.Errorf("%w: %d dates for %d rows", domain.ErrDimensionMismatch, len(dates), len(rows))
	}

	m := &Matrix{
		labels: append([]string(nil), labels...),
		rows:   make([][]float64, len(rows)),
	}
	if dates != nil {
		m.dates = append([]string(nil), dates...)
	}
	for t, row := range rows {
		if len(row) != len(labels) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", domain.ErrMalformedInput, t, len(row), len(labels))
		}
		m.rows[t] = append([]float64(nil), row...)
	}
	return m, nil
}

// Rows returns T, the number of observation days.
func (m *Matrix) Rows() int { return len(m.rows) }

// Assets returns K, the number of asset columns.
func (m *Matrix) Assets() int { return len(m.labels) }

// At returns the return of asset k on day t.
func (m *Matrix) At(t, k int) float64 { return m.rows[t][k] }

// Labels returns a copy of the asset labels.
func (m *Matrix) Labels() []string { return append([]string(nil), m.labels...) }

// Dates returns a copy of the row dates, or nil when the table has none.
func (m *Matrix) Dates() []string {
	if m.dates == nil {
		return nil
	}
	return append([]string(nil), m.dates...)
}

// Select returns a matrix restricted to the named assets, in the order given.
// An empty selection returns m itself.
func (m *Matrix) Select(labels []string) (*Matrix, error) {
	if len(labels) == 0 {
		return m, nil
	}
	if err := checkSelection(labels); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(m.labels))
	for k, l := range m.labels {
		index[l] = k
	}
	cols := make([]int, len(labels))
	for i, l := range labels {
		k, ok := index[l]
		if !ok {
			return nil, fmt.Errorf("%w: unknown asset %q", domain.ErrInvalidParameter, l)
		}
		cols[i] = k
	}

	rows := make([][]float64, len(m.rows))
	for t, row := range m.rows {
		sel := make([]float64, len(cols))
		for i, k := range cols {
			sel[i] = row[k]
		}
		rows[t] = sel
	}
	return &Matrix{labels: append([]string(nil), labels...), dates: m.dates, rows: rows}, nil
}
