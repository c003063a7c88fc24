package returns

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/markcheno/go-talib"

	"github.com/aristath/frontier/internal/domain"
)

// PriceTable is a T×K table of closing prices in the same layout as a returns
// file. Missing prices are NaN until FillMissing runs.
type PriceTable struct {
	Labels []string
	Dates  []string
	Prices [][]float64 // Prices[t][k]
}

// LoadPrices reads a price table. Empty cells are missing prices.
func LoadPrices(r io.Reader) (*PriceTable, error) {
	labels, dates, rows, err := readTable(r, func(cell string) (float64, error) {
		if cell == "" {
			return math.NaN(), nil
		}
		return strconv.ParseFloat(cell, 64)
	})
	if err != nil {
		return nil, err
	}
	return &PriceTable{Labels: labels, Dates: dates, Prices: rows}, nil
}

// FillMissing fills missing prices per asset, forward first and then
// backward for leading gaps. It returns how many cells were filled.
func (p *PriceTable) FillMissing() int {
	filled := 0
	for k := range p.Labels {
		last, hasLast := 0.0, false
		for t := range p.Prices {
			if math.IsNaN(p.Prices[t][k]) {
				if hasLast {
					p.Prices[t][k] = last
					filled++
				}
			} else {
				last, hasLast = p.Prices[t][k], true
			}
		}

		next, hasNext := 0.0, false
		for t := len(p.Prices) - 1; t >= 0; t-- {
			if math.IsNaN(p.Prices[t][k]) {
				if hasNext {
					p.Prices[t][k] = next
					filled++
				}
			} else {
				next, hasNext = p.Prices[t][k], true
			}
		}
	}
	return filled
}

// FromPrices converts closing prices into simple daily returns,
// r[t] = (p[t]-p[t-1])/p[t-1]. The first day has no return and is dropped.
// Gaps are filled first; an asset with no price at all is an error.
func FromPrices(p *PriceTable) (*Matrix, error) {
	if len(p.Labels) == 0 {
		return nil, fmt.Errorf("%w: no asset columns", domain.ErrInvalidDimension)
	}
	if len(p.Prices) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 price rows, got %d", domain.ErrInsufficientData, len(p.Prices))
	}

	p.FillMissing()

	T := len(p.Prices) - 1
	rows := make([][]float64, T)
	for t := range rows {
		rows[t] = make([]float64, len(p.Labels))
	}

	series := make([]float64, len(p.Prices))
	for k, label := range p.Labels {
		for t := range p.Prices {
			series[t] = p.Prices[t][k]
			if math.IsNaN(series[t]) {
				return nil, fmt.Errorf("%w: asset %q has no prices", domain.ErrMalformedInput, label)
			}
		}
		rocp := talib.Rocp(series, 1)
		for t := 1; t < len(rocp); t++ {
			rows[t-1][k] = rocp[t]
		}
	}

	var dates []string
	if len(p.Dates) == len(p.Prices) {
		dates = p.Dates[1:]
	}
	return NewMatrix(p.Labels, dates, rows)
}

// WriteCSV writes m in the layout Load reads. Rows without a date get their
// index as the first column.
func WriteCSV(w io.Writer, m *Matrix) error {
	cw := csv.NewWriter(w)

	header := append([]string{"date"}, m.labels...)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for t, row := range m.rows {
		if m.dates != nil {
			record[0] = m.dates[t]
		} else {
			record[0] = strconv.Itoa(t)
		}
		for k, v := range row {
			record[k+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
