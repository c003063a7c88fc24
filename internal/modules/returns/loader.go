package returns

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/aristath/frontier/internal/domain"
)

// Load reads a returns table in the layout date,asset1,asset2,... The first
// column is kept as the row date and otherwise ignored. Empty cells are read
// as a 0.0 return.
func Load(r io.Reader) (*Matrix, error) {
	labels, dates, rows, err := readTable(r, func(cell string) (float64, error) {
		if cell == "" {
			return 0.0, nil
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			return 0, fmt.Errorf("non-finite return %q", cell)
		}
		return v, err
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no data in returns file", domain.ErrInsufficientData)
	}
	return NewMatrix(labels, dates, rows)
}

// LoadFile opens path and calls Load.
func LoadFile(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open returns file: %w", err)
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// readTable parses the shared date,label... layout. parse turns one trimmed
// cell into a value.
func readTable(r io.Reader, parse func(cell string) (float64, error)) ([]string, []string, [][]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil, fmt.Errorf("%w: empty file", domain.ErrMalformedInput)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: header: %w", domain.ErrMalformedInput, err)
	}
	if len(header) < 2 {
		return nil, nil, nil, fmt.Errorf("%w: header has no asset columns", domain.ErrInvalidDimension)
	}

	labels := make([]string, len(header)-1)
	for i, h := range header[1:] {
		labels[i] = strings.TrimSpace(h)
	}

	var dates []string
	var rows [][]float64
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
		}

		line, _ := cr.FieldPos(0)
		if len(record) != len(header) {
			return nil, nil, nil, fmt.Errorf("%w: line %d has %d columns, want %d",
				domain.ErrMalformedInput, line, len(record), len(header))
		}

		row := make([]float64, len(labels))
		for k, cell := range record[1:] {
			v, err := parse(strings.TrimSpace(cell))
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%w: line %d column %q: %v",
					domain.ErrMalformedInput, line, labels[k], err)
			}
			row[k] = v
		}
		dates = append(dates, strings.TrimSpace(record[0]))
		rows = append(rows, row)
	}

	return labels, dates, rows, nil
}
