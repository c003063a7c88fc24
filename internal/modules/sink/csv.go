package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/simulation"
)

// CSV writes the header sharpe,ret,vol,<labels> followed by one row per
// trial. Floats use the shortest representation that reads back exactly.
type CSV struct {
	w      *csv.Writer
	file   *AtomicFile
	path   string
	assets int
	record []string
}

// NewCSV streams rows into w. Abort cannot take back what was written.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

// NewCSVFile writes rows to path; the file appears only on Commit.
func NewCSVFile(path string) *CSV {
	return &CSV{path: path}
}

// Path returns the output path for file sinks.
func (c *CSV) Path() string { return c.path }

func (c *CSV) Begin(labels []string) error {
	if c.path != "" {
		f, err := CreateAtomic(c.path)
		if err != nil {
			return err
		}
		c.file = f
		c.w = csv.NewWriter(f)
	}

	c.assets = len(labels)
	c.record = make([]string, 3+len(labels))
	return c.w.Write(Columns(labels))
}

func (c *CSV) Write(r simulation.Result) error {
	if len(r.Weights) != c.assets {
		return fmt.Errorf("%w: %d weights for %d columns", domain.ErrDimensionMismatch, len(r.Weights), c.assets)
	}
	c.record[0] = formatFloat(r.Sharpe)
	c.record[1] = formatFloat(r.Return)
	c.record[2] = formatFloat(r.Volatility)
	for i, w := range r.Weights {
		c.record[3+i] = formatFloat(w)
	}
	return c.w.Write(c.record)
}

// Prepare flushes the rows and makes the temporary file durable.
func (c *CSV) Prepare() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		_ = c.Abort()
		return fmt.Errorf("failed to write csv: %w", err)
	}
	if c.file != nil {
		return c.file.Prepare()
	}
	return nil
}

func (c *CSV) Commit() error {
	if err := c.Prepare(); err != nil {
		return err
	}
	if c.file != nil {
		return c.file.Publish()
	}
	return nil
}

func (c *CSV) Abort() error {
	if c.file != nil {
		return c.file.Abort()
	}
	return nil
}

// Revert removes a committed file. Streamed rows cannot be taken back.
func (c *CSV) Revert() error {
	if c.file != nil {
		return c.file.Revert()
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
