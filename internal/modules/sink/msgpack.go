package sink

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/simulation"
)

// MsgpackHeader is the first value of a msgpack output stream.
type MsgpackHeader struct {
	Columns []string `msgpack:"columns"`
	Labels  []string `msgpack:"labels"`
}

// Msgpack writes a MsgpackHeader followed by one array per trial in column
// order: sharpe, ret, vol, weights...
type Msgpack struct {
	enc    *msgpack.Encoder
	file   *AtomicFile
	path   string
	assets int
	row    []float64
}

// NewMsgpack streams into w.
func NewMsgpack(w io.Writer) *Msgpack {
	return &Msgpack{enc: msgpack.NewEncoder(w)}
}

// NewMsgpackFile writes to path; the file appears only on Commit.
func NewMsgpackFile(path string) *Msgpack {
	return &Msgpack{path: path}
}

// Path returns the output path for file sinks.
func (m *Msgpack) Path() string { return m.path }

func (m *Msgpack) Begin(labels []string) error {
	if m.path != "" {
		f, err := CreateAtomic(m.path)
		if err != nil {
			return err
		}
		m.file = f
		m.enc = msgpack.NewEncoder(f)
	}

	m.assets = len(labels)
	m.row = make([]float64, 3+len(labels))
	return m.enc.Encode(MsgpackHeader{Columns: Columns(labels), Labels: labels})
}

func (m *Msgpack) Write(r simulation.Result) error {
	if len(r.Weights) != m.assets {
		return fmt.Errorf("%w: %d weights for %d columns", domain.ErrDimensionMismatch, len(r.Weights), m.assets)
	}
	m.row[0], m.row[1], m.row[2] = r.Sharpe, r.Return, r.Volatility
	copy(m.row[3:], r.Weights)
	return m.enc.Encode(m.row)
}

// Prepare makes the temporary file durable.
func (m *Msgpack) Prepare() error {
	if m.file != nil {
		return m.file.Prepare()
	}
	return nil
}

func (m *Msgpack) Commit() error {
	if m.file != nil {
		return m.file.Publish()
	}
	return nil
}

func (m *Msgpack) Abort() error {
	if m.file != nil {
		return m.file.Abort()
	}
	return nil
}

// Revert removes a committed file.
func (m *Msgpack) Revert() error {
	if m.file != nil {
		return m.file.Revert()
	}
	return nil
}

// ReadMsgpack decodes a stream written by Msgpack.
func ReadMsgpack(r io.Reader) ([]string, []simulation.Result, error) {
	dec := msgpack.NewDecoder(r)

	var header MsgpackHeader
	if err := dec.Decode(&header); err != nil {
		return nil, nil, fmt.Errorf("%w: msgpack header: %v", domain.ErrMalformedInput, err)
	}

	var results []simulation.Result
	for {
		var row []float64
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: msgpack row %d: %v", domain.ErrMalformedInput, len(results), err)
		}
		if len(row) != 3+len(header.Labels) {
			return nil, nil, fmt.Errorf("%w: msgpack row %d has %d values", domain.ErrMalformedInput, len(results), len(row))
		}
		results = append(results, simulation.Result{
			Sharpe:     row[0],
			Return:     row[1],
			Volatility: row[2],
			Weights:    simulation.Weights(append([]float64(nil), row[3:]...)),
		})
	}
	return header.Labels, results, nil
}
