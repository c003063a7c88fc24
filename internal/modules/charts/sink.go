package charts

import (
	"github.com/aristath/frontier/internal/modules/simulation"
	"github.com/aristath/frontier/internal/modules/sink"
)

// Sink collects results and renders the chart to a temporary file on
// Prepare; Commit moves it to Path. A run with no portfolios produces no file.
type Sink struct {
	Path     string
	frontier *Frontier
	file     *sink.AtomicFile
	written  bool
}

// NewSink returns a chart sink writing to path.
func NewSink(path, title string) *Sink {
	return &Sink{Path: path, frontier: NewFrontier(title)}
}

var (
	_ sink.Sink     = (*Sink)(nil)
	_ sink.Preparer = (*Sink)(nil)
	_ sink.Reverter = (*Sink)(nil)
)

func (s *Sink) Begin(_ []string) error { return nil }

func (s *Sink) Write(r simulation.Result) error {
	s.frontier.Add(r)
	return nil
}

// Prepare renders the chart into a temporary file next to Path.
func (s *Sink) Prepare() error {
	if s.file != nil || s.frontier.Len() == 0 {
		return nil
	}
	f, err := sink.CreateAtomic(s.Path)
	if err != nil {
		return err
	}
	if err := s.frontier.Render(f); err != nil {
		_ = f.Abort()
		return err
	}
	if err := f.Prepare(); err != nil {
		return err
	}
	s.file = f
	return nil
}

func (s *Sink) Commit() error {
	if err := s.Prepare(); err != nil {
		return err
	}
	if s.file == nil {
		return nil
	}
	if err := s.file.Publish(); err != nil {
		return err
	}
	s.written = true
	return nil
}

func (s *Sink) Abort() error {
	if s.file == nil {
		return nil
	}
	return s.file.Abort()
}

// Revert removes a committed chart.
func (s *Sink) Revert() error {
	if s.file == nil {
		return nil
	}
	s.written = false
	return s.file.Revert()
}

// Written reports whether Commit produced a file.
func (s *Sink) Written() bool { return s.written }
