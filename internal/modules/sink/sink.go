// Package sink receives simulated portfolios in trial order. A sink is begun
// once with the asset labels, written once per trial, and then either
// committed or aborted; an aborted sink leaves no partial output behind.
//
// Sinks that publish something (a file, a stored run) also implement
// Preparer and Reverter, so Multi can finish all fallible work before
// anything becomes visible and take back what was published when a later
// sink fails.
package sink

import (
	"errors"

	"github.com/aristath/frontier/internal/modules/simulation"
)

// Sink is an output for one simulation run.
type Sink interface {
	Begin(labels []string) error
	Write(r simulation.Result) error
	Commit() error
	Abort() error
}

// Columns returns the fixed output columns for labels: sharpe, ret, vol and
// one weight column per asset.
func Columns(labels []string) []string {
	return append([]string{"sharpe", "ret", "vol"}, labels...)
}

// Preparer is implemented by sinks whose Commit can be split in two. Prepare
// does all the work that may fail without publishing; a Commit after a
// successful Prepare only publishes.
type Preparer interface {
	Prepare() error
}

// Reverter is implemented by sinks that can take back a committed output.
type Reverter interface {
	Revert() error
}

// Multi fans every call out to all sinks in order.
type Multi []Sink

func (m Multi) Begin(labels []string) error {
	for _, s := range m {
		if err := s.Begin(labels); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Write(r simulation.Result) error {
	for _, s := range m {
		if err := s.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Prepare prepares every sink that supports it. If one fails, every sink is
// aborted.
func (m Multi) Prepare() error {
	for _, s := range m {
		p, ok := s.(Preparer)
		if !ok {
			continue
		}
		if err := p.Prepare(); err != nil {
			_ = m.Abort()
			return err
		}
	}
	return nil
}

// Commit prepares all sinks, then commits the sinks that cannot prepare
// (their Commit may still fail) and finally publishes the prepared ones in
// order. On failure uncommitted sinks are aborted and committed ones are
// reverted, so a failed commit leaves no output behind.
func (m Multi) Commit() error {
	if err := m.Prepare(); err != nil {
		return err
	}

	order := make([]Sink, 0, len(m))
	for _, s := range m {
		if _, ok := s.(Preparer); !ok {
			order = append(order, s)
		}
	}
	for _, s := range m {
		if _, ok := s.(Preparer); ok {
			order = append(order, s)
		}
	}

	for i, s := range order {
		if err := s.Commit(); err != nil {
			for _, rest := range order[i:] {
				_ = rest.Abort()
			}
			if revertErr := revert(order[:i]); revertErr != nil {
				return errors.Join(err, revertErr)
			}
			return err
		}
	}
	return nil
}

// Revert reverts every sink that supports it.
func (m Multi) Revert() error {
	return revert(m)
}

func revert(sinks []Sink) error {
	var errs []error
	for i := len(sinks) - 1; i >= 0; i-- {
		if r, ok := sinks[i].(Reverter); ok {
			if err := r.Revert(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Abort aborts every sink and joins their errors.
func (m Multi) Abort() error {
	var errs []error
	for _, s := range m {
		if err := s.Abort(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Summary folds every result into a simulation.Summary.
type Summary struct {
	simulation.Summary
	Labels []string
}

func (s *Summary) Begin(labels []string) error {
	s.Labels = append([]string(nil), labels...)
	return nil
}

func (s *Summary) Write(r simulation.Result) error {
	s.Add(r)
	return nil
}

func (s *Summary) Commit() error { return nil }
func (s *Summary) Abort() error  { return nil }
