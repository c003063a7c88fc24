package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/frontier/internal/modules/simulation"
	"github.com/aristath/frontier/internal/modules/sink"
)

// Sink stores a run and all of its portfolios. Rows are kept in memory while
// the simulation runs; Prepare writes everything in one transaction and
// Commit commits it, so the SQLite write lock is held only for the insert
// itself. Nothing is visible to readers until Commit.
type Sink struct {
	ctx  context.Context
	repo *Repository
	run  Run

	begun   bool
	rows    []simulation.Result
	summary simulation.Summary

	tx        *sql.Tx
	committed bool
}

var (
	_ sink.Sink     = (*Sink)(nil)
	_ sink.Preparer = (*Sink)(nil)
	_ sink.Reverter = (*Sink)(nil)
)

// NewSink returns a sink that stores meta as a new run. An empty meta.ID is
// replaced with a fresh UUID.
func (r *Repository) NewSink(ctx context.Context, meta Run) *Sink {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	return &Sink{ctx: ctx, repo: r, run: meta}
}

// RunID returns the id the run is stored under.
func (s *Sink) RunID() string { return s.run.ID }

func (s *Sink) Begin(labels []string) error {
	if s.begun {
		return errors.New("run sink already begun")
	}
	s.begun = true
	s.run.Labels = append([]string(nil), labels...)
	if s.run.CreatedAt.IsZero() {
		s.run.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (s *Sink) Write(r simulation.Result) error {
	if !s.begun {
		return errors.New("run sink not begun")
	}
	s.rows = append(s.rows, r)
	s.summary.Add(r)
	return nil
}

// Prepare inserts the run and its portfolios in an open transaction.
func (s *Sink) Prepare() error {
	if !s.begun {
		return errors.New("run sink not begun")
	}
	if s.tx != nil || s.committed {
		return nil
	}

	labels, err := json.Marshal(s.run.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}

	tx, err := s.repo.db.BeginTx(s.ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := s.insert(tx, string(labels)); err != nil {
		_ = tx.Rollback()
		return err
	}
	s.tx = tx
	return nil
}

func (s *Sink) insert(tx *sql.Tx, labels string) error {
	var best, low sql.NullFloat64
	if s.summary.MaxSharpe != nil {
		best = sql.NullFloat64{Float64: s.summary.MaxSharpe.Sharpe, Valid: true}
		low = sql.NullFloat64{Float64: s.summary.MinVolatility.Volatility, Valid: true}
	}

	_, err := tx.ExecContext(s.ctx, `
		INSERT INTO runs (id, created_at, source, trials, risk_free_rate, annualized,
		                  periods_per_year, seed, labels, best_sharpe, min_volatility)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.run.ID,
		s.run.CreatedAt.Unix(),
		s.run.Source,
		len(s.rows),
		s.run.RiskFreeRate,
		boolToInt(s.run.Annualized),
		s.run.PeriodsPerYear,
		int64(s.run.Seed),
		labels,
		best,
		low,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(s.ctx,
		`INSERT INTO portfolios (run_id, idx, sharpe, ret, vol, weights) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare portfolio insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range s.rows {
		weights, err := json.Marshal(r.Weights)
		if err != nil {
			return fmt.Errorf("failed to encode weights: %w", err)
		}
		if _, err := stmt.ExecContext(s.ctx, s.run.ID, i, r.Sharpe, r.Return, r.Volatility, string(weights)); err != nil {
			return fmt.Errorf("failed to insert portfolio %d: %w", i, err)
		}
	}
	return nil
}

func (s *Sink) Commit() error {
	if err := s.Prepare(); err != nil {
		return err
	}
	if s.committed {
		return nil
	}

	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	s.committed = true
	s.rows = nil

	s.repo.log.Info().
		Str("run_id", s.run.ID).
		Int("portfolios", s.summary.Count).
		Msg("Stored run")
	return nil
}

// Abort rolls back a prepared transaction and drops the buffered rows.
func (s *Sink) Abort() error {
	s.rows = nil
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back run: %w", err)
	}
	return nil
}

// Revert deletes a committed run.
func (s *Sink) Revert() error {
	if !s.committed {
		return s.Abort()
	}
	if err := s.repo.Delete(context.WithoutCancel(s.ctx), s.run.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	s.committed = false
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
