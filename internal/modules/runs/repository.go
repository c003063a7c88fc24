package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/simulation"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// runColumns must match scanRun.
const runColumns = `id, created_at, source, trials, risk_free_rate, annualized,
periods_per_year, seed, labels, best_sharpe, min_volatility`

// Repository reads and deletes stored runs. Runs are written through Sink.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a run repository on runs.db.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run           Run
		createdAt     int64
		annualized    int
		seed          int64
		labels        string
		bestSharpe    sql.NullFloat64
		minVolatility sql.NullFloat64
	)

	err := row.Scan(
		&run.ID,
		&createdAt,
		&run.Source,
		&run.Trials,
		&run.RiskFreeRate,
		&annualized,
		&run.PeriodsPerYear,
		&seed,
		&labels,
		&bestSharpe,
		&minVolatility,
	)
	if err != nil {
		return nil, err
	}

	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	run.Annualized = annualized != 0
	run.Seed = uint64(seed)
	if err := json.Unmarshal([]byte(labels), &run.Labels); err != nil {
		return nil, fmt.Errorf("failed to decode labels of run %s: %w", run.ID, err)
	}
	if bestSharpe.Valid {
		run.BestSharpe = &bestSharpe.Float64
	}
	if minVolatility.Valid {
		run.MinVolatility = &minVolatility.Float64
	}
	return &run, nil
}

// Get returns the run with id or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first.
func (r *Repository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Results returns the stored portfolios of a run in trial order.
func (r *Repository) Results(ctx context.Context, id string) ([]simulation.Result, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT sharpe, ret, vol, weights FROM portfolios WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	results := make([]simulation.Result, 0)
	for rows.Next() {
		var (
			res     simulation.Result
			weights string
		)
		if err := rows.Scan(&res.Sharpe, &res.Return, &res.Volatility, &weights); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		if err := json.Unmarshal([]byte(weights), &res.Weights); err != nil {
			return nil, fmt.Errorf("failed to decode weights: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate portfolios: %w", err)
	}
	return results, nil
}

// Delete removes a run and its portfolios.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	r.log.Info().Str("run_id", id).Msg("Deleted run")
	return nil
}
