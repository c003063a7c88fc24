// Package runs persists simulation runs and their portfolios in SQLite.
package runs

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("run not found")

// Run is the metadata of one stored simulation.
type Run struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Source         string    `json:"source"`
	Trials         int       `json:"trials"`
	RiskFreeRate   float64   `json:"risk_free_rate"`
	Annualized     bool      `json:"annualized"`
	PeriodsPerYear float64   `json:"periods_per_year"`
	Seed           uint64    `json:"seed"`
	Labels         []string  `json:"labels"`
	BestSharpe     *float64  `json:"best_sharpe,omitempty"`
	MinVolatility  *float64  `json:"min_volatility,omitempty"`
}
