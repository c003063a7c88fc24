package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/services"
)

// SimulationRunner is the part of the simulation service the job needs.
type SimulationRunner interface {
	Run(ctx context.Context, req services.Request) (*services.Report, error)
}

// SimulationJob re-runs the configured simulation and stores each run.
// Every run uses the configured seed plus the number of earlier runs, so
// consecutive runs draw different portfolios but stay reproducible.
type SimulationJob struct {
	mu      sync.Mutex
	runner  SimulationRunner
	base    services.Request
	timeout time.Duration
	runs    uint64
	last    *services.Report
	log     zerolog.Logger
}

// NewSimulationJob creates the job. The returns file named by base is
// re-read on every run.
func NewSimulationJob(runner SimulationRunner, base services.Request, timeout time.Duration, log zerolog.Logger) *SimulationJob {
	base.Returns = nil
	base.Sinks = nil
	return &SimulationJob{
		runner:  runner,
		base:    base,
		timeout: timeout,
		log:     log.With().Str("job", "simulation").Logger(),
	}
}

// Name returns the job name
func (j *SimulationJob) Name() string {
	return "simulation"
}

// Run executes one simulation. Overlapping invocations are serialized.
func (j *SimulationJob) Run() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	req := j.base
	req.Seed = j.base.Seed + j.runs
	req.Store = true

	report, err := j.runner.Run(ctx, req)
	if err != nil {
		return err
	}
	j.runs++
	j.last = report

	j.log.Info().
		Str("run_id", report.RunID).
		Uint64("seed", req.Seed).
		Msg("Scheduled simulation stored")
	return nil
}

// Runs returns how many scheduled runs completed.
func (j *SimulationJob) Runs() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

// Last returns the report of the latest completed run, or nil.
func (j *SimulationJob) Last() *services.Report {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}
