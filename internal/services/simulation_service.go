// Package services provides the end-to-end simulation workflow shared by the
// CLI, the HTTP API and the scheduler.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/moments"
	"github.com/aristath/frontier/internal/modules/returns"
	"github.com/aristath/frontier/internal/modules/runs"
	"github.com/aristath/frontier/internal/modules/simulation"
	"github.com/aristath/frontier/internal/modules/sink"
	"github.com/aristath/frontier/internal/utils"
)

// RunStore creates store sinks for new runs.
type RunStore interface {
	NewSink(ctx context.Context, meta runs.Run) *runs.Sink
}

// Uploader publishes committed output files.
type Uploader interface {
	UploadFiles(ctx context.Context, runID string, files []string) ([]string, error)
}

// Request describes one simulation. Returns takes precedence over
// ReturnsPath.
type Request struct {
	Source      string
	Returns     io.Reader
	ReturnsPath string
	Assets      []string

	Trials         int
	RiskFreeRate   float64
	Annualize      bool
	PeriodsPerYear float64
	Seed           uint64

	OutputPath string
	Format     string
	ChartPath  string
	ChartTitle string
	Store      bool
	Upload     bool

	// Sinks receive every result in addition to the outputs above.
	Sinks []sink.Sink
}

// RequestFromConfig builds the default request for cfg.
func RequestFromConfig(cfg *config.Config) Request {
	return Request{
		Source:         cfg.ReturnsFile,
		ReturnsPath:    cfg.ReturnsFile,
		Trials:         cfg.Trials,
		RiskFreeRate:   cfg.RiskFreeRate,
		Annualize:      cfg.Annualize,
		PeriodsPerYear: cfg.PeriodsPerYear,
		Seed:           cfg.Seed,
		OutputPath:     cfg.OutputPath,
		Format:         cfg.Format,
		ChartPath:      cfg.ChartPath,
	}
}

// Report is the outcome of a completed run.
type Report struct {
	RunID        string                    `json:"run_id"`
	Labels       []string                  `json:"labels"`
	Basis        string                    `json:"basis"`
	Summary      simulation.Summary        `json:"summary"`
	Correlations []moments.CorrelationPair `json:"high_correlations"`
	Files        []string                  `json:"files,omitempty"`
	Locations    []string                  `json:"locations,omitempty"`
	Stored       bool                      `json:"stored"`
	Duration     time.Duration             `json:"duration"`
	Stages       []utils.Stage             `json:"stages"`
}

// SimulationService runs simulations end to end.
type SimulationService struct {
	estimator *moments.Estimator
	store     RunStore
	uploader  Uploader
	log       zerolog.Logger
}

// NewSimulationService creates the service. store and uploader may be nil
// when persistence or uploads are not available.
func NewSimulationService(store RunStore, uploader Uploader, log zerolog.Logger) *SimulationService {
	return &SimulationService{
		estimator: moments.NewEstimator(log),
		store:     store,
		uploader:  uploader,
		log:       log.With().Str("service", "simulation").Logger(),
	}
}

// LoadMoments reads the returns of req and estimates their moments on the
// requested basis.
func (s *SimulationService) LoadMoments(req Request) (moments.Moments, error) {
	var (
		matrix *returns.Matrix
		err    error
	)
	switch {
	case req.Returns != nil:
		matrix, err = returns.Load(req.Returns)
	case req.ReturnsPath != "":
		matrix, err = returns.LoadFile(req.ReturnsPath)
	default:
		return moments.Moments{}, fmt.Errorf("%w: no returns input", domain.ErrInvalidParameter)
	}
	if err != nil {
		return moments.Moments{}, fmt.Errorf("failed to load returns: %w", err)
	}

	matrix, err = matrix.Select(req.Assets)
	if err != nil {
		return moments.Moments{}, err
	}

	return s.estimator.Estimate(matrix, moments.NewBasis(req.Annualize, req.PeriodsPerYear))
}

// Run executes req. On any failure every output is aborted, and outputs
// already committed are reverted, so no partial file or stored run is left
// behind.
func (s *SimulationService) Run(ctx context.Context, req Request) (*Report, error) {
	if req.Trials < 0 {
		return nil, fmt.Errorf("%w: trials must be non-negative, got %d", domain.ErrInvalidParameter, req.Trials)
	}
	if req.Store && s.store == nil {
		return nil, errors.New("run store is not available")
	}
	if req.Upload && s.uploader == nil {
		return nil, errors.New("upload is not configured")
	}

	timer := utils.NewTimer("simulation", s.log)
	report := &Report{RunID: uuid.NewString()}

	m, err := s.LoadMoments(req)
	if err != nil {
		return nil, err
	}
	timer.Lap("estimate")

	report.Labels = m.Labels
	report.Basis = moments.NewBasis(req.Annualize, req.PeriodsPerYear).Name()
	report.Correlations = moments.Correlations(m.Cov, m.Labels, moments.HighCorrelationThreshold)
	for _, pair := range report.Correlations {
		s.log.Debug().
			Str("asset1", pair.Asset1).
			Str("asset2", pair.Asset2).
			Float64("correlation", pair.Correlation).
			Msg("Highly correlated assets")
	}

	trials, err := simulation.Run(m.Assets(), req.Trials, simulation.NewSource(req.Seed), m, req.RiskFreeRate)
	if err != nil {
		return nil, err
	}

	summary := &sink.Summary{}
	outputs, files, err := s.outputs(ctx, req, report.RunID)
	if err != nil {
		return nil, err
	}
	all := append(sink.Multi{summary}, outputs...)

	if err := s.drain(ctx, trials, all, m.Labels); err != nil {
		if abortErr := all.Abort(); abortErr != nil {
			s.log.Warn().Err(abortErr).Msg("Failed to abort outputs")
		}
		return nil, err
	}
	timer.Lap("simulate")

	if err := all.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit outputs: %w", err)
	}
	timer.Lap("commit")

	report.Summary = summary.Summary
	report.Stored = req.Store
	for _, f := range files {
		if f.written() {
			report.Files = append(report.Files, f.path)
		}
	}

	if req.Upload && len(report.Files) > 0 {
		report.Locations, err = s.uploader.UploadFiles(ctx, report.RunID, report.Files)
		if err != nil {
			return report, fmt.Errorf("failed to upload outputs: %w", err)
		}
		timer.Lap("upload")
	}

	report.Stages = timer.Stages()
	report.Duration = timer.StopWithContext(map[string]interface{}{
		"run_id": report.RunID,
		"trials": report.Summary.Count,
	})

	s.log.Info().
		Str("run_id", report.RunID).
		Int("trials", report.Summary.Count).
		Float64("best_sharpe", report.Summary.BestSharpe()).
		Float64("min_volatility", report.Summary.LowestVolatility()).
		Dur("duration", report.Duration).
		Msg("Simulation completed")

	return report, nil
}

type outputFile struct {
	path    string
	written func() bool
}

func always() bool { return true }

// outputs builds the sinks requested by req and lists the files they produce.
func (s *SimulationService) outputs(ctx context.Context, req Request, runID string) (sink.Multi, []outputFile, error) {
	var (
		outputs sink.Multi
		files   []outputFile
	)

	// The store commits before files are moved into place.
	if req.Store {
		outputs = append(outputs, s.store.NewSink(ctx, runs.Run{
			ID:             runID,
			Source:         req.Source,
			Trials:         req.Trials,
			RiskFreeRate:   req.RiskFreeRate,
			Annualized:     req.Annualize,
			PeriodsPerYear: req.PeriodsPerYear,
			Seed:           req.Seed,
		}))
	}

	if req.OutputPath != "" {
		switch req.Format {
		case config.FormatCSV, "":
			outputs = append(outputs, sink.NewCSVFile(req.OutputPath))
		case config.FormatMsgpack:
			outputs = append(outputs, sink.NewMsgpackFile(req.OutputPath))
		default:
			return nil, nil, fmt.Errorf("%w: unknown output format %q", domain.ErrInvalidParameter, req.Format)
		}
		files = append(files, outputFile{path: req.OutputPath, written: always})
	}

	if req.ChartPath != "" {
		chart := charts.NewSink(req.ChartPath, req.ChartTitle)
		outputs = append(outputs, chart)
		files = append(files, outputFile{path: req.ChartPath, written: chart.Written})
	}

	outputs = append(outputs, req.Sinks...)
	return outputs, files, nil
}

// drain streams every trial into out, stopping when ctx is cancelled.
func (s *SimulationService) drain(ctx context.Context, trials *simulation.Trials, out sink.Sink, labels []string) error {
	if err := out.Begin(labels); err != nil {
		return fmt.Errorf("failed to begin outputs: %w", err)
	}

	for trials.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := out.Write(trials.Result()); err != nil {
			return fmt.Errorf("failed to write trial %d: %w", trials.Index()-1, err)
		}
	}
	if err := trials.Err(); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}
	return nil
}
