package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/simulation"
	"github.com/aristath/frontier/internal/modules/sink"
)

// maxUploadBytes caps the returns CSV accepted by POST /api/simulations.
const maxUploadBytes = 32 << 20

const (
	contentTypeCSV     = "text/csv"
	contentTypeMsgpack = "application/x-msgpack"
	contentTypeJSON    = "application/json"
)

// handleCreateSimulation runs a simulation on the uploaded returns CSV and
// stores it.
func (s *Server) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(s.cfg, r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}

	req.Source = "upload"
	req.Returns = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	req.Store = true

	report, err := s.simulations.Run(r.Context(), req)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
			return
		}
		s.writeError(w, err)
		return
	}

	w.Header().Set("Location", "/api/simulations/"+report.RunID)
	s.writeJSON(w, http.StatusCreated, report)
}

// handleListSimulations lists stored runs, newest first
func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, fmt.Errorf("%w: limit must be a non-negative integer, got %q", domain.ErrInvalidParameter, v))
			return
		}
		limit = n
	}

	list, err := s.runs.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  list,
		"count": len(list),
	})
}

func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteSimulation(w http.ResponseWriter, r *http.Request) {
	if err := s.runs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePortfolios returns the stored portfolios of a run as CSV, msgpack
// or JSON depending on the Accept header. CSV is the default.
func (s *Server) handlePortfolios(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	results, err := s.runs.Results(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, contentTypeMsgpack):
		w.Header().Set("Content-Type", contentTypeMsgpack)
		s.writeResults(w, sink.NewMsgpack(w), run.Labels, results)
	case strings.Contains(accept, contentTypeJSON):
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"labels":     run.Labels,
			"portfolios": results,
		})
	default:
		w.Header().Set("Content-Type", contentTypeCSV)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".csv"))
		s.writeResults(w, sink.NewCSV(w), run.Labels, results)
	}
}

func (s *Server) writeResults(w http.ResponseWriter, out sink.Sink, labels []string, results []simulation.Result) {
	w.WriteHeader(http.StatusOK)

	err := out.Begin(labels)
	for i := 0; err == nil && i < len(results); i++ {
		err = out.Write(results[i])
	}
	if err == nil {
		err = out.Commit()
	}
	if err != nil {
		// Headers are already sent; the client sees a truncated body.
		s.log.Error().Err(err).Msg("Failed to stream portfolios")
	}
}

// handleFrontierChart renders the stored run as a PNG scatter plot
func (s *Server) handleFrontierChart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := s.runs.Results(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(results) == 0 {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "run has no portfolios to plot"})
		return
	}

	frontier := charts.NewFrontier("Run " + id)
	for _, res := range results {
		frontier.Add(res)
	}

	w.Header().Set("Content-Type", chart.ContentTypePNG)
	if err := frontier.Render(w); err != nil {
		s.log.Error().Err(err).Str("run_id", id).Msg("Failed to render frontier chart")
	}
}
