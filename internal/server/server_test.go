package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/runs"
	"github.com/aristath/frontier/internal/modules/simulation"
	"github.com/aristath/frontier/internal/modules/sink"
	"github.com/aristath/frontier/internal/services"
	testhelpers "github.com/aristath/frontier/internal/testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db := testhelpers.NewTestDB(t, "runs")
	repo := runs.NewRepository(db.Conn(), zerolog.Nop())

	cfg := &config.Config{
		ReturnsFile:    testhelpers.WriteFile(t, "returns.csv", testhelpers.ReturnsCSV),
		Trials:         100,
		RiskFreeRate:   0.02,
		Annualize:      true,
		PeriodsPerYear: 252,
		Seed:           42,
		Format:         config.FormatCSV,
		Port:           8001,
	}

	return New(Config{
		Log:         zerolog.Nop(),
		Config:      cfg,
		DB:          db,
		Runs:        repo,
		Simulations: services.NewSimulationService(repo, nil, zerolog.Nop()),
		Port:        cfg.Port,
	})
}

func do(t *testing.T, s *Server, method, target string, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func createRun(t *testing.T, s *Server, query string) services.Report {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/simulations"+query, testhelpers.ReturnsCSV, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var report services.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "/api/simulations/"+report.RunID, rec.Header().Get("Location"))
	return report
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"frontier"`)
}

func TestHealth_StoreUnavailable(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.db.Close())

	rec := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unhealthy"`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get: %w", runs.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: trials", domain.ErrInvalidParameter), http.StatusBadRequest},
		{fmt.Errorf("load: %w", domain.ErrMalformedInput), http.StatusBadRequest},
		{domain.ErrInsufficientData, http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestSystemStats(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/api/system", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats SystemStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Greater(t, stats.Goroutines, 0)
	require.NotNil(t, stats.Store)
	assert.Greater(t, stats.Store.PageSize, int64(0))
}

func TestCreateAndFetchPortfolios(t *testing.T) {
	s := newTestServer(t)
	report := createRun(t, s, "?trials=50&seed=7")
	assert.Equal(t, 50, report.Summary.Count)
	assert.True(t, report.Stored)

	base := "/api/simulations/" + report.RunID

	t.Run("csv by default", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, base+"/portfolios", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		assert.Equal(t, "sharpe,ret,vol,SPY,QQQ,GLD", lines[0])
		assert.Len(t, lines, 51)
	})

	t.Run("json", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, base+"/portfolios", "", map[string]string{"Accept": "application/json"})
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Labels     []string            `json:"labels"`
			Portfolios []simulation.Result `json:"portfolios"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, []string{"SPY", "QQQ", "GLD"}, body.Labels)
		assert.Len(t, body.Portfolios, 50)
		assert.Equal(t, report.Summary.MaxSharpe.Sharpe, maxSharpe(body.Portfolios))
	})

	t.Run("msgpack", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, base+"/portfolios", "", map[string]string{"Accept": "application/x-msgpack"})
		require.Equal(t, http.StatusOK, rec.Code)

		labels, results, err := sink.ReadMsgpack(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, []string{"SPY", "QQQ", "GLD"}, labels)
		assert.Len(t, results, 50)
	})

	t.Run("metadata", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, base, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var run runs.Run
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
		assert.Equal(t, uint64(7), run.Seed)
		assert.Equal(t, "upload", run.Source)
	})

	t.Run("chart", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, base+"/frontier.png", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	})
}

func maxSharpe(rs []simulation.Result) float64 {
	best := rs[0].Sharpe
	for _, r := range rs[1:] {
		if r.Sharpe > best {
			best = r.Sharpe
		}
	}
	return best
}

func TestCreateSimulation_BadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		query string
		body  string
	}{
		{"bad trials", "?trials=abc", testhelpers.ReturnsCSV},
		{"negative trials", "?trials=-5", testhelpers.ReturnsCSV},
		{"bad rf", "?rf=x", testhelpers.ReturnsCSV},
		{"bad annualize", "?annualize=maybe", testhelpers.ReturnsCSV},
		{"bad seed", "?seed=-1", testhelpers.ReturnsCSV},
		{"unknown asset", "?assets=TLT", testhelpers.ReturnsCSV},
		{"duplicate asset", "?assets=SPY,SPY", testhelpers.ReturnsCSV},
		{"empty asset", "?assets=SPY,,GLD", testhelpers.ReturnsCSV},
		{"malformed body", "", "date,A\n2024-01-02,abc\n"},
		{"single row", "", "date,A\n2024-01-02,0.01\n"},
		{"empty body", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/simulations"+tt.query, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	list := do(t, s, http.MethodGet, "/api/simulations", "", nil)
	assert.Contains(t, list.Body.String(), `"count":0`)
}

func TestListAndDelete(t *testing.T) {
	s := newTestServer(t)
	first := createRun(t, s, "?trials=5")
	createRun(t, s, "?trials=5")

	rec := do(t, s, http.MethodGet, "/api/simulations?limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs  []runs.Run `json:"runs"`
		Count int        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/simulations?limit=x", "", nil).Code)

	rec = do(t, s, http.MethodDelete, "/api/simulations/"+first.RunID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for _, path := range []string{"", "/portfolios", "/frontier.png"} {
		rec = do(t, s, http.MethodGet, "/api/simulations/"+first.RunID+path, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/api/simulations/"+first.RunID, "", nil).Code)
}

func TestFrontierChart_EmptyRun(t *testing.T) {
	s := newTestServer(t)
	report := createRun(t, s, "?trials=0")

	rec := do(t, s, http.MethodGet, "/api/simulations/"+report.RunID+"/frontier.png", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func dialStream(t *testing.T, s *Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/simulations/stream", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn, ctx
}

func TestStream(t *testing.T) {
	conn, ctx := dialStream(t, newTestServer(t))

	trials := 20
	require.NoError(t, wsjson.Write(ctx, conn, StreamRequest{Trials: &trials, Every: 5}))

	var (
		types   []string
		indexes []int
		final   *services.Report
	)
	for final == nil {
		var msg StreamMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		require.NotEqual(t, "error", msg.Type, msg.Error)

		types = append(types, msg.Type)
		switch msg.Type {
		case "begin":
			assert.Equal(t, []string{"SPY", "QQQ", "GLD"}, msg.Labels)
		case "portfolio":
			require.NotNil(t, msg.Portfolio)
			indexes = append(indexes, msg.Index)
		case "summary":
			final = msg.Report
		}
	}

	assert.Equal(t, "begin", types[0])
	assert.Equal(t, []int{0, 5, 10, 15}, indexes)
	assert.Equal(t, 20, final.Summary.Count)
	assert.False(t, final.Stored)
}

func TestStream_InvalidRequest(t *testing.T) {
	conn, ctx := dialStream(t, newTestServer(t))

	trials := -1
	require.NoError(t, wsjson.Write(ctx, conn, StreamRequest{Trials: &trials}))

	var msg StreamMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "trials")
}
