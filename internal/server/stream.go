package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/simulation"
	"github.com/aristath/frontier/internal/modules/sink"
	"github.com/aristath/frontier/internal/services"
)

const (
	streamReadTimeout  = 10 * time.Second
	streamWriteTimeout = 10 * time.Second
)

// StreamRequest is the single message a client sends after connecting.
// Unset fields fall back to the configured defaults.
type StreamRequest struct {
	Trials         *int     `json:"trials,omitempty"`
	RiskFreeRate   *float64 `json:"rf,omitempty"`
	Annualize      *bool    `json:"annualize,omitempty"`
	PeriodsPerYear *float64 `json:"periods,omitempty"`
	Seed           *uint64  `json:"seed,omitempty"`
	Assets         []string `json:"assets,omitempty"`
	// Every sends only each n-th portfolio; the summary still covers all.
	Every int `json:"every,omitempty"`
}

// StreamMessage is one server message: "begin", "portfolio", "summary" or
// "error".
type StreamMessage struct {
	Type      string             `json:"type"`
	Index     int                `json:"index,omitempty"`
	Labels    []string           `json:"labels,omitempty"`
	Portfolio *simulation.Result `json:"portfolio,omitempty"`
	Report    *services.Report   `json:"report,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func (s *Server) streamRequest(in StreamRequest) (services.Request, int, error) {
	req := services.RequestFromConfig(s.cfg)
	req.Source = s.cfg.ReturnsFile
	req.OutputPath = ""
	req.ChartPath = ""
	req.Assets = in.Assets

	if in.Trials != nil {
		if *in.Trials < 0 {
			return req, 0, fmt.Errorf("%w: trials must be non-negative, got %d", domain.ErrInvalidParameter, *in.Trials)
		}
		req.Trials = *in.Trials
	}
	if in.RiskFreeRate != nil {
		req.RiskFreeRate = *in.RiskFreeRate
	}
	if in.Annualize != nil {
		req.Annualize = *in.Annualize
	}
	if in.PeriodsPerYear != nil {
		req.PeriodsPerYear = *in.PeriodsPerYear
	}
	if in.Seed != nil {
		req.Seed = *in.Seed
	}

	every := in.Every
	if every <= 0 {
		every = 1
	}
	return req, every, nil
}

// handleStream runs a simulation on the configured returns file and pushes
// each portfolio to the client as it is produced. Closing the socket stops
// the run.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same open policy as the CORS middleware
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	readCtx, cancel := context.WithTimeout(r.Context(), streamReadTimeout)
	var in StreamRequest
	err = wsjson.Read(readCtx, conn, &in)
	cancel()
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "expected a JSON simulation request")
		return
	}

	req, every, err := s.streamRequest(in)
	if err != nil {
		s.streamError(r.Context(), conn, err)
		return
	}

	// Reading is done; CloseRead cancels ctx once the client goes away.
	ctx := conn.CloseRead(r.Context())
	req.Sinks = []sink.Sink{&streamSink{ctx: ctx, conn: conn, every: every}}

	report, err := s.simulations.Run(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			s.log.Debug().Msg("Stream client disconnected")
			return
		}
		s.streamError(ctx, conn, err)
		return
	}

	if err := writeStream(ctx, conn, StreamMessage{Type: "summary", Report: report}); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) streamError(ctx context.Context, conn *websocket.Conn, err error) {
	status := websocket.StatusInternalError
	if statusFor(err) == http.StatusBadRequest {
		status = websocket.StatusUnsupportedData
	}
	_ = writeStream(ctx, conn, StreamMessage{Type: "error", Error: err.Error()})
	conn.Close(status, "simulation failed")
}

func writeStream(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

// streamSink forwards results to a websocket client.
type streamSink struct {
	ctx   context.Context
	conn  *websocket.Conn
	every int
	index int
}

func (ss *streamSink) Begin(labels []string) error {
	return writeStream(ss.ctx, ss.conn, StreamMessage{Type: "begin", Labels: labels})
}

func (ss *streamSink) Write(r simulation.Result) error {
	i := ss.index
	ss.index++
	if i%ss.every != 0 {
		return nil
	}
	return writeStream(ss.ctx, ss.conn, StreamMessage{Type: "portfolio", Index: i, Portfolio: &r})
}

func (ss *streamSink) Commit() error { return nil }
func (ss *streamSink) Abort() error  { return nil }
