package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketpulse/deepsignal/config"
	"github.com/marketpulse/deepsignal/internal/signal"
	"github.com/marketpulse/deepsignal/internal/store"
)

// Server exposes the deep-analysis engine over HTTP.
type Server struct {
	cfg    *config.Config
	graph  *signal.Graph
	store  store.SignalStore
	logger *log.Logger
	// sem bounds concurrent deep analyses; each run holds several backend
	// round trips and tool calls.
	sem chan struct{}
}

// New builds the HTTP server around an assembled graph and store.
func New(cfg *config.Config, graph *signal.Graph, st store.SignalStore) *Server {
	maxConc := cfg.Server.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 8
	}
	return &Server{
		cfg:    cfg,
		graph:  graph,
		store:  st,
		logger: log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
		sem:    make(chan struct{}, maxConc),
	}
}

// Run blocks serving HTTP until the listener fails.
func (s *Server) Run(addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.GET("/signals/:id", s.handleGetSignal)

	return e.Start(addr)
}

// AnalyzeRequest is the intake payload: the event plus its preliminary
// classification from the upstream pipeline.
type AnalyzeRequest struct {
	Event       signal.EventPayload        `json:"event"`
	Preliminary signal.PreliminaryAnalysis `json:"preliminary"`
}

// AnalyzeResponse wraps the synthesized signal with its storage ID.
type AnalyzeResponse struct {
	SignalID string              `json:"signal_id"`
	Signal   *signal.FinalSignal `json:"signal"`
}

func (s *Server) handleAnalyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Event.Text == "" && req.Event.Translated == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "event text required")
	}
	if req.Event.ID == "" {
		req.Event.ID = uuid.NewString()
	}
	if req.Event.ReceivedAt.IsZero() {
		req.Event.ReceivedAt = time.Now().UTC()
	}

	ctx := c.Request().Context()

	fresh, err := s.store.MarkProcessed(ctx, req.Event.ID, 72*time.Hour)
	if err != nil {
		s.logger.Printf("dedupe check failed for event %s, proceeding: %v", req.Event.ID, err)
	} else if !fresh {
		return echo.NewHTTPError(http.StatusConflict,
			fmt.Sprintf("event %s already analyzed", req.Event.ID))
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return echo.NewHTTPError(http.StatusServiceUnavailable, "analysis capacity exhausted")
	}

	final, err := s.graph.Run(ctx, req.Event, req.Preliminary)
	if err != nil {
		// A failed analysis must stay retryable: drop the dedupe marker so a
		// transient backend failure does not blackhole the event for the TTL.
		if fresh {
			if cerr := s.store.ClearProcessed(ctx, req.Event.ID); cerr != nil {
				s.logger.Printf("unmarking failed event %s: %v", req.Event.ID, cerr)
			}
		}
		if signal.IsTimeout(err) {
			return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	rec, err := buildRecord(req.Event, final)
	if err != nil {
		return err
	}
	if err := s.store.SaveSignal(ctx, rec); err != nil {
		// The signal is still returned; persistence is best effort here.
		s.logger.Printf("saving signal for event %s failed: %v", req.Event.ID, err)
	}

	return c.JSON(http.StatusOK, AnalyzeResponse{SignalID: rec.ID, Signal: final})
}

func (s *Server) handleGetSignal(c echo.Context) error {
	rec, err := s.store.GetSignal(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "signal not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func buildRecord(event signal.EventPayload, final *signal.FinalSignal) (store.SignalRecord, error) {
	b, err := json.Marshal(final)
	if err != nil {
		return store.SignalRecord{}, fmt.Errorf("encoding signal: %w", err)
	}
	return store.SignalRecord{
		ID:         uuid.NewString(),
		EventID:    event.ID,
		EventType:  final.EventType,
		Asset:      final.Asset,
		Action:     final.Action,
		Direction:  final.Direction,
		Confidence: final.Confidence,
		RiskFlags:  final.RiskFlags,
		Signal:     b,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Assemble wires config into a running graph plus store, shared by the serve
// and analyze commands.
func Assemble(ctx context.Context, cfg *config.Config) (*signal.Graph, store.SignalStore, error) {
	st, err := store.NewStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	graph, err := BuildGraphWithStore(cfg, st)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return graph, st, nil
}
