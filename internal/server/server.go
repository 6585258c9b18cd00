package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/minhtran2412/loadscope/internal/autoscale"
	"github.com/minhtran2412/loadscope/internal/clock"
	"github.com/minhtran2412/loadscope/internal/config"
	"github.com/minhtran2412/loadscope/internal/metrics"
	"github.com/minhtran2412/loadscope/internal/ratelimit"
)

// Options wires the server's collaborators.
type Options struct {
	// Buffer feeds the metrics endpoints and the dashboard charts.
	Buffer *metrics.Buffer
	// Engine serves the forecast and scaling endpoints.
	Engine *autoscale.Engine
	// Limiter guards the /api/ routes; nil disables rate limiting.
	Limiter *ratelimit.Limiter
	// Hub pushes live updates to dashboard WebSocket clients.
	Hub *Hub
	// BinWidth is the default chart bucket when a request names none.
	BinWidth time.Duration
	Clock    clock.Clock
}

// Server is the loadscope HTTP server: the advisory API plus the live
// dashboard.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux

	buffer   *metrics.Buffer
	engine   *autoscale.Engine
	limiter  *ratelimit.Limiter
	hub      *Hub
	binWidth time.Duration
	clock    clock.Clock
}

// New creates a loadscope server listening on addr once started.
func New(addr string, opts Options) (*Server, error) {
	if opts.Buffer == nil {
		return nil, fmt.Errorf("metrics buffer is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("scaling engine is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	if opts.BinWidth <= 0 {
		opts.BinWidth = time.Minute
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}

	s := &Server{
		mux:      http.NewServeMux(),
		buffer:   opts.Buffer,
		engine:   opts.Engine,
		limiter:  opts.Limiter,
		hub:      opts.Hub,
		binWidth: opts.BinWidth,
		clock:    opts.Clock,
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s, nil
}

// Hub returns the WebSocket hub so sessions can broadcast into it.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/dashboard", s.handleDashboard)
	s.mux.HandleFunc("/dashboard/", s.handleDashboard)
	s.mux.HandleFunc("/ws", s.hub.HandleWebSocket)

	api := http.NewServeMux()
	api.HandleFunc("/api/metrics", s.handleMetrics)
	api.HandleFunc("/api/forecast", s.handleForecast)
	api.HandleFunc("/api/recommend-scaling", s.handleRecommendScaling)
	s.mux.Handle("/api/", RateLimitMiddleware(api, s.limiter, s.clock))
}

// handleRoot serves a service banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "loadscope",
		"status":  "running",
		"time":    s.clock.Now().Format(time.RFC3339),
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleDashboard serves the embedded single-page dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, DashboardHTML)
}

// handleMetrics returns the binned series and trailing rollups over the
// buffered records. The bin width comes from the ?bin= query parameter,
// falling back to the server default.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bin := s.binWidth
	if label := r.URL.Query().Get("bin"); label != "" {
		parsed, err := config.ParseBinWidth(label)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		bin = parsed
	}

	records := s.buffer.Snapshot()
	series := metrics.Series(records, bin)
	if series == nil {
		series = []metrics.MetricPoint{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metricsResponse{
		Rollups:  metrics.Rollups(records),
		Series:   series,
		Buffered: len(records),
		Capacity: s.buffer.Capacity(),
	})
}

type metricsResponse struct {
	Rollups  metrics.Rollup        `json:"rollups"`
	Series   []metrics.MetricPoint `json:"series"`
	Buffered int                   `json:"buffered"`
	Capacity int                   `json:"capacity"`
}

type historyRequest struct {
	History          []metrics.MetricPoint `json:"history"`
	CurrentInstances int                   `json:"current_instances"`
}

// handleForecast projects the posted request-count history forward.
// A history too short to model yields an empty forecast, not an error.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeHistory(w, r)
	if !ok {
		return
	}

	forecast := s.engine.Forecast(req.History)
	if forecast == nil {
		forecast = []float64{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"forecast": forecast,
		"horizon":  len(forecast),
	})
}

// handleRecommendScaling evaluates the posted history against the
// current fleet size and returns the engine's decision.
func (s *Server) handleRecommendScaling(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeHistory(w, r)
	if !ok {
		return
	}

	decision := s.engine.RecommendScaling(req.History, req.CurrentInstances)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decision)
}

func decodeHistory(w http.ResponseWriter, r *http.Request) (historyRequest, bool) {
	var req historyRequest
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parsing request body: %v", err))
		return req, false
	}
	return req, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	log.Printf("loadscope server listening on %s", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	log.Printf("loadscope server listening on %s", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
