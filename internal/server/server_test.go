package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minhtran2412/loadscope/internal/autoscale"
	"github.com/minhtran2412/loadscope/internal/clock"
	"github.com/minhtran2412/loadscope/internal/logdata"
	"github.com/minhtran2412/loadscope/internal/metrics"
	"github.com/minhtran2412/loadscope/internal/ratelimit"
	"github.com/minhtran2412/loadscope/internal/storage"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func startTestServer(t *testing.T, opts Options) (string, *Server) {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = clock.NewVirtualClock(epoch)
	}
	if opts.Buffer == nil {
		opts.Buffer, _ = metrics.NewBuffer(100)
	}
	if opts.Engine == nil {
		eng, err := autoscale.NewEngine(autoscale.DefaultConfig(), opts.Clock)
		if err != nil {
			t.Fatal(err)
		}
		opts.Engine = eng
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv, err := New(ln.Addr().String(), opts)
	if err != nil {
		t.Fatal(err)
	}
	go srv.StartOnListener(ln)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return "http://" + ln.Addr().String(), srv
}

func steadyHistory(value, n int) []metrics.MetricPoint {
	points := make([]metrics.MetricPoint, n)
	for i := range points {
		points[i] = metrics.MetricPoint{
			Timestamp:    epoch.Add(time.Duration(i) * time.Minute),
			RequestCount: value,
		}
	}
	return points
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestServer_Root(t *testing.T) {
	baseURL, _ := startTestServer(t, Options{})

	resp, err := http.Get(baseURL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["service"] != "loadscope" {
		t.Errorf("service = %q, want %q", body["service"], "loadscope")
	}
}

func TestServer_Health(t *testing.T) {
	baseURL, _ := startTestServer(t, Options{})

	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_NotFound(t *testing.T) {
	baseURL, _ := startTestServer(t, Options{})

	resp, err := http.Get(baseURL + "/nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_Dashboard(t *testing.T) {
	baseURL, _ := startTestServer(t, Options{})

	resp, err := http.Get(baseURL + "/dashboard")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
}

func TestServer_Metrics(t *testing.T) {
	buf, _ := metrics.NewBuffer(100)
	buf.AddBatch([]logdata.Record{
		{Timestamp: epoch, Status: 200, Bytes: 100},
		{Timestamp: epoch.Add(10 * time.Second), Status: 500, Bytes: 50},
	})
	baseURL, _ := startTestServer(t, Options{Buffer: buf})

	resp, err := http.Get(baseURL + "/api/metrics?bin=5m")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Rollups  metrics.Rollup        `json:"rollups"`
		Series   []metrics.MetricPoint `json:"series"`
		Buffered int                   `json:"buffered"`
	}
	json.NewDecoder(resp.Body).Decode(&body)

	if body.Buffered != 2 {
		t.Errorf("buffered = %d, want 2", body.Buffered)
	}
	if len(body.Series) != 1 || body.Series[0].RequestCount != 2 {
		t.Errorf("series = %+v, want one bin holding both records", body.Series)
	}
	if body.Rollups.ErrorRate != 0.5 {
		t.Errorf("error rate = %v, want 0.5", body.Rollups.ErrorRate)
	}
}

func TestServer_Metrics_EmptyBuffer(t *testing.T) {
	baseURL, _ := startTestServer(t, Options{})

	resp, err := http.Get(baseURL + "/api/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	json.NewDecoder(resp.Body).Decode(&body)
	if string(body["series"]) != "[]" {
		t.Errorf("series = %s, want [] not null", body["series"])
	}
}

func TestServer_Metrics_BadBin(t *testing.T) {
	baseURL, _ := startTestServer(t, Options{})

	resp, err := http.Get(baseURL + "/api/metrics?bin=2m")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_Forecast(t *testing.T) {
	baseURL, _ := startTestServer(t, Options{})

	resp := postJSON(t, baseURL+"/api/forecast", map[string]any{
		"history": steadyHistory(100, 20),
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Forecast []float64 `json:"forecast"`
		Horizon  int       `json:"horizon"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Horizon != autoscale.DefaultHorizon || len(body.Forecast) != autoscale.DefaultHorizon {
		t.Errorf("forecast = %v (horizon %d), want %d values", body.Forecast, body.Horizon, autoscale.DefaultHorizon)
	}
}

func TestServer_Forecast_ShortHistory(t *testing.T) {
	baseURL, _ := startTestServer(t, Options{})

	resp := postJSON(t, baseURL+"/api/forecast", map[string]any{
		"history": steadyHistory(100, 3),
	})
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	json.NewDecoder(resp.Body).Decode(&body)
	if string(body["forecast"]) != "[]" {
		t.Errorf("forecast = %s, want [] not null", body["forecast"])
	}
}

func TestServer_Forecast_RejectsGet(t *testing.T) {
	baseURL, _ := startTestServer(t, Options{})

	resp, err := http.Get(baseURL + "/api/forecast")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestServer_Forecast_BadBody(t *testing.T) {
	baseURL, _ := startTestServer(t, Options{})

	resp, err := http.Post(baseURL+"/api/forecast", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_RecommendScaling(t *testing.T) {
	baseURL, _ := startTestServer(t, Options{})

	resp := postJSON(t, baseURL+"/api/recommend-scaling", map[string]any{
		"history":           steadyHistory(1500, 20),
		"current_instances": 1,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var decision autoscale.Decision
	json.NewDecoder(resp.Body).Decode(&decision)
	if decision.Action != autoscale.ActionScaleOut {
		t.Errorf("action = %q, want SCALE_OUT", decision.Action)
	}
	if decision.SuggestedInstances != 2 {
		t.Errorf("suggested instances = %d, want 2", decision.SuggestedInstances)
	}
}

func TestServer_RateLimitOnAPI(t *testing.T) {
	clk := clock.NewVirtualClock(epoch)
	lim, err := ratelimit.New(storage.NewMemoryStorage(clk), 2, time.Minute, clk)
	if err != nil {
		t.Fatal(err)
	}
	baseURL, _ := startTestServer(t, Options{Limiter: lim, Clock: clk})

	// A fixed forwarded address keeps the limiter key stable even if the
	// client opens new connections between requests.
	get := func() *http.Response {
		req, err := http.NewRequest(http.MethodGet, baseURL+"/api/metrics", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	for i := 0; i < 2; i++ {
		resp := get()
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, resp.StatusCode)
		}
	}

	resp := get()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}

	// The dashboard and health stay reachable past the limit.
	resp, err = http.Get(baseURL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_WebSocketBroadcast(t *testing.T) {
	baseURL, srv := startTestServer(t, Options{})

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Registration races the dial returning; wait for the hub to see it.
	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("hub never registered the client")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.Hub().Broadcast(Update{
		Type:      "metrics",
		SessionID: "abc123",
		Rollups:   metrics.Rollup{RequestRate: 4.5},
		Processed: 90,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update Update
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatal(err)
	}
	if update.SessionID != "abc123" || update.Processed != 90 {
		t.Errorf("update = %+v", update)
	}
	if update.Rollups.RequestRate != 4.5 {
		t.Errorf("request rate = %v, want 4.5", update.Rollups.RequestRate)
	}
}

func TestNew_Validation(t *testing.T) {
	eng, _ := autoscale.NewEngine(autoscale.DefaultConfig(), nil)
	buf, _ := metrics.NewBuffer(10)

	if _, err := New(":0", Options{Engine: eng}); err == nil {
		t.Error("missing buffer should be rejected")
	}
	if _, err := New(":0", Options{Buffer: buf}); err == nil {
		t.Error("missing engine should be rejected")
	}
}
