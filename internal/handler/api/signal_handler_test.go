package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/services/agent"
	"FinSignal/internal/services/candles"
	"FinSignal/internal/services/groups"
	"FinSignal/internal/services/regime"
	"FinSignal/internal/usecase"
	xhttp "FinSignal/pkg/http"
	applogger "FinSignal/pkg/logger"
	"FinSignal/pkg/scheduler"
)

type alwaysBuy struct{}

func (alwaysBuy) ID() string { return "always_buy" }

func (alwaysBuy) Evaluate(s models.Series) *models.GroupProposal {
	if s.Len() == 0 {
		return nil
	}
	return &models.GroupProposal{GroupID: "always_buy", Action: models.ActionBuy, Confidence: 70}
}

type nopSink struct{}

func (nopSink) Signal(*models.Signal)         {}
func (nopSink) Outcome(*models.OutcomeRecord) {}
func (nopSink) State(*models.LearningState)   {}

type fixture struct {
	e    *echo.Echo
	orch *usecase.Orchestrator
	h    *SignalHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	v := scheduler.NewVirtual(time.UnixMilli(1_700_000_040_000))
	reg := groups.NewRegistryFrom(alwaysBuy{})
	ag := agent.New(agent.DefaultConfig(), reg.IDs(), agent.WithRand(rand.New(rand.NewSource(3))))
	cfg := usecase.DefaultOrchestratorConfig()
	cfg.Symbol = "EURUSD"
	orch := usecase.NewOrchestrator(cfg, v, candles.NewAggregator(500), regime.NewDetector(), reg, ag, nopSink{})
	q := usecase.NewSignalQuery(orch, ag, nil, "EURUSD")
	h := NewSignalHandler(applogger.Nop(), q, nil, "EURUSD")
	e := echo.New()
	h.RegisterRoutes(e)
	return &fixture{e: e, orch: orch, h: h}
}

func (f *fixture) seed(n int) {
	hist := make([]models.Candle, n)
	base := int64(1_700_000_040_000) - int64(n)*60_000
	for i := range hist {
		p := 1.1 + float64(i)*0.0005
		hist[i] = models.Candle{OpenTime: base + int64(i)*60_000, Open: p, High: p + 0.0004, Low: p - 0.0002, Close: p + 0.0003}
	}
	f.orch.SeedCandles(hist)
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, xhttp.APIResponse) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	var resp xhttp.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, resp
}

func TestAnalyzeLifecycle(t *testing.T) {
	f := newFixture(t)
	if rec, _ := f.do(t, http.MethodPost, "/api/analyze", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("analyze before warmup = %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodGet, "/api/regime", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("regime before analysis = %d", rec.Code)
	}

	f.seed(80)
	rec, resp := f.do(t, http.MethodPost, "/api/analyze", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("analyze = %d %s", rec.Code, rec.Body.String())
	}
	data, _ := resp.Data.(map[string]interface{})
	if data["candidate"] != string(models.ActionBuy) {
		t.Fatalf("candidate = %v", resp.Data)
	}
	if rec, _ := f.do(t, http.MethodPost, "/api/analyze", ""); rec.Code != http.StatusConflict {
		t.Fatalf("second analyze = %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodGet, "/api/regime", ""); rec.Code != http.StatusOK {
		t.Fatalf("regime = %d", rec.Code)
	}
	if rec, resp := f.do(t, http.MethodGet, "/api/status", ""); rec.Code != http.StatusOK || resp.Data.(map[string]interface{})["windowActive"] != true {
		t.Fatalf("status = %d %v", rec.Code, resp.Data)
	}
	f.orch.Stop()
}

func TestLatestSignalNotFound(t *testing.T) {
	f := newFixture(t)
	if rec, _ := f.do(t, http.MethodGet, "/api/signal/latest", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("latest = %d", rec.Code)
	}
}

func TestOutcomeValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing id", `{"result":"WIN"}`, http.StatusBadRequest},
		{"bad result", `{"signalId":"x","result":"DRAW"}`, http.StatusBadRequest},
		{"unknown signal", `{"signalId":"x","result":"WIN"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec, _ := f.do(t, http.MethodPost, "/api/outcome", tt.body); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCandles(t *testing.T) {
	f := newFixture(t)
	f.seed(30)
	rec, resp := f.do(t, http.MethodGet, "/api/candles?n=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("candles = %d", rec.Code)
	}
	if got := len(resp.Data.([]interface{})); got != 5 {
		t.Fatalf("got %d candles", got)
	}
	if rec, _ := f.do(t, http.MethodGet, "/api/candles?n=0", ""); rec.Code != http.StatusOK {
		// n=0 takes the default
		t.Fatalf("n=0 = %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodGet, "/api/candles?n=5000", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("n=5000 = %d", rec.Code)
	}

	from := time.UnixMilli(1_700_000_040_000 - 10*60_000).UTC().Format(time.RFC3339)
	rec, resp = f.do(t, http.MethodGet, "/api/candles?n=100&from="+from+"&to=1700000040000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ranged candles = %d %s", rec.Code, rec.Body.String())
	}
	if got := len(resp.Data.([]interface{})); got != 10 {
		t.Fatalf("ranged got %d candles, want 10", got)
	}
	if rec, _ := f.do(t, http.MethodGet, "/api/candles?from=soon", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad from = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	if rec, _ := f.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	f.h.AddHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	rec, resp := f.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded healthz = %d", rec.Code)
	}
	checks := resp.Data.(map[string]interface{})["checks"].(map[string]interface{})
	if checks["redis"] != "connection refused" {
		t.Fatalf("checks = %v", checks)
	}
}

func TestAgentStats(t *testing.T) {
	f := newFixture(t)
	rec, resp := f.do(t, http.MethodGet, "/api/agent", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("agent = %d", rec.Code)
	}
	if resp.Data.(map[string]interface{})["epsilon"] != 0.3 {
		t.Fatalf("agent = %v", resp.Data)
	}
}
