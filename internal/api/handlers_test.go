package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paymentstack/autopilot/internal/config"
	"github.com/paymentstack/autopilot/internal/health"
	"github.com/paymentstack/autopilot/internal/models"
	"github.com/paymentstack/autopilot/internal/orchestrator"
)

func newTestHandler(t *testing.T) (*Handler, *orchestrator.State) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	state, err := orchestrator.NewState(cfg, nil)
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	t.Cleanup(state.Close)
	return NewHandler(state, health.NewSimulatedSampler(42), nil), state
}

func doRequest(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheckEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp healthCheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Score <= 0 || resp.Score > 100 {
		t.Fatalf("score = %v, want in (0, 100]", resp.Score)
	}
	if resp.Status == "" {
		t.Fatal("status grade is empty")
	}
	if resp.SystemInfo.Service != "autopilot" {
		t.Fatalf("service = %s, want autopilot", resp.SystemInfo.Service)
	}
}

func TestSystemStatusEndpoint(t *testing.T) {
	h, state := newTestHandler(t)
	amount := int64(2000)
	if err := state.Analytics.Observe(models.PaymentEvent{
		EventID: "evt-1", PaymentID: "pay-1", Connector: "stripe",
		Amount: &amount, Status: models.StatusSucceeded,
	}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	rec := doRequest(t, h, http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp systemStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Analytics.TotalEventsProcessed != 1 {
		t.Fatalf("analytics events = %d, want 1", resp.Analytics.TotalEventsProcessed)
	}
	if resp.ResourceManagement.CurrentInstances < 1 {
		t.Fatalf("current instances = %d, want >= 1", resp.ResourceManagement.CurrentInstances)
	}
}

func TestAnomaliesEndpointLimit(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/anomalies?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp []models.AnomalyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 0 {
		t.Fatalf("fresh detector returned %d anomalies, want 0", len(resp))
	}
}

func TestTrainEndpointInsufficientData(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/ml/train", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}

	var resp statusMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "error" {
		t.Fatalf("response status = %s, want error", resp.Status)
	}
}

func TestPredictEndpointValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/analytics/predict", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty metric status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/v1/analytics/predict", `{"metric":"payment_volume"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("no data status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestRouteEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"payment_id":"pay-route-1","payment_method":"card","amount":2500}`
	rec := doRequest(t, h, http.MethodPost, "/api/v1/routing/decide", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var decision models.RoutingDecision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decision.RecommendedConnector == "" {
		t.Fatal("decision has no recommended connector")
	}

	// Same payment id returns the cached decision.
	rec = doRequest(t, h, http.MethodPost, "/api/v1/routing/decide", body)
	var second models.RoutingDecision
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if second.ID != decision.ID {
		t.Fatalf("repeat decision id = %s, want %s", second.ID, decision.ID)
	}
}

func TestRouteEndpointRequiresPaymentID(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/routing/decide", `{"payment_method":"card"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRoutingStatsEndpoint(t *testing.T) {
	h, state := newTestHandler(t)

	if _, err := state.Decision.Route(models.PaymentEvent{PaymentID: "pay-stats"}); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	rec := doRequest(t, h, http.MethodGet, "/api/v1/routing/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp routingStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Model.TrackedConnectors != 0 {
		t.Fatalf("tracked connectors = %d, want 0 before feedback", resp.Model.TrackedConnectors)
	}
	if resp.LatencyP99Ms < resp.LatencyP50Ms {
		t.Fatalf("p99 %.3fms below p50 %.3fms", resp.LatencyP99Ms, resp.LatencyP50Ms)
	}
}

func TestEvaluateScalingEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/resources/evaluate-scaling", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
