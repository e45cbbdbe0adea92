package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/paymentstack/autopilot/internal/health"
	"github.com/paymentstack/autopilot/internal/metrics"
	"github.com/paymentstack/autopilot/internal/models"
	"github.com/paymentstack/autopilot/internal/orchestrator"
	"github.com/paymentstack/autopilot/internal/utils"
)

var json = jsoniter.ConfigFastest

// Version is stamped at build time.
var Version = "dev"

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// Handler serves the control plane's JSON API off orchestrator state.
type Handler struct {
	state   *orchestrator.State
	sampler health.Sampler
	logger  *slog.Logger
}

// NewHandler wires the API handler.
func NewHandler(state *orchestrator.State, sampler health.Sampler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{state: state, sampler: sampler, logger: logger}
}

// Routes builds the API mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", h.healthCheck)
	mux.HandleFunc("GET /api/v1/status", h.systemStatus)
	mux.HandleFunc("GET /api/v1/analytics/summary", h.analyticsSummary)
	mux.HandleFunc("GET /api/v1/anomalies", h.anomalies)
	mux.HandleFunc("GET /api/v1/healing/actions", h.healingActions)
	mux.HandleFunc("GET /api/v1/routing/stats", h.routingStats)
	mux.HandleFunc("GET /api/v1/resources/stats", h.resourceStats)
	mux.HandleFunc("POST /api/v1/ml/train", h.trainModel)
	mux.HandleFunc("POST /api/v1/analytics/predict", h.predict)
	mux.HandleFunc("POST /api/v1/resources/evaluate-scaling", h.evaluateScaling)
	mux.HandleFunc("POST /api/v1/routing/decide", h.routePayment)
	return mux
}

type systemInfo struct {
	Service       string    `json:"service"`
	Version       string    `json:"version"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	StartedAt     time.Time `json:"started_at"`
}

type healthCheckResponse struct {
	Status     health.Status        `json:"status"`
	Score      float64              `json:"score"`
	Metrics    models.HealthMetrics `json:"metrics"`
	SystemInfo systemInfo           `json:"system_info"`
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	sample := h.sampler.Sample()
	score := health.Score(sample)

	uptime := h.state.Uptime()
	h.writeJSON(w, http.StatusOK, healthCheckResponse{
		Status:  health.StatusFor(score),
		Score:   score,
		Metrics: sample,
		SystemInfo: systemInfo{
			Service:       "autopilot",
			Version:       Version,
			UptimeSeconds: int64(uptime.Seconds()),
			StartedAt:     time.Now().UTC().Add(-uptime),
		},
	})
}

type systemStatusResponse struct {
	DecisionEngine     models.ModelStatistics     `json:"decision_engine"`
	AnomalyDetection   models.AnomalyStatistics   `json:"anomaly_detection"`
	SelfHealing        models.HealingStatistics   `json:"self_healing"`
	Analytics          models.AnalyticsStatistics `json:"analytics"`
	ResourceManagement models.ResourceStatistics  `json:"resource_management"`
	HealthScore        float64                    `json:"health_score"`
}

func (h *Handler) systemStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, systemStatusResponse{
		DecisionEngine:     h.state.Decision.ModelStats(),
		AnomalyDetection:   h.state.Anomaly.Statistics(),
		SelfHealing:        h.state.Healing.Statistics(),
		Analytics:          h.state.Analytics.Statistics(),
		ResourceManagement: h.state.Resource.Statistics(),
		HealthScore:        h.state.HealthScore(),
	})
}

func (h *Handler) analyticsSummary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.state.Analytics.Summary())
}

func (h *Handler) anomalies(w http.ResponseWriter, r *http.Request) {
	limit := listLimit(r)
	h.writeJSON(w, http.StatusOK, h.state.Anomaly.Anomalies(limit))
}

func (h *Handler) healingActions(w http.ResponseWriter, r *http.Request) {
	limit := listLimit(r)
	h.writeJSON(w, http.StatusOK, h.state.Healing.ActionHistory(limit))
}

type routingStatsResponse struct {
	Model        models.ModelStatistics `json:"model"`
	LatencyP50Ms float64                `json:"latency_p50_ms"`
	LatencyP95Ms float64                `json:"latency_p95_ms"`
	LatencyP99Ms float64                `json:"latency_p99_ms"`
}

func (h *Handler) routingStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, routingStatsResponse{
		Model:        h.state.Decision.ModelStats(),
		LatencyP50Ms: float64(h.state.Decision.DecisionLatencyPercentile(50)) / float64(time.Millisecond),
		LatencyP95Ms: float64(h.state.Decision.DecisionLatencyPercentile(95)) / float64(time.Millisecond),
		LatencyP99Ms: float64(h.state.Decision.DecisionLatencyPercentile(99)) / float64(time.Millisecond),
	})
}

type resourceStatsResponse struct {
	Statistics     models.ResourceStatistics `json:"statistics"`
	ScalingHistory []models.ScalingEvent     `json:"scaling_history"`
}

func (h *Handler) resourceStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, resourceStatsResponse{
		Statistics:     h.state.Resource.Statistics(),
		ScalingHistory: h.state.Resource.ScalingHistory(20),
	})
}

type statusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handler) trainModel(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("manual model training triggered")

	if err := h.state.Decision.Train(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, utils.ErrInsufficientData) {
			status = http.StatusConflict
		}
		h.writeJSON(w, status, statusMessage{Status: "error", Message: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, statusMessage{Status: "success", Message: "Model training completed successfully"})
}

type predictionRequest struct {
	Metric string `json:"metric"`
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, statusMessage{Status: "error", Message: "invalid request body"})
		return
	}
	if req.Metric == "" {
		h.writeJSON(w, http.StatusBadRequest, statusMessage{Status: "error", Message: "metric is required"})
		return
	}

	result, err := h.state.Analytics.Predict(req.Metric)
	if err != nil {
		h.logger.Error("prediction failed", slog.Any("error", err))
		status := http.StatusInternalServerError
		if errors.Is(err, utils.ErrInsufficientData) {
			status = http.StatusConflict
		}
		h.writeJSON(w, status, statusMessage{Status: "error", Message: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) evaluateScaling(w http.ResponseWriter, r *http.Request) {
	sample := h.sampler.Sample()

	recommendation, err := h.state.Resource.Evaluate(sample)
	if err != nil {
		h.logger.Error("scaling evaluation failed", slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, statusMessage{Status: "error", Message: err.Error()})
		return
	}
	if recommendation == nil {
		h.writeJSON(w, http.StatusOK, statusMessage{Status: "no_action_needed", Message: "System resources are optimal"})
		return
	}
	h.writeJSON(w, http.StatusOK, recommendation)
}

func (h *Handler) routePayment(w http.ResponseWriter, r *http.Request) {
	var event models.PaymentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeJSON(w, http.StatusBadRequest, statusMessage{Status: "error", Message: "invalid request body"})
		return
	}
	if event.PaymentID == "" {
		h.writeJSON(w, http.StatusBadRequest, statusMessage{Status: "error", Message: "payment_id is required"})
		return
	}

	start := time.Now()
	decision, err := h.state.Decision.Route(event)
	if err != nil {
		h.logger.Error("routing failed", slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, statusMessage{Status: "error", Message: err.Error()})
		return
	}
	metrics.ObserveRoutingDecision(time.Since(start))
	h.writeJSON(w, http.StatusOK, decision)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("response encoding failed", slog.Any("error", err))
	}
}

func listLimit(r *http.Request) int {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}
