package models

import "time"

// ConnectorScore holds one connector's adjusted score within a routing
// decision.
type ConnectorScore struct {
	Connector           string  `json:"connector"`
	Score               float64 `json:"score"`
	ExpectedSuccessRate float64 `json:"expected_success_rate"`
	ExpectedLatencyMs   uint64  `json:"expected_latency_ms"`
	CostEstimate        float64 `json:"cost_estimate,omitempty"`
}

// RoutingDecision is the decision engine's output for one payment. Decisions
// are immutable once produced; they are superseded only by cache eviction.
type RoutingDecision struct {
	ID                   string           `json:"id"`
	Timestamp            time.Time        `json:"timestamp"`
	PaymentID            string           `json:"payment_id"`
	RecommendedConnector string           `json:"recommended_connector"`
	Confidence           float64          `json:"confidence"`
	Alternatives         []ConnectorScore `json:"alternatives"`
	Rationale            string           `json:"rationale"`
	WasCorrect           *bool            `json:"was_correct,omitempty"`
}

// ModelStatistics is a snapshot of the decision engine's scoring state.
type ModelStatistics struct {
	ModelVersion      string     `json:"model_version"`
	TrainingSamples   int        `json:"training_samples"`
	TrackedConnectors int        `json:"tracked_connectors"`
	LastTrained       *time.Time `json:"last_trained,omitempty"`
	AvgConfidence     float64    `json:"avg_confidence"`
}
