package models

import "time"

// AnomalyType classifies a detection.
type AnomalyType string

const (
	AnomalyVolumeSpike     AnomalyType = "volume_spike"
	AnomalyVolumeDrop      AnomalyType = "volume_drop"
	AnomalyHighFailureRate AnomalyType = "high_failure_rate"
	AnomalyUnusualPattern  AnomalyType = "unusual_pattern"
	AnomalyPotentialFraud  AnomalyType = "potential_fraud"
)

// AnomalyResult records a single detection. Results are append-only; once
// stored in history they are never mutated.
type AnomalyResult struct {
	ID                 string      `json:"id"`
	Timestamp          time.Time   `json:"timestamp"`
	IsAnomaly          bool        `json:"is_anomaly"`
	Score              float64     `json:"score"`
	AnomalyType        AnomalyType `json:"anomaly_type"`
	EntityID           string      `json:"entity_id"`
	Details            string      `json:"details"`
	RecommendedActions []string    `json:"recommended_actions"`
}

// AnomalyStatistics is a point-in-time snapshot of detection history.
type AnomalyStatistics struct {
	TotalDetected   int     `json:"total_detected"`
	DetectedLast24h int     `json:"detected_last_24h"`
	AvgScore        float64 `json:"avg_score"`
	MostCommonType  string  `json:"most_common_type,omitempty"`
}
