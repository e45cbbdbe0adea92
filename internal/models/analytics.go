package models

import "time"

// TimeSeriesPoint is a timestamped scalar observation.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ConnectorStats is a derived per-connector aggregate row.
type ConnectorStats struct {
	Connector         string  `json:"connector"`
	TotalTransactions uint64  `json:"total_transactions"`
	SuccessRate       float64 `json:"success_rate"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
	TotalAmount       int64   `json:"total_amount"`
}

// PaymentMethodStats is a derived per-method aggregate row.
type PaymentMethodStats struct {
	PaymentMethod     string  `json:"payment_method"`
	TotalTransactions uint64  `json:"total_transactions"`
	SuccessRate       float64 `json:"success_rate"`
	TotalAmount       int64   `json:"total_amount"`
}

// AnalyticsSummary is derived from current aggregate state; it is
// recomputable at any time and never authoritative on its own.
type AnalyticsSummary struct {
	PeriodStart        time.Time            `json:"period_start"`
	PeriodEnd          time.Time            `json:"period_end"`
	TotalPayments      uint64               `json:"total_payments"`
	SuccessfulPayments uint64               `json:"successful_payments"`
	FailedPayments     uint64               `json:"failed_payments"`
	SuccessRate        float64              `json:"success_rate"`
	TotalAmount        int64                `json:"total_amount"`
	AvgAmount          float64              `json:"avg_amount"`
	TopConnectors      []ConnectorStats     `json:"top_connectors"`
	TopPaymentMethods  []PaymentMethodStats `json:"top_payment_methods"`
	AnomaliesDetected  int                  `json:"anomalies_detected"`
	HealingActions     int                  `json:"healing_actions_taken"`
}

// PredictionResult carries a forecast for one metric. The projection is a
// smoothing heuristic, not a trained model; ModelAccuracy is a fixed nominal
// figure.
type PredictionResult struct {
	ID                 string            `json:"id"`
	Timestamp          time.Time         `json:"timestamp"`
	Metric             string            `json:"metric"`
	Predictions        []TimeSeriesPoint `json:"predictions"`
	ConfidenceInterval [2]float64        `json:"confidence_interval"`
	ModelAccuracy      float64           `json:"model_accuracy"`
}

// AnalyticsStatistics is a snapshot of the analytics engine's internals.
type AnalyticsStatistics struct {
	TotalEventsProcessed uint64 `json:"total_events_processed"`
	UniqueConnectors     int    `json:"unique_connectors"`
	UniquePaymentMethods int    `json:"unique_payment_methods"`
	TimeSeriesPoints     int    `json:"time_series_points"`
	DataFreshnessSeconds int64  `json:"data_freshness_seconds"`
}
