package models

import "time"

// EventType enumerates payment lifecycle transitions carried on the stream.
type EventType string

const (
	EventPaymentCreated        EventType = "payment_created"
	EventPaymentSucceeded      EventType = "payment_succeeded"
	EventPaymentFailed         EventType = "payment_failed"
	EventPaymentRequiresAction EventType = "payment_requires_action"
	EventRefundCreated         EventType = "refund_created"
	EventRefundSucceeded       EventType = "refund_succeeded"
	EventRefundFailed          EventType = "refund_failed"
	EventConnectorFailure      EventType = "connector_failure"
	EventFraudDetected         EventType = "fraud_detected"
	EventAnomalyDetected       EventType = "anomaly_detected"
	EventHealthCheck           EventType = "health_check"
	EventResourceScaling       EventType = "resource_scaling"
)

// Payment statuses observed on lifecycle events.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// PaymentEvent is an immutable fact describing one payment lifecycle
// transition. Events are never mutated after creation.
type PaymentEvent struct {
	EventID       string            `json:"event_id"`
	EventType     EventType         `json:"event_type"`
	Timestamp     time.Time         `json:"timestamp"`
	PaymentID     string            `json:"payment_id"`
	MerchantID    string            `json:"merchant_id"`
	Connector     string            `json:"connector,omitempty"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Amount        *int64            `json:"amount,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	Status        string            `json:"status"`
	ErrorCode     string            `json:"error_code,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Succeeded reports whether the event describes a successful payment.
func (e PaymentEvent) Succeeded() bool {
	return e.Status == StatusSucceeded
}

// Failed reports whether the event describes a failed payment.
func (e PaymentEvent) Failed() bool {
	return e.Status == StatusFailed
}
