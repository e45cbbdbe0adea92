package engine

import (
	"errors"
	"testing"

	"github.com/paymentstack/autopilot/internal/config"
	"github.com/paymentstack/autopilot/internal/models"
	"github.com/paymentstack/autopilot/internal/utils"
)

func decisionTestConfig() config.DecisionConfig {
	return config.DecisionConfig{
		MinTrainingSamples:  5,
		ConfidenceThreshold: 0.75,
		CacheSize:           100,
	}
}

func routingEvent(paymentID, method string, amount int64) models.PaymentEvent {
	return models.PaymentEvent{
		EventID:       "evt-" + paymentID,
		EventType:     models.EventPaymentCreated,
		PaymentID:     paymentID,
		MerchantID:    "merch-test",
		PaymentMethod: method,
		Amount:        &amount,
		Currency:      "USD",
	}
}

func TestDecisionEngineRoute(t *testing.T) {
	e, err := NewDecisionEngine(decisionTestConfig(), nil)
	if err != nil {
		t.Fatalf("NewDecisionEngine() error = %v", err)
	}

	decision, err := e.Route(routingEvent("pay-1", "card", 1000))
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.RecommendedConnector == "" {
		t.Fatal("decision has no recommended connector")
	}
	if decision.Confidence <= 0 {
		t.Fatalf("Confidence = %v, want > 0", decision.Confidence)
	}
	if len(decision.Alternatives) != len(defaultConnectors)-1 {
		t.Fatalf("got %d alternatives, want %d", len(decision.Alternatives), len(defaultConnectors)-1)
	}
	for _, alt := range decision.Alternatives {
		if alt.Score > decision.Confidence {
			t.Fatalf("alternative %s scored %v above recommended %v", alt.Connector, alt.Score, decision.Confidence)
		}
	}
}

func TestDecisionEngineRouteIdempotent(t *testing.T) {
	e, err := NewDecisionEngine(decisionTestConfig(), nil)
	if err != nil {
		t.Fatalf("NewDecisionEngine() error = %v", err)
	}

	first, err := e.Route(routingEvent("pay-same", "card", 1000))
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	// Performance churn between calls must not rewrite the cached decision.
	e.UpdatePerformance(first.RecommendedConnector, false, 5000)
	e.UpdatePerformance(first.RecommendedConnector, false, 5000)

	second, err := e.Route(routingEvent("pay-same", "card", 1000))
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("repeat Route() produced new decision %s, want cached %s", second.ID, first.ID)
	}
	if second.RecommendedConnector != first.RecommendedConnector {
		t.Fatalf("repeat Route() connector = %s, want %s", second.RecommendedConnector, first.RecommendedConnector)
	}
}

func TestDecisionEnginePerformanceFeedback(t *testing.T) {
	e, err := NewDecisionEngine(decisionTestConfig(), nil)
	if err != nil {
		t.Fatalf("NewDecisionEngine() error = %v", err)
	}

	for i := 0; i < 200; i++ {
		e.UpdatePerformance("stripe", false, 900)
		e.UpdatePerformance("worldpay", true, 50)
	}

	decision, err := e.Route(routingEvent("pay-feedback", "bank_transfer", 1000))
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.RecommendedConnector != "worldpay" {
		t.Fatalf("RecommendedConnector = %s, want worldpay after feedback", decision.RecommendedConnector)
	}
}

func TestDecisionEngineLargeAmountPrefersStripe(t *testing.T) {
	e, err := NewDecisionEngine(decisionTestConfig(), nil)
	if err != nil {
		t.Fatalf("NewDecisionEngine() error = %v", err)
	}

	decision, err := e.Route(routingEvent("pay-large", "bank_transfer", 75000))
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.RecommendedConnector != "stripe" {
		t.Fatalf("RecommendedConnector = %s, want stripe for large amounts", decision.RecommendedConnector)
	}
}

func TestDecisionEngineTrain(t *testing.T) {
	e, err := NewDecisionEngine(decisionTestConfig(), nil)
	if err != nil {
		t.Fatalf("NewDecisionEngine() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		e.AddTrainingSample([]float64{1, 0, float64(i)}, 1)
	}
	if err := e.Train(); !errors.Is(err, utils.ErrInsufficientData) {
		t.Fatalf("Train() with 3 samples error = %v, want ErrInsufficientData", err)
	}

	for i := 0; i < 2; i++ {
		e.AddTrainingSample([]float64{0, 1, float64(i)}, 0)
	}
	if err := e.Train(); err != nil {
		t.Fatalf("Train() with 5 samples error = %v", err)
	}

	stats := e.ModelStats()
	if stats.TrainingSamples != 5 {
		t.Fatalf("TrainingSamples = %d, want 5", stats.TrainingSamples)
	}
	if stats.LastTrained == nil {
		t.Fatal("LastTrained not set after successful training")
	}
}

func TestDecisionEngineModelStats(t *testing.T) {
	e, err := NewDecisionEngine(decisionTestConfig(), nil)
	if err != nil {
		t.Fatalf("NewDecisionEngine() error = %v", err)
	}

	e.UpdatePerformance("stripe", true, 120)
	e.UpdatePerformance("adyen", false, 300)

	stats := e.ModelStats()
	if stats.ModelVersion == "" {
		t.Fatal("ModelVersion is empty")
	}
	if stats.TrackedConnectors != 2 {
		t.Fatalf("TrackedConnectors = %d, want 2", stats.TrackedConnectors)
	}
	if stats.LastTrained != nil {
		t.Fatalf("LastTrained = %v before any training, want nil", stats.LastTrained)
	}
}
