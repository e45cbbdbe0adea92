package events

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paymentstack/autopilot/internal/models"
)

var (
	simulatedConnectors = []string{"stripe", "adyen", "checkout", "braintree"}
	simulatedMethods    = []string{"card", "wallet", "bank_transfer"}
)

// Simulator synthesises payment lifecycle events. It stands in for the
// real event stream in local development and in tests.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a simulator from the given seed.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// Next returns a synthetic event. It never blocks beyond ctx cancellation.
func (s *Simulator) Next(ctx context.Context) (models.PaymentEvent, error) {
	if err := ctx.Err(); err != nil {
		return models.PaymentEvent{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eventType := []models.EventType{
		models.EventPaymentCreated,
		models.EventPaymentSucceeded,
		models.EventPaymentFailed,
	}[s.rng.Intn(3)]

	amount := int64(s.rng.Intn(99000) + 1000)
	event := models.PaymentEvent{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		PaymentID:     "pay_" + uuid.NewString(),
		MerchantID:    fmt.Sprintf("merchant_%d", s.rng.Intn(99)+1),
		Connector:     simulatedConnectors[s.rng.Intn(len(simulatedConnectors))],
		PaymentMethod: simulatedMethods[s.rng.Intn(len(simulatedMethods))],
		Amount:        &amount,
		Currency:      "USD",
	}

	switch eventType {
	case models.EventPaymentSucceeded:
		event.Status = models.StatusSucceeded
	case models.EventPaymentFailed:
		event.Status = models.StatusFailed
		event.ErrorCode = "card_declined"
		event.ErrorMessage = "Card was declined"
	default:
		event.Status = "processing"
	}

	return event, nil
}

// Close is a no-op; the simulator holds no resources.
func (s *Simulator) Close() error { return nil }
