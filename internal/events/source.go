package events

import (
	"context"

	"github.com/paymentstack/autopilot/internal/models"
)

// Source yields payment lifecycle events for the dispatcher. Next blocks
// until an event is available, the source is drained, or ctx is cancelled.
type Source interface {
	Next(ctx context.Context) (models.PaymentEvent, error)
	Close() error
}
