package orchestrator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paymentstack/autopilot/internal/config"
	"github.com/paymentstack/autopilot/internal/engine"
	"github.com/paymentstack/autopilot/internal/health"
)

// Session tracks one API consumer's activity window.
type Session struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// MetricsCache holds the most recent derived fleet gauges for cheap reads
// from the status endpoints.
type MetricsCache struct {
	PaymentSuccessRate float64    `json:"payment_success_rate"`
	AvgLatencyMs       float64    `json:"avg_latency_ms"`
	ActivePayments     uint64     `json:"active_payments"`
	HealthScore        float64    `json:"health_score"`
	LastUpdated        *time.Time `json:"last_updated,omitempty"`
}

// State owns the five engines and the shared caches the API reads from.
// Engines synchronise internally; State adds no locking around them.
type State struct {
	Config *config.Config

	Anomaly   *engine.AnomalyDetector
	Decision  *engine.DecisionEngine
	Healing   *engine.SelfHealer
	Resource  *engine.ResourceManager
	Analytics *engine.AnalyticsEngine

	mu       sync.RWMutex
	sessions map[string]Session
	cache    MetricsCache

	startedAt time.Time
}

// NewState constructs all engines from configuration.
func NewState(cfg *config.Config, logger *slog.Logger) (*State, error) {
	if logger == nil {
		logger = slog.Default()
	}

	decision, err := engine.NewDecisionEngine(cfg.Decision, logger)
	if err != nil {
		return nil, fmt.Errorf("init decision engine: %w", err)
	}
	healing, err := engine.NewSelfHealer(cfg.Healing, logger)
	if err != nil {
		return nil, fmt.Errorf("init self healer: %w", err)
	}

	return &State{
		Config:    cfg,
		Anomaly:   engine.NewAnomalyDetector(cfg.Anomaly, logger),
		Decision:  decision,
		Healing:   healing,
		Resource:  engine.NewResourceManager(cfg.Resource, logger),
		Analytics: engine.NewAnalyticsEngine(cfg.Analytics, logger),
		sessions:  make(map[string]Session),
		startedAt: time.Now().UTC(),
	}, nil
}

// Close releases engine resources.
func (s *State) Close() {
	s.Healing.Close()
}

// Uptime reports time since state construction.
func (s *State) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// UpdateMetricsCache replaces the cached fleet gauges.
func (s *State) UpdateMetricsCache(cache MetricsCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = cache
}

// MetricsSnapshot returns the cached fleet gauges.
func (s *State) MetricsSnapshot() MetricsCache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}

// HealthScore returns the last computed fleet health score.
func (s *State) HealthScore() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.HealthScore
}

// HealthStatus grades the cached health score.
func (s *State) HealthStatus() health.Status {
	return health.StatusFor(s.HealthScore())
}

// CreateSession registers a new session and returns its id.
func (s *State) CreateSession() string {
	now := time.Now().UTC()
	session := Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		LastActivity: now,
		Metadata:     make(map[string]string),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return session.ID
}

// Session returns the session by id.
func (s *State) Session(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// TouchSession refreshes the session's activity timestamp.
func (s *State) TouchSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		session.LastActivity = time.Now().UTC()
		s.sessions[id] = session
	}
}

// CleanupSessions drops sessions idle longer than maxAge and reports how
// many were removed.
func (s *State) CleanupSessions(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		if session.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// SessionCount reports the number of live sessions.
func (s *State) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
