package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paymentstack/autopilot/internal/config"
	"github.com/paymentstack/autopilot/internal/models"
	"github.com/paymentstack/autopilot/internal/utils"
)

const (
	metricsHistorySize = 1000
	scalingHistorySize = 100

	requestRateUpThreshold   = 1000.0
	requestRateDownThreshold = 100.0
	errorRateUpThreshold     = 5.0
	queueDepthUpThreshold    = 100
)

// ResourceManager evaluates scaling recommendations from fleet health
// samples, enforcing a cooldown between applied transitions.
type ResourceManager struct {
	cfg    config.ResourceConfig
	logger *slog.Logger

	mu             sync.Mutex
	instances      int
	metricsHistory *utils.Ring[models.HealthMetrics]
	scalingHistory *utils.Ring[models.ScalingEvent]
	lastScaling    *time.Time

	now func() time.Time
}

// NewResourceManager constructs the scaling engine, starting at the minimum
// instance count.
func NewResourceManager(cfg config.ResourceConfig, logger *slog.Logger) *ResourceManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceManager{
		cfg:            cfg,
		logger:         logger,
		instances:      cfg.MinInstances,
		metricsHistory: utils.NewRing[models.HealthMetrics](metricsHistorySize),
		scalingHistory: utils.NewRing[models.ScalingEvent](scalingHistorySize),
		now:            time.Now,
	}
}

// Evaluate folds the sample into history and returns a recommendation, or
// nil while auto-scaling is disabled or the cooldown is active.
func (m *ResourceManager) Evaluate(metrics models.HealthMetrics) (*models.ScalingRecommendation, error) {
	if !m.cfg.EnableAutoScaling {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.metricsHistory.Push(metrics)

	if m.inCooldown() {
		return nil, nil
	}

	recommendation := m.analyzeMetrics(metrics, m.instances)

	if recommendation.Direction != models.ScaleNoChange {
		m.logger.Info("scaling recommendation",
			slog.String("direction", string(recommendation.Direction)),
			slog.Int("from", m.instances),
			slog.Int("to", recommendation.TargetInstances),
			slog.String("reason", recommendation.Reason),
		)
	}

	return &recommendation, nil
}

// analyzeMetrics applies the additive up/down scoring scheme. Caller holds m.mu.
func (m *ResourceManager) analyzeMetrics(metrics models.HealthMetrics, current int) models.ScalingRecommendation {
	var reasons []string
	upScore := 0
	downScore := 0

	if metrics.CPUUsage > m.cfg.CPUScaleUpThreshold {
		upScore += 2
		reasons = append(reasons, fmt.Sprintf("High CPU usage: %.1f%%", metrics.CPUUsage))
	} else if metrics.CPUUsage < m.cfg.CPUScaleDownThreshold {
		downScore++
		reasons = append(reasons, fmt.Sprintf("Low CPU usage: %.1f%%", metrics.CPUUsage))
	}

	if metrics.MemoryUsage > m.cfg.MemoryScaleUpThreshold {
		upScore += 2
		reasons = append(reasons, fmt.Sprintf("High memory usage: %.1f%%", metrics.MemoryUsage))
	} else if metrics.MemoryUsage < m.cfg.MemoryScaleDownThreshold {
		downScore++
		reasons = append(reasons, fmt.Sprintf("Low memory usage: %.1f%%", metrics.MemoryUsage))
	}

	if metrics.RequestRate > requestRateUpThreshold {
		upScore++
		reasons = append(reasons, fmt.Sprintf("High request rate: %.1f req/s", metrics.RequestRate))
	} else if metrics.RequestRate < requestRateDownThreshold {
		downScore++
		reasons = append(reasons, fmt.Sprintf("Low request rate: %.1f req/s", metrics.RequestRate))
	}

	if metrics.ErrorRate > errorRateUpThreshold {
		upScore++
		reasons = append(reasons, fmt.Sprintf("High error rate: %.1f%%", metrics.ErrorRate))
	}

	if metrics.QueueDepth > queueDepthUpThreshold {
		upScore += 2
		reasons = append(reasons, fmt.Sprintf("High queue depth: %d", metrics.QueueDepth))
	}

	direction := models.ScaleNoChange
	target := current
	reason := "No scaling needed"

	switch {
	case upScore >= 2:
		target = current + 1
		if target > m.cfg.MaxInstances {
			target = m.cfg.MaxInstances
		}
		if target > current {
			direction = models.ScaleUp
		}
		reason = strings.Join(reasons, "; ")
	case downScore >= 2 && current > m.cfg.MinInstances:
		target = current - 1
		if target < m.cfg.MinInstances {
			target = m.cfg.MinInstances
		}
		direction = models.ScaleDown
		reason = strings.Join(reasons, "; ")
	}

	impact := "No impact"
	switch direction {
	case models.ScaleUp:
		impact = "Increased capacity, improved response times, reduced error rate"
	case models.ScaleDown:
		impact = "Reduced costs, maintained service levels"
	}

	return models.ScalingRecommendation{
		ID:               uuid.NewString(),
		Timestamp:        m.now().UTC(),
		Direction:        direction,
		TargetInstances:  target,
		CurrentInstances: current,
		Reason:           reason,
		ExpectedImpact:   impact,
		AutoApply:        m.cfg.EnableAutoScaling,
	}
}

// Apply executes a scaling transition. It is the only mutator of the live
// instance count and of the cooldown timestamp.
func (m *ResourceManager) Apply(recommendation models.ScalingRecommendation) error {
	if recommendation.Direction == models.ScaleNoChange {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.instances
	m.instances = recommendation.TargetInstances

	m.scalingHistory.Push(models.ScalingEvent{
		Timestamp:     m.now().UTC(),
		Direction:     recommendation.Direction,
		FromInstances: old,
		ToInstances:   recommendation.TargetInstances,
		Reason:        recommendation.Reason,
	})

	now := m.now().UTC()
	m.lastScaling = &now

	m.logger.Info("scaling applied",
		slog.Int("from", old),
		slog.Int("to", recommendation.TargetInstances),
	)
	return nil
}

// inCooldown reports whether a prior applied scaling is still cooling down.
// Caller holds m.mu.
func (m *ResourceManager) inCooldown() bool {
	if m.lastScaling == nil {
		return false
	}
	return m.now().UTC().Sub(*m.lastScaling) < m.cfg.ScaleCooldown
}

// InstanceCount returns the current live instance count.
func (m *ResourceManager) InstanceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instances
}

// ScalingHistory returns up to limit applied transitions, most recent first.
func (m *ResourceManager) ScalingHistory(limit int) []models.ScalingEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scalingHistory.Recent(limit)
}

// Statistics summarises scaling activity and average observed load.
func (m *ResourceManager) Statistics() models.ResourceStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	upEvents := 0
	downEvents := 0
	for i := 0; i < m.scalingHistory.Len(); i++ {
		switch m.scalingHistory.At(i).Direction {
		case models.ScaleUp:
			upEvents++
		case models.ScaleDown:
			downEvents++
		}
	}

	cpuSum := 0.0
	memSum := 0.0
	n := m.metricsHistory.Len()
	for i := 0; i < n; i++ {
		sample := m.metricsHistory.At(i)
		cpuSum += sample.CPUUsage
		memSum += sample.MemoryUsage
	}

	stats := models.ResourceStatistics{
		CurrentInstances:   m.instances,
		TotalScalingEvents: m.scalingHistory.Len(),
		ScaleUpEvents:      upEvents,
		ScaleDownEvents:    downEvents,
		InCooldown:         m.inCooldown(),
	}
	if n > 0 {
		stats.AvgCPUUsage = cpuSum / float64(n)
		stats.AvgMemoryUsage = memSum / float64(n)
	}
	return stats
}
