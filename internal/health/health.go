package health

import (
	"math/rand"
	"sync"
	"time"

	"github.com/paymentstack/autopilot/internal/models"
)

// Sampler produces fleet health samples for the resource manager.
type Sampler interface {
	Sample() models.HealthMetrics
}

// SimulatedSampler synthesises plausible fleet gauges. It stands in for
// real collectors (proc stats, pool gauges, queue depth probes) in local
// development.
type SimulatedSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedSampler creates a sampler from the given seed.
func NewSimulatedSampler(seed int64) *SimulatedSampler {
	return &SimulatedSampler{rng: rand.New(rand.NewSource(seed))}
}

// Sample returns one synthetic health sample.
func (s *SimulatedSampler) Sample() models.HealthMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.HealthMetrics{
		Timestamp:         time.Now().UTC(),
		CPUUsage:          40 + s.rng.Float64()*30,
		MemoryUsage:       50 + s.rng.Float64()*20,
		ActiveConnections: uint64(100 + s.rng.Float64()*50),
		RequestRate:       200 + s.rng.Float64()*100,
		AvgResponseTimeMs: 50 + s.rng.Float64()*50,
		ErrorRate:         s.rng.Float64() * 5,
		QueueDepth:        int(s.rng.Float64() * 50),
		DBPoolUsage:       30 + s.rng.Float64()*40,
		RedisPoolUsage:    20 + s.rng.Float64()*30,
	}
}

// Score condenses a sample into a 0-100 health score. Penalties accumulate
// for load above the normal operating envelope.
func Score(metrics models.HealthMetrics) float64 {
	score := 100.0

	if metrics.CPUUsage > 80 {
		score -= metrics.CPUUsage - 80
	}
	if metrics.MemoryUsage > 85 {
		score -= metrics.MemoryUsage - 85
	}
	score -= metrics.ErrorRate * 5
	if metrics.AvgResponseTimeMs > 500 {
		score -= (metrics.AvgResponseTimeMs - 500) / 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Status grades a health score.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusCritical  Status = "critical"
)

// StatusFor maps a score onto a status grade.
func StatusFor(score float64) Status {
	switch {
	case score >= 90:
		return StatusHealthy
	case score >= 70:
		return StatusDegraded
	case score >= 50:
		return StatusUnhealthy
	default:
		return StatusCritical
	}
}
