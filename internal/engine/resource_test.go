package engine

import (
	"testing"
	"time"

	"github.com/paymentstack/autopilot/internal/config"
	"github.com/paymentstack/autopilot/internal/models"
)

func resourceTestConfig() config.ResourceConfig {
	return config.ResourceConfig{
		EnableAutoScaling:        true,
		CPUScaleUpThreshold:      75.0,
		CPUScaleDownThreshold:    30.0,
		MemoryScaleUpThreshold:   80.0,
		MemoryScaleDownThreshold: 40.0,
		MinInstances:             1,
		MaxInstances:             3,
		ScaleCooldown:            5 * time.Minute,
	}
}

func healthSample(cpu, mem float64) models.HealthMetrics {
	return models.HealthMetrics{
		Timestamp:         time.Now().UTC(),
		CPUUsage:          cpu,
		MemoryUsage:       mem,
		ActiveConnections: 100,
		RequestRate:       500,
		AvgResponseTimeMs: 80,
		ErrorRate:         1,
		QueueDepth:        10,
		DBPoolUsage:       40,
		RedisPoolUsage:    30,
	}
}

func TestResourceManagerDisabled(t *testing.T) {
	cfg := resourceTestConfig()
	cfg.EnableAutoScaling = false
	m := NewResourceManager(cfg, nil)

	rec, err := m.Evaluate(healthSample(99, 99))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if rec != nil {
		t.Fatalf("disabled manager returned recommendation %+v, want nil", rec)
	}
}

func TestResourceManagerScaleUp(t *testing.T) {
	m := NewResourceManager(resourceTestConfig(), nil)

	rec, err := m.Evaluate(healthSample(90, 50))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if rec == nil {
		t.Fatal("high CPU produced no recommendation")
	}
	if rec.Direction != models.ScaleUp {
		t.Fatalf("Direction = %s, want %s", rec.Direction, models.ScaleUp)
	}
	if rec.TargetInstances != 2 {
		t.Fatalf("TargetInstances = %d, want 2", rec.TargetInstances)
	}

	if err := m.Apply(*rec); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := m.InstanceCount(); got != 2 {
		t.Fatalf("InstanceCount = %d after apply, want 2", got)
	}
}

func TestResourceManagerScaleUpClampedAtMax(t *testing.T) {
	m := NewResourceManager(resourceTestConfig(), nil)
	m.instances = resourceTestConfig().MaxInstances

	rec, err := m.Evaluate(healthSample(95, 95))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if rec == nil {
		t.Fatal("Evaluate() returned nil")
	}
	if rec.Direction != models.ScaleNoChange {
		t.Fatalf("Direction = %s at max capacity, want %s", rec.Direction, models.ScaleNoChange)
	}
	if rec.TargetInstances != resourceTestConfig().MaxInstances {
		t.Fatalf("TargetInstances = %d, want clamp at %d", rec.TargetInstances, resourceTestConfig().MaxInstances)
	}
}

func TestResourceManagerScaleDown(t *testing.T) {
	m := NewResourceManager(resourceTestConfig(), nil)
	m.instances = 3

	sample := healthSample(10, 20)
	sample.RequestRate = 50

	rec, err := m.Evaluate(sample)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if rec == nil {
		t.Fatal("idle fleet produced no recommendation")
	}
	if rec.Direction != models.ScaleDown {
		t.Fatalf("Direction = %s, want %s", rec.Direction, models.ScaleDown)
	}
	if rec.TargetInstances != 2 {
		t.Fatalf("TargetInstances = %d, want 2", rec.TargetInstances)
	}
}

func TestResourceManagerNeverBelowMin(t *testing.T) {
	m := NewResourceManager(resourceTestConfig(), nil)

	sample := healthSample(5, 10)
	sample.RequestRate = 10

	rec, err := m.Evaluate(sample)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if rec == nil {
		t.Fatal("Evaluate() returned nil")
	}
	if rec.Direction != models.ScaleNoChange {
		t.Fatalf("Direction = %s at min capacity, want %s", rec.Direction, models.ScaleNoChange)
	}
	if got := m.InstanceCount(); got != resourceTestConfig().MinInstances {
		t.Fatalf("InstanceCount = %d, want %d", got, resourceTestConfig().MinInstances)
	}
}

func TestResourceManagerCooldown(t *testing.T) {
	m := NewResourceManager(resourceTestConfig(), nil)
	base := time.Now().UTC()
	m.now = func() time.Time { return base }

	rec, err := m.Evaluate(healthSample(90, 90))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if rec == nil || rec.Direction != models.ScaleUp {
		t.Fatalf("first Evaluate() = %+v, want scale up", rec)
	}
	if err := m.Apply(*rec); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// Inside the cooldown window no further recommendation is produced.
	m.now = func() time.Time { return base.Add(time.Minute) }
	rec, err = m.Evaluate(healthSample(90, 90))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if rec != nil {
		t.Fatalf("Evaluate() inside cooldown = %+v, want nil", rec)
	}

	// After the cooldown expires evaluation resumes.
	m.now = func() time.Time { return base.Add(6 * time.Minute) }
	rec, err = m.Evaluate(healthSample(90, 90))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if rec == nil || rec.Direction != models.ScaleUp {
		t.Fatalf("Evaluate() after cooldown = %+v, want scale up", rec)
	}
}

func TestResourceManagerApplyNoChange(t *testing.T) {
	m := NewResourceManager(resourceTestConfig(), nil)

	rec := models.ScalingRecommendation{Direction: models.ScaleNoChange, TargetInstances: 1, CurrentInstances: 1}
	if err := m.Apply(rec); err != nil {
		t.Fatalf("Apply(no change) error = %v", err)
	}
	if got := len(m.ScalingHistory(0)); got != 0 {
		t.Fatalf("ScalingHistory holds %d events after no-op apply, want 0", got)
	}
}

func TestResourceManagerStatistics(t *testing.T) {
	m := NewResourceManager(resourceTestConfig(), nil)

	rec, err := m.Evaluate(healthSample(90, 90))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if rec == nil {
		t.Fatal("Evaluate() returned nil")
	}
	if err := m.Apply(*rec); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	stats := m.Statistics()
	if stats.CurrentInstances != 2 {
		t.Fatalf("CurrentInstances = %d, want 2", stats.CurrentInstances)
	}
	if stats.TotalScalingEvents != 1 {
		t.Fatalf("TotalScalingEvents = %d, want 1", stats.TotalScalingEvents)
	}
	if stats.ScaleUpEvents != 1 {
		t.Fatalf("ScaleUpEvents = %d, want 1", stats.ScaleUpEvents)
	}
	if !stats.InCooldown {
		t.Fatal("InCooldown = false right after scaling, want true")
	}
	if stats.AvgCPUUsage <= 0 {
		t.Fatalf("AvgCPUUsage = %v, want > 0", stats.AvgCPUUsage)
	}
}
