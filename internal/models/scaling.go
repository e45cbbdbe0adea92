package models

import "time"

// HealthMetrics is one fleet health sample. Pure value type; no lifecycle
// beyond the sample itself.
type HealthMetrics struct {
	Timestamp         time.Time `json:"timestamp"`
	CPUUsage          float64   `json:"cpu_usage"`
	MemoryUsage       float64   `json:"memory_usage"`
	ActiveConnections uint64    `json:"active_connections"`
	RequestRate       float64   `json:"request_rate"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
	ErrorRate         float64   `json:"error_rate"`
	QueueDepth        int       `json:"queue_depth"`
	DBPoolUsage       float64   `json:"db_pool_usage"`
	RedisPoolUsage    float64   `json:"redis_pool_usage"`
}

// ScalingDirection indicates the resource engine's verdict.
type ScalingDirection string

const (
	ScaleUp       ScalingDirection = "up"
	ScaleDown     ScalingDirection = "down"
	ScaleNoChange ScalingDirection = "no_change"
)

// ScalingRecommendation is the resource engine's current-instances /
// target-instances / direction / reason tuple.
type ScalingRecommendation struct {
	ID               string           `json:"id"`
	Timestamp        time.Time        `json:"timestamp"`
	Direction        ScalingDirection `json:"direction"`
	TargetInstances  int              `json:"target_instances"`
	CurrentInstances int              `json:"current_instances"`
	Reason           string           `json:"reason"`
	ExpectedImpact   string           `json:"expected_impact"`
	AutoApply        bool             `json:"auto_apply"`
}

// ScalingEvent records an applied scaling transition.
type ScalingEvent struct {
	Timestamp     time.Time        `json:"timestamp"`
	Direction     ScalingDirection `json:"direction"`
	FromInstances int              `json:"from_instances"`
	ToInstances   int              `json:"to_instances"`
	Reason        string           `json:"reason"`
}

// ResourceStatistics is a snapshot of scaling activity and fleet load.
type ResourceStatistics struct {
	CurrentInstances   int     `json:"current_instances"`
	TotalScalingEvents int     `json:"total_scaling_events"`
	ScaleUpEvents      int     `json:"scale_up_events"`
	ScaleDownEvents    int     `json:"scale_down_events"`
	AvgCPUUsage        float64 `json:"avg_cpu_usage"`
	AvgMemoryUsage     float64 `json:"avg_memory_usage"`
	InCooldown         bool    `json:"is_in_cooldown"`
}
