package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autopilot",
			Name:      "events_processed_total",
			Help:      "Total payment events dispatched to the engines, partitioned by event type.",
		},
		[]string{"event_type"},
	)

	anomaliesDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autopilot",
			Name:      "anomalies_detected_total",
			Help:      "Total anomalies detected, partitioned by anomaly type.",
		},
		[]string{"anomaly_type"},
	)

	healingActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autopilot",
			Name:      "healing_actions_total",
			Help:      "Total healing actions launched, partitioned by action type.",
		},
		[]string{"action_type"},
	)

	routingDecisionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "autopilot",
			Name:      "routing_decisions_total",
			Help:      "Total routing decisions produced.",
		},
	)

	routingCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "autopilot",
			Name:      "routing_cache_hits_total",
			Help:      "Total routing requests answered from the decision cache.",
		},
	)

	scalingEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autopilot",
			Name:      "scaling_events_total",
			Help:      "Total applied scaling transitions, partitioned by direction.",
		},
		[]string{"direction"},
	)

	routingDecisionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "autopilot",
			Name:      "routing_decision_seconds",
			Help:      "Routing decision latency in seconds.",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		},
	)

	healthScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "autopilot",
			Name:      "health_score",
			Help:      "Latest computed fleet health score (0-100).",
		},
	)

	liveInstances = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "autopilot",
			Name:      "live_instances",
			Help:      "Current live instance count managed by the resource engine.",
		},
	)
)

// Register attaches autopilot collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		eventsProcessedTotal,
		anomaliesDetectedTotal,
		healingActionsTotal,
		routingDecisionsTotal,
		routingCacheHitsTotal,
		scalingEventsTotal,
		routingDecisionSeconds,
		healthScore,
		liveInstances,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveEvent records one dispatched event.
func ObserveEvent(eventType string) {
	eventsProcessedTotal.WithLabelValues(eventType).Inc()
}

// ObserveAnomaly records one detection.
func ObserveAnomaly(anomalyType string) {
	anomaliesDetectedTotal.WithLabelValues(anomalyType).Inc()
}

// ObserveHealingAction records one launched remediation.
func ObserveHealingAction(actionType string) {
	healingActionsTotal.WithLabelValues(actionType).Inc()
}

// ObserveRoutingDecision records one scored decision and its latency.
func ObserveRoutingDecision(duration time.Duration) {
	routingDecisionsTotal.Inc()
	if duration < 0 {
		duration = 0
	}
	routingDecisionSeconds.Observe(duration.Seconds())
}

// ObserveRoutingCacheHit records one cache-served decision.
func ObserveRoutingCacheHit() {
	routingCacheHitsTotal.Inc()
}

// ObserveScalingEvent records one applied transition.
func ObserveScalingEvent(direction string) {
	scalingEventsTotal.WithLabelValues(direction).Inc()
}

// SetHealthScore publishes the latest fleet health score.
func SetHealthScore(score float64) {
	healthScore.Set(score)
}

// SetLiveInstances publishes the current instance count.
func SetLiveInstances(count int) {
	liveInstances.Set(float64(count))
}
