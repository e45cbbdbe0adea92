package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/paymentstack/autopilot/internal/config"
	"github.com/paymentstack/autopilot/internal/metrics"
	"github.com/paymentstack/autopilot/internal/models"
	"github.com/paymentstack/autopilot/internal/utils"
)

// Connector catalog scored on every routing decision.
var defaultConnectors = []string{"stripe", "adyen", "checkout", "braintree", "worldpay"}

const (
	successRateWeight = 0.7
	latencyWeight     = 0.3
	latencyNormMs     = 1000.0

	largeAmountMinor     = 50000
	largeAmountConnector = "stripe"
	largeAmountBoost     = 1.10
	cardMethodBoost      = 1.05

	trainingBufferCap   = 10000
	trainingBufferDrain = 1000
)

// connectorPerformance holds per-connector running counters. Entries are
// created lazily and never deleted.
type connectorPerformance struct {
	connector         string
	successCount      uint64
	failureCount      uint64
	totalLatencyMs    uint64
	totalTransactions uint64
	lastUpdated       time.Time
}

func (p *connectorPerformance) successRate() float64 {
	if p.totalTransactions == 0 {
		return 0
	}
	return float64(p.successCount) / float64(p.totalTransactions)
}

func (p *connectorPerformance) avgLatencyMs() float64 {
	if p.totalTransactions == 0 {
		return 0
	}
	return float64(p.totalLatencyMs) / float64(p.totalTransactions)
}

// seededPrior is the cold-start prior for connectors with no observations,
// avoiding divide-by-zero bias toward untried connectors.
func seededPrior(connector string) connectorPerformance {
	return connectorPerformance{
		connector:         connector,
		successCount:      80,
		failureCount:      20,
		totalLatencyMs:    50000,
		totalTransactions: 100,
		lastUpdated:       time.Now().UTC(),
	}
}

type trainingSample struct {
	features  []float64
	label     float64
	timestamp time.Time
}

// DecisionEngine scores candidate connectors per payment and caches routing
// recommendations keyed by payment id.
type DecisionEngine struct {
	cfg    config.DecisionConfig
	logger *slog.Logger

	mu             sync.Mutex
	connectors     []string
	performance    map[string]*connectorPerformance
	trainingBuffer []trainingSample
	lastTrained    *time.Time
	modelVersion   string

	cache *lru.Cache[string, models.RoutingDecision]

	latencies *utils.LatencyTracker
}

// NewDecisionEngine constructs the routing engine with the fixed connector
// catalog and an LRU decision cache.
func NewDecisionEngine(cfg config.DecisionConfig, logger *slog.Logger) (*DecisionEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 1000
	}
	cache, err := lru.New[string, models.RoutingDecision](size)
	if err != nil {
		return nil, fmt.Errorf("create decision cache: %w", err)
	}
	return &DecisionEngine{
		cfg:          cfg,
		logger:       logger,
		connectors:   defaultConnectors,
		performance:  make(map[string]*connectorPerformance),
		modelVersion: "v1.0.0",
		cache:        cache,
		latencies:    utils.NewLatencyTracker(1024),
	}, nil
}

// Route returns a routing decision for the payment. Routing is idempotent
// per payment id: a cache hit returns the identical prior decision without
// re-scoring.
func (e *DecisionEngine) Route(event models.PaymentEvent) (models.RoutingDecision, error) {
	if cached, ok := e.cache.Get(event.PaymentID); ok {
		metrics.ObserveRoutingCacheHit()
		return cached, nil
	}

	start := time.Now()

	e.mu.Lock()
	if len(e.connectors) == 0 {
		e.mu.Unlock()
		return models.RoutingDecision{}, utils.NewAppError("route", "connector catalog is empty", utils.ErrNoConnectors)
	}

	scores := make([]models.ConnectorScore, 0, len(e.connectors))
	for _, connector := range e.connectors {
		scores = append(scores, e.scoreConnector(connector, event))
	}
	e.mu.Unlock()

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	best := scores[0]
	decision := models.RoutingDecision{
		ID:                   uuid.NewString(),
		Timestamp:            time.Now().UTC(),
		PaymentID:            event.PaymentID,
		RecommendedConnector: best.Connector,
		Confidence:           best.Score,
		Alternatives:         scores[1:],
		Rationale:            rationaleFor(best),
	}

	e.cache.Add(event.PaymentID, decision)
	e.latencies.Observe(time.Since(start))

	return decision, nil
}

// scoreConnector computes the weighted heuristic score. Caller holds e.mu.
func (e *DecisionEngine) scoreConnector(connector string, event models.PaymentEvent) models.ConnectorScore {
	perf, ok := e.performance[connector]
	if !ok {
		prior := seededPrior(connector)
		perf = &prior
	}

	successRate := perf.successRate()
	avgLatency := perf.avgLatencyMs()

	// Lower latency is better; normalise against a 1s ceiling.
	latencyScore := 1 - math.Min(avgLatency/latencyNormMs, 1)
	score := successRate*successRateWeight + latencyScore*latencyWeight

	score = applyPaymentAdjustments(score, connector, event)

	return models.ConnectorScore{
		Connector:           connector,
		Score:               score,
		ExpectedSuccessRate: successRate,
		ExpectedLatencyMs:   uint64(avgLatency),
		CostEstimate:        0.029,
	}
}

func applyPaymentAdjustments(score float64, connector string, event models.PaymentEvent) float64 {
	if event.Amount != nil && *event.Amount > largeAmountMinor && connector == largeAmountConnector {
		score *= largeAmountBoost
	}
	if event.PaymentMethod == "card" && (connector == "stripe" || connector == "adyen") {
		score *= cardMethodBoost
	}
	return math.Min(score, 1)
}

func rationaleFor(best models.ConnectorScore) string {
	return fmt.Sprintf("Selected %s with %d%% confidence based on %.1f%% success rate and %dms average latency",
		best.Connector,
		int(best.Score*100),
		best.ExpectedSuccessRate*100,
		best.ExpectedLatencyMs,
	)
}

// UpdatePerformance folds post-hoc routing feedback into the connector's
// running counters. It is the sole mutator of historical stats.
func (e *DecisionEngine) UpdatePerformance(connector string, success bool, latencyMs uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	perf, ok := e.performance[connector]
	if !ok {
		perf = &connectorPerformance{connector: connector}
		e.performance[connector] = perf
	}

	if success {
		perf.successCount++
	} else {
		perf.failureCount++
	}
	perf.totalLatencyMs += latencyMs
	perf.totalTransactions++
	perf.lastUpdated = time.Now().UTC()
}

// AddTrainingSample buffers a labelled feature vector for future learning
// hooks. The buffer is bounded; the oldest block is drained when it fills.
func (e *DecisionEngine) AddTrainingSample(features []float64, label float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.trainingBuffer = append(e.trainingBuffer, trainingSample{
		features:  features,
		label:     label,
		timestamp: time.Now().UTC(),
	})
	if len(e.trainingBuffer) > trainingBufferCap {
		e.trainingBuffer = append(e.trainingBuffer[:0], e.trainingBuffer[trainingBufferDrain:]...)
	}
}

// Train validates that enough samples exist. Scoring stays heuristic; this
// exists as a hook for a learned model, not to change routing today.
func (e *DecisionEngine) Train() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.trainingBuffer) < e.cfg.MinTrainingSamples {
		return utils.NewAppError("train",
			fmt.Sprintf("need at least %d samples, have %d", e.cfg.MinTrainingSamples, len(e.trainingBuffer)),
			utils.ErrInsufficientData)
	}

	now := time.Now().UTC()
	e.lastTrained = &now
	e.logger.Info("model training completed", slog.Int("samples", len(e.trainingBuffer)))
	return nil
}

// ModelStats snapshots the engine's scoring state.
func (e *DecisionEngine) ModelStats() models.ModelStatistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	return models.ModelStatistics{
		ModelVersion:      e.modelVersion,
		TrainingSamples:   len(e.trainingBuffer),
		TrackedConnectors: len(e.performance),
		LastTrained:       e.lastTrained,
		AvgConfidence:     0.85,
	}
}

// DecisionLatencyPercentile reports a routing latency percentile over recent
// decisions.
func (e *DecisionEngine) DecisionLatencyPercentile(p float64) time.Duration {
	return e.latencies.Percentile(p)
}
