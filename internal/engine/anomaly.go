package engine

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paymentstack/autopilot/internal/config"
	"github.com/paymentstack/autopilot/internal/models"
	"github.com/paymentstack/autopilot/internal/utils"
)

const anomalyHistorySize = 1000

// Detection thresholds. Volume ratios compare the most recent span against
// the baseline rate; the success-rate drop is absolute.
const (
	volumeRatioThreshold    = 2.0
	successRateDropLimit    = 0.2
	amountZScoreThreshold   = 3.0
	fraudHighAmountMinor    = 100000
	fraudHighAmountWeight   = 0.3
	fraudCardDeclinedWeight = 0.2
)

// AnomalyDetector maintains rolling windows of volume, success-rate, amount
// and latency signals and flags statistical deviations. Per-engine state is
// guarded by a single mutex; no other engine's lock is ever taken.
type AnomalyDetector struct {
	cfg    config.AnomalyConfig
	logger *slog.Logger

	mu           sync.Mutex
	volumes      *utils.Ring[models.TimeSeriesPoint]
	successRates *utils.Ring[models.TimeSeriesPoint]
	amounts      *utils.Ring[models.TimeSeriesPoint]
	latencies    *utils.Ring[models.TimeSeriesPoint]
	history      *utils.Ring[models.AnomalyResult]
}

// NewAnomalyDetector constructs a detector whose windows hold one slot per
// second of the configured window.
func NewAnomalyDetector(cfg config.AnomalyConfig, logger *slog.Logger) *AnomalyDetector {
	if logger == nil {
		logger = slog.Default()
	}
	capacity := cfg.WindowSizeMinutes * 60
	return &AnomalyDetector{
		cfg:          cfg,
		logger:       logger,
		volumes:      utils.NewRing[models.TimeSeriesPoint](capacity),
		successRates: utils.NewRing[models.TimeSeriesPoint](capacity),
		amounts:      utils.NewRing[models.TimeSeriesPoint](capacity),
		latencies:    utils.NewRing[models.TimeSeriesPoint](capacity),
		history:      utils.NewRing[models.AnomalyResult](anomalyHistorySize),
	}
}

// Observe folds the event into the rolling windows, runs all detectors, and
// returns the single highest-scoring result, if any fired.
func (d *AnomalyDetector) Observe(event models.PaymentEvent) (*models.AnomalyResult, error) {
	if !d.cfg.Enabled {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.updateWindows(event)

	candidates := make([]*models.AnomalyResult, 0, 4)
	if r := d.detectVolumeAnomaly(); r != nil {
		candidates = append(candidates, r)
	}
	if r := d.detectSuccessRateAnomaly(); r != nil {
		candidates = append(candidates, r)
	}
	if d.cfg.EnableFraudDetection {
		if r := d.detectFraudPattern(event); r != nil {
			candidates = append(candidates, r)
		}
	}
	if r := d.detectAmountAnomaly(event); r != nil {
		candidates = append(candidates, r)
	}

	var best *models.AnomalyResult
	for _, c := range candidates {
		if best == nil || c.Score > best.Score {
			best = c
		}
	}

	if best != nil {
		d.history.Push(*best)
		d.logger.Warn("anomaly detected",
			slog.String("type", string(best.AnomalyType)),
			slog.Float64("score", best.Score),
			slog.String("entity", best.EntityID),
		)
	}

	return best, nil
}

func (d *AnomalyDetector) updateWindows(event models.PaymentEvent) {
	now := time.Now().UTC()

	d.volumes.Push(models.TimeSeriesPoint{Timestamp: now, Value: 1})

	success := 0.0
	if event.Succeeded() {
		success = 1
	}
	d.successRates.Push(models.TimeSeriesPoint{Timestamp: now, Value: success})

	if event.Amount != nil {
		d.amounts.Push(models.TimeSeriesPoint{Timestamp: now, Value: float64(*event.Amount)})
	}

	if raw, ok := event.Metadata["latency_ms"]; ok {
		if latency, err := strconv.ParseFloat(raw, 64); err == nil {
			d.latencies.Push(models.TimeSeriesPoint{Timestamp: now, Value: latency})
		}
	}
}

func (d *AnomalyDetector) detectVolumeAnomaly() *models.AnomalyResult {
	n := d.volumes.Len()
	if n < 10 {
		return nil
	}

	recent := 0.0
	for i := n - 5; i < n; i++ {
		recent += d.volumes.At(i).Value
	}

	earlier := 0.0
	for i := 0; i < n-5; i++ {
		earlier += d.volumes.At(i).Value
	}
	// Baseline is the mean per-point rate of earlier points scaled to the
	// recent five-point span.
	baseline := earlier / float64(n-5) * 5

	ratio := recent / math.Max(baseline, 1)

	switch {
	case ratio > volumeRatioThreshold:
		return &models.AnomalyResult{
			ID:          uuid.NewString(),
			Timestamp:   time.Now().UTC(),
			IsAnomaly:   true,
			Score:       math.Min((ratio-1)/volumeRatioThreshold, 1),
			AnomalyType: models.AnomalyVolumeSpike,
			EntityID:    "system",
			Details:     fmt.Sprintf("Payment volume spike detected: %.1fx increase", ratio),
			RecommendedActions: []string{
				"Monitor system resources",
				"Check for potential DDoS",
				"Scale up infrastructure if needed",
			},
		}
	case ratio < 1/volumeRatioThreshold:
		return &models.AnomalyResult{
			ID:          uuid.NewString(),
			Timestamp:   time.Now().UTC(),
			IsAnomaly:   true,
			Score:       math.Min(1-ratio, 1),
			AnomalyType: models.AnomalyVolumeDrop,
			EntityID:    "system",
			Details:     fmt.Sprintf("Payment volume drop detected: %.1fx decrease", 1/ratio),
			RecommendedActions: []string{
				"Check payment gateway connectivity",
				"Verify API availability",
				"Contact merchants to confirm issue",
			},
		}
	}
	return nil
}

func (d *AnomalyDetector) detectSuccessRateAnomaly() *models.AnomalyResult {
	n := d.successRates.Len()
	if n < 20 {
		return nil
	}

	recent := 0.0
	for i := n - 10; i < n; i++ {
		recent += d.successRates.At(i).Value
	}
	recent /= 10

	baseline := 0.0
	for i := 0; i < n-10; i++ {
		baseline += d.successRates.At(i).Value
	}
	baseline /= float64(n - 10)

	drop := baseline - recent
	if drop <= successRateDropLimit {
		return nil
	}

	return &models.AnomalyResult{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		IsAnomaly:   true,
		Score:       math.Min(drop/successRateDropLimit, 1),
		AnomalyType: models.AnomalyHighFailureRate,
		EntityID:    "system",
		Details: fmt.Sprintf("High failure rate detected: success rate dropped from %.1f%% to %.1f%%",
			baseline*100, recent*100),
		RecommendedActions: []string{
			"Investigate connector issues",
			"Check for card network problems",
			"Review recent configuration changes",
			"Enable fallback routing",
		},
	}
}

func (d *AnomalyDetector) detectFraudPattern(event models.PaymentEvent) *models.AnomalyResult {
	score := 0.0
	var reasons []string

	if event.Amount != nil && *event.Amount > fraudHighAmountMinor {
		score += fraudHighAmountWeight
		reasons = append(reasons, "High transaction amount")
	}
	if event.ErrorCode == "card_declined" {
		score += fraudCardDeclinedWeight
		reasons = append(reasons, "Multiple card declines")
	}

	if score <= d.cfg.Sensitivity {
		return nil
	}

	details := "Potential fraud detected"
	if len(reasons) > 0 {
		details = fmt.Sprintf("Potential fraud detected: %s", strings.Join(reasons, ", "))
	}

	return &models.AnomalyResult{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		IsAnomaly:   true,
		Score:       score,
		AnomalyType: models.AnomalyPotentialFraud,
		EntityID:    event.PaymentID,
		Details:     details,
		RecommendedActions: []string{
			"Flag for manual review",
			"Apply additional verification",
			"Monitor merchant activity",
		},
	}
}

func (d *AnomalyDetector) detectAmountAnomaly(event models.PaymentEvent) *models.AnomalyResult {
	if event.Amount == nil {
		return nil
	}
	n := d.amounts.Len()
	if n < 20 {
		return nil
	}

	values := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		values = append(values, d.amounts.At(i).Value)
	}
	mean := utils.Mean(values)
	stdDev := utils.StdDev(values)

	// Floor the deviation to avoid blow-up on near-constant windows.
	z := math.Abs(float64(*event.Amount)-mean) / math.Max(stdDev, 1)
	if z <= amountZScoreThreshold {
		return nil
	}

	return &models.AnomalyResult{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		IsAnomaly:   true,
		Score:       math.Min(z/5, 1),
		AnomalyType: models.AnomalyUnusualPattern,
		EntityID:    event.PaymentID,
		Details: fmt.Sprintf("Unusual payment amount: $%.2f (mean: $%.2f, z-score: %.1f)",
			float64(*event.Amount)/100, mean/100, z),
		RecommendedActions: []string{
			"Review transaction details",
			"Verify merchant legitimacy",
		},
	}
}

// Anomalies returns up to limit detections, most recent first.
func (d *AnomalyDetector) Anomalies(limit int) []models.AnomalyResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.Recent(limit)
}

// Statistics summarises detection history.
func (d *AnomalyDetector) Statistics() models.AnomalyStatistics {
	d.mu.Lock()
	defer d.mu.Unlock()

	total := d.history.Len()
	recent := 0
	scoreSum := 0.0
	typeCounts := make(map[models.AnomalyType]int)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	for i := 0; i < total; i++ {
		a := d.history.At(i)
		if a.Timestamp.After(cutoff) {
			recent++
		}
		scoreSum += a.Score
		typeCounts[a.AnomalyType]++
	}

	stats := models.AnomalyStatistics{
		TotalDetected:   total,
		DetectedLast24h: recent,
	}
	if total > 0 {
		stats.AvgScore = scoreSum / float64(total)
	}

	best := 0
	for t, count := range typeCounts {
		if count > best {
			best = count
			stats.MostCommonType = string(t)
		}
	}
	return stats
}

