package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/paymentstack/autopilot/internal/events"
	"github.com/paymentstack/autopilot/internal/health"
	"github.com/paymentstack/autopilot/internal/metrics"
	"github.com/paymentstack/autopilot/internal/models"
	"github.com/paymentstack/autopilot/internal/storage"
)

// Dispatcher drives the control loop: it pulls events from the source,
// fans each one out to the engines, and runs the periodic health sampling
// that feeds the resource manager. Engine failures are logged and skipped;
// one engine's error never starves the others of the event.
type Dispatcher struct {
	state    *State
	source   events.Source
	sampler  health.Sampler
	archiver storage.Archiver
	logger   *slog.Logger

	pollInterval   time.Duration
	sampleInterval time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewDispatcher wires the control loop. A nil archiver degrades to no-op
// archiving.
func NewDispatcher(state *State, source events.Source, sampler health.Sampler, archiver storage.Archiver, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if archiver == nil {
		archiver = storage.NoopArchiver{}
	}
	return &Dispatcher{
		state:          state,
		source:         source,
		sampler:        sampler,
		archiver:       archiver,
		logger:         logger,
		pollInterval:   state.Config.Dispatcher.PollInterval,
		sampleInterval: state.Config.Dispatcher.SampleInterval,
	}
}

// Start launches the event loop and the health sampling loop.
func (d *Dispatcher) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(2)
	go d.eventLoop(loopCtx)
	go d.sampleLoop(loopCtx)

	d.logger.Info("dispatcher started",
		slog.Duration("poll_interval", d.pollInterval),
		slog.Duration("sample_interval", d.sampleInterval),
	)
}

// Stop halts both loops and waits for them to drain.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) eventLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			event, err := d.source.Next(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				d.logger.Warn("event source failed", slog.Any("error", err))
				continue
			}
			d.Dispatch(event)
		}
	}
}

// Dispatch fans one event out to every engine.
func (d *Dispatcher) Dispatch(event models.PaymentEvent) {
	metrics.ObserveEvent(string(event.EventType))

	if result, err := d.state.Anomaly.Observe(event); err != nil {
		d.logger.Warn("anomaly detection failed", slog.Any("error", err))
	} else if result != nil {
		metrics.ObserveAnomaly(string(result.AnomalyType))
		d.archiver.ArchiveAnomaly(*result)
	}

	if err := d.state.Analytics.Observe(event); err != nil {
		d.logger.Warn("analytics processing failed", slog.Any("error", err))
	}

	if action, err := d.state.Healing.Evaluate(event); err != nil {
		d.logger.Warn("self-healing evaluation failed", slog.Any("error", err))
	} else if action != nil {
		metrics.ObserveHealingAction(string(action.ActionType))
		d.archiver.ArchiveHealingAction(*action)
	}

	d.feedbackPerformance(event)
}

// feedbackPerformance folds terminal payment outcomes back into the
// decision engine's connector counters.
func (d *Dispatcher) feedbackPerformance(event models.PaymentEvent) {
	if event.Connector == "" {
		return
	}
	if !event.Succeeded() && !event.Failed() {
		return
	}

	var latency uint64
	if raw, ok := event.Metadata["latency_ms"]; ok {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			latency = parsed
		}
	}
	d.state.Decision.UpdatePerformance(event.Connector, event.Succeeded(), latency)
}

func (d *Dispatcher) sampleLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sampleOnce()
		}
	}
}

// sampleOnce takes one health sample, refreshes the metrics cache, and
// lets the resource manager act on it.
func (d *Dispatcher) sampleOnce() {
	sample := d.sampler.Sample()
	score := health.Score(sample)
	metrics.SetHealthScore(score)

	summary := d.state.Analytics.Summary()
	now := time.Now().UTC()
	d.state.UpdateMetricsCache(MetricsCache{
		PaymentSuccessRate: summary.SuccessRate,
		AvgLatencyMs:       sample.AvgResponseTimeMs,
		ActivePayments:     summary.TotalPayments - summary.SuccessfulPayments - summary.FailedPayments,
		HealthScore:        score,
		LastUpdated:        &now,
	})

	recommendation, err := d.state.Resource.Evaluate(sample)
	if err != nil {
		d.logger.Warn("scaling evaluation failed", slog.Any("error", err))
		return
	}
	if recommendation == nil || recommendation.Direction == models.ScaleNoChange {
		metrics.SetLiveInstances(d.state.Resource.InstanceCount())
		return
	}

	if err := d.state.Resource.Apply(*recommendation); err != nil {
		d.logger.Warn("scaling apply failed", slog.Any("error", err))
		return
	}
	metrics.ObserveScalingEvent(string(recommendation.Direction))
	metrics.SetLiveInstances(d.state.Resource.InstanceCount())

	d.archiver.ArchiveScalingEvent(models.ScalingEvent{
		Timestamp:     now,
		Direction:     recommendation.Direction,
		FromInstances: recommendation.CurrentInstances,
		ToInstances:   recommendation.TargetInstances,
		Reason:        recommendation.Reason,
	})
}
