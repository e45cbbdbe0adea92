package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paymentstack/autopilot/internal/config"
	"github.com/paymentstack/autopilot/internal/models"
)

// Archiver persists engine findings for offline analysis. Archiving is
// best-effort: the control loop never blocks on it.
type Archiver interface {
	ArchiveAnomaly(result models.AnomalyResult)
	ArchiveHealingAction(action models.HealingAction)
	ArchiveScalingEvent(event models.ScalingEvent)
	Close()
}

// NoopArchiver discards everything. Used when storage is disabled.
type NoopArchiver struct{}

func (NoopArchiver) ArchiveAnomaly(models.AnomalyResult)       {}
func (NoopArchiver) ArchiveHealingAction(models.HealingAction) {}
func (NoopArchiver) ArchiveScalingEvent(models.ScalingEvent)   {}
func (NoopArchiver) Close()                                    {}

type record struct {
	anomaly *models.AnomalyResult
	healing *models.HealingAction
	scaling *models.ScalingEvent
}

// PostgresArchiver batches findings into Postgres. Writes accumulate in a
// buffered channel and flush on size or on a timer; a full buffer drops
// the incoming record rather than blocking the control loop.
type PostgresArchiver struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	buffer chan record
	flush  time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

const archiveBatchSize = 256

// NewPostgresArchiver connects to Postgres and starts the flush loop.
func NewPostgresArchiver(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*PostgresArchiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	flushEvery := cfg.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 100 * time.Millisecond
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	a := &PostgresArchiver{
		pool:   pool,
		logger: logger,
		buffer: make(chan record, 10000),
		flush:  flushEvery,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go a.run(loopCtx)
	return a, nil
}

// ArchiveAnomaly queues an anomaly row.
func (a *PostgresArchiver) ArchiveAnomaly(result models.AnomalyResult) {
	a.enqueue(record{anomaly: &result})
}

// ArchiveHealingAction queues a healing action row.
func (a *PostgresArchiver) ArchiveHealingAction(action models.HealingAction) {
	a.enqueue(record{healing: &action})
}

// ArchiveScalingEvent queues a scaling event row.
func (a *PostgresArchiver) ArchiveScalingEvent(event models.ScalingEvent) {
	a.enqueue(record{scaling: &event})
}

func (a *PostgresArchiver) enqueue(r record) {
	select {
	case a.buffer <- r:
	default:
		a.logger.Warn("archive buffer full, dropping record")
	}
}

func (a *PostgresArchiver) run(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.flush)
	defer ticker.Stop()

	var batch []record
	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				a.write(batch)
			}
			return
		case r := <-a.buffer:
			batch = append(batch, r)
			if len(batch) >= archiveBatchSize {
				a.write(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.write(batch)
				batch = nil
			}
		}
	}
}

func (a *PostgresArchiver) write(records []record) {
	batch := &pgx.Batch{}
	for _, r := range records {
		switch {
		case r.anomaly != nil:
			batch.Queue(
				`INSERT INTO anomalies (id, detected_at, anomaly_type, score, entity_id, details)
				 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`,
				r.anomaly.ID, r.anomaly.Timestamp, string(r.anomaly.AnomalyType),
				r.anomaly.Score, r.anomaly.EntityID, r.anomaly.Details,
			)
		case r.healing != nil:
			batch.Queue(
				`INSERT INTO healing_actions (id, started_at, action_type, target, status, result_message, recovery_time_ms)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (id) DO UPDATE SET status = $5, result_message = $6, recovery_time_ms = $7`,
				r.healing.ID, r.healing.Timestamp, string(r.healing.ActionType),
				r.healing.Target, string(r.healing.Status), r.healing.ResultMessage, r.healing.RecoveryTimeMs,
			)
		case r.scaling != nil:
			batch.Queue(
				`INSERT INTO scaling_events (occurred_at, direction, from_instances, to_instances, reason)
				 VALUES ($1, $2, $3, $4, $5)`,
				r.scaling.Timestamp, string(r.scaling.Direction),
				r.scaling.FromInstances, r.scaling.ToInstances, r.scaling.Reason,
			)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	br := a.pool.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		a.logger.Error("archive batch failed",
			slog.Int("records", len(records)),
			slog.Any("error", err),
		)
	}
}

// Close stops the flush loop after a final drain and releases the pool.
func (a *PostgresArchiver) Close() {
	a.cancel()
	<-a.done
	a.pool.Close()
}
