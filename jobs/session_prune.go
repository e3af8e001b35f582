package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/inkpress/inkpress/internal/jobs"
)

const defaultSessionRetention = 30 * 24 * time.Hour

// SessionPruner removes session records created before a cutoff.
type SessionPruner interface {
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PGSessionPruner deletes sessions from Postgres.
type PGSessionPruner struct {
	pool *pgxpool.Pool
}

// NewPGSessionPruner constructs the Postgres pruner.
func NewPGSessionPruner(pool *pgxpool.Pool) *PGSessionPruner {
	return &PGSessionPruner{pool: pool}
}

// DeleteSessionsBefore implements SessionPruner.
func (p *PGSessionPruner) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if p == nil || p.pool == nil {
		return 0, errors.New("session prune: pool not configured")
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SessionPruneJob trims the sessions table on a schedule.
type SessionPruneJob struct {
	Pruner  SessionPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSessionPruneJob initialises the prune handler.
func NewSessionPruneJob(pruner SessionPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPruneJob {
	return &SessionPruneJob{
		Pruner:  pruner,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the prune.
func (j *SessionPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pruner == nil {
		return errors.New("session prune: handler not configured")
	}
	var payload SessionPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = defaultSessionRetention
	}

	tracker := j.Metrics.Track(TaskSessionPrune)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cutoff := j.clock().Add(-retention)
	removed, err := j.Pruner.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		logger.Error("session prune failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddPruned(removed)
	logger.Info("pruned sessions", slog.Int64("removed", removed), slog.Time("cutoff", cutoff))
	return tracker.End(nil)
}
