package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/inkpress/inkpress/internal/jobs"
)

// AccountLockedJob records lockout events for the security audit trail.
type AccountLockedJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAccountLockedJob initialises the lockout handler.
func NewAccountLockedJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *AccountLockedJob {
	return &AccountLockedJob{Logger: logger, Metrics: metrics}
}

// Handle processes TaskAccountLocked tasks.
func (j *AccountLockedJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("account locked: handler not configured")
	}
	var payload AccountLockedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.UserID <= 0 {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskAccountLocked)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, "account locked after repeated failed logins",
		slog.Int64("user_id", payload.UserID),
		slog.String("email", payload.Email),
		slog.Time("locked_at", payload.LockedAt),
	)
	return tracker.End(nil)
}
