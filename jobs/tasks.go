package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAccountLocked is enqueued when an account reaches the failed login limit.
	TaskAccountLocked = "auth:account_locked"
	// TaskSessionPrune deletes login session records past retention.
	TaskSessionPrune = "auth:sessions_prune"
)

// AccountLockedPayload identifies the account that was locked.
type AccountLockedPayload struct {
	UserID   int64     `json:"user_id"`
	Email    string    `json:"email"`
	LockedAt time.Time `json:"locked_at"`
}

// NewAccountLockedTask constructs an Asynq task.
func NewAccountLockedTask(payload AccountLockedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccountLocked, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// SessionPrunePayload configures the retention window in hours.
type SessionPrunePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewSessionPruneTask builds the periodic prune task.
func NewSessionPruneTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(SessionPrunePayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPrune, body, asynq.Queue(QueueDefault)), nil
}
