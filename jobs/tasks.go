package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatsIntegrity compares the sales rollup against the invoice set.
	TaskStatsIntegrity = "stats:integrity"
	// TaskDispatchAging flags dispatch notes left unreconciled too long.
	TaskDispatchAging = "dispatch:aging"
)

// StatsIntegrityPayload carries scheduling metadata.
type StatsIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewStatsIntegrityTask constructs an Asynq task for the rollup drift scan.
func NewStatsIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(StatsIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatsIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// DispatchAgingPayload scopes the aging scan.
type DispatchAgingPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	MaxAgeHours  int       `json:"max_age_hours"`
}

// NewDispatchAgingTask constructs an Asynq task for the dispatch aging scan.
func NewDispatchAgingTask(at time.Time, maxAgeHours int) (*asynq.Task, error) {
	if maxAgeHours <= 0 {
		maxAgeHours = 72
	}
	body, err := json.Marshal(DispatchAgingPayload{ScheduledFor: at, MaxAgeHours: maxAgeHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDispatchAging, body, asynq.Queue(QueueDefault)), nil
}
