package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DispatchAging flags dispatch notes that have sat unreconciled past the
// configured age. Stock on those notes is counted in neither warehouse, so a
// stale note usually means a receipt was never keyed in.
type DispatchAging struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewDispatchAging constructs the aging scan.
func NewDispatchAging(pool *pgxpool.Pool, logger *slog.Logger) *DispatchAging {
	return &DispatchAging{pool: pool, logger: logger}
}

// Handle processes TaskDispatchAging tasks.
func (j *DispatchAging) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DispatchAgingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	maxAge := time.Duration(payload.MaxAgeHours) * time.Hour
	if maxAge <= 0 {
		maxAge = 72 * time.Hour
	}
	cutoff := time.Now().Add(-maxAge)

	rows, err := j.pool.Query(ctx, `SELECT id, destination, created_at FROM dispatch_notes WHERE created_at < $1 ORDER BY created_at`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	stale := 0
	for rows.Next() {
		var (
			id, destination string
			createdAt       time.Time
		)
		if err := rows.Scan(&id, &destination, &createdAt); err != nil {
			return err
		}
		stale++
		j.logger.Warn("dispatch aging: note unreconciled",
			slog.String("note_id", id),
			slog.String("destination", destination),
			slog.Duration("age", time.Since(createdAt)),
		)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if stale == 0 {
		j.logger.Info("dispatch aging: no stale notes")
	}
	return nil
}
