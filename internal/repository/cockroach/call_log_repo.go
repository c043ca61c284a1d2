package cockroach

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"amora-realtime/internal/domain"
)

// CallLogRepository persists per-participant call log rows in CockroachDB.
// Rows are keyed (user_id, call_id) with put semantics: a signaling
// transition overwrites the row from the previous state, so a duplicate
// terminal event converges instead of duplicating history.
type CallLogRepository struct {
	pool *pgxpool.Pool
}

// NewCallLogRepository creates a new call log repository
func NewCallLogRepository(pool *pgxpool.Pool) *CallLogRepository {
	return &CallLogRepository{pool: pool}
}

// Put inserts or overwrites a participant's row for a call.
func (r *CallLogRepository) Put(ctx context.Context, entry *domain.CallLogEntry) error {
	query := `
		INSERT INTO call_logs (
			user_id, call_id, direction, peer_id, status,
			start_time, end_time, duration_sec, kind, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, call_id) DO UPDATE SET
			direction = excluded.direction,
			peer_id = excluded.peer_id,
			status = excluded.status,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			duration_sec = excluded.duration_sec,
			kind = excluded.kind
	`

	_, err := r.pool.Exec(ctx, query,
		entry.UserID,
		entry.CallID,
		entry.Direction,
		entry.PeerID,
		entry.Status,
		entry.StartTime,
		entry.EndTime,
		entry.DurationSec,
		entry.Kind,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to put call log: %w", err)
	}

	return nil
}

// GetUserCallLogs retrieves a user's call history, newest first.
func (r *CallLogRepository) GetUserCallLogs(ctx context.Context, userID string, limit, offset int) ([]*domain.CallLogEntry, error) {
	query := `
		SELECT user_id, call_id, direction, peer_id, status,
		       start_time, end_time, duration_sec, kind, created_at
		FROM call_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get call logs: %w", err)
	}
	defer rows.Close()

	var entries []*domain.CallLogEntry
	for rows.Next() {
		entry := &domain.CallLogEntry{}
		err := rows.Scan(
			&entry.UserID,
			&entry.CallID,
			&entry.Direction,
			&entry.PeerID,
			&entry.Status,
			&entry.StartTime,
			&entry.EndTime,
			&entry.DurationSec,
			&entry.Kind,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call log: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// CountUserCallLogs returns the total number of call log rows for a user.
func (r *CallLogRepository) CountUserCallLogs(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM call_logs WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count call logs: %w", err)
	}
	return total, nil
}
