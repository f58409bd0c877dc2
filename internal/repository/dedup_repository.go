package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/placepulse/backend-go/internal/reward"
)

// DedupRepository is a reward.DedupStore backed by the database. It is
// the fallback when Redis is not configured: durable across restarts
// and shared by every instance pointing at the same database.
type DedupRepository struct {
	db *sql.DB
}

// NewDedupRepository creates a new dedup repository
func NewDedupRepository(db *sql.DB) *DedupRepository {
	return &DedupRepository{db: db}
}

// Reserve claims the (sessionID, contributionID) pair in one
// statement: insert when absent, reclaim only when the previous claim
// has expired. Zero rows affected means a live claim exists.
func (r *DedupRepository) Reserve(ctx context.Context, sessionID, contributionID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO dedup_entries (dedup_key, expires_at)
		VALUES (?, ?)
		ON CONFLICT(dedup_key) DO UPDATE SET expires_at = excluded.expires_at
		WHERE dedup_entries.expires_at < ?
	`, reward.DedupKey(sessionID, contributionID), now.Add(ttl).Unix(), now.Unix())
	if err != nil {
		return false, fmt.Errorf("failed to reserve dedup key: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// Release drops the claim so the pair can be reserved again
func (r *DedupRepository) Release(ctx context.Context, sessionID, contributionID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM dedup_entries WHERE dedup_key = ?",
		reward.DedupKey(sessionID, contributionID))
	if err != nil {
		return fmt.Errorf("failed to release dedup key: %w", err)
	}
	return nil
}

// Sweep removes expired entries. Called periodically so the table does
// not grow unbounded.
func (r *DedupRepository) Sweep(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM dedup_entries WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep dedup entries: %w", err)
	}
	return res.RowsAffected()
}
