package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/placepulse/backend-go/internal/models"
)

// FixRepository handles database operations for session fixes
type FixRepository struct {
	db *sql.DB
}

// NewFixRepository creates a new fix repository
func NewFixRepository(db *sql.DB) *FixRepository {
	return &FixRepository{db: db}
}

// InsertFix stores one tracked fix for a session. cellToken is the
// density cell covering the fix.
func (r *FixRepository) InsertFix(ctx context.Context, sessionID string, fix models.TrackedFix, cellToken string) error {
	query := `
		INSERT INTO session_fixes (
			session_id, latitude, longitude, accuracy_m, speed_mps, heading_deg,
			movement_type, cell_token, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		sessionID,
		fix.Latitude,
		fix.Longitude,
		fix.AccuracyMeters,
		fix.SpeedMps,
		fix.HeadingDeg,
		string(fix.Movement),
		cellToken,
		fix.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fix: %w", err)
	}
	return nil
}

// GetSessionFixes returns a session's fixes ordered by capture time
func (r *FixRepository) GetSessionFixes(ctx context.Context, sessionID string) ([]models.TrackedFix, error) {
	query := `
		SELECT latitude, longitude, accuracy_m, speed_mps, heading_deg, movement_type, recorded_at
		FROM session_fixes
		WHERE session_id = ?
		ORDER BY recorded_at
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixes: %w", err)
	}
	defer rows.Close()

	var fixes []models.TrackedFix
	for rows.Next() {
		var f models.TrackedFix
		var movement string
		var recordedAt int64
		if err := rows.Scan(&f.Latitude, &f.Longitude, &f.AccuracyMeters,
			&f.SpeedMps, &f.HeadingDeg, &movement, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fix: %w", err)
		}
		f.Movement = models.MovementType(movement)
		f.Timestamp = time.Unix(recordedAt, 0).UTC()
		fixes = append(fixes, f)
	}

	return fixes, rows.Err()
}

// CellPointCount returns how many fixes have been stored in a density
// cell. The reward calculator uses this for the sparsity bonus.
func (r *FixRepository) CellPointCount(ctx context.Context, cellToken string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM session_fixes WHERE cell_token = ?", cellToken).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cell points: %w", err)
	}
	return count, nil
}
