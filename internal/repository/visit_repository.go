package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/placepulse/backend-go/internal/models"
)

// VisitRepository handles database operations for visits
type VisitRepository struct {
	db *sql.DB
}

// NewVisitRepository creates a new visit repository
func NewVisitRepository(db *sql.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// InsertVisits stores a batch of closed visits in one transaction
func (r *VisitRepository) InsertVisits(ctx context.Context, visits []models.Visit) error {
	if len(visits) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO visits (
			session_id, center_lat, center_lon, start_time, end_time,
			total_minutes, breakdown_json, best_accuracy_m, point_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, v := range visits {
		breakdown, err := json.Marshal(v.MovementBreakdown)
		if err != nil {
			return fmt.Errorf("failed to marshal breakdown: %w", err)
		}

		if _, err := stmt.ExecContext(ctx,
			v.SessionID,
			v.CenterLat,
			v.CenterLon,
			v.StartTime.Unix(),
			v.EndTime.Unix(),
			v.TotalMinutes,
			string(breakdown),
			v.BestAccuracyMeters,
			v.PointCount,
		); err != nil {
			return fmt.Errorf("failed to insert visit: %w", err)
		}
	}

	return tx.Commit()
}

// GetVisitsBySession returns a session's visits ordered by start time
func (r *VisitRepository) GetVisitsBySession(ctx context.Context, sessionID string) ([]models.Visit, error) {
	query := `
		SELECT id, session_id, center_lat, center_lon, start_time, end_time,
			total_minutes, breakdown_json, best_accuracy_m, point_count
		FROM visits
		WHERE session_id = ?
		ORDER BY start_time
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []models.Visit
	for rows.Next() {
		var v models.Visit
		var start, end int64
		var breakdown string
		if err := rows.Scan(&v.ID, &v.SessionID, &v.CenterLat, &v.CenterLon,
			&start, &end, &v.TotalMinutes, &breakdown, &v.BestAccuracyMeters, &v.PointCount); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		v.StartTime = time.Unix(start, 0).UTC()
		v.EndTime = time.Unix(end, 0).UTC()
		if err := json.Unmarshal([]byte(breakdown), &v.MovementBreakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal breakdown: %w", err)
		}
		visits = append(visits, v)
	}

	return visits, rows.Err()
}
