package models

import "time"

// Visit represents a contiguous dwell period at one clustered location
type Visit struct {
	ID                 int64                    `json:"id,omitempty" db:"id"`
	SessionID          string                   `json:"sessionId" db:"session_id"`
	CenterLat          float64                  `json:"centerLat" db:"center_lat"`
	CenterLon          float64                  `json:"centerLon" db:"center_lon"`
	StartTime          time.Time                `json:"startTime" db:"start_time"`
	EndTime            time.Time                `json:"endTime" db:"end_time"`
	TotalMinutes       float64                  `json:"totalMinutes" db:"total_minutes"`
	MovementBreakdown  map[MovementType]float64 `json:"movementBreakdown" db:"breakdown_json"`
	BestAccuracyMeters float64                  `json:"bestAccuracyMeters" db:"best_accuracy_m"`
	PointCount         int                      `json:"pointCount" db:"point_count"`
}

// VoteWeight is the eligibility decision and scalar weight for a visit.
// Computed on demand; never persisted as mutable state.
type VoteWeight struct {
	TotalWeight       float64 `json:"totalWeight"`
	TimeWeight        float64 `json:"timeWeight"`
	MovementBonus     float64 `json:"movementBonus"`
	EngagementBonus   float64 `json:"engagementBonus"`
	DiversityBonus    float64 `json:"diversityBonus"`
	CanVote           bool    `json:"canVote"`
	EligibilityReason string  `json:"eligibilityReason,omitempty"`
}
