package visit

import (
	"sort"

	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/models"
	"github.com/placepulse/backend-go/internal/spatial"
)

// Builder clusters a session's tracked fixes into discrete visits.
// It is a pure transformation; the same input always yields the same
// visits.
type Builder struct {
	cfg config.VisitConfig
}

// NewBuilder creates a visit builder with the given clustering policy
func NewBuilder(cfg config.VisitConfig) *Builder {
	return &Builder{cfg: cfg}
}

// cluster accumulates fixes around a running centroid until it closes
type cluster struct {
	centroidLat  float64
	centroidLon  float64
	fixes        []models.TrackedFix
	breakdown    map[models.MovementType]float64
	bestAccuracy float64
}

// Build clusters the fixes of one session into visits. Fixes are
// sorted by timestamp first; upstream ordering is not trusted. A fix
// joins the current cluster when it is within the cluster radius of
// the running centroid and the gap since the previous fix is below the
// threshold, otherwise the cluster closes as a visit. Visits shorter
// than the minimum duration are discarded as noise.
func (b *Builder) Build(sessionID string, fixes []models.TrackedFix) []models.Visit {
	if len(fixes) == 0 {
		return nil
	}

	sorted := make([]models.TrackedFix, len(fixes))
	copy(sorted, fixes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var visits []models.Visit
	cur := newCluster(sorted[0])

	for i := 1; i < len(sorted); i++ {
		fix := sorted[i]
		prev := sorted[i-1]

		dist := spatial.HaversineDistance(cur.centroidLat, cur.centroidLon, fix.Latitude, fix.Longitude)
		gap := fix.Timestamp.Sub(prev.Timestamp)

		if dist <= b.cfg.ClusterRadiusMeters && gap < b.cfg.MaxGap {
			// Dwell minutes between consecutive fixes are attributed
			// to the movement type active at the earlier fix.
			cur.breakdown[prev.Movement] += gap.Minutes()
			cur.add(fix)
			continue
		}

		if v, ok := b.close(sessionID, cur); ok {
			visits = append(visits, v)
		}
		cur = newCluster(fix)
	}

	if v, ok := b.close(sessionID, cur); ok {
		visits = append(visits, v)
	}

	return visits
}

// newCluster starts a cluster at the given fix
func newCluster(fix models.TrackedFix) *cluster {
	return &cluster{
		centroidLat:  fix.Latitude,
		centroidLon:  fix.Longitude,
		fixes:        []models.TrackedFix{fix},
		breakdown:    make(map[models.MovementType]float64),
		bestAccuracy: fix.AccuracyMeters,
	}
}

// add folds a fix into the running centroid
func (c *cluster) add(fix models.TrackedFix) {
	n := float64(len(c.fixes))
	c.centroidLat = (c.centroidLat*n + fix.Latitude) / (n + 1)
	c.centroidLon = (c.centroidLon*n + fix.Longitude) / (n + 1)
	c.fixes = append(c.fixes, fix)
	if fix.AccuracyMeters < c.bestAccuracy {
		c.bestAccuracy = fix.AccuracyMeters
	}
}

// close finalizes a cluster into a visit. Returns false when the dwell
// is below the minimum duration.
func (b *Builder) close(sessionID string, c *cluster) (models.Visit, bool) {
	start := c.fixes[0].Timestamp
	end := c.fixes[len(c.fixes)-1].Timestamp
	total := end.Sub(start).Minutes()

	if total < b.cfg.MinDurationMinutes {
		return models.Visit{}, false
	}

	return models.Visit{
		SessionID:          sessionID,
		CenterLat:          c.centroidLat,
		CenterLon:          c.centroidLon,
		StartTime:          start,
		EndTime:            end,
		TotalMinutes:       total,
		MovementBreakdown:  c.breakdown,
		BestAccuracyMeters: c.bestAccuracy,
		PointCount:         len(c.fixes),
	}, true
}
