package movement

import (
	"math"

	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/models"
	"github.com/placepulse/backend-go/internal/spatial"
	"github.com/placepulse/backend-go/internal/stats"
)

// Classifier turns a rolling window of GPS fixes into a movement-type
// signal. State is private to one session; the classifier itself is
// not safe for concurrent use and callers must serialize access.
type Classifier struct {
	cfg    config.MovementConfig
	window []models.GPSFix
	last   models.MovementSample
	// time the current movement type has been active, tracked so the
	// sample can report how long the session has been in this mode
	typeSince float64 // unix seconds of first sample with the current type
}

// NewClassifier creates a classifier with the given tuning
func NewClassifier(cfg config.MovementConfig) *Classifier {
	return &Classifier{
		cfg:  cfg,
		last: models.MovementSample{Type: models.MovementUnknown},
	}
}

// Last returns the most recent movement sample. Before enough fixes
// have arrived the type is Unknown and callers must not block on it.
func (c *Classifier) Last() models.MovementSample {
	return c.last
}

// WindowLen returns the number of fixes currently in the window
func (c *Classifier) WindowLen() int {
	return len(c.window)
}

// AddFix validates a fix, folds it into the rolling window and
// reclassifies. With fewer than the minimum fixes the returned sample
// has type Unknown; that is not an error.
func (c *Classifier) AddFix(fix models.GPSFix) (models.MovementSample, error) {
	if err := fix.Validate(); err != nil {
		return c.last, err
	}

	c.window = append(c.window, fix)
	if len(c.window) > c.cfg.WindowSize {
		c.window = c.window[len(c.window)-c.cfg.WindowSize:]
	}

	if len(c.window) < c.cfg.MinFixes {
		return c.last, nil
	}

	sample := c.classify()

	if sample.Type != c.last.Type {
		c.typeSince = float64(fix.Timestamp.Unix())
	}
	if c.typeSince > 0 {
		sample.DurationMinutes = (float64(fix.Timestamp.Unix()) - c.typeSince) / 60.0
	}

	c.last = sample
	return sample, nil
}

// classify computes the movement sample from the current window
func (c *Classifier) classify() models.MovementSample {
	speeds := c.pairwiseSpeeds()
	mean := stats.Mean(speeds)
	stddev := stats.StdDev(speeds)

	consistency := 1 - stddev/math.Max(mean, 1)
	if consistency < 0 {
		consistency = 0
	}

	typ := c.typeForSpeed(mean)

	band := c.cfg.Confidence[typ]
	confidence := band.Base + consistency*(band.Max-band.Base)

	return models.MovementSample{
		Type:        typ,
		SpeedKmh:    mean,
		Confidence:  confidence,
		Consistency: consistency,
	}
}

// pairwiseSpeeds derives instantaneous speeds in km/h for each
// consecutive fix pair in the window
func (c *Classifier) pairwiseSpeeds() []float64 {
	speeds := make([]float64, 0, len(c.window)-1)
	for i := 1; i < len(c.window); i++ {
		prev, cur := c.window[i-1], c.window[i]
		dist := spatial.HaversineDistance(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
		elapsed := cur.Timestamp.Sub(prev.Timestamp).Seconds()
		speeds = append(speeds, spatial.SpeedKmh(dist, elapsed))
	}
	return speeds
}

// typeForSpeed selects the movement type by ascending speed
// thresholds. Boundary values belong to the lower bucket.
func (c *Classifier) typeForSpeed(kmh float64) models.MovementType {
	switch {
	case kmh <= c.cfg.StationaryMaxKmh:
		return models.MovementStationary
	case kmh <= c.cfg.WalkingMaxKmh:
		return models.MovementWalking
	case kmh <= c.cfg.BikingMaxKmh:
		return models.MovementBiking
	case kmh <= c.cfg.DrivingMaxKmh:
		return models.MovementDriving
	default:
		return models.MovementTransit
	}
}
