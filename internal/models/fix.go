package models

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidFix is returned when a GPS fix fails validation. Invalid
// fixes are rejected before they can touch any session state.
var ErrInvalidFix = errors.New("invalid gps fix")

// GPSFix represents a single raw location fix from a device
type GPSFix struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracyMeters"`
	Timestamp      time.Time `json:"timestamp"`
	SpeedMps       float64   `json:"speedMps,omitempty"`
	HeadingDeg     float64   `json:"headingDeg,omitempty"`
}

// Validate checks a fix for malformed coordinates and accuracy.
// Returns ErrInvalidFix wrapped with the specific problem.
func (f GPSFix) Validate() error {
	if math.IsNaN(f.Latitude) || math.IsNaN(f.Longitude) {
		return errors.Join(ErrInvalidFix, errors.New("coordinates are NaN"))
	}
	if f.Latitude < -90 || f.Latitude > 90 {
		return errors.Join(ErrInvalidFix, errors.New("latitude out of range"))
	}
	if f.Longitude < -180 || f.Longitude > 180 {
		return errors.Join(ErrInvalidFix, errors.New("longitude out of range"))
	}
	if math.IsNaN(f.AccuracyMeters) || f.AccuracyMeters < 0 {
		return errors.Join(ErrInvalidFix, errors.New("negative accuracy"))
	}
	if f.Timestamp.IsZero() {
		return errors.Join(ErrInvalidFix, errors.New("missing timestamp"))
	}
	return nil
}

// TrackedFix is a fix annotated with the movement type that was active
// when it was captured. The visit builder consumes these.
type TrackedFix struct {
	GPSFix
	Movement MovementType `json:"movement"`
}
