package models

// MovementType classifies how a session is moving
type MovementType string

const (
	MovementUnknown    MovementType = "unknown"
	MovementStationary MovementType = "stationary"
	MovementWalking    MovementType = "walking"
	MovementBiking     MovementType = "biking"
	MovementDriving    MovementType = "driving"
	MovementTransit    MovementType = "transit"
)

// MovementTypes lists the five classified types in ascending speed
// order. Unknown is excluded; it only appears before the rolling
// window has enough fixes.
var MovementTypes = []MovementType{
	MovementStationary,
	MovementWalking,
	MovementBiking,
	MovementDriving,
	MovementTransit,
}

// MovementSample is the classifier output for one classification cycle
type MovementSample struct {
	Type            MovementType `json:"type"`
	SpeedKmh        float64      `json:"speedKmh"`
	Confidence      float64      `json:"confidence"`  // 0.0 to 1.0
	Consistency     float64      `json:"consistency"` // 0.0 to 1.0
	DurationMinutes float64      `json:"durationMinutes"`
}
