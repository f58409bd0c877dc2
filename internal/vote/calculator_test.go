package vote

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/models"
)

func visit(totalMinutes float64, breakdown map[models.MovementType]float64) models.Visit {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return models.Visit{
		SessionID:          "session-1",
		CenterLat:          40.0,
		CenterLon:          -74.0,
		StartTime:          start,
		EndTime:            start.Add(time.Duration(totalMinutes * float64(time.Minute))),
		TotalMinutes:       totalMinutes,
		MovementBreakdown:  breakdown,
		BestAccuracyMeters: 8,
		PointCount:         int(totalMinutes * 6),
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	c := NewCalculator(config.DefaultVote())
	v := visit(45, map[models.MovementType]float64{
		models.MovementWalking:    30,
		models.MovementStationary: 15,
	})

	first := c.Calculate(v)
	for i := 0; i < 10; i++ {
		if got := c.Calculate(v); got != first {
			t.Fatalf("weight changed between identical calls: %+v vs %+v", got, first)
		}
	}
}

func TestCalculatePureWalkingVisit(t *testing.T) {
	c := NewCalculator(config.DefaultVote())
	v := visit(60, map[models.MovementType]float64{
		models.MovementWalking: 60,
	})

	w := c.Calculate(v)
	if !w.CanVote {
		t.Fatalf("expected eligible visit, got reason %q", w.EligibilityReason)
	}

	// 60 of 120 capped minutes at max weight 2.0.
	if math.Abs(w.TimeWeight-1.0) > 1e-9 {
		t.Errorf("timeWeight = %f, want 1.0", w.TimeWeight)
	}
	// All minutes walking: factor 1.0, full engagement share.
	if math.Abs(w.MovementBonus-1.0) > 1e-9 {
		t.Errorf("movementBonus = %f, want 1.0", w.MovementBonus)
	}
	if math.Abs(w.EngagementBonus-0.5) > 1e-9 {
		t.Errorf("engagementBonus = %f, want 0.5", w.EngagementBonus)
	}
	// Single mode means zero entropy.
	if w.DiversityBonus != 0 {
		t.Errorf("diversityBonus = %f, want 0", w.DiversityBonus)
	}
	if math.Abs(w.TotalWeight-2.5) > 1e-9 {
		t.Errorf("totalWeight = %f, want 2.5", w.TotalWeight)
	}
}

func TestCalculateTimeWeightCaps(t *testing.T) {
	c := NewCalculator(config.DefaultVote())
	v := visit(600, map[models.MovementType]float64{
		models.MovementStationary: 600,
	})

	w := c.Calculate(v)
	if math.Abs(w.TimeWeight-2.0) > 1e-9 {
		t.Fatalf("timeWeight = %f, want capped 2.0", w.TimeWeight)
	}
}

func TestCalculateDiversityBonusBounds(t *testing.T) {
	c := NewCalculator(config.DefaultVote())

	// Perfectly even split across all five types maximizes entropy.
	even := visit(50, map[models.MovementType]float64{
		models.MovementStationary: 10,
		models.MovementWalking:    10,
		models.MovementBiking:     10,
		models.MovementDriving:    10,
		models.MovementTransit:    10,
	})
	w := c.Calculate(even)
	if math.Abs(w.DiversityBonus-0.5) > 1e-9 {
		t.Errorf("even split diversityBonus = %f, want 0.5", w.DiversityBonus)
	}

	// A skewed split lands strictly between the extremes.
	skewed := visit(50, map[models.MovementType]float64{
		models.MovementWalking:    45,
		models.MovementStationary: 5,
	})
	w = c.Calculate(skewed)
	if w.DiversityBonus <= 0 || w.DiversityBonus >= 0.5 {
		t.Errorf("skewed diversityBonus = %f, want in (0, 0.5)", w.DiversityBonus)
	}
}

func TestCalculateRejectsShortVisit(t *testing.T) {
	c := NewCalculator(config.DefaultVote())
	v := visit(3, map[models.MovementType]float64{
		models.MovementStationary: 3,
	})

	w := c.Calculate(v)
	if w.CanVote {
		t.Fatalf("3 minute visit must not be eligible")
	}
	if w.TotalWeight != 0 {
		t.Errorf("ineligible visit must have zero weight, got %f", w.TotalWeight)
	}
	if !strings.Contains(w.EligibilityReason, "too short") {
		t.Errorf("unexpected reason: %q", w.EligibilityReason)
	}
}

func TestCalculateRejectsInaccurateVisit(t *testing.T) {
	c := NewCalculator(config.DefaultVote())
	v := visit(30, map[models.MovementType]float64{
		models.MovementStationary: 30,
	})
	v.BestAccuracyMeters = 80

	w := c.Calculate(v)
	if w.CanVote {
		t.Fatalf("visit with no accurate fix must not be eligible")
	}
	if !strings.Contains(w.EligibilityReason, "accuracy") {
		t.Errorf("unexpected reason: %q", w.EligibilityReason)
	}
}

func TestCalculateMotorizedScoresBelowWalking(t *testing.T) {
	c := NewCalculator(config.DefaultVote())

	walking := c.Calculate(visit(30, map[models.MovementType]float64{
		models.MovementWalking: 30,
	}))
	driving := c.Calculate(visit(30, map[models.MovementType]float64{
		models.MovementDriving: 30,
	}))

	if walking.TotalWeight <= driving.TotalWeight {
		t.Fatalf("walking weight %f must exceed driving weight %f",
			walking.TotalWeight, driving.TotalWeight)
	}
}
