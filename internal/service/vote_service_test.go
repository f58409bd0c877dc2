package service

import (
	"context"
	"testing"
	"time"

	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/models"
)

func TestWeightAtQualifyingVisit(t *testing.T) {
	cfg := &config.Config{
		Movement: config.DefaultMovement(),
		Visit:    config.DefaultVisit(),
		Vote:     config.DefaultVote(),
		Reward:   config.DefaultReward(),
		Supply:   config.DefaultSupply(),
	}
	fixes := newMemFixStore()
	svc := NewVoteService(cfg, fixes, newMemVisitStore())
	ctx := context.Background()
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// 20 minutes of walking-classified dwell at one spot.
	for i := 0; i < 40; i++ {
		fixes.InsertFix(ctx, "session-1", models.TrackedFix{
			GPSFix:   gpsFix(40.0, -74.0, start.Add(time.Duration(i)*30*time.Second)),
			Movement: models.MovementWalking,
		}, "cell")
	}

	w, err := svc.WeightAt(ctx, "session-1", 40.0, -74.0)
	if err != nil {
		t.Fatalf("weight: %v", err)
	}
	if !w.CanVote {
		t.Fatalf("expected eligible weight, got reason %q", w.EligibilityReason)
	}
	if w.TotalWeight <= 0 {
		t.Fatalf("expected positive weight, got %f", w.TotalWeight)
	}

	// Identical queries return identical weights.
	again, err := svc.WeightAt(ctx, "session-1", 40.0, -74.0)
	if err != nil {
		t.Fatalf("weight: %v", err)
	}
	if again != w {
		t.Fatalf("weight not deterministic: %+v vs %+v", again, w)
	}
}

func TestWeightAtNoVisitNearby(t *testing.T) {
	cfg := &config.Config{
		Movement: config.DefaultMovement(),
		Visit:    config.DefaultVisit(),
		Vote:     config.DefaultVote(),
		Reward:   config.DefaultReward(),
		Supply:   config.DefaultSupply(),
	}
	fixes := newMemFixStore()
	svc := NewVoteService(cfg, fixes, newMemVisitStore())
	ctx := context.Background()
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 40; i++ {
		fixes.InsertFix(ctx, "session-1", models.TrackedFix{
			GPSFix:   gpsFix(40.0, -74.0, start.Add(time.Duration(i)*30*time.Second)),
			Movement: models.MovementWalking,
		}, "cell")
	}

	// Query a point ~1km away from the visit.
	w, err := svc.WeightAt(ctx, "session-1", 40.01, -74.0)
	if err != nil {
		t.Fatalf("weight: %v", err)
	}
	if w.CanVote {
		t.Fatalf("expected no qualifying visit 1km away")
	}
	if w.EligibilityReason == "" {
		t.Fatalf("expected an eligibility reason")
	}

	// A session with no fixes at all behaves the same way.
	w, err = svc.WeightAt(ctx, "ghost", 40.0, -74.0)
	if err != nil {
		t.Fatalf("weight for empty session: %v", err)
	}
	if w.CanVote {
		t.Fatalf("empty session must not vote")
	}
}
