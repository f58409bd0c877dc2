package service

import (
	"context"
	"fmt"

	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/models"
	"github.com/placepulse/backend-go/internal/spatial"
	"github.com/placepulse/backend-go/internal/visit"
	"github.com/placepulse/backend-go/internal/vote"
)

// VoteService answers vote weight queries for a (session, location)
// pair
type VoteService struct {
	matchRadius float64
	builder     *visit.Builder
	calc        *vote.Calculator
	fixes       FixStore
	visits      VisitStore
}

// NewVoteService creates a vote service
func NewVoteService(cfg *config.Config, fixes FixStore, visits VisitStore) *VoteService {
	return &VoteService{
		matchRadius: cfg.Visit.ClusterRadiusMeters,
		builder:     visit.NewBuilder(cfg.Visit),
		calc:        vote.NewCalculator(cfg.Vote),
		fixes:       fixes,
		visits:      visits,
	}
}

// WeightAt computes the vote weight a session has earned at a
// location. The session's stored fixes are clustered into visits and
// the longest visit centered within the match radius is weighed. No
// qualifying visit yields canVote=false with the reason, never an
// error.
func (s *VoteService) WeightAt(ctx context.Context, sessionID string, lat, lon float64) (models.VoteWeight, error) {
	fixes, err := s.fixes.GetSessionFixes(ctx, sessionID)
	if err != nil {
		return models.VoteWeight{}, fmt.Errorf("failed to load session fixes: %w", err)
	}

	visits := s.builder.Build(sessionID, fixes)

	var best *models.Visit
	for i := range visits {
		v := &visits[i]
		dist := spatial.HaversineDistance(v.CenterLat, v.CenterLon, lat, lon)
		if dist > s.matchRadius {
			continue
		}
		if best == nil || v.TotalMinutes > best.TotalMinutes {
			best = v
		}
	}

	if best == nil {
		return models.VoteWeight{
			EligibilityReason: "no qualifying visit at this location",
		}, nil
	}

	return s.calc.Calculate(*best), nil
}

// Visits lists a session's persisted visits
func (s *VoteService) Visits(ctx context.Context, sessionID string) ([]models.Visit, error) {
	return s.visits.GetVisitsBySession(ctx, sessionID)
}
