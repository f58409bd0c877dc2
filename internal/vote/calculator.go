package vote

import (
	"fmt"

	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/models"
	"github.com/placepulse/backend-go/internal/stats"
)

// Calculator converts a visit into an eligibility decision and a
// scalar vote weight. It is a pure function of the visit and the
// configured factor tables, so identical inputs produce identical
// weights.
type Calculator struct {
	cfg config.VoteConfig
}

// NewCalculator creates a vote weight calculator
func NewCalculator(cfg config.VoteConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate computes the vote weight for a visit.
//
// timeWeight grows linearly with dwell time and caps at
// MaxTimeWeight. movementBonus is the share-weighted average of the
// per-type factors. engagementBonus scales with the active
// (walking + biking) share of the visit. diversityBonus is the
// normalized Shannon entropy of the minutes spread across all five
// movement types, so a single-mode visit scores zero and an even mix
// scores the maximum.
func (c *Calculator) Calculate(v models.Visit) models.VoteWeight {
	w := models.VoteWeight{}

	if v.TotalMinutes < c.cfg.MinEligibleMinutes {
		w.EligibilityReason = fmt.Sprintf("visit too short: %.1f of %.1f required minutes",
			v.TotalMinutes, c.cfg.MinEligibleMinutes)
		return w
	}
	if v.BestAccuracyMeters > c.cfg.MaxAccuracyMeters {
		w.EligibilityReason = fmt.Sprintf("no fix within %.0fm accuracy (best was %.0fm)",
			c.cfg.MaxAccuracyMeters, v.BestAccuracyMeters)
		return w
	}

	capped := v.TotalMinutes
	if capped > c.cfg.TimeCapMinutes {
		capped = c.cfg.TimeCapMinutes
	}
	w.TimeWeight = c.cfg.MaxTimeWeight * capped / c.cfg.TimeCapMinutes

	total := 0.0
	for _, minutes := range v.MovementBreakdown {
		total += minutes
	}

	if total > 0 {
		active := 0.0
		for typ, minutes := range v.MovementBreakdown {
			share := minutes / total
			w.MovementBonus += share * c.cfg.MovementFactors[typ]
			if typ == models.MovementWalking || typ == models.MovementBiking {
				active += share
			}
		}
		w.EngagementBonus = c.cfg.MaxEngagementBonus * active

		// Fixed-length vector over all five types so the entropy
		// normalizer is always log2(5).
		minutesByType := make([]float64, len(models.MovementTypes))
		for i, typ := range models.MovementTypes {
			minutesByType[i] = v.MovementBreakdown[typ]
		}
		w.DiversityBonus = c.cfg.MaxDiversityBonus * stats.NormalizedEntropy(minutesByType)
	}

	w.TotalWeight = w.TimeWeight + w.MovementBonus + w.EngagementBonus + w.DiversityBonus
	w.CanVote = true
	return w
}
