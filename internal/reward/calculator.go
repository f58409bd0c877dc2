package reward

import (
	"math"

	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/models"
)

// Calculator converts a contribution event into a raw token amount.
// Minting against the supply ledger and persistence happen in the
// contribution service; this stays a pure computation so the reward
// table can be tested exactly.
type Calculator struct {
	cfg config.RewardConfig
}

// NewCalculator creates a reward calculator
func NewCalculator(cfg config.RewardConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Compute returns the amount to mint for a contribution and the
// per-component breakdown. cellCount is the number of previously
// stored points in the contribution's density cell; multiplier is the
// ledger's current reward multiplier.
//
// raw is basePerPoint times the movement multiplier, plus the accuracy
// bonus (fix more precise than the accuracy bound), the tracking bonus
// (per contiguous tracked minute, capped) and the density bonus
// (linear falloff as the cell fills, capped).
//
// The raw sum is scaled by the supply multiplier and rounded to the
// token precision. The breakdown lists raw components plus the applied
// multiplier so clients can render how the award was assembled.
func (c *Calculator) Compute(contrib models.Contribution, cellCount int64, multiplier float64) (float64, []models.RewardBreakdownItem) {
	typeMult, ok := c.cfg.TypeMultipliers[contrib.Movement]
	if !ok {
		typeMult = c.cfg.TypeMultipliers[models.MovementUnknown]
	}
	base := c.cfg.BasePerPoint * typeMult

	accuracy := 0.0
	if contrib.Fix.AccuracyMeters < c.cfg.AccuracyBoundM {
		accuracy = c.cfg.AccuracyBonus
	}

	tracking := contrib.TrackedMinutes * c.cfg.TrackingBonusPerMin
	if tracking > c.cfg.TrackingBonusCap {
		tracking = c.cfg.TrackingBonusCap
	}
	if tracking < 0 {
		tracking = 0
	}

	density := 0.0
	if cellCount < c.cfg.SparseCellCount {
		density = c.cfg.DensityBonusCap * (1 - float64(cellCount)/float64(c.cfg.SparseCellCount))
	}

	raw := base + accuracy + tracking + density
	amount := c.Round(raw * multiplier)

	breakdown := []models.RewardBreakdownItem{
		{Component: "base", Amount: base},
		{Component: "accuracy", Amount: accuracy},
		{Component: "tracking", Amount: tracking},
		{Component: "density", Amount: density},
		{Component: "supplyMultiplier", Amount: multiplier},
	}

	return amount, breakdown
}

// Round rounds an amount to the configured token precision
func (c *Calculator) Round(amount float64) float64 {
	scale := math.Pow10(c.cfg.PrecisionDecimals)
	return math.Round(amount*scale) / scale
}
