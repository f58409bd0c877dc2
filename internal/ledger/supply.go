package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/models"
)

// ErrConflict signals that a conditional supply update lost the race
// to another writer. RecordMint retries internally; the error never
// reaches callers as a doubled or dropped mint.
var ErrConflict = errors.New("supply state version conflict")

// Store persists the versioned supply singleton. Save must apply the
// update only when the stored version still matches expectedVersion
// and return ErrConflict otherwise.
type Store interface {
	Load(ctx context.Context) (models.TokenSupplyState, int64, error)
	Save(ctx context.Context, state models.TokenSupplyState, expectedVersion int64) error
}

// Ledger is the process-wide token supply singleton. A mutex
// serializes callers within one instance; the versioned conditional
// write protects the cap invariant across instances. TotalSupply can
// never exceed the configured max regardless of interleaving.
type Ledger struct {
	cfg   config.SupplyConfig
	store Store

	mu      sync.Mutex
	state   models.TokenSupplyState
	version int64
	loaded  bool
}

// New creates a ledger over the given store
func New(cfg config.SupplyConfig, store Store) *Ledger {
	return &Ledger{cfg: cfg, store: store}
}

// State returns the current supply state with any pending halving
// crossings applied
func (l *Ledger) State(ctx context.Context) (models.TokenSupplyState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(ctx); err != nil {
		return models.TokenSupplyState{}, err
	}

	s := l.state
	l.applyHalvings(&s)
	return s, nil
}

// CurrentMultiplier returns the reward multiplier, lazily applying any
// halving crossing that minting has passed since it was last computed
func (l *Ledger) CurrentMultiplier(ctx context.Context) (float64, error) {
	s, err := l.State(ctx)
	if err != nil {
		return 0, err
	}
	return s.CurrentRewardMultiplier, nil
}

// RecordMint atomically adds up to amount tokens to the supply. The
// minted amount is truncated to the remaining headroom, so the sum of
// concurrent mints near the cap never exceeds it; at the cap it
// returns 0 with IsCapReached set. The write is a conditional update
// retried against the freshest state on version conflicts.
func (l *Ledger) RecordMint(ctx context.Context, amount float64) (float64, models.TokenSupplyState, error) {
	if amount < 0 || math.IsNaN(amount) {
		return 0, models.TokenSupplyState{}, fmt.Errorf("mint amount must be non-negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for attempt := 0; attempt <= l.cfg.MintRetries; attempt++ {
		if err := l.ensureLoaded(ctx); err != nil {
			return 0, models.TokenSupplyState{}, err
		}

		s := l.state
		l.applyHalvings(&s)

		headroom := l.cfg.MaxSupply - s.TotalSupply
		if headroom < 0 {
			headroom = 0
		}
		minted := math.Min(amount, headroom)

		s.TotalSupply += minted
		s.TokensInCirculation += minted
		// The mint itself may cross a halving boundary or hit the cap.
		l.applyHalvings(&s)

		err := l.store.Save(ctx, s, l.version)
		if errors.Is(err, ErrConflict) {
			// Another instance won; reload and recompute the
			// truncation against its state.
			l.loaded = false
			continue
		}
		if err != nil {
			return 0, models.TokenSupplyState{}, fmt.Errorf("failed to persist supply state: %w", err)
		}

		l.version++
		l.state = s
		return minted, s, nil
	}

	return 0, models.TokenSupplyState{}, fmt.Errorf("supply update lost %d consecutive races: %w", l.cfg.MintRetries+1, ErrConflict)
}

// ensureLoaded pulls the persisted state on first use or after a
// conflict invalidated the cached copy. Callers hold the mutex.
func (l *Ledger) ensureLoaded(ctx context.Context) error {
	if l.loaded {
		return nil
	}

	state, version, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load supply state: %w", err)
	}

	if state.CurrentRewardMultiplier == 0 && !state.IsCapReached {
		// Fresh row; issuance starts at full multiplier.
		state.CurrentRewardMultiplier = 1.0
		state.NextHalvingAt = l.cfg.HalvingInterval
	}

	l.state = state
	l.version = version
	l.loaded = true
	return nil
}

// applyHalvings brings the multiplier, halving schedule and cap flag
// in line with the total supply. The multiplier halves once per
// crossed interval, floored at the configured minimum, and drops to
// zero when the cap is reached.
func (l *Ledger) applyHalvings(s *models.TokenSupplyState) {
	if s.TotalSupply >= l.cfg.MaxSupply {
		s.TotalSupply = l.cfg.MaxSupply
		s.IsCapReached = true
		s.CurrentRewardMultiplier = 0
		s.NextHalvingAt = l.cfg.MaxSupply
		return
	}

	crossed := int(s.TotalSupply / l.cfg.HalvingInterval)
	if crossed != s.HalvingCount {
		s.HalvingCount = crossed
		s.LastHalvingAt = time.Now().UTC()
	}

	multiplier := math.Pow(0.5, float64(crossed))
	if multiplier < l.cfg.MinMultiplier {
		multiplier = l.cfg.MinMultiplier
	}
	s.CurrentRewardMultiplier = multiplier
	s.NextHalvingAt = float64(crossed+1) * l.cfg.HalvingInterval
	if s.NextHalvingAt > l.cfg.MaxSupply {
		s.NextHalvingAt = l.cfg.MaxSupply
	}
	s.IsCapReached = false
}
