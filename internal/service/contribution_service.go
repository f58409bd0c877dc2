package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/ledger"
	"github.com/placepulse/backend-go/internal/models"
	"github.com/placepulse/backend-go/internal/reward"
	"github.com/placepulse/backend-go/internal/spatial"
)

// ContributionService rewards verified contribution events. Flow:
// dedup reserve, reward calculation, supply mint, then the transaction
// and balance write. A failed balance write after a successful mint is
// queued and re-applied; the dedup key guarantees a client retry in
// the meantime cannot double-award.
type ContributionService struct {
	cfg      config.RewardConfig
	calc     *reward.Calculator
	dedup    reward.DedupStore
	supply   *ledger.Ledger
	tokens   TokenStore
	fixes    FixStore
	tracking *TrackingService

	mu       sync.Mutex
	deferred []models.TokenTransaction
}

// NewContributionService creates a contribution service
func NewContributionService(
	cfg config.RewardConfig,
	dedup reward.DedupStore,
	supply *ledger.Ledger,
	tokens TokenStore,
	fixes FixStore,
	tracking *TrackingService,
) *ContributionService {
	return &ContributionService{
		cfg:      cfg,
		calc:     reward.NewCalculator(cfg),
		dedup:    dedup,
		supply:   supply,
		tokens:   tokens,
		fixes:    fixes,
		tracking: tracking,
	}
}

// Process rewards one contribution event. Zero-reward outcomes
// (duplicate submission, supply cap) are reported in the result, not
// as errors; errors are reserved for invalid input and infrastructure
// failures that could not be absorbed.
func (s *ContributionService) Process(ctx context.Context, contrib models.Contribution) (models.RewardResult, error) {
	if err := contrib.Fix.Validate(); err != nil {
		return models.RewardResult{}, err
	}
	if contrib.SessionID == "" {
		return models.RewardResult{}, fmt.Errorf("%w: missing session id", models.ErrInvalidFix)
	}
	if contrib.ContributionID == "" {
		contrib.ContributionID = uuid.NewString()
	}

	s.retryDeferred(ctx)

	ok, err := s.dedup.Reserve(ctx, contrib.SessionID, contrib.ContributionID, s.cfg.DedupTTL)
	if err != nil {
		return models.RewardResult{}, fmt.Errorf("dedup store unavailable: %w", err)
	}
	if !ok {
		balance, err := s.tokens.GetBalance(ctx, contrib.SessionID)
		if err != nil {
			return models.RewardResult{}, fmt.Errorf("failed to read balance: %w", err)
		}
		return models.RewardResult{
			Duplicate:  true,
			NewBalance: balance.Balance,
			Reason:     "contribution already rewarded",
		}, nil
	}

	if contrib.Movement == "" {
		contrib.Movement = s.tracking.CurrentMovement(contrib.SessionID).Type
	}
	if contrib.TrackedMinutes == 0 {
		contrib.TrackedMinutes = s.tracking.ContiguousMinutes(contrib.SessionID)
	}

	cell := spatial.CellToken(contrib.Fix.Latitude, contrib.Fix.Longitude, s.cfg.DensityCellLevel)
	cellCount, err := s.fixes.CellPointCount(ctx, cell)
	if err != nil {
		// Density is a bonus, not a requirement; treat the cell as
		// fully covered when the lookup fails.
		log.Printf("[Contribution] Density lookup failed: %v", err)
		cellCount = s.cfg.SparseCellCount
	}

	multiplier, err := s.supply.CurrentMultiplier(ctx)
	if err != nil {
		// Nothing was granted; free the claim so the client retry is
		// not mistaken for an already-rewarded contribution.
		s.releaseClaim(ctx, contrib)
		return models.RewardResult{}, err
	}

	amount, breakdown := s.calc.Compute(contrib, cellCount, multiplier)

	minted, state, err := s.supply.RecordMint(ctx, amount)
	if err != nil {
		s.releaseClaim(ctx, contrib)
		return models.RewardResult{}, err
	}
	if minted == 0 {
		reason := "no reward available"
		if state.IsCapReached {
			reason = "token supply cap reached"
		}
		balance, err := s.tokens.GetBalance(ctx, contrib.SessionID)
		if err != nil {
			return models.RewardResult{}, fmt.Errorf("failed to read balance: %w", err)
		}
		return models.RewardResult{
			Breakdown:  breakdown,
			NewBalance: balance.Balance,
			CapReached: state.IsCapReached,
			Reason:     reason,
		}, nil
	}

	txn := models.TokenTransaction{
		ID:        uuid.NewString(),
		SessionID: contrib.SessionID,
		Type:      models.TransactionEarn,
		Amount:    minted,
		Reason:    fmt.Sprintf("contribution %s (%s)", contrib.ContributionID, contrib.Movement),
		Timestamp: time.Now().UTC(),
	}

	balance, err := s.tokens.RecordEarn(ctx, txn)
	if err != nil {
		// The tokens are already minted; the credit must not be lost.
		// Queue it and let a later call re-apply it.
		log.Printf("[Contribution] Balance write failed, deferring credit %s: %v", txn.ID, err)
		s.mu.Lock()
		s.deferred = append(s.deferred, txn)
		s.mu.Unlock()

		return models.RewardResult{
			TokensAwarded: minted,
			Breakdown:     breakdown,
			CapReached:    state.IsCapReached,
			Reason:        "balance update deferred",
		}, nil
	}

	return models.RewardResult{
		TokensAwarded: minted,
		Breakdown:     breakdown,
		NewBalance:    balance.Balance,
		CapReached:    state.IsCapReached,
	}, nil
}

// releaseClaim frees a dedup reservation whose reward was never
// granted. Failure to release is logged and absorbed: the claim then
// expires with its TTL instead of immediately.
func (s *ContributionService) releaseClaim(ctx context.Context, contrib models.Contribution) {
	if err := s.dedup.Release(ctx, contrib.SessionID, contrib.ContributionID); err != nil {
		log.Printf("[Contribution] Failed to release dedup claim %s: %v", contrib.ContributionID, err)
	}
}

// retryDeferred re-applies credits whose balance write failed earlier.
// Transaction ids are stable, so re-applying after a partial failure
// cannot double-credit: the insert conflicts and the credit is dropped
// from the queue.
func (s *ContributionService) retryDeferred(ctx context.Context) {
	s.mu.Lock()
	queue := s.deferred
	s.deferred = nil
	s.mu.Unlock()

	for _, txn := range queue {
		if _, err := s.tokens.RecordEarn(ctx, txn); err != nil {
			s.mu.Lock()
			s.deferred = append(s.deferred, txn)
			s.mu.Unlock()
		} else {
			log.Printf("[Contribution] Deferred credit %s applied", txn.ID)
		}
	}
}

// DeferredCount reports how many credits await a persistence retry
func (s *ContributionService) DeferredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deferred)
}

// Spend debits a session balance, e.g. when a vote boost or map asset
// is purchased by the calling layer
func (s *ContributionService) Spend(ctx context.Context, sessionID string, amount float64, reason string) (models.SessionBalance, error) {
	if amount <= 0 {
		return models.SessionBalance{}, fmt.Errorf("spend amount must be positive")
	}

	txn := models.TokenTransaction{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      models.TransactionSpend,
		Amount:    s.calc.Round(amount),
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	return s.tokens.RecordSpend(ctx, txn)
}

// Balance returns a session's balance
func (s *ContributionService) Balance(ctx context.Context, sessionID string) (models.SessionBalance, error) {
	return s.tokens.GetBalance(ctx, sessionID)
}

// Transactions returns a session's ledger entries
func (s *ContributionService) Transactions(ctx context.Context, sessionID string, limit int) ([]models.TokenTransaction, error) {
	return s.tokens.GetTransactions(ctx, sessionID, limit)
}

// SupplyState returns the current token supply state
func (s *ContributionService) SupplyState(ctx context.Context) (models.TokenSupplyState, error) {
	return s.supply.State(ctx)
}
