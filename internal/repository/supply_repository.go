package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/placepulse/backend-go/internal/ledger"
	"github.com/placepulse/backend-go/internal/models"
)

// SupplyRepository persists the token supply singleton row. It
// implements ledger.Store: writes are conditional on the stored
// version so a racing writer loses cleanly instead of clobbering.
type SupplyRepository struct {
	db *sql.DB
}

// NewSupplyRepository creates a new supply repository
func NewSupplyRepository(db *sql.DB) *SupplyRepository {
	return &SupplyRepository{db: db}
}

// Load reads the singleton supply row and its version
func (r *SupplyRepository) Load(ctx context.Context) (models.TokenSupplyState, int64, error) {
	query := `
		SELECT total_supply, tokens_in_circulation, current_multiplier,
			halving_count, last_halving_at, next_halving_at, is_cap_reached, version
		FROM token_supply WHERE id = 1
	`

	var s models.TokenSupplyState
	var lastHalving int64
	var capReached int
	var version int64
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.TotalSupply, &s.TokensInCirculation, &s.CurrentRewardMultiplier,
		&s.HalvingCount, &lastHalving, &s.NextHalvingAt, &capReached, &version,
	)
	if err != nil {
		return models.TokenSupplyState{}, 0, fmt.Errorf("failed to load supply state: %w", err)
	}

	if lastHalving > 0 {
		s.LastHalvingAt = time.Unix(lastHalving, 0).UTC()
	}
	s.IsCapReached = capReached == 1
	return s, version, nil
}

// Save applies the state only when the stored version still matches
// expectedVersion; otherwise it returns ledger.ErrConflict and writes
// nothing
func (r *SupplyRepository) Save(ctx context.Context, state models.TokenSupplyState, expectedVersion int64) error {
	query := `
		UPDATE token_supply
		SET total_supply = ?, tokens_in_circulation = ?, current_multiplier = ?,
			halving_count = ?, last_halving_at = ?, next_halving_at = ?,
			is_cap_reached = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1 AND version = ?
	`

	lastHalving := int64(0)
	if !state.LastHalvingAt.IsZero() {
		lastHalving = state.LastHalvingAt.Unix()
	}
	capReached := 0
	if state.IsCapReached {
		capReached = 1
	}

	res, err := r.db.ExecContext(ctx, query,
		state.TotalSupply, state.TokensInCirculation, state.CurrentRewardMultiplier,
		state.HalvingCount, lastHalving, state.NextHalvingAt, capReached,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update supply state: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ledger.ErrConflict
	}
	return nil
}
