package models

import "time"

// TransactionType distinguishes earn and spend ledger entries
type TransactionType string

const (
	TransactionEarn  TransactionType = "earn"
	TransactionSpend TransactionType = "spend"
)

// TokenSupplyState is the process-wide token supply singleton.
// Invariant: 0 <= TotalSupply <= the configured max supply, and
// IsCapReached is true iff TotalSupply equals it.
type TokenSupplyState struct {
	TotalSupply             float64   `json:"totalSupply" db:"total_supply"`
	TokensInCirculation     float64   `json:"tokensInCirculation" db:"tokens_in_circulation"`
	CurrentRewardMultiplier float64   `json:"currentRewardMultiplier" db:"current_multiplier"`
	HalvingCount            int       `json:"halvingCount" db:"halving_count"`
	LastHalvingAt           time.Time `json:"lastHalvingAt,omitempty" db:"last_halving_at"`
	NextHalvingAt           float64   `json:"nextHalvingAt" db:"next_halving_at"` // supply level of the next halving
	IsCapReached            bool      `json:"isCapReached" db:"is_cap_reached"`
}

// SessionBalance tracks a session's token balance.
// Conservation invariant: Balance = TotalEarned - TotalSpent.
type SessionBalance struct {
	SessionID   string  `json:"sessionId" db:"session_id"`
	Balance     float64 `json:"balance" db:"balance"`
	TotalEarned float64 `json:"totalEarned" db:"total_earned"`
	TotalSpent  float64 `json:"totalSpent" db:"total_spent"`
}

// TokenTransaction is an append-only ledger entry
type TokenTransaction struct {
	ID        string          `json:"id" db:"id"`
	SessionID string          `json:"sessionId" db:"session_id"`
	Type      TransactionType `json:"type" db:"type"`
	Amount    float64         `json:"amount" db:"amount"`
	Reason    string          `json:"reason" db:"reason"`
	Timestamp time.Time       `json:"timestamp" db:"created_at"`
}

// Contribution is one reward-eligible tracked point submitted by a session
type Contribution struct {
	SessionID      string       `json:"sessionId"`
	ContributionID string       `json:"contributionId"`
	Fix            GPSFix       `json:"fix"`
	Movement       MovementType `json:"movement,omitempty"`
	TrackedMinutes float64      `json:"trackedMinutes,omitempty"` // contiguous tracking time so far
}

// RewardBreakdownItem explains one component of an awarded reward
type RewardBreakdownItem struct {
	Component string  `json:"component"`
	Amount    float64 `json:"amount"`
}

// RewardResult is returned for every contribution event. Cap reached,
// duplicates and zero awards are expressed here, never as errors.
type RewardResult struct {
	TokensAwarded float64               `json:"tokensAwarded"`
	Breakdown     []RewardBreakdownItem `json:"breakdown"`
	NewBalance    float64               `json:"newBalance"`
	Duplicate     bool                  `json:"duplicate,omitempty"`
	CapReached    bool                  `json:"capReached,omitempty"`
	Reason        string                `json:"reason,omitempty"`
}
