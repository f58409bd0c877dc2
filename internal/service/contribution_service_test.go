package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/ledger"
	"github.com/placepulse/backend-go/internal/models"
	"github.com/placepulse/backend-go/internal/reward"
)

// memFixStore is an in-memory FixStore for service tests
type memFixStore struct {
	mu         sync.Mutex
	fixes      map[string][]models.TrackedFix
	cellCounts map[string]int64
	failInsert bool
}

func newMemFixStore() *memFixStore {
	return &memFixStore{
		fixes:      make(map[string][]models.TrackedFix),
		cellCounts: make(map[string]int64),
	}
}

func (m *memFixStore) InsertFix(ctx context.Context, sessionID string, fix models.TrackedFix, cellToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return errors.New("store offline")
	}
	m.fixes[sessionID] = append(m.fixes[sessionID], fix)
	m.cellCounts[cellToken]++
	return nil
}

func (m *memFixStore) GetSessionFixes(ctx context.Context, sessionID string) ([]models.TrackedFix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fixes[sessionID], nil
}

func (m *memFixStore) CellPointCount(ctx context.Context, cellToken string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cellCounts[cellToken], nil
}

// memVisitStore is an in-memory VisitStore
type memVisitStore struct {
	mu     sync.Mutex
	visits map[string][]models.Visit
}

func newMemVisitStore() *memVisitStore {
	return &memVisitStore{visits: make(map[string][]models.Visit)}
}

func (m *memVisitStore) InsertVisits(ctx context.Context, visits []models.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range visits {
		m.visits[v.SessionID] = append(m.visits[v.SessionID], v)
	}
	return nil
}

func (m *memVisitStore) GetVisitsBySession(ctx context.Context, sessionID string) ([]models.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visits[sessionID], nil
}

// memTokenStore is an in-memory TokenStore. Earns conflict on a
// duplicate transaction id, mirroring the SQL primary key.
type memTokenStore struct {
	mu          sync.Mutex
	balances    map[string]models.SessionBalance
	txns        map[string]models.TokenTransaction
	failEarns   int
	failBalance bool
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{
		balances: make(map[string]models.SessionBalance),
		txns:     make(map[string]models.TokenTransaction),
	}
}

func (m *memTokenStore) RecordEarn(ctx context.Context, txn models.TokenTransaction) (models.SessionBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEarns > 0 {
		m.failEarns--
		return models.SessionBalance{}, errors.New("store offline")
	}
	if _, exists := m.txns[txn.ID]; exists {
		return models.SessionBalance{}, fmt.Errorf("transaction %s already recorded", txn.ID)
	}
	m.txns[txn.ID] = txn

	b := m.balances[txn.SessionID]
	b.SessionID = txn.SessionID
	b.Balance += txn.Amount
	b.TotalEarned += txn.Amount
	m.balances[txn.SessionID] = b
	return b, nil
}

func (m *memTokenStore) RecordSpend(ctx context.Context, txn models.TokenTransaction) (models.SessionBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balances[txn.SessionID]
	if b.Balance < txn.Amount {
		return models.SessionBalance{}, errors.New("insufficient balance")
	}
	m.txns[txn.ID] = txn
	b.Balance -= txn.Amount
	b.TotalSpent += txn.Amount
	m.balances[txn.SessionID] = b
	return b, nil
}

func (m *memTokenStore) GetBalance(ctx context.Context, sessionID string) (models.SessionBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failBalance {
		return models.SessionBalance{}, errors.New("store offline")
	}
	b := m.balances[sessionID]
	b.SessionID = sessionID
	return b, nil
}

func (m *memTokenStore) GetTransactions(ctx context.Context, sessionID string, limit int) ([]models.TokenTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TokenTransaction
	for _, txn := range m.txns {
		if txn.SessionID == sessionID {
			out = append(out, txn)
		}
	}
	return out, nil
}

type contributionFixture struct {
	svc    *ContributionService
	tokens *memTokenStore
	fixes  *memFixStore
	supply *ledger.MemoryStore
}

func newContributionFixture(t *testing.T) *contributionFixture {
	t.Helper()
	cfg := &config.Config{
		Movement: config.DefaultMovement(),
		Visit:    config.DefaultVisit(),
		Vote:     config.DefaultVote(),
		Reward:   config.DefaultReward(),
		Supply:   config.DefaultSupply(),
	}

	fixes := newMemFixStore()
	tokens := newMemTokenStore()
	supplyStore := ledger.NewMemoryStore()
	supply := ledger.New(cfg.Supply, supplyStore)
	tracking := NewTrackingService(cfg, fixes, newMemVisitStore())
	dedup := reward.NewMemoryDedup(time.Hour)

	return &contributionFixture{
		svc:    NewContributionService(cfg.Reward, dedup, supply, tokens, fixes, tracking),
		tokens: tokens,
		fixes:  fixes,
		supply: supplyStore,
	}
}

func testContribution(id string) models.Contribution {
	return models.Contribution{
		SessionID:      "session-1",
		ContributionID: id,
		Fix: models.GPSFix{
			Latitude:       40.0,
			Longitude:      -74.0,
			AccuracyMeters: 8,
			Timestamp:      time.Now(),
		},
		Movement:       models.MovementWalking,
		TrackedMinutes: 10,
	}
}

func TestProcessAwardsTokens(t *testing.T) {
	f := newContributionFixture(t)
	ctx := context.Background()

	result, err := f.svc.Process(ctx, testContribution("c1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.TokensAwarded <= 0 {
		t.Fatalf("expected positive award, got %f", result.TokensAwarded)
	}
	if result.Duplicate || result.CapReached {
		t.Fatalf("unexpected flags: %+v", result)
	}
	if result.NewBalance != result.TokensAwarded {
		t.Fatalf("balance %f should equal first award %f", result.NewBalance, result.TokensAwarded)
	}

	// Supply grew by exactly the award.
	state, err := f.svc.SupplyState(ctx)
	if err != nil {
		t.Fatalf("supply state: %v", err)
	}
	if state.TotalSupply != result.TokensAwarded {
		t.Fatalf("supply %f, want %f", state.TotalSupply, result.TokensAwarded)
	}
}

func TestProcessResubmissionIsIdempotent(t *testing.T) {
	f := newContributionFixture(t)
	ctx := context.Background()

	first, err := f.svc.Process(ctx, testContribution("c1"))
	if err != nil {
		t.Fatalf("first process: %v", err)
	}

	second, err := f.svc.Process(ctx, testContribution("c1"))
	if err != nil {
		t.Fatalf("resubmission: %v", err)
	}

	if !second.Duplicate {
		t.Fatalf("resubmission not flagged duplicate: %+v", second)
	}
	if second.TokensAwarded != 0 {
		t.Fatalf("resubmission awarded %f tokens", second.TokensAwarded)
	}
	if second.NewBalance != first.NewBalance {
		t.Fatalf("balance changed on duplicate: %f -> %f", first.NewBalance, second.NewBalance)
	}
}

func TestProcessGeneratesContributionID(t *testing.T) {
	f := newContributionFixture(t)
	ctx := context.Background()

	c := testContribution("")
	first, err := f.svc.Process(ctx, c)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	second, err := f.svc.Process(ctx, c)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	// Without a client-supplied id each submission is a fresh event.
	if first.TokensAwarded <= 0 || second.TokensAwarded <= 0 {
		t.Fatalf("both submissions should be rewarded: %f, %f", first.TokensAwarded, second.TokensAwarded)
	}
}

func TestProcessRejectsInvalidFix(t *testing.T) {
	f := newContributionFixture(t)

	c := testContribution("c1")
	c.Fix.Latitude = 91
	if _, err := f.svc.Process(context.Background(), c); !errors.Is(err, models.ErrInvalidFix) {
		t.Fatalf("expected ErrInvalidFix, got %v", err)
	}

	c = testContribution("c2")
	c.SessionID = ""
	if _, err := f.svc.Process(context.Background(), c); !errors.Is(err, models.ErrInvalidFix) {
		t.Fatalf("expected ErrInvalidFix for missing session, got %v", err)
	}
}

func TestProcessAtSupplyCap(t *testing.T) {
	f := newContributionFixture(t)
	cfg := config.DefaultSupply()
	f.supply.Seed(models.TokenSupplyState{
		TotalSupply:         cfg.MaxSupply,
		TokensInCirculation: cfg.MaxSupply,
		IsCapReached:        true,
	})

	result, err := f.svc.Process(context.Background(), testContribution("c1"))
	if err != nil {
		t.Fatalf("process at cap must not error: %v", err)
	}

	if result.TokensAwarded != 0 {
		t.Fatalf("awarded %f at cap", result.TokensAwarded)
	}
	if !result.CapReached {
		t.Fatalf("cap not reported: %+v", result)
	}
	if result.Reason == "" {
		t.Fatalf("expected a zero-reward reason")
	}
}

func TestProcessDefersCreditOnBalanceFailure(t *testing.T) {
	f := newContributionFixture(t)
	ctx := context.Background()

	f.tokens.failEarns = 1
	result, err := f.svc.Process(ctx, testContribution("c1"))
	if err != nil {
		t.Fatalf("process with failing balance store: %v", err)
	}

	if result.TokensAwarded <= 0 {
		t.Fatalf("mint succeeded, award must be reported: %+v", result)
	}
	if f.svc.DeferredCount() != 1 {
		t.Fatalf("expected 1 deferred credit, got %d", f.svc.DeferredCount())
	}

	// The next call re-applies the queued credit before its own work.
	second, err := f.svc.Process(ctx, testContribution("c2"))
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if f.svc.DeferredCount() != 0 {
		t.Fatalf("deferred credit not drained, %d left", f.svc.DeferredCount())
	}

	want := result.TokensAwarded + second.TokensAwarded
	balance, err := f.svc.Balance(ctx, "session-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Balance != want {
		t.Fatalf("balance %f, want %f (no lost or doubled credit)", balance.Balance, want)
	}
}

// flakySupplyStore rejects the first n saves with a hard error
type flakySupplyStore struct {
	*ledger.MemoryStore
	failSaves int
}

func (f *flakySupplyStore) Save(ctx context.Context, state models.TokenSupplyState, expectedVersion int64) error {
	if f.failSaves > 0 {
		f.failSaves--
		return errors.New("store offline")
	}
	return f.MemoryStore.Save(ctx, state, expectedVersion)
}

func TestProcessReleasesClaimWhenMintFails(t *testing.T) {
	cfg := &config.Config{
		Movement: config.DefaultMovement(),
		Visit:    config.DefaultVisit(),
		Vote:     config.DefaultVote(),
		Reward:   config.DefaultReward(),
		Supply:   config.DefaultSupply(),
	}
	fixes := newMemFixStore()
	tokens := newMemTokenStore()
	store := &flakySupplyStore{MemoryStore: ledger.NewMemoryStore(), failSaves: 1}
	supply := ledger.New(cfg.Supply, store)
	tracking := NewTrackingService(cfg, fixes, newMemVisitStore())
	svc := NewContributionService(cfg.Reward, reward.NewMemoryDedup(time.Hour), supply, tokens, fixes, tracking)
	ctx := context.Background()

	if _, err := svc.Process(ctx, testContribution("c1")); err == nil {
		t.Fatalf("expected error while supply store is down")
	}

	// The store heals. Nothing was granted on the first attempt, so the
	// retry of the same contribution must be rewarded, not reported as
	// a duplicate.
	result, err := svc.Process(ctx, testContribution("c1"))
	if err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
	if result.Duplicate {
		t.Fatalf("retry reported duplicate: %+v", result)
	}
	if result.TokensAwarded <= 0 {
		t.Fatalf("retry awarded %f tokens", result.TokensAwarded)
	}

	// The claim now holds: a further resubmission is a real duplicate.
	again, err := svc.Process(ctx, testContribution("c1"))
	if err != nil {
		t.Fatalf("resubmission: %v", err)
	}
	if !again.Duplicate || again.TokensAwarded != 0 {
		t.Fatalf("resubmission after award: %+v", again)
	}
}

func TestProcessDuplicateFailsWhenBalanceUnavailable(t *testing.T) {
	f := newContributionFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Process(ctx, testContribution("c1")); err != nil {
		t.Fatalf("process: %v", err)
	}

	// A duplicate with an unreadable balance must surface the store
	// failure instead of reporting a zero balance as real.
	f.tokens.failBalance = true
	if _, err := f.svc.Process(ctx, testContribution("c1")); err == nil {
		t.Fatalf("expected error when the balance store is down")
	}
}

func TestSpendDebitsBalance(t *testing.T) {
	f := newContributionFixture(t)
	ctx := context.Background()

	first, err := f.svc.Process(ctx, testContribution("c1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	balance, err := f.svc.Spend(ctx, "session-1", first.TokensAwarded/2, "map theme")
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if balance.Balance >= first.TokensAwarded {
		t.Fatalf("balance not debited: %f", balance.Balance)
	}

	if _, err := f.svc.Spend(ctx, "session-1", 1e9, "too much"); err == nil {
		t.Fatalf("overspend must fail")
	}
	if _, err := f.svc.Spend(ctx, "session-1", -1, "negative"); err == nil {
		t.Fatalf("negative spend must fail")
	}
}
