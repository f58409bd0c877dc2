package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/models"
	"github.com/placepulse/backend-go/internal/movement"
	"github.com/placepulse/backend-go/internal/spatial"
	"github.com/placepulse/backend-go/internal/visit"
)

// contiguityGap is the largest silence between fixes still counted as
// continuous tracking for the reward time bonus.
const contiguityGap = 5 * time.Minute

// sessionTracker holds the per-session classification state. Each
// session is independent; the tracker mutex only serializes fixes of
// the same session.
type sessionTracker struct {
	mu         sync.Mutex
	classifier *movement.Classifier
	fixes      []models.TrackedFix
	pending    []models.TrackedFix // fixes awaiting a persistence retry
	startedAt  time.Time
}

// TrackingService manages per-session fix ingestion, classification
// and visit building
type TrackingService struct {
	movementCfg config.MovementConfig
	cellLevel   int
	builder     *visit.Builder
	fixStore    FixStore
	visitStore  VisitStore

	mu       sync.RWMutex
	sessions map[string]*sessionTracker
}

// NewTrackingService creates a tracking service
func NewTrackingService(cfg *config.Config, fixStore FixStore, visitStore VisitStore) *TrackingService {
	return &TrackingService{
		movementCfg: cfg.Movement,
		cellLevel:   cfg.Reward.DensityCellLevel,
		builder:     visit.NewBuilder(cfg.Visit),
		fixStore:    fixStore,
		visitStore:  visitStore,
		sessions:    make(map[string]*sessionTracker),
	}
}

// StartTracking registers a session. Starting an already-tracked
// session is a no-op.
func (s *TrackingService) StartTracking(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; ok {
		return
	}
	s.sessions[sessionID] = &sessionTracker{
		classifier: movement.NewClassifier(s.movementCfg),
		startedAt:  time.Now(),
	}
	log.Printf("[Tracking] Session %s started", sessionID)
}

// tracker returns the session tracker, creating it when a fix arrives
// for an unknown session
func (s *TrackingService) tracker(sessionID string) *sessionTracker {
	s.mu.RLock()
	t, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return t
	}

	s.StartTracking(sessionID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

// SubmitFix classifies a fix for a session and persists it. A store
// failure queues the fix for retry instead of dropping it; the
// classification still succeeds.
func (s *TrackingService) SubmitFix(ctx context.Context, sessionID string, fix models.GPSFix) (models.MovementSample, error) {
	t := s.tracker(sessionID)

	t.mu.Lock()
	defer t.mu.Unlock()

	sample, err := t.classifier.AddFix(fix)
	if err != nil {
		return sample, err
	}

	tracked := models.TrackedFix{GPSFix: fix, Movement: sample.Type}
	if tracked.HeadingDeg == 0 && len(t.fixes) > 0 {
		prev := t.fixes[len(t.fixes)-1]
		tracked.HeadingDeg = spatial.Bearing(prev.Latitude, prev.Longitude, fix.Latitude, fix.Longitude)
	}
	t.fixes = append(t.fixes, tracked)

	s.flushPendingLocked(ctx, sessionID, t)

	cell := spatial.CellToken(fix.Latitude, fix.Longitude, s.cellLevel)
	if err := s.fixStore.InsertFix(ctx, sessionID, tracked, cell); err != nil {
		log.Printf("[Tracking] Persist failed for session %s, queued for retry: %v", sessionID, err)
		t.pending = append(t.pending, tracked)
	}

	return sample, nil
}

// flushPendingLocked retries queued fix inserts. Caller holds the
// tracker mutex.
func (s *TrackingService) flushPendingLocked(ctx context.Context, sessionID string, t *sessionTracker) {
	remaining := t.pending[:0]
	for _, fix := range t.pending {
		cell := spatial.CellToken(fix.Latitude, fix.Longitude, s.cellLevel)
		if err := s.fixStore.InsertFix(ctx, sessionID, fix, cell); err != nil {
			remaining = append(remaining, fix)
		}
	}
	t.pending = remaining
}

// CurrentMovement returns the session's latest movement sample.
// Unknown when the session is not tracked or has too few fixes.
func (s *TrackingService) CurrentMovement(sessionID string) models.MovementSample {
	s.mu.RLock()
	t, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return models.MovementSample{Type: models.MovementUnknown}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.classifier.Last()
}

// ContiguousMinutes returns how long the session has been tracked
// without a gap, walking back from the newest fix
func (s *TrackingService) ContiguousMinutes(sessionID string) float64 {
	s.mu.RLock()
	t, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.fixes) < 2 {
		return 0
	}

	end := len(t.fixes) - 1
	start := end
	for start > 0 {
		gap := t.fixes[start].Timestamp.Sub(t.fixes[start-1].Timestamp)
		if gap > contiguityGap {
			break
		}
		start--
	}

	return t.fixes[end].Timestamp.Sub(t.fixes[start].Timestamp).Minutes()
}

// StopTracking closes a session: any queued fixes are flushed before
// the session stops, then its fixes are clustered into visits and
// persisted. Returns the closed visits.
func (s *TrackingService) StopTracking(ctx context.Context, sessionID string) ([]models.Visit, error) {
	s.mu.RLock()
	t, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s is not tracked", sessionID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Pending contributions must not be silently dropped on stop. The
	// session stays registered until everything lands so a later stop
	// can retry.
	s.flushPendingLocked(ctx, sessionID, t)
	if len(t.pending) > 0 {
		return nil, fmt.Errorf("session %s has %d fixes that could not be persisted", sessionID, len(t.pending))
	}

	visits := s.builder.Build(sessionID, t.fixes)
	if err := s.visitStore.InsertVisits(ctx, visits); err != nil {
		return nil, fmt.Errorf("failed to persist visits: %w", err)
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	log.Printf("[Tracking] Session %s stopped: %d fixes, %d visits", sessionID, len(t.fixes), len(visits))
	return visits, nil
}
