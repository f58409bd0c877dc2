package movement

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/models"
)

// LocationSource provides the current device position on demand. The
// sampler polls it at the cadence of the active sampling profile.
type LocationSource interface {
	Current(ctx context.Context, profile config.SamplingProfile) (models.GPSFix, error)
}

// ChangeFunc is invoked when the classified movement type changes
type ChangeFunc func(previous, current models.MovementSample)

// PositionFunc is invoked on every successful classification cycle
type PositionFunc func(fix models.GPSFix, sample models.MovementSample)

// Sampler drives the classifier from a periodic timer whose interval
// follows the current movement mode. It is single-threaded and
// cooperative: all work happens between ticks, never concurrently.
type Sampler struct {
	cfg        config.MovementConfig
	source     LocationSource
	classifier *Classifier

	onChange   ChangeFunc
	onPosition PositionFunc

	mu       sync.Mutex
	profile  config.SamplingProfile
	failures int
}

// NewSampler creates a sampler over the given source. Callbacks may be
// nil. The sampler starts on the Unknown profile until classification
// settles.
func NewSampler(cfg config.MovementConfig, source LocationSource, onChange ChangeFunc, onPosition PositionFunc) *Sampler {
	return &Sampler{
		cfg:        cfg,
		source:     source,
		classifier: NewClassifier(cfg),
		onChange:   onChange,
		onPosition: onPosition,
		profile:    cfg.Profiles[models.MovementUnknown],
	}
}

// Profile returns the active sampling profile
func (s *Sampler) Profile() config.SamplingProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Failures returns how many consecutive source failures have occurred.
// Giving up after N failures is the caller's policy, not the sampler's.
func (s *Sampler) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Run polls the source until the context is cancelled. Each tick reads
// one fix, classifies it, and on a movement-type change switches to
// that type's sampling profile and restarts the timer.
func (s *Sampler) Run(ctx context.Context) {
	timer := time.NewTimer(s.Profile().Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.tick(ctx)
		timer.Reset(s.Profile().Interval)
	}
}

// tick performs one sampling cycle
func (s *Sampler) tick(ctx context.Context) {
	profile := s.Profile()
	readCtx, cancel := context.WithTimeout(ctx, profile.Timeout)
	fix, err := s.source.Current(readCtx, profile)
	cancel()
	if err != nil {
		// The last known sample stays untouched; repeated failure
		// handling is left to the caller via Failures.
		s.mu.Lock()
		s.failures++
		s.mu.Unlock()
		return
	}

	previous := s.classifier.Last()
	sample, err := s.classifier.AddFix(fix)
	if err != nil {
		log.Printf("[Sampler] Rejected fix: %v", err)
		return
	}

	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()

	if sample.Type != previous.Type {
		s.switchProfile(sample.Type)
		if s.onChange != nil {
			s.onChange(previous, sample)
		}
	}

	if sample.Type != models.MovementUnknown && s.onPosition != nil {
		s.onPosition(fix, sample)
	}
}

// switchProfile swaps the sampling configuration to the profile of the
// newly detected movement type
func (s *Sampler) switchProfile(typ models.MovementType) {
	profile, ok := s.cfg.Profiles[typ]
	if !ok {
		profile = s.cfg.Profiles[models.MovementUnknown]
	}

	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()

	log.Printf("[Sampler] Movement changed to %s, sampling every %s (%s accuracy)",
		typ, profile.Interval, profile.Accuracy)
}
