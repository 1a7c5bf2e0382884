package audit

import (
	"math/rand"
	"sync"
)

// Sampler provides configurable sampling for operations events.
// High-volume actions (record_served in particular) can be sampled down to
// reduce storage and processing costs. Compliance events bypass sampling
// entirely; the Publisher never consults the sampler for them.
type Sampler struct {
	mu           sync.RWMutex
	defaultRate  float64
	rateByAction map[AuditEvent]float64
}

// NewSampler creates a sampler with the given default rate.
// Rate should be between 0.0 (sample nothing) and 1.0 (sample everything).
func NewSampler(defaultRate float64) *Sampler {
	return &Sampler{
		defaultRate:  clampRate(defaultRate),
		rateByAction: make(map[AuditEvent]float64),
	}
}

// ShouldSample returns true if the event should be kept.
func (s *Sampler) ShouldSample(action AuditEvent) bool {
	rate := s.rateFor(action)
	return rand.Float64() < rate //nolint:gosec // sampling doesn't need crypto rand
}

// SetRate overrides the default for a specific action.
func (s *Sampler) SetRate(action AuditEvent, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateByAction[action] = clampRate(rate)
}

func (s *Sampler) rateFor(action AuditEvent) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rate, ok := s.rateByAction[action]; ok {
		return rate
	}
	return s.defaultRate
}

func clampRate(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}
