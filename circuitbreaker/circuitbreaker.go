// Package circuitbreaker shields routing from repeatedly failing generation
// backends. Each backend gets its own breaker; the router treats a tripped
// backend as not capable until its cool-off passes.
package circuitbreaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config holds breaker thresholds shared by all backends in a Set.
type Config struct {
	FailureThreshold  int           // consecutive failures to trip open
	SuccessThreshold  int           // successes in half-open to close again
	OpenTimeout       time.Duration // cool-off before probing
	MaxHalfOpenProbes int           // concurrent probes allowed half-open
}

// DefaultConfig returns thresholds suited to generation backends.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		SuccessThreshold:  2,
		OpenTimeout:       30 * time.Second,
		MaxHalfOpenProbes: 1,
	}
}

type breaker struct {
	state        State
	consecFails  int
	probes       int
	probeSuccess int
	openedAt     time.Time
}

// Set manages one breaker per backend name.
type Set struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*breaker
	now      func() time.Time
	logger   *zap.Logger
}

// NewSet creates a breaker set.
func NewSet(cfg Config, logger *zap.Logger) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold <= 0 {
		cfg = DefaultConfig()
	}
	return &Set{
		cfg:      cfg,
		breakers: make(map[string]*breaker),
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Set) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Set) get(model string) *breaker {
	b, ok := s.breakers[model]
	if !ok {
		b = &breaker{state: StateClosed}
		s.breakers[model] = b
	}
	return b
}

// Allow reports whether a call to the backend may proceed, transitioning
// open breakers to half-open after the cool-off.
func (s *Set) Allow(model string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(model)
	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if s.now().Sub(b.openedAt) < s.cfg.OpenTimeout {
			return false
		}
		b.state = StateHalfOpen
		b.probes = 1
		b.probeSuccess = 0
		s.logger.Info("circuit breaker half-open", zap.String("model", model))
		return true
	case StateHalfOpen:
		if b.probes >= s.cfg.MaxHalfOpenProbes {
			return false
		}
		b.probes++
		return true
	}
	return true
}

// Available reports whether a backend is routable at all. Unlike Allow it
// does not consume a half-open probe, so it is safe to call while scoring
// many candidates. Open breakers become half-open once the cool-off passes.
func (s *Set) Available(model string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(model)
	if b.state != StateOpen {
		return true
	}
	if s.now().Sub(b.openedAt) < s.cfg.OpenTimeout {
		return false
	}
	b.state = StateHalfOpen
	b.probes = 0
	b.probeSuccess = 0
	s.logger.Info("circuit breaker half-open", zap.String("model", model))
	return true
}

// Record feeds one call outcome into the backend's breaker.
func (s *Set) Record(model string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(model)
	if success {
		switch b.state {
		case StateHalfOpen:
			b.probeSuccess++
			if b.probeSuccess >= s.cfg.SuccessThreshold {
				b.state = StateClosed
				b.consecFails = 0
				s.logger.Info("circuit breaker closed", zap.String("model", model))
			} else {
				// Room for the next probe.
				b.probes = 0
			}
		default:
			b.consecFails = 0
		}
		return
	}

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = s.now()
		s.logger.Warn("circuit breaker re-opened", zap.String("model", model))
	default:
		b.consecFails++
		if b.consecFails >= s.cfg.FailureThreshold {
			b.state = StateOpen
			b.openedAt = s.now()
			s.logger.Warn("circuit breaker opened",
				zap.String("model", model),
				zap.Int("consecutive_failures", b.consecFails))
		}
	}
}

// State returns the breaker state for a backend. Unknown backends are closed.
func (s *Set) State(model string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[model]; ok {
		return b.state
	}
	return StateClosed
}
