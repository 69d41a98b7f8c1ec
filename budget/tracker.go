// Package budget tracks generation spend against a rolling period limit with
// warning and hard-limit semantics, plus optional per-user rate limiting.
package budget

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Period is the rolling window over which spend accumulates before resetting.
type Period string

const (
	PeriodHourly  Period = "hourly"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Length returns the wall-clock duration of one period. Monthly uses a fixed
// 30-day window.
func (p Period) Length() time.Duration {
	switch p {
	case PeriodHourly:
		return time.Hour
	case PeriodWeekly:
		return 7 * 24 * time.Hour
	case PeriodMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Config holds budget policy knobs supplied by the embedding application.
type Config struct {
	Enabled          bool    `json:"enabled" mapstructure:"enabled"`
	Period           Period  `json:"period" mapstructure:"period"`
	LimitUSD         float64 `json:"limit_usd" mapstructure:"limit_usd"`
	WarningThreshold float64 `json:"warning_threshold" mapstructure:"warning_threshold"` // fraction, e.g. 0.8
	HardLimit        bool    `json:"hard_limit" mapstructure:"hard_limit"`
}

// DefaultConfig returns a disabled daily budget with an 80% warning line.
func DefaultConfig() Config {
	return Config{
		Period:           PeriodDaily,
		LimitUSD:         10.0,
		WarningThreshold: 0.8,
	}
}

// Tracker accumulates spend within the current period. The zero usage state
// is re-established exactly once per elapsed period boundary.
type Tracker struct {
	mu          sync.Mutex
	cfg         Config
	usageUSD    float64
	periodStart time.Time
	now         func() time.Time

	limitersMu sync.RWMutex
	limiters   map[string]*rate.Limiter

	logger *zap.Logger
}

// NewTracker creates a tracker with the period starting now.
func NewTracker(cfg Config, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = 0.8
	}
	if cfg.Period == "" {
		cfg.Period = PeriodDaily
	}
	return &Tracker{
		cfg:         cfg,
		periodStart: time.Now(),
		now:         time.Now,
		limiters:    make(map[string]*rate.Limiter),
		logger:      logger,
	}
}

// SetClock overrides the time source. Intended for tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	t.periodStart = now()
}

// resetIfNeeded advances the period boundary when at least one full period
// has elapsed, zeroing usage once. Advancing jumps to the most recent
// boundary so the same boundary can never be crossed twice. Must be called
// with t.mu held.
func (t *Tracker) resetIfNeeded() {
	length := t.cfg.Period.Length()
	elapsed := t.now().Sub(t.periodStart)
	if elapsed < length {
		return
	}
	periods := elapsed / length
	t.periodStart = t.periodStart.Add(periods * length)
	t.usageUSD = 0
	t.logger.Debug("budget period reset",
		zap.String("period", string(t.cfg.Period)),
		zap.Time("period_start", t.periodStart))
}

// AddUsage records spend against the current period.
func (t *Tracker) AddUsage(costUSD float64) {
	if costUSD < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	t.usageUSD += costUSD
	if t.cfg.Enabled && t.usageUSD >= t.cfg.LimitUSD*t.cfg.WarningThreshold {
		t.logger.Warn("budget warning threshold reached",
			zap.Float64("usage_usd", t.usageUSD),
			zap.Float64("limit_usd", t.cfg.LimitUSD))
	}
}

// Usage returns current-period spend.
func (t *Tracker) Usage() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.usageUSD
}

// Remaining returns budget left in the current period; zero when exceeded or
// when the budget is disabled and no limit applies.
func (t *Tracker) Remaining() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	if r := t.cfg.LimitUSD - t.usageUSD; r > 0 {
		return r
	}
	return 0
}

// Exceeded reports whether current spend has reached the limit. Always false
// when the budget is disabled.
func (t *Tracker) Exceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.cfg.Enabled && t.usageUSD >= t.cfg.LimitUSD
}

// WarningReached reports whether spend has crossed the warning threshold.
func (t *Tracker) WarningReached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.cfg.Enabled && t.usageUSD >= t.cfg.LimitUSD*t.cfg.WarningThreshold
}

// Enabled reports whether budget enforcement is on.
func (t *Tracker) Enabled() bool {
	return t.cfg.Enabled
}

// HardLimit reports whether the limit blocks work rather than only warning.
func (t *Tracker) HardLimit() bool {
	return t.cfg.HardLimit
}

// Config returns a copy of the tracker's policy.
func (t *Tracker) Config() Config {
	return t.cfg
}

// PeriodStart returns the start of the current period.
func (t *Tracker) PeriodStart() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.periodStart
}

// SetRateLimit configures a request rate limit for a user.
func (t *Tracker) SetRateLimit(userID string, requestsPerInterval int, interval time.Duration) {
	t.limitersMu.Lock()
	defer t.limitersMu.Unlock()
	perSecond := float64(requestsPerInterval) / interval.Seconds()
	t.limiters[userID] = rate.NewLimiter(rate.Limit(perSecond), requestsPerInterval)
}

// AllowRequest reports whether a user request fits its rate limit. Users
// without a configured limiter are always allowed.
func (t *Tracker) AllowRequest(userID string) bool {
	t.limitersMu.RLock()
	limiter, ok := t.limiters[userID]
	t.limitersMu.RUnlock()
	if !ok {
		return true
	}
	return limiter.Allow()
}
