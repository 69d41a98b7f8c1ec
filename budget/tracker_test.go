package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestTracker(cfg Config) (*Tracker, *time.Time) {
	tr := NewTracker(cfg, zap.NewNop())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.SetClock(func() time.Time { return now })
	return tr, &now
}

func TestAddUsageMonotonicBetweenResets(t *testing.T) {
	tr, _ := newTestTracker(Config{Enabled: true, Period: PeriodDaily, LimitUSD: 5, WarningThreshold: 0.8})

	var last float64
	for i := 0; i < 10; i++ {
		tr.AddUsage(0.25)
		u := tr.Usage()
		assert.GreaterOrEqual(t, u, last)
		last = u
	}
	assert.InDelta(t, 2.5, tr.Usage(), 1e-9)

	// Negative usage is ignored.
	tr.AddUsage(-1)
	assert.InDelta(t, 2.5, tr.Usage(), 1e-9)
}

func TestResetExactlyOncePerPeriod(t *testing.T) {
	tr, now := newTestTracker(Config{Enabled: true, Period: PeriodHourly, LimitUSD: 5, WarningThreshold: 0.8})
	start := tr.PeriodStart()

	tr.AddUsage(3)

	// Just before the boundary: nothing resets.
	*now = start.Add(59 * time.Minute)
	assert.InDelta(t, 3.0, tr.Usage(), 1e-9)
	assert.Equal(t, start, tr.PeriodStart())

	// Crossing the boundary resets once and advances the period start.
	*now = start.Add(61 * time.Minute)
	assert.Equal(t, 0.0, tr.Usage())
	assert.Equal(t, start.Add(time.Hour), tr.PeriodStart())

	// Repeated reads within the same period never reset again.
	tr.AddUsage(1)
	*now = start.Add(90 * time.Minute)
	assert.InDelta(t, 1.0, tr.Usage(), 1e-9)
	assert.Equal(t, start.Add(time.Hour), tr.PeriodStart())
}

func TestResetCatchesUpOverMultiplePeriods(t *testing.T) {
	tr, now := newTestTracker(Config{Enabled: true, Period: PeriodHourly, LimitUSD: 5})
	start := tr.PeriodStart()
	tr.AddUsage(2)

	*now = start.Add(3*time.Hour + 10*time.Minute)
	assert.Equal(t, 0.0, tr.Usage())
	assert.Equal(t, start.Add(3*time.Hour), tr.PeriodStart())
}

func TestExceededAndWarningSemantics(t *testing.T) {
	tr, _ := newTestTracker(Config{Enabled: true, Period: PeriodDaily, LimitUSD: 10, WarningThreshold: 0.8, HardLimit: true})

	tr.AddUsage(7.9)
	assert.False(t, tr.WarningReached())
	assert.False(t, tr.Exceeded())

	tr.AddUsage(0.1)
	assert.True(t, tr.WarningReached())
	assert.False(t, tr.Exceeded())
	assert.InDelta(t, 2.0, tr.Remaining(), 1e-9)

	tr.AddUsage(2)
	assert.True(t, tr.Exceeded())
	assert.Equal(t, 0.0, tr.Remaining())
}

func TestDisabledBudgetNeverExceeds(t *testing.T) {
	tr, _ := newTestTracker(Config{Enabled: false, Period: PeriodDaily, LimitUSD: 1})
	tr.AddUsage(100)
	assert.False(t, tr.Exceeded())
	assert.False(t, tr.WarningReached())
}

func TestPeriodLengths(t *testing.T) {
	assert.Equal(t, time.Hour, PeriodHourly.Length())
	assert.Equal(t, 24*time.Hour, PeriodDaily.Length())
	assert.Equal(t, 7*24*time.Hour, PeriodWeekly.Length())
	assert.Equal(t, 30*24*time.Hour, PeriodMonthly.Length())
	assert.Equal(t, 24*time.Hour, Period("unknown").Length())
}

func TestRateLimit(t *testing.T) {
	tr, _ := newTestTracker(DefaultConfig())

	// No limiter configured: always allowed.
	assert.True(t, tr.AllowRequest("u1"))

	tr.SetRateLimit("u1", 2, time.Hour)
	assert.True(t, tr.AllowRequest("u1"))
	assert.True(t, tr.AllowRequest("u1"))
	assert.False(t, tr.AllowRequest("u1"))

	// Other users are unaffected.
	assert.True(t, tr.AllowRequest("u2"))
}
