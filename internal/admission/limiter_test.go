package admission

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roasting-id/roasting-service/internal/roast"
)

// fakeClock is a settable clock for window tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(clock roast.Clock) *Limiter {
	return New(Config{PerMinute: 5, PerHour: 20, DailyBudget: 100}, clock)
}

func TestAdmitPerMinuteCeiling(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	l := newTestLimiter(clock)

	for i := 0; i < 5; i++ {
		d := l.Admit("1.2.3.4")
		require.True(t, d.Allowed, "request %d should be admitted", i+1)
		clock.Advance(time.Second)
	}

	d := l.Admit("1.2.3.4")
	require.False(t, d.Allowed)
	require.Equal(t, roast.ReasonPerMinuteExceeded, d.Reason)
	require.Greater(t, d.RetryAfter, time.Duration(0))
	require.LessOrEqual(t, d.RetryAfter, time.Minute)

	// Other clients are unaffected.
	require.True(t, l.Admit("5.6.7.8").Allowed)
}

func TestAdmitMinuteWindowSlides(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	l := newTestLimiter(clock)

	for i := 0; i < 5; i++ {
		require.True(t, l.Admit("ip").Allowed)
	}
	require.False(t, l.Admit("ip").Allowed)

	clock.Advance(61 * time.Second)
	require.True(t, l.Admit("ip").Allowed)
}

func TestAdmitPerHourCeiling(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	l := newTestLimiter(clock)

	// Spread 20 requests so the minute ceiling never trips.
	for i := 0; i < 20; i++ {
		require.True(t, l.Admit("ip").Allowed, "request %d", i+1)
		clock.Advance(90 * time.Second)
	}

	d := l.Admit("ip")
	require.False(t, d.Allowed)
	require.Equal(t, roast.ReasonPerHourExceeded, d.Reason)
	require.Greater(t, d.RetryAfter, time.Duration(0))

	// The window is rolling: once the oldest entries age out, requests
	// are admitted again.
	clock.Advance(30 * time.Minute)
	require.True(t, l.Admit("ip").Allowed)
}

func TestDailyBudgetRejectsAtCeilingAndResets(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC))
	l := New(Config{PerMinute: 1000, PerHour: 1000, DailyBudget: 3}, clock)

	for i := 0; i < 3; i++ {
		require.True(t, l.ConsumeBudget())
	}
	require.False(t, l.ConsumeBudget())
	require.Equal(t, 0, l.RemainingBudget())

	d := l.Admit("ip")
	require.False(t, d.Allowed)
	require.Equal(t, roast.ReasonDailyCostExceeded, d.Reason)
	require.Zero(t, d.RetryAfter)

	// Day rollover resets the counter.
	clock.Advance(2 * time.Hour)
	require.Equal(t, 3, l.RemainingBudget())
	require.True(t, l.Admit("ip").Allowed)
	require.True(t, l.ConsumeBudget())
}

func TestAdmitRejectionDoesNotConsumeBudget(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	l := New(Config{PerMinute: 1, PerHour: 20, DailyBudget: 10}, clock)

	require.True(t, l.Admit("ip").Allowed)
	require.False(t, l.Admit("ip").Allowed)
	require.Equal(t, 10, l.RemainingBudget())
}

func TestAdmitConcurrentSameKeyHonorsCeiling(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	l := newTestLimiter(clock)

	var wg sync.WaitGroup
	allowed := make(chan struct{}, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("ip").Allowed {
				allowed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for range allowed {
		count++
	}
	require.Equal(t, 5, count)
}

func TestConsumeBudgetConcurrent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	l := New(Config{PerMinute: 1000, PerHour: 1000, DailyBudget: 50}, clock)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.ConsumeBudget() {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	require.Equal(t, 50, count)
	require.Equal(t, 0, l.RemainingBudget())
}

func TestSweepDropsIdleClients(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	l := newTestLimiter(clock)

	require.True(t, l.Admit("idle").Allowed)
	require.True(t, l.Admit("busy").Allowed)

	clock.Advance(2 * time.Hour)
	require.True(t, l.Admit("busy").Allowed)
	l.Sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotContains(t, l.clients, "idle")
	require.Contains(t, l.clients, "busy")
}

func TestDecisionErr(t *testing.T) {
	t.Parallel()

	require.NoError(t, Decision{Allowed: true}.Err())

	err := Decision{Reason: roast.ReasonPerMinuteExceeded, RetryAfter: 10 * time.Second}.Err()
	require.Error(t, err)
	admission, ok := err.(*roast.AdmissionError)
	require.True(t, ok)
	require.Equal(t, roast.ReasonPerMinuteExceeded, admission.Reason)
	require.Equal(t, 10*time.Second, admission.RetryAfter)
}
