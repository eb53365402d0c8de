// Package admission implements the per-client sliding-window rate
// limiter and the global daily cost cap that gate roast generation.
package admission

import (
	"sync"
	"time"

	"github.com/roasting-id/roasting-service/internal/roast"
)

// Config controls the admission ceilings.
type Config struct {
	PerMinute   int
	PerHour     int
	DailyBudget int
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Reason     roast.AdmissionReason
	RetryAfter time.Duration
}

// Err converts a rejection into the domain error. Returns nil when the
// request was admitted.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &roast.AdmissionError{Reason: d.Reason, RetryAfter: d.RetryAfter}
}

// Limiter tracks request timestamps per client key within a rolling hour
// and counts generation attempts against a daily budget. All state is
// in-process; a multi-instance deployment swaps this for a shared
// counter store behind the same methods.
type Limiter struct {
	mu      sync.Mutex
	clients map[string][]time.Time
	cfg     Config
	clock   roast.Clock

	budget    sync.Mutex
	consumed  int
	budgetDay time.Time
}

// New creates a Limiter. Zero or negative ceilings fall back to the
// defaults (5/min, 20/hour, 100/day).
func New(cfg Config, clock roast.Clock) *Limiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 5
	}
	if cfg.PerHour <= 0 {
		cfg.PerHour = 20
	}
	if cfg.DailyBudget <= 0 {
		cfg.DailyBudget = 100
	}
	return &Limiter{
		clients: make(map[string][]time.Time),
		cfg:     cfg,
		clock:   clock,
	}
}

// Admit checks the per-minute window, the per-hour window and the daily
// budget, in that order, and records the request timestamp when all
// three pass. Check-then-record is atomic per key.
func (l *Limiter) Admit(clientKey string) Decision {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	window := evict(l.clients[clientKey], now.Add(-time.Hour))

	minuteCutoff := now.Add(-time.Minute)
	minuteCount := 0
	var oldestInMinute time.Time
	for _, ts := range window {
		if ts.After(minuteCutoff) {
			if minuteCount == 0 {
				oldestInMinute = ts
			}
			minuteCount++
		}
	}

	if minuteCount >= l.cfg.PerMinute {
		l.clients[clientKey] = window
		return Decision{
			Reason:     roast.ReasonPerMinuteExceeded,
			RetryAfter: retryAfter(oldestInMinute, time.Minute, now),
		}
	}
	if len(window) >= l.cfg.PerHour {
		l.clients[clientKey] = window
		return Decision{
			Reason:     roast.ReasonPerHourExceeded,
			RetryAfter: retryAfter(window[0], time.Hour, now),
		}
	}
	if l.budgetExhausted(now) {
		l.clients[clientKey] = window
		return Decision{Reason: roast.ReasonDailyCostExceeded}
	}

	l.clients[clientKey] = append(window, now)
	return Decision{Allowed: true}
}

// ConsumeBudget counts one generation attempt against the daily budget.
// It returns false when the ceiling was reached between admission and
// the attempt; a consumed unit is never handed back.
func (l *Limiter) ConsumeBudget() bool {
	now := l.clock.Now()

	l.budget.Lock()
	defer l.budget.Unlock()

	l.rolloverLocked(now)
	if l.consumed >= l.cfg.DailyBudget {
		return false
	}
	l.consumed++
	return true
}

// RemainingBudget reports how many generation attempts are left today.
func (l *Limiter) RemainingBudget() int {
	now := l.clock.Now()

	l.budget.Lock()
	defer l.budget.Unlock()

	l.rolloverLocked(now)
	return l.cfg.DailyBudget - l.consumed
}

// Sweep drops client windows with no activity in the last hour. Run it
// periodically; Admit already evicts lazily per key.
func (l *Limiter) Sweep() {
	cutoff := l.clock.Now().Add(-time.Hour)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, window := range l.clients {
		window = evict(window, cutoff)
		if len(window) == 0 {
			delete(l.clients, key)
			continue
		}
		l.clients[key] = window
	}
}

func (l *Limiter) budgetExhausted(now time.Time) bool {
	l.budget.Lock()
	defer l.budget.Unlock()
	l.rolloverLocked(now)
	return l.consumed >= l.cfg.DailyBudget
}

// rolloverLocked resets the counter when the UTC day changes.
func (l *Limiter) rolloverLocked(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if !day.Equal(l.budgetDay) {
		l.budgetDay = day
		l.consumed = 0
	}
}

func evict(window []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(window) && !window[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return window
	}
	return append(window[:0:0], window[idx:]...)
}

func retryAfter(oldest time.Time, span time.Duration, now time.Time) time.Duration {
	wait := oldest.Add(span).Sub(now)
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}
