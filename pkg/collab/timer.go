package collab

import (
	"sort"
	"sync"
	"time"
)

// TimerCallbacks holds the optional callbacks a timer can fire. Each
// callback fires at most once per timer except OnTick, which fires on
// every tick interval until the timer expires or is cancelled.
type TimerCallbacks struct {
	OnWarning func(remaining time.Duration)
	OnExpire  func()
	OnTick    func(remaining time.Duration)
}

// TimeManager creates countdown timers with warning thresholds. It is a
// pure scheduling primitive with no knowledge of sessions or rounds:
// callers treat "expired" as a signal, not an exception.
type TimeManager struct {
	warningFractions []float64
	tickInterval     time.Duration
}

// TimeManagerOption configures a TimeManager
type TimeManagerOption func(*TimeManager)

// WithWarningFractions overrides the elapsed-time fractions at which
// OnWarning fires. Defaults are 0.75 and 0.90.
func WithWarningFractions(fractions ...float64) TimeManagerOption {
	return func(tm *TimeManager) {
		tm.warningFractions = fractions
	}
}

// WithTickInterval sets the OnTick interval. Zero disables ticking.
func WithTickInterval(d time.Duration) TimeManagerOption {
	return func(tm *TimeManager) {
		tm.tickInterval = d
	}
}

// NewTimeManager creates a TimeManager with default warning fractions
func NewTimeManager(opts ...TimeManagerOption) *TimeManager {
	tm := &TimeManager{
		warningFractions: []float64{0.75, 0.90},
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Timer is a handle to one running countdown
type Timer struct {
	deadline time.Time
	done     chan struct{}
	expired  chan struct{}

	mu        sync.Mutex
	cancelled bool
	fired     bool
}

// Start begins a countdown of the given duration. Callbacks fire on an
// internal goroutine; cancelling before expiry suppresses all remaining
// callbacks.
func (tm *TimeManager) Start(duration time.Duration, cb TimerCallbacks) *Timer {
	t := &Timer{
		deadline: time.Now().Add(duration),
		done:     make(chan struct{}),
		expired:  make(chan struct{}),
	}

	warnings := make([]time.Duration, 0, len(tm.warningFractions))
	for _, f := range tm.warningFractions {
		if f > 0 && f < 1 {
			warnings = append(warnings, time.Duration(float64(duration)*f))
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i] < warnings[j] })

	go t.run(duration, warnings, tm.tickInterval, cb)

	return t
}

// run drives the countdown until expiry or cancellation.
func (t *Timer) run(duration time.Duration, warnings []time.Duration, tickInterval time.Duration, cb TimerCallbacks) {
	expiry := time.NewTimer(duration)
	defer expiry.Stop()

	var tick *time.Ticker
	var tickCh <-chan time.Time
	if tickInterval > 0 && cb.OnTick != nil {
		tick = time.NewTicker(tickInterval)
		defer tick.Stop()
		tickCh = tick.C
	}

	start := t.deadline.Add(-duration)
	nextWarning := 0
	var warnCh <-chan time.Time
	var warnTimer *time.Timer
	armWarning := func() {
		if nextWarning >= len(warnings) {
			warnCh = nil
			return
		}
		warnTimer = time.NewTimer(time.Until(start.Add(warnings[nextWarning])))
		warnCh = warnTimer.C
	}
	armWarning()
	defer func() {
		if warnTimer != nil {
			warnTimer.Stop()
		}
	}()

	for {
		select {
		case <-t.done:
			return

		case <-warnCh:
			nextWarning++
			if cb.OnWarning != nil {
				cb.OnWarning(t.Remaining())
			}
			armWarning()

		case <-tickCh:
			cb.OnTick(t.Remaining())

		case <-expiry.C:
			t.mu.Lock()
			if t.cancelled {
				t.mu.Unlock()
				return
			}
			t.fired = true
			t.mu.Unlock()
			close(t.expired)
			if cb.OnExpire != nil {
				cb.OnExpire()
			}
			return
		}
	}
}

// Cancel stops the timer. Cancelling before expiry suppresses all
// remaining callbacks; cancelling after expiry is a no-op.
func (t *Timer) Cancel() {
	t.mu.Lock()
	if t.cancelled || t.fired {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	t.mu.Unlock()
	close(t.done)
}

// Remaining returns the time left before the deadline, or zero once the
// deadline has passed.
func (t *Timer) Remaining() time.Duration {
	r := time.Until(t.deadline)
	if r < 0 {
		return 0
	}
	return r
}

// IsExpired reports whether the timer has fired. The result is monotone:
// once true it never reverts. A cancelled timer never reports expired.
func (t *Timer) IsExpired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Expired returns a channel closed when the timer fires. A cancelled
// timer's channel is never closed.
func (t *Timer) Expired() <-chan struct{} {
	return t.expired
}
