package wt

import (
	"sync"
	"time"
)

// ThrottleState is the per-form attempt bookkeeping the caller owns and
// passes back into [Controller.Validate]. When persistent attempt tracking
// is enabled the controller hydrates it from Redis before use.
type ThrottleState struct {
	FailedAttempts int
	LastAttempt    time.Time
}

// CountdownHandle is the UI-side contract for the retry countdown: the
// controller tells the widget when to disable itself and for how long to
// count down; rendering is entirely the widget's business.
type CountdownHandle interface {
	SetDisabled(disabled bool)
	Countdown(seconds int)
}

// Throttle maps failed-attempt counts to backoff delays and drives
// countdown widgets. Delays grow geometrically (1s, 5s, 25s, 125s, ...)
// and are capped by configuration.
type Throttle struct {
	enabled  bool
	maxDelay time.Duration
	now      func() time.Time

	mu         sync.Mutex
	configured map[CountdownHandle]struct{}
}

func newThrottle(cfg ThrottleConfig, now func() time.Time) *Throttle {
	return &Throttle{
		enabled:    cfg.Enabled,
		maxDelay:   cfg.MaxDelay,
		now:        now,
		configured: make(map[CountdownHandle]struct{}),
	}
}

// Enabled reports whether throttling is active at all.
func (t *Throttle) Enabled() bool {
	return t.enabled
}

// Delay returns the required wait in seconds after failedAttempts
// consecutive failures. Zero failures mean zero delay; each further
// failure multiplies the delay by five, capped at the configured maximum.
// The result never decreases as failedAttempts grows.
func (t *Throttle) Delay(failedAttempts int) int {
	if !t.enabled || failedAttempts <= 0 {
		return 0
	}

	delay := time.Second
	for i := 1; i < failedAttempts; i++ {
		if delay >= t.maxDelay {
			break
		}
		delay *= 5
	}
	if delay > t.maxDelay {
		delay = t.maxDelay
	}

	return int(delay / time.Second)
}

// RemainingDelay returns how many whole seconds of the current backoff are
// still outstanding, rounding up so a caller never retries early.
func (t *Throttle) RemainingDelay(state ThrottleState) int {
	required := t.Delay(state.FailedAttempts)
	if required == 0 || state.LastAttempt.IsZero() {
		return 0
	}

	elapsed := t.now().Sub(state.LastAttempt)
	remaining := time.Duration(required)*time.Second - elapsed
	if remaining <= 0 {
		return 0
	}

	return int((remaining + time.Second - 1) / time.Second)
}

// OnFailure records a failed attempt in the caller-owned state.
func (t *Throttle) OnFailure(state *ThrottleState) {
	if state == nil {
		return
	}
	state.FailedAttempts++
	state.LastAttempt = t.now()
}

// OnSuccess resets the caller-owned state after a successful authentication.
func (t *Throttle) OnSuccess(state *ThrottleState) {
	if state == nil {
		return
	}
	*state = ThrottleState{}
}

// Configure registers a countdown handle so [Throttle.Update] may drive it.
// Configure must precede the first Update for that handle.
func (t *Throttle) Configure(handle CountdownHandle) {
	if handle == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.configured[handle] = struct{}{}
}

// Update pushes the current backoff to a configured handle: a non-zero
// delay disables the widget and starts its countdown, a zero delay
// re-enables it. Updating a handle that was never configured returns
// [ErrThrottleNotConfigured]; that is a programming error in the embedder,
// not a user-facing condition.
func (t *Throttle) Update(handle CountdownHandle, state ThrottleState) error {
	if handle == nil {
		return ErrThrottleNotConfigured
	}

	t.mu.Lock()
	_, ok := t.configured[handle]
	t.mu.Unlock()
	if !ok {
		return ErrThrottleNotConfigured
	}

	remaining := t.RemainingDelay(state)
	if remaining > 0 {
		handle.SetDisabled(true)
		handle.Countdown(remaining)
	} else {
		handle.SetDisabled(false)
	}

	return nil
}
