package core

import (
	"time"

	"github.com/aramidnet/aramid/state"
)

// Throttle batches repeated calls within its window into a single deferred
// invocation on the main loop. Once armed it fires exactly once, with
// whatever state exists at fire time; a fire completes before the next
// arming can coalesce. Call only from the loop.
type Throttle struct {
	env    *state.Env
	window time.Duration
	fn     func(*state.State) error
	armed  bool
}

func NewThrottle(env *state.Env, window time.Duration, fn func(*state.State) error) *Throttle {
	return &Throttle{env: env, window: window, fn: fn}
}

func (t *Throttle) Call() {
	if t.armed {
		return
	}
	t.armed = true
	t.env.ScheduleTask(func(s *state.State) error {
		t.armed = false
		return t.fn(s)
	}, t.window)
}

// ExponentialBackoff tracks a retry interval doubling from Init to Max.
type ExponentialBackoff struct {
	Init time.Duration
	Max  time.Duration
	curr time.Duration
}

func (b *ExponentialBackoff) Next() time.Duration {
	if b.curr == 0 {
		b.curr = b.Init
	} else {
		b.curr = min(b.curr*2, b.Max)
	}
	return b.curr
}

func (b *ExponentialBackoff) Reset() {
	b.curr = 0
}
