package core

import (
	"context"
	"testing"
	"time"

	"github.com/aramidnet/aramid/state"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func throttleEnv(t *testing.T) (*state.Env, *state.State, chan func(*state.State) error, *clock.Mock) {
	t.Helper()
	ctx, cancel := context.WithCancelCause(context.Background())
	t.Cleanup(func() { cancel(context.Canceled) })
	mck := clock.NewMock()
	dispatch := make(chan func(*state.State) error, 32)
	env := &state.Env{
		Context:         ctx,
		Cancel:          cancel,
		DispatchChannel: dispatch,
		Clock:           mck,
	}
	return env, &state.State{Env: env}, dispatch, mck
}

func runPending(t *testing.T, s *state.State, dispatch chan func(*state.State) error) {
	t.Helper()
	for {
		select {
		case f := <-dispatch:
			if err := f(s); err != nil {
				t.Fatalf("dispatch error: %v", err)
			}
		default:
			return
		}
	}
}

func TestThrottleCoalesces(t *testing.T) {
	env, s, dispatch, mck := throttleEnv(t)

	fires := 0
	var observed int
	counter := 0
	th := NewThrottle(env, 50*time.Millisecond, func(s *state.State) error {
		fires++
		observed = counter
		return nil
	})

	// three calls inside one window coalesce into a single fire with the
	// final state at fire time
	counter = 1
	th.Call()
	counter = 2
	th.Call()
	counter = 3
	th.Call()

	mck.Add(50 * time.Millisecond)
	runPending(t, s, dispatch)
	assert.Equal(t, 1, fires)
	assert.Equal(t, 3, observed)

	// the fire completed, so the throttle can arm again
	counter = 4
	th.Call()
	mck.Add(50 * time.Millisecond)
	runPending(t, s, dispatch)
	assert.Equal(t, 2, fires)
	assert.Equal(t, 4, observed)
}

func TestThrottleNoSpuriousFire(t *testing.T) {
	env, s, dispatch, mck := throttleEnv(t)

	fires := 0
	NewThrottle(env, 50*time.Millisecond, func(s *state.State) error {
		fires++
		return nil
	})

	mck.Add(time.Second)
	runPending(t, s, dispatch)
	assert.Zero(t, fires)
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff{Init: time.Second, Max: 8 * time.Second}
	assert.Equal(t, 1*time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())
	assert.Equal(t, 8*time.Second, b.Next())
	assert.Equal(t, 8*time.Second, b.Next())
	b.Reset()
	assert.Equal(t, 1*time.Second, b.Next())
}
