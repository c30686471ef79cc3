package core

import (
	"net/netip"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestInterfaceBackoffDoubling(t *testing.T) {
	mck := clock.NewMock()
	e := newInterfaceEntry(mck, "et1", 3, true, time.Second, 8*time.Second)

	// created up, no flap yet
	assert.True(t, e.IsActive())
	assert.Zero(t, e.RetryRemaining())

	// flap repeatedly without ever stabilizing: intervals double up to the
	// cap and never decrease
	var prev time.Duration
	expected := []time.Duration{1, 2, 4, 8, 8}
	for i, want := range expected {
		e.Update(3, false)
		e.Update(3, true)
		rem := e.RetryRemaining()
		assert.Equal(t, want*time.Second, rem, "flap %d", i)
		assert.GreaterOrEqual(t, rem, prev)
		prev = rem

		assert.False(t, e.IsActive())
		mck.Add(100 * time.Millisecond)
	}

	// once left alone, the last backoff runs out and the interface is usable
	mck.Add(8 * time.Second)
	assert.True(t, e.IsActive())
}

func TestInterfaceBackoffResetAfterStableUp(t *testing.T) {
	mck := clock.NewMock()
	e := newInterfaceEntry(mck, "et1", 3, true, time.Second, 8*time.Second)

	e.Update(3, false)
	e.Update(3, true)
	assert.Equal(t, time.Second, e.RetryRemaining())
	mck.Add(time.Second)

	// hold up past maxBackoff, then flap: damping starts over
	mck.Add(9 * time.Second)
	e.Update(3, false)
	e.Update(3, true)
	assert.Equal(t, time.Second, e.RetryRemaining())
}

func TestInterfaceBackoffKeptOnQuickFlap(t *testing.T) {
	mck := clock.NewMock()
	e := newInterfaceEntry(mck, "et1", 3, true, time.Second, 8*time.Second)

	e.Update(3, false)
	e.Update(3, true)
	mck.Add(1500 * time.Millisecond)

	// second flap well inside 2*initBackoff stability: doubled
	e.Update(3, false)
	e.Update(3, true)
	assert.Equal(t, 2*time.Second, e.RetryRemaining())
}

func TestInterfaceDownIsNeverActive(t *testing.T) {
	mck := clock.NewMock()
	e := newInterfaceEntry(mck, "et1", 3, false, time.Second, 8*time.Second)
	assert.False(t, e.IsActive())
	assert.Zero(t, e.RetryRemaining())
}

func TestInterfaceAddrSet(t *testing.T) {
	mck := clock.NewMock()
	e := newInterfaceEntry(mck, "et1", 3, true, time.Second, 8*time.Second)

	p1 := netip.MustParsePrefix("fe80::1/64")
	p2 := netip.MustParsePrefix("10.0.0.1/31")

	assert.True(t, e.UpdateAddr(p1, true))
	assert.False(t, e.UpdateAddr(p1, true)) // idempotent
	assert.True(t, e.UpdateAddr(p2, true))
	assert.Len(t, e.Addrs(), 2)

	assert.True(t, e.UpdateAddr(p2, false))
	assert.False(t, e.UpdateAddr(p2, false))
	assert.Equal(t, []netip.Prefix{p1}, e.Addrs())
}

func TestInterfaceSyncAddrs(t *testing.T) {
	mck := clock.NewMock()
	e := newInterfaceEntry(mck, "et1", 3, true, time.Second, 8*time.Second)

	p1 := netip.MustParsePrefix("fe80::1/64")
	p2 := netip.MustParsePrefix("10.0.0.1/31")
	e.UpdateAddr(p1, true)

	assert.True(t, e.SyncAddrs([]netip.Prefix{p2}))
	assert.Equal(t, []netip.Prefix{p2}, e.Addrs())
	assert.False(t, e.SyncAddrs([]netip.Prefix{p2}))
	assert.True(t, e.SyncAddrs(nil))
	assert.Empty(t, e.Addrs())
}
