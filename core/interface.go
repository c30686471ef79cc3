package core

import (
	"net/netip"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
)

// InterfaceEntry tracks one interface's liveness, address set, and flap
// damping state. The backoff interval doubles on every down-to-up
// transition, clamped to [initBackoff, maxBackoff]; after the interface has
// held up for at least maxBackoff the interval resets to initBackoff.
type InterfaceEntry struct {
	clk     clock.Clock
	name    string
	ifIndex int
	isUp    bool
	addrs   map[netip.Prefix]struct{}

	initBackoff time.Duration
	maxBackoff  time.Duration
	currBackoff time.Duration
	retryAt     time.Time
	upSince     time.Time
}

func newInterfaceEntry(clk clock.Clock, name string, ifIndex int, up bool, initBackoff, maxBackoff time.Duration) *InterfaceEntry {
	return &InterfaceEntry{
		clk:         clk,
		name:        name,
		ifIndex:     ifIndex,
		isUp:        up,
		addrs:       make(map[netip.Prefix]struct{}),
		initBackoff: initBackoff,
		maxBackoff:  maxBackoff,
		upSince:     clk.Now(),
	}
}

func (e *InterfaceEntry) Name() string { return e.name }
func (e *InterfaceEntry) Index() int   { return e.ifIndex }
func (e *InterfaceEntry) IsUp() bool   { return e.isUp }

// Update applies a link event or inventory row, arming the flap backoff on
// a down-to-up transition. Returns whether anything changed.
func (e *InterfaceEntry) Update(ifIndex int, up bool) bool {
	changed := false
	if ifIndex != 0 && e.ifIndex != ifIndex {
		e.ifIndex = ifIndex
		changed = true
	}
	if up != e.isUp {
		changed = true
		now := e.clk.Now()
		if up {
			if e.currBackoff == 0 {
				e.currBackoff = e.initBackoff
			} else {
				e.currBackoff = min(e.currBackoff*2, e.maxBackoff)
			}
			e.retryAt = now.Add(e.currBackoff)
			e.upSince = now
		} else if now.Sub(e.upSince) >= e.maxBackoff {
			// held up long enough, forgive past flaps
			e.currBackoff = 0
		}
		e.isUp = up
	}
	return changed
}

// UpdateAddr adds or removes a single address.
func (e *InterfaceEntry) UpdateAddr(addr netip.Prefix, valid bool) bool {
	_, have := e.addrs[addr]
	if valid && !have {
		e.addrs[addr] = struct{}{}
		return true
	}
	if !valid && have {
		delete(e.addrs, addr)
		return true
	}
	return false
}

// SyncAddrs replaces the address set with the inventory's view.
func (e *InterfaceEntry) SyncAddrs(addrs []netip.Prefix) bool {
	changed := false
	next := make(map[netip.Prefix]struct{}, len(addrs))
	for _, a := range addrs {
		next[a] = struct{}{}
		if _, ok := e.addrs[a]; !ok {
			changed = true
		}
	}
	if len(next) != len(e.addrs) {
		changed = true
	}
	e.addrs = next
	return changed
}

func (e *InterfaceEntry) Addrs() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(e.addrs))
	for a := range e.addrs {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b netip.Prefix) int {
		return a.Addr().Compare(b.Addr())
	})
	return out
}

// IsActive reports whether the interface is up with its backoff expired.
// Operator overload is layered on top by the link monitor.
func (e *InterfaceEntry) IsActive() bool {
	return e.isUp && !e.clk.Now().Before(e.retryAt)
}

// RetryRemaining is how long until an up interface leaves backoff; zero for
// stable or down interfaces.
func (e *InterfaceEntry) RetryRemaining() time.Duration {
	if !e.isUp {
		return 0
	}
	rem := e.retryAt.Sub(e.clk.Now())
	if rem < 0 {
		return 0
	}
	return rem
}
