package core

import (
	"net/netip"
	"testing"

	"github.com/aramidnet/aramid/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkEventRegexGate(t *testing.T) {
	lcfg := defaultLocal()
	lcfg.ExcludeInterfaceRegexes = []string{"et9"}
	h := newHarness(t, defaultCentral(), lcfg, nil)

	h.sendNetlink(state.LinkEvent{IfName: "lo", IfIndex: 1, Up: true})
	h.sendNetlink(state.LinkEvent{IfName: "et9", IfIndex: 9, Up: true})
	h.sendNetlink(state.LinkEvent{IfName: "et1", IfIndex: 3, Up: true})

	assert.NotContains(t, h.lm.interfaces, "lo")
	assert.NotContains(t, h.lm.interfaces, "et9")
	assert.Contains(t, h.lm.interfaces, "et1")
}

func TestAddrEventUnknownIndexDropped(t *testing.T) {
	h := newHarness(t, defaultCentral(), defaultLocal(), nil)

	addr := netip.MustParsePrefix("10.0.0.1/31")
	h.sendNetlink(state.AddrEvent{IfIndex: 3, Addr: addr, Valid: true})
	assert.Empty(t, h.lm.interfaces)

	// the next periodic resync reconciles it
	h.links.SetLink("et1", 3, true)
	h.links.AddAddr("et1", addr)
	h.advance(state.InterfaceSyncInterval)

	require.Contains(t, h.lm.interfaces, "et1")
	assert.Equal(t, []netip.Prefix{addr}, h.lm.interfaces["et1"].Addrs())
}

func TestSyncMarksAbsentDown(t *testing.T) {
	h := newHarness(t, defaultCentral(), defaultLocal(), func(h *harness) {
		h.links.SetLink("et1", 3, true)
	})
	require.Contains(t, h.lm.interfaces, "et1")
	assert.True(t, h.lm.interfaces["et1"].IsUp())

	h.links.RemoveLink("et1")
	h.advance(state.InterfaceSyncInterval)
	require.Contains(t, h.lm.interfaces, "et1")
	assert.False(t, h.lm.interfaces["et1"].IsUp())
}

func TestSyncIsIdempotent(t *testing.T) {
	h := newHarness(t, defaultCentral(), defaultLocal(), func(h *harness) {
		h.links.SetLink("et1", 3, true)
		h.links.AddAddr("et1", netip.MustParsePrefix("fe80::1/64"))
	})
	h.expireHold()
	h.drainInterfaceUpdates()

	// an unchanged inventory produces no new advertisement
	h.advance(state.InterfaceSyncInterval)
	assert.Empty(t, h.drainInterfaceUpdates())
}

func TestSyncRetriesWithBackoff(t *testing.T) {
	h := newHarness(t, defaultCentral(), defaultLocal(), nil)
	h.links.Fail = true
	h.advance(state.InterfaceSyncInterval)

	h.links.Fail = false
	h.links.SetLink("et1", 3, true)
	h.advance(state.SyncRetryInitialBackoff)
	assert.Contains(t, h.lm.interfaces, "et1")
}

func TestRedistributedPrefixes(t *testing.T) {
	lcfg := defaultLocal()
	lcfg.EnableV4 = true
	lcfg.RedistributeInterfaceRegexes = []string{"lo.*"}
	lcfg.IncludeInterfaceRegexes = []string{"et.*", "lo.*"}
	lcfg.ExcludePrefixes = []netip.Prefix{netip.MustParsePrefix("192.168.0.0/16")}
	h := newHarness(t, defaultCentral(), lcfg, func(h *harness) {
		h.links.SetLink("lo1", 1, true)
		h.links.AddAddr("lo1", netip.MustParsePrefix("10.1.0.1/32"))
		h.links.AddAddr("lo1", netip.MustParsePrefix("192.168.1.1/32"))
		h.links.SetLink("et1", 3, true)
		h.links.AddAddr("et1", netip.MustParsePrefix("10.2.0.1/32"))
	})
	h.expireHold()

	updates := h.drainPrefixUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, state.PrefixAdd, updates[0].Cmd)
	assert.Equal(t, "link-monitor", updates[0].Source)
	// only the loopback matches the redistribute set, and the excluded
	// range is withheld
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.1.0.1/32")}, updates[0].Prefixes)

	// the address going away withdraws the prefix
	h.sendNetlink(state.AddrEvent{IfIndex: 1, Addr: netip.MustParsePrefix("10.1.0.1/32"), Valid: false})
	h.advance(state.IfaceAdvertiseThrottle)
	updates = h.drainPrefixUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, state.PrefixWithdraw, updates[0].Cmd)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.1.0.1/32")}, updates[0].Prefixes)
}

func TestRedistributeSkipsV4WhenDisabled(t *testing.T) {
	lcfg := defaultLocal()
	lcfg.RedistributeInterfaceRegexes = []string{"et.*"}
	h := newHarness(t, defaultCentral(), lcfg, func(h *harness) {
		h.links.SetLink("et1", 3, true)
		h.links.AddAddr("et1", netip.MustParsePrefix("10.1.0.1/32"))
		h.links.AddAddr("et1", netip.MustParsePrefix("2001:db8::1/128"))
	})
	h.expireHold()

	updates := h.drainPrefixUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("2001:db8::1/128")}, updates[0].Prefixes)
}
