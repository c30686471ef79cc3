package core

import (
	"net/netip"
	"testing"

	"github.com/aramidnet/aramid/state"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

func spec(addr string) state.PeerSpec {
	return state.PeerSpec{Addr: netip.MustParseAddr(addr), CtrlPort: 60002}
}

func adjVal(area state.Area, sp state.PeerSpec, restarting bool) *AdjacencyValue {
	return &AdjacencyValue{Spec: sp, Area: area, IsRestarting: restarting}
}

func TestPeersFromAdjacenciesAreaFilter(t *testing.T) {
	adjs := map[AdjacencyKey]*AdjacencyValue{
		{Node: "N2", IfName: "et1"}: adjVal("0", spec("fe80::2"), false),
		{Node: "N3", IfName: "et2"}: adjVal("1", spec("fe80::3"), false),
	}
	usable := func(string) bool { return true }

	peers := PeersFromAdjacencies(adjs, "0", usable)
	want := map[state.Node]state.PeerSpec{"N2": spec("fe80::2")}
	if diff := cmp.Diff(want, peers, cmpopts.EquateComparable(netip.Addr{})); diff != "" {
		t.Fatalf("peer map mismatch (-want +got):\n%s", diff)
	}
}

func TestPeersFromAdjacenciesUsableFilter(t *testing.T) {
	adjs := map[AdjacencyKey]*AdjacencyValue{
		{Node: "N2", IfName: "et1"}: adjVal("0", spec("fe80::2"), false),
		{Node: "N3", IfName: "et2"}: adjVal("0", spec("fe80::3"), false),
	}
	usable := func(ifName string) bool { return ifName == "et1" }

	peers := PeersFromAdjacencies(adjs, "0", usable)
	assert.Contains(t, peers, state.Node("N2"))
	assert.NotContains(t, peers, state.Node("N3"))
}

func TestPeersFromAdjacenciesMinIfnameTieBreak(t *testing.T) {
	// same remote node over several interfaces in one area: the
	// lexicographically smallest interface provides the canonical spec
	adjs := map[AdjacencyKey]*AdjacencyValue{
		{Node: "N2", IfName: "et7"}:  adjVal("0", spec("fe80::7"), false),
		{Node: "N2", IfName: "et1"}:  adjVal("0", spec("fe80::1"), false),
		{Node: "N2", IfName: "et10"}: adjVal("0", spec("fe80::10"), false),
	}
	usable := func(string) bool { return true }

	peers := PeersFromAdjacencies(adjs, "0", usable)
	assert.Len(t, peers, 1)
	assert.Equal(t, spec("fe80::1"), peers["N2"])
}

func TestPeersFromAdjacenciesKeepsRestarting(t *testing.T) {
	// a restarting neighbor stays announced so its session can re-form
	adjs := map[AdjacencyKey]*AdjacencyValue{
		{Node: "N2", IfName: "et1"}: adjVal("0", spec("fe80::2"), true),
	}
	peers := PeersFromAdjacencies(adjs, "0", func(string) bool { return true })
	assert.Contains(t, peers, state.Node("N2"))
}
