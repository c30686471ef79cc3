package core

import (
	"slices"

	"github.com/aramidnet/aramid/perf"
	"github.com/aramidnet/aramid/state"
)

// advertiseKvStorePeers reconciles the desired peer map for one area
// against what was previously announced and publishes the delta.
//
// upPeers covers the case where a peer restarted but we missed the
// restarting signal (non-graceful shutdown, lost hello packets): those
// peers go into the add set regardless of the diff so their session is
// re-established.
func (lm *LinkMonitor) advertiseKvStorePeers(s *state.State, area state.Area, upPeers map[state.Node]state.PeerSpec) {
	if lm.holdActive {
		return
	}
	desired := PeersFromAdjacencies(lm.adjacencies, area, lm.interfaceIsUsable)
	announced := lm.peers[area]

	add := make(map[state.Node]state.PeerSpec)
	for node, spec := range desired {
		if old, ok := announced[node]; !ok || old != spec {
			add[node] = spec
		}
	}
	for node, spec := range upPeers {
		add[node] = spec
	}

	var del []state.Node
	for node := range announced {
		if _, ok := desired[node]; !ok {
			del = append(del, node)
		}
	}
	slices.Sort(del)

	if len(add) == 0 && len(del) == 0 {
		return
	}

	qput(s.Env, s.PeerUpdates, state.PeerUpdateRequest{
		Area:        area,
		AddOrUpdate: add,
		Del:         del,
	})
	perf.PeerDeltas.Add(1)

	for node := range add {
		lm.logPeerEvent(s, "ADD_PEER", node, area)
	}
	for _, node := range del {
		lm.logPeerEvent(s, "DEL_PEER", node, area)
	}
	s.Log.Info("peer delta announced",
		"area", area, "add", len(add), "del", len(del))

	lm.peers[area] = desired
}

func (lm *LinkMonitor) advertiseKvStorePeersAll(s *state.State, upPeers map[state.Node]state.PeerSpec) {
	for _, area := range lm.areas {
		lm.advertiseKvStorePeers(s, area, upPeers)
	}
}
