package core

import (
	"github.com/aramidnet/aramid/state"
)

// AdjacencyKey uniquely identifies an adjacency: there can be multiple
// interfaces to the same remote node.
type AdjacencyKey struct {
	Node   state.Node
	IfName string
}

type AdjacencyValue struct {
	Spec state.PeerSpec
	Adj  state.Adjacency
	// IsRestarting marks a remote graceful-restart window; the adjacency
	// stays published and the peer stays announced until the neighbor
	// comes back or goes down.
	IsRestarting bool
	// Area never changes for the life of the entry.
	Area state.Area
}

// PeersFromAdjacencies reduces an adjacency set to the required peer map
// for one area: adjacencies on a usable interface contribute their peer
// spec, and when a remote node is reachable over multiple interfaces the
// lexicographically smallest interface name wins.
func PeersFromAdjacencies(
	adjacencies map[AdjacencyKey]*AdjacencyValue,
	area state.Area,
	usable func(ifName string) bool,
) map[state.Node]state.PeerSpec {
	chosenIf := make(map[state.Node]string)
	peers := make(map[state.Node]state.PeerSpec)
	for key, val := range adjacencies {
		if val.Area != area || !usable(key.IfName) {
			continue
		}
		if cur, ok := chosenIf[key.Node]; ok && cur <= key.IfName {
			continue
		}
		chosenIf[key.Node] = key.IfName
		peers[key.Node] = val.Spec
	}
	return peers
}
