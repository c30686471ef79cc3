package core

import (
	"fmt"
	"slices"

	"github.com/aramidnet/aramid/state"
)

// Control surface. Each operation posts to the main loop and blocks on its
// completion; except for node overload, mutations re-advertise through the
// throttles. The updated LinkMonitorState is persisted before anything is
// advertised, so a crash between mutation and publish never leaves
// announced state more permissive than persisted state.

// SetNodeOverload drains or undrains the whole node. Takes effect
// immediately, bypassing the adjacency throttle.
func (lm *LinkMonitor) SetNodeOverload(overloaded bool) error {
	_, err := lm.env.DispatchWait(func(s *state.State) (any, error) {
		if lm.lmState.NodeOverloaded == overloaded {
			return nil, nil
		}
		next := lm.lmState.Copy()
		next.NodeOverloaded = overloaded
		if err := lm.commitState(s, next); err != nil {
			return nil, err
		}
		s.Log.Info("node overload set", "overloaded", overloaded)
		return nil, lm.advertiseAdjacencies(s)
	})
	return err
}

// SetInterfaceOverload drains or undrains one interface.
func (lm *LinkMonitor) SetInterfaceOverload(ifName string, overloaded bool) error {
	_, err := lm.env.DispatchWait(func(s *state.State) (any, error) {
		if _, ok := lm.interfaces[ifName]; !ok {
			return nil, fmt.Errorf("unknown interface: %s", ifName)
		}
		if lm.lmState.IsLinkOverloaded(ifName) == overloaded {
			return nil, nil
		}
		next := lm.lmState.Copy()
		if overloaded {
			next.OverloadedLinks = append(next.OverloadedLinks, ifName)
		} else {
			links := next.OverloadedLinks[:0]
			for _, l := range next.OverloadedLinks {
				if l != ifName {
					links = append(links, l)
				}
			}
			next.OverloadedLinks = links
		}
		if err := lm.commitState(s, next); err != nil {
			return nil, err
		}
		s.Log.Info("interface overload set", "ifName", ifName, "overloaded", overloaded)
		lm.advertiseAdjThrottled.Call()
		lm.advertisePeersThrottled.Call()
		return nil, nil
	})
	return err
}

// SetLinkMetric sets or clears (nil) the operator metric override for all
// adjacencies over an interface.
func (lm *LinkMonitor) SetLinkMetric(ifName string, metric *uint32) error {
	_, err := lm.env.DispatchWait(func(s *state.State) (any, error) {
		if _, ok := lm.interfaces[ifName]; !ok {
			return nil, fmt.Errorf("unknown interface: %s", ifName)
		}
		cur, has := lm.lmState.LinkMetricOverrides[ifName]
		if metric == nil && !has {
			return nil, nil
		}
		if metric != nil && has && cur == *metric {
			return nil, nil
		}
		next := lm.lmState.Copy()
		if metric == nil {
			delete(next.LinkMetricOverrides, ifName)
		} else {
			if next.LinkMetricOverrides == nil {
				next.LinkMetricOverrides = make(map[string]uint32)
			}
			next.LinkMetricOverrides[ifName] = *metric
		}
		if err := lm.commitState(s, next); err != nil {
			return nil, err
		}
		s.Log.Info("link metric override set", "ifName", ifName, "metric", metric)
		lm.advertiseAdjThrottled.Call()
		return nil, nil
	})
	return err
}

// SetAdjacencyMetric sets or clears (nil) the operator metric override for
// a single (interface, neighbor) adjacency.
func (lm *LinkMonitor) SetAdjacencyMetric(ifName string, node state.Node, metric *uint32) error {
	_, err := lm.env.DispatchWait(func(s *state.State) (any, error) {
		key := AdjacencyKey{Node: node, IfName: ifName}
		if _, ok := lm.adjacencies[key]; !ok {
			return nil, fmt.Errorf("unknown adjacency: %s over %s", node, ifName)
		}
		cur, has := lm.lmState.AdjMetricOverrides[ifName][string(node)]
		if metric == nil && !has {
			return nil, nil
		}
		if metric != nil && has && cur == *metric {
			return nil, nil
		}
		next := lm.lmState.Copy()
		if metric == nil {
			delete(next.AdjMetricOverrides[ifName], string(node))
			if len(next.AdjMetricOverrides[ifName]) == 0 {
				delete(next.AdjMetricOverrides, ifName)
			}
		} else {
			if next.AdjMetricOverrides == nil {
				next.AdjMetricOverrides = make(map[string]map[string]uint32)
			}
			if next.AdjMetricOverrides[ifName] == nil {
				next.AdjMetricOverrides[ifName] = make(map[string]uint32)
			}
			next.AdjMetricOverrides[ifName][string(node)] = *metric
		}
		if err := lm.commitState(s, next); err != nil {
			return nil, err
		}
		s.Log.Info("adjacency metric override set",
			"ifName", ifName, "node", node, "metric", metric)
		lm.advertiseAdjThrottled.Call()
		return nil, nil
	})
	return err
}

// GetInterfaces returns a synchronous snapshot of the interface table.
func (lm *LinkMonitor) GetInterfaces() (state.InterfaceDatabase, error) {
	res, err := lm.env.DispatchWait(func(s *state.State) (any, error) {
		db := state.InterfaceDatabase{Node: s.Id}
		for _, name := range sortedKeys(lm.interfaces) {
			entry := lm.interfaces[name]
			db.Interfaces = append(db.Interfaces, state.InterfaceInfo{
				Name:   name,
				Up:     entry.IsUp(),
				Usable: lm.interfaceIsUsable(name),
				Index:  entry.Index(),
				Addrs:  entry.Addrs(),
				Metric: lm.linkMetric(name),
			})
		}
		return db, nil
	})
	if err != nil {
		return state.InterfaceDatabase{}, err
	}
	return res.(state.InterfaceDatabase), nil
}

// GetAdjacencies returns the adjacency database for every area.
func (lm *LinkMonitor) GetAdjacencies() ([]state.AdjacencyDatabase, error) {
	res, err := lm.env.DispatchWait(func(s *state.State) (any, error) {
		dbs := make([]state.AdjacencyDatabase, 0, len(lm.areas))
		for _, area := range lm.areas {
			dbs = append(dbs, lm.buildAdjacencyDatabase(s, area))
		}
		return dbs, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]state.AdjacencyDatabase), nil
}

// GetAllLinks dumps the raw OS link inventory, bypassing the regex gate.
func (lm *LinkMonitor) GetAllLinks() ([]state.LinkSnapshot, error) {
	res, err := lm.env.DispatchWait(func(s *state.State) (any, error) {
		return s.Links.ListLinks()
	})
	if err != nil {
		return nil, err
	}
	return res.([]state.LinkSnapshot), nil
}

// commitState persists next and only then makes it live.
func (lm *LinkMonitor) commitState(s *state.State, next state.LinkMonitorState) error {
	prev := lm.lmState
	lm.lmState = next
	if err := lm.persistState(s); err != nil {
		lm.lmState = prev
		return err
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
