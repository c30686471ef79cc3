package core

import (
	"strconv"

	"github.com/aramidnet/aramid/state"
)

func (lm *LinkMonitor) processNeighborEvent(s *state.State, ev state.NeighborEvent) error {
	if !s.CentralCfg.HasArea(ev.Area) {
		s.Log.Warn("neighbor event for unknown area",
			"kind", ev.Kind.String(), "node", ev.Node, "area", ev.Area)
		return nil
	}
	switch ev.Kind {
	case state.NeighborUp:
		lm.neighborUpEvent(s, ev)
	case state.NeighborRestarting:
		lm.neighborRestartingEvent(s, ev)
	case state.NeighborDown:
		lm.neighborDownEvent(s, ev)
	case state.NeighborRttChange:
		lm.neighborRttChangeEvent(s, ev)
	default:
		s.Log.Warn("unknown neighbor event kind", "kind", ev.Kind)
		return nil
	}
	lm.logNeighborEvent(s, ev)
	return nil
}

func (lm *LinkMonitor) neighborUpEvent(s *state.State, ev state.NeighborEvent) {
	key := AdjacencyKey{Node: ev.Node, IfName: ev.LocalIfName}
	metric := state.DefaultLinkMetric
	if s.UseRttMetric && ev.Rtt > 0 {
		metric = metricFromRtt(ev.Rtt)
	}
	now := s.Clock.Now()

	if cur, ok := lm.adjacencies[key]; ok && cur.Spec == ev.Spec {
		// same peer spec, likely a refresh after restart; keep the entry
		cur.IsRestarting = false
		cur.Adj.Timestamp = now.Unix()
	} else {
		lm.adjacencies[key] = &AdjacencyValue{
			Spec: ev.Spec,
			Adj: state.Adjacency{
				OtherNode:   ev.Node,
				IfName:      ev.LocalIfName,
				OtherIfName: ev.RemoteIfName,
				NextHop:     ev.Spec.Addr,
				Metric:      metric,
				RttUs:       ev.Rtt.Microseconds(),
				Timestamp:   now.Unix(),
			},
			Area: ev.Area,
		}
	}

	s.Log.Info("neighbor up",
		"node", ev.Node, "ifName", ev.LocalIfName, "area", ev.Area, "rtt", ev.Rtt)

	// a freshly-up peer must reach the kv store right away so its session
	// can form; only the adjacency database rebuild is coalesced
	if !lm.holdActive {
		lm.advertiseKvStorePeers(s, ev.Area, map[state.Node]state.PeerSpec{ev.Node: ev.Spec})
	}
	lm.advertiseAdjThrottled.Call()
}

func (lm *LinkMonitor) neighborRestartingEvent(s *state.State, ev state.NeighborEvent) {
	key := AdjacencyKey{Node: ev.Node, IfName: ev.LocalIfName}
	cur, ok := lm.adjacencies[key]
	if !ok {
		s.Log.Warn("restarting event for unknown adjacency",
			"node", ev.Node, "ifName", ev.LocalIfName)
		return
	}
	// keep the adjacency published and the peer announced so the session
	// can re-establish without a teardown
	cur.IsRestarting = true
	s.Log.Info("neighbor restarting", "node", ev.Node, "ifName", ev.LocalIfName, "area", ev.Area)
}

func (lm *LinkMonitor) neighborDownEvent(s *state.State, ev state.NeighborEvent) {
	key := AdjacencyKey{Node: ev.Node, IfName: ev.LocalIfName}
	if _, ok := lm.adjacencies[key]; !ok {
		s.Log.Warn("down event for unknown adjacency",
			"node", ev.Node, "ifName", ev.LocalIfName)
		return
	}
	delete(lm.adjacencies, key)
	s.Log.Info("neighbor down", "node", ev.Node, "ifName", ev.LocalIfName, "area", ev.Area)
	lm.advertisePeersThrottled.Call()
	lm.advertiseAdjThrottled.Call()
}

func (lm *LinkMonitor) neighborRttChangeEvent(s *state.State, ev state.NeighborEvent) {
	key := AdjacencyKey{Node: ev.Node, IfName: ev.LocalIfName}
	cur, ok := lm.adjacencies[key]
	if !ok {
		return
	}
	cur.Adj.RttUs = ev.Rtt.Microseconds()
	if s.UseRttMetric {
		cur.Adj.Metric = metricFromRtt(ev.Rtt)
	}
	lm.advertiseAdjThrottled.Call()
}

func (lm *LinkMonitor) logNeighborEvent(s *state.State, ev state.NeighborEvent) {
	lm.logSample(s, ev.Kind.String(), map[string]string{
		"node":   string(ev.Node),
		"ifName": ev.LocalIfName,
		"area":   string(ev.Area),
		"rtt_us": strconv.FormatInt(ev.Rtt.Microseconds(), 10),
	})
}

func (lm *LinkMonitor) logLinkEvent(s *state.State, ifName string, wasUp, isUp bool) {
	lm.logSample(s, "LINK_EVENT", map[string]string{
		"ifName": ifName,
		"wasUp":  strconv.FormatBool(wasUp),
		"isUp":   strconv.FormatBool(isUp),
	})
}

func (lm *LinkMonitor) logPeerEvent(s *state.State, event string, node state.Node, area state.Area) {
	lm.logSample(s, event, map[string]string{
		"node": string(node),
		"area": string(area),
	})
}
