package core

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"

	"github.com/aramidnet/aramid/perf"
	"github.com/aramidnet/aramid/state"
	"github.com/goccy/go-yaml"
)

const prefixSource = "link-monitor"

func adjacencyDbKey(node state.Node) string {
	return fmt.Sprintf("adj:%s", node)
}

// effectiveMetric resolves metric precedence: adjacency override, then link
// override, then the base (rtt-derived or default) metric.
func (lm *LinkMonitor) effectiveMetric(key AdjacencyKey, val *AdjacencyValue) uint32 {
	if m, ok := lm.lmState.AdjMetricOverrides[key.IfName][string(key.Node)]; ok {
		return m
	}
	if m, ok := lm.lmState.LinkMetricOverrides[key.IfName]; ok {
		return m
	}
	return val.Adj.Metric
}

func (lm *LinkMonitor) buildAdjacencyDatabase(s *state.State, area state.Area) state.AdjacencyDatabase {
	db := state.AdjacencyDatabase{
		Node:         s.Id,
		Area:         area,
		IsOverloaded: lm.lmState.NodeOverloaded,
		NodeLabel:    lm.lmState.NodeLabels[area],
	}
	for key, val := range lm.adjacencies {
		if val.Area != area {
			continue
		}
		adj := val.Adj
		adj.Metric = lm.effectiveMetric(key, val)
		// interface drain is a flag, never a prohibitive metric
		adj.IsOverloaded = lm.lmState.IsLinkOverloaded(key.IfName)
		db.Adjacencies = append(db.Adjacencies, adj)
	}
	slices.SortFunc(db.Adjacencies, func(a, b state.Adjacency) int {
		if c := strings.Compare(string(a.OtherNode), string(b.OtherNode)); c != 0 {
			return c
		}
		return strings.Compare(a.IfName, b.IfName)
	})
	return db
}

// advertiseAdjacencies persists the per-area adjacency databases into the
// kv store. Transient publish failures are retried with backoff and never
// surfaced to control-surface callers.
func (lm *LinkMonitor) advertiseAdjacencies(s *state.State) error {
	if lm.holdActive {
		return nil
	}
	for _, area := range lm.areas {
		db := lm.buildAdjacencyDatabase(s, area)
		blob, err := yaml.Marshal(&db)
		if err != nil {
			return fmt.Errorf("encode adjacency database: %w", err)
		}
		if err := s.Kv.PersistKey(area, adjacencyDbKey(s.Id), blob); err != nil {
			lm.scheduleKvRetry(s)
			s.Log.Warn("adjacency publish failed", "area", area, "err", err)
			return nil
		}
		perf.KvPublishes.Add(1)
		s.Log.Debug("adjacency database published",
			"area", area, "adjacencies", len(db.Adjacencies), "overloaded", db.IsOverloaded)
	}
	lm.kvBackoff.Reset()
	return nil
}

func (lm *LinkMonitor) scheduleKvRetry(s *state.State) {
	if lm.kvRetryArmed {
		return
	}
	lm.kvRetryArmed = true
	s.Env.ScheduleTask(func(s *state.State) error {
		lm.kvRetryArmed = false
		return lm.advertiseAdjacencies(s)
	}, lm.kvBackoff.Next())
}

// advertiseInterfaces emits the full interface database snapshot.
func (lm *LinkMonitor) advertiseInterfaces(s *state.State) {
	db := state.InterfaceDatabase{Node: s.Id}
	names := make([]string, 0, len(lm.interfaces))
	for name := range lm.interfaces {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
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
	qput(s.Env, s.InterfaceUpdates, db)
}

// advertiseRedistAddrs publishes the redistributed prefix set: addresses of
// active interfaces matching the redistribute regexes, minus excluded
// ranges, coalesced, diffed against what was last announced.
func (lm *LinkMonitor) advertiseRedistAddrs(s *state.State) {
	if lm.holdActive {
		return
	}
	var prefixes []netip.Prefix
	for name, entry := range lm.interfaces {
		if !entry.IsActive() || !matchAny(lm.redistRegexes, name) {
			continue
		}
		for _, p := range entry.Addrs() {
			addr := p.Addr()
			if addr.Is4() && !s.EnableV4 {
				continue
			}
			if addr.IsLinkLocalUnicast() {
				continue
			}
			if _, excluded := lm.excludeRoutes.Lookup(addr); excluded {
				continue
			}
			prefixes = append(prefixes, p)
		}
	}
	// the lpm gate above drops addresses inside an excluded range; the
	// subtraction also trims prefixes that merely overlap one, and
	// coalesces what is left
	prefixes = state.SubtractPrefix(prefixes, s.ExcludePrefixes)

	next := make(map[netip.Prefix]struct{}, len(prefixes))
	var adds []netip.Prefix
	for _, p := range prefixes {
		next[p] = struct{}{}
		if _, ok := lm.redistAnnounced[p]; !ok {
			adds = append(adds, p)
		}
	}
	var withdraws []netip.Prefix
	for p := range lm.redistAnnounced {
		if _, ok := next[p]; !ok {
			withdraws = append(withdraws, p)
		}
	}

	if len(adds) > 0 {
		qput(s.Env, s.PrefixUpdates, state.PrefixUpdateRequest{
			Cmd:            state.PrefixAdd,
			Prefixes:       adds,
			Source:         prefixSource,
			ForwardingType: s.PrefixForwardingType,
			ForwardingAlgo: s.PrefixForwardingAlgo,
		})
	}
	if len(withdraws) > 0 {
		qput(s.Env, s.PrefixUpdates, state.PrefixUpdateRequest{
			Cmd:            state.PrefixWithdraw,
			Prefixes:       withdraws,
			Source:         prefixSource,
			ForwardingType: s.PrefixForwardingType,
			ForwardingAlgo: s.PrefixForwardingAlgo,
		})
	}
	lm.redistAnnounced = next
}

// advertiseIfaceAddr is the interface-address throttle target: it publishes
// the interface database and the redistributed prefixes, and if any
// interface is still in backoff it arms a one-shot retry at the earliest
// backoff expiry so stabilized interfaces get announced.
func (lm *LinkMonitor) advertiseIfaceAddr(s *state.State) error {
	lm.advertiseInterfaces(s)
	lm.advertiseRedistAddrs(s)

	if retry := lm.getRetryTimeOnUnstableInterfaces(); retry > 0 && !lm.retryTimerArmed {
		lm.retryTimerArmed = true
		s.Env.ScheduleTask(func(s *state.State) error {
			lm.retryTimerArmed = false
			// interfaces may have left backoff; peers and adjacencies
			// gated on usability need a refresh too
			lm.advertisePeersThrottled.Call()
			lm.advertiseAdjThrottled.Call()
			return lm.advertiseIfaceAddr(s)
		}, retry)
	}
	return nil
}
