package core

import (
	"time"

	"github.com/aramidnet/aramid/perf"
	"github.com/aramidnet/aramid/state"
)

func (lm *LinkMonitor) processNetlinkEvent(s *state.State, ev state.NetlinkEvent) error {
	switch ev := ev.(type) {
	case state.LinkEvent:
		lm.processLinkEvent(s, ev)
	case state.AddrEvent:
		lm.processAddrEvent(s, ev)
	default:
		s.Log.Warn("unknown netlink event", "event", ev)
	}
	return nil
}

func (lm *LinkMonitor) processLinkEvent(s *state.State, ev state.LinkEvent) {
	// the index cache is fed by every link event so address events can be
	// resolved even for interfaces we end up not tracking
	lm.ifIndexToName[ev.IfIndex] = ev.IfName

	entry, ok := lm.interfaces[ev.IfName]
	if !ok {
		entry = lm.getOrCreateInterfaceEntry(s, ev.IfName, ev.IfIndex, ev.Up)
		if entry == nil {
			s.Log.Debug("link event dropped by regex gate", "ifName", ev.IfName)
			return
		}
		lm.logLinkEvent(s, ev.IfName, false, ev.Up)
		lm.advertiseIfaceAddrThrottled.Call()
		// neighbor events may have arrived before the link event; either
		// arrival order must converge to the same published state
		lm.advertisePeersThrottled.Call()
		lm.advertiseAdjThrottled.Call()
		return
	}

	wasUp := entry.IsUp()
	if entry.Update(ev.IfIndex, ev.Up) {
		lm.logLinkEvent(s, ev.IfName, wasUp, ev.Up)
		s.Log.Info("interface state changed",
			"ifName", ev.IfName, "up", ev.Up, "backoff", entry.RetryRemaining())
		lm.advertiseIfaceAddrThrottled.Call()
		// adjacency usability may have flipped with the interface
		lm.advertisePeersThrottled.Call()
		lm.advertiseAdjThrottled.Call()
	}
}

func (lm *LinkMonitor) processAddrEvent(s *state.State, ev state.AddrEvent) {
	name, ok := lm.ifIndexToName[ev.IfIndex]
	if !ok {
		// unknown index; the periodic resync will pick it up
		s.Log.Debug("address event for unknown ifIndex", "ifIndex", ev.IfIndex)
		return
	}
	entry, ok := lm.interfaces[name]
	if !ok {
		return
	}
	if entry.UpdateAddr(ev.Addr, ev.Valid) {
		s.Log.Debug("interface address changed",
			"ifName", name, "addr", ev.Addr, "valid", ev.Valid)
		lm.advertiseIfaceAddrThrottled.Call()
	}
}

// syncInterfaces reconciles the tracked table against the full OS
// inventory. Entries absent from the inventory are marked down; entries no
// longer passing the regex gate are removed. Idempotent.
func (lm *LinkMonitor) syncInterfaces(s *state.State) error {
	links, err := s.Links.ListLinks()
	if err != nil {
		return err
	}
	perf.InterfaceSyncs.Add(1)

	changed := false
	seen := make(map[string]struct{}, len(links))
	for _, snap := range links {
		lm.ifIndexToName[snap.Index] = snap.Name
		entry, ok := lm.interfaces[snap.Name]
		if !ok {
			entry = lm.getOrCreateInterfaceEntry(s, snap.Name, snap.Index, snap.Up)
			if entry == nil {
				continue
			}
			entry.SyncAddrs(snap.Addrs)
			seen[snap.Name] = struct{}{}
			changed = true
			continue
		}
		seen[snap.Name] = struct{}{}
		if entry.Update(snap.Index, snap.Up) {
			changed = true
		}
		if entry.SyncAddrs(snap.Addrs) {
			changed = true
		}
	}

	for name, entry := range lm.interfaces {
		if !lm.interfaceMatches(name) {
			delete(lm.interfaces, name)
			changed = true
			continue
		}
		if _, ok := seen[name]; !ok && entry.IsUp() {
			entry.Update(entry.Index(), false)
			changed = true
		}
	}

	if changed {
		lm.advertiseIfaceAddrThrottled.Call()
		lm.advertisePeersThrottled.Call()
		lm.advertiseAdjThrottled.Call()
	}
	return nil
}

// scheduleSync re-arms the periodic inventory resync, backing off
// exponentially on platform errors.
func (lm *LinkMonitor) scheduleSync(e *state.Env, delay time.Duration) {
	e.ScheduleTask(func(s *state.State) error {
		if err := lm.syncInterfaces(s); err != nil {
			retry := lm.syncBackoff.Next()
			s.Log.Warn("interface sync failed", "err", err, "retry", retry)
			lm.scheduleSync(e, retry)
			return nil
		}
		lm.syncBackoff.Reset()
		lm.scheduleSync(e, state.InterfaceSyncInterval)
		return nil
	}, delay)
}
