package core

import (
	"fmt"
	"net/netip"
	"regexp"
	"time"

	"github.com/aramidnet/aramid/perf"
	"github.com/aramidnet/aramid/state"
	"github.com/gaissmai/bart"
	"github.com/goccy/go-yaml"
)

// LinkMonitor converges platform link/address events and neighbor lifecycle
// events into the adjacency database, the kv-store peer set, the interface
// database, and the redistributed prefix set.
type LinkMonitor struct {
	env *state.Env

	// compiled config, immutable after Init
	includeRegexes []*regexp.Regexp
	excludeRegexes []*regexp.Regexp
	redistRegexes  []*regexp.Regexp
	excludeRoutes  bart.Table[struct{}]
	areas          []state.Area

	// mutable state, only ever touched on the main loop
	lmState         state.LinkMonitorState
	interfaces      map[string]*InterfaceEntry
	ifIndexToName   map[int]string
	adjacencies     map[AdjacencyKey]*AdjacencyValue
	peers           map[state.Area]map[state.Node]state.PeerSpec
	redistAnnounced map[netip.Prefix]struct{}

	// the very first adjacency/peer/redistribute publication waits out the
	// hold window so a discovery burst does not announce a flapping topology
	holdActive bool

	advertiseAdjThrottled       *Throttle
	advertisePeersThrottled     *Throttle
	advertiseIfaceAddrThrottled *Throttle
	retryTimerArmed             bool

	syncBackoff  ExponentialBackoff
	kvBackoff    ExponentialBackoff
	kvRetryArmed bool
}

func (lm *LinkMonitor) Init(s *state.State) error {
	lm.env = s.Env

	var err error
	if lm.includeRegexes, err = compileRegexes(s.IncludeInterfaceRegexes); err != nil {
		return fmt.Errorf("include interface regexes: %w", err)
	}
	if lm.excludeRegexes, err = compileRegexes(s.ExcludeInterfaceRegexes); err != nil {
		return fmt.Errorf("exclude interface regexes: %w", err)
	}
	if lm.redistRegexes, err = compileRegexes(s.RedistributeInterfaceRegexes); err != nil {
		return fmt.Errorf("redistribute interface regexes: %w", err)
	}
	for _, p := range s.ExcludePrefixes {
		lm.excludeRoutes.Insert(p, struct{}{})
	}
	lm.areas = s.CentralCfg.AreaIds()

	lm.interfaces = make(map[string]*InterfaceEntry)
	lm.ifIndexToName = make(map[int]string)
	lm.adjacencies = make(map[AdjacencyKey]*AdjacencyValue)
	lm.peers = make(map[state.Area]map[state.Node]state.PeerSpec)
	lm.redistAnnounced = make(map[netip.Prefix]struct{})

	if err := lm.loadState(s); err != nil {
		return err
	}

	lm.advertiseAdjThrottled = NewThrottle(s.Env, state.AdjAdvertiseThrottle, lm.advertiseAdjacencies)
	lm.advertisePeersThrottled = NewThrottle(s.Env, state.PeerAdvertiseThrottle, func(s *state.State) error {
		lm.advertiseKvStorePeersAll(s, nil)
		return nil
	})
	lm.advertiseIfaceAddrThrottled = NewThrottle(s.Env, state.IfaceAdvertiseThrottle, lm.advertiseIfaceAddr)

	lm.syncBackoff = ExponentialBackoff{Init: state.SyncRetryInitialBackoff, Max: state.SyncRetryMaxBackoff}
	lm.kvBackoff = ExponentialBackoff{Init: state.KvPublishRetryInitialBackoff, Max: state.KvPublishRetryMaxBackoff}

	// first inventory sync is fatal on failure; without it we'd announce
	// out of thin air
	if err := lm.syncInterfaces(s); err != nil {
		return fmt.Errorf("initial interface sync: %w", err)
	}

	lm.holdActive = true
	s.Env.ScheduleTask(lm.holdExpired, s.AdjHoldTime)

	lm.scheduleSync(s.Env, state.InterfaceSyncInterval)

	go pumpNeighborEvents(s.Env)
	go pumpNetlinkEvents(s.Env)

	s.Log.Info("link monitor initialized",
		"node", s.Id, "areas", len(lm.areas), "hold", s.AdjHoldTime)
	return nil
}

func (lm *LinkMonitor) Cleanup(s *state.State) error {
	if s.Kv != nil {
		s.Kv.Stop()
	}
	return nil
}

// loadState restores the persisted operator state, applying the startup
// drain policy.
func (lm *LinkMonitor) loadState(s *state.State) error {
	blob, ok, err := s.ConfigStore.Load(state.LinkMonitorStateKey)
	if err != nil {
		return fmt.Errorf("load link monitor state: %w", err)
	}
	if !ok {
		lm.lmState = state.LinkMonitorState{NodeOverloaded: s.AssumeDrained}
		if err := lm.persistState(s); err != nil {
			return err
		}
		s.Log.Info("no persisted state, assuming drain policy", "drained", s.AssumeDrained)
	} else {
		if err := yaml.Unmarshal(blob, &lm.lmState); err != nil {
			return fmt.Errorf("decode link monitor state: %w", err)
		}
		if s.OverrideDrainState && lm.lmState.NodeOverloaded != s.AssumeDrained {
			lm.lmState.NodeOverloaded = s.AssumeDrained
			if err := lm.persistState(s); err != nil {
				return err
			}
			s.Log.Info("drain state overridden", "drained", s.AssumeDrained)
		}
	}
	return nil
}

func (lm *LinkMonitor) persistState(s *state.State) error {
	blob, err := yaml.Marshal(&lm.lmState)
	if err != nil {
		return fmt.Errorf("encode link monitor state: %w", err)
	}
	if err := s.ConfigStore.Save(state.LinkMonitorStateKey, blob); err != nil {
		return fmt.Errorf("persist link monitor state: %w", err)
	}
	return nil
}

func (lm *LinkMonitor) holdExpired(s *state.State) error {
	lm.holdActive = false
	s.Log.Info("adjacency hold expired, starting to advertise")
	if err := lm.advertiseAdjacencies(s); err != nil {
		return err
	}
	lm.advertiseKvStorePeersAll(s, nil)
	if err := lm.advertiseIfaceAddr(s); err != nil {
		return err
	}
	if s.EnableSegmentRouting {
		lm.startLabelAllocators(s)
	}
	return nil
}

func pumpNeighborEvents(e *state.Env) {
	for {
		select {
		case ev := <-e.NeighborUpdates:
			perf.NeighborEvents.Add(1)
			e.Dispatch(func(s *state.State) error {
				return Get[*LinkMonitor](s).processNeighborEvent(s, ev)
			})
		case <-e.Context.Done():
			return
		}
	}
}

func pumpNetlinkEvents(e *state.Env) {
	for {
		select {
		case ev := <-e.NetlinkUpdates:
			perf.NetlinkEvents.Add(1)
			e.Dispatch(func(s *state.State) error {
				return Get[*LinkMonitor](s).processNetlinkEvent(s, ev)
			})
		case <-e.Context.Done():
			return
		}
	}
}

// interfaceMatches applies the include/exclude regex gate.
func (lm *LinkMonitor) interfaceMatches(name string) bool {
	if matchAny(lm.excludeRegexes, name) {
		return false
	}
	return matchAny(lm.includeRegexes, name)
}

// getOrCreateInterfaceEntry returns the tracked entry for name, creating it
// with the given initial attrs. Returns nil if the name does not pass the
// regex gate.
func (lm *LinkMonitor) getOrCreateInterfaceEntry(s *state.State, name string, ifIndex int, up bool) *InterfaceEntry {
	if entry, ok := lm.interfaces[name]; ok {
		return entry
	}
	if !lm.interfaceMatches(name) {
		return nil
	}
	entry := newInterfaceEntry(s.Clock, name, ifIndex, up, s.FlapInitialBackoff, s.FlapMaxBackoff)
	lm.interfaces[name] = entry
	return entry
}

// interfaceIsUsable is the advertisement gate: operationally up, not
// operator-overloaded, and out of flap backoff.
func (lm *LinkMonitor) interfaceIsUsable(name string) bool {
	entry, ok := lm.interfaces[name]
	if !ok {
		return false
	}
	return entry.IsActive() && !lm.lmState.IsLinkOverloaded(name)
}

// getRetryTimeOnUnstableInterfaces is the minimum remaining backoff across
// all interfaces currently in backoff; zero if none are.
func (lm *LinkMonitor) getRetryTimeOnUnstableInterfaces() time.Duration {
	var ret time.Duration
	for _, entry := range lm.interfaces {
		rem := entry.RetryRemaining()
		if rem > 0 && (ret == 0 || rem < ret) {
			ret = rem
		}
	}
	return ret
}

// linkMetric is the interface-level metric: operator override wins, else
// the default constant. Rtt-derived metrics live on adjacencies.
func (lm *LinkMonitor) linkMetric(name string) uint32 {
	if m, ok := lm.lmState.LinkMetricOverrides[name]; ok {
		return m
	}
	return state.DefaultLinkMetric
}

func (lm *LinkMonitor) logSample(s *state.State, event string, fields map[string]string) {
	qput(s.Env, s.LogSamples, state.NewLogSample(s.Clock.Now(), event, fields))
}
