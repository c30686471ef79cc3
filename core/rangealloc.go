package core

import (
	"fmt"
	"hash/fnv"

	"github.com/aramidnet/aramid/state"
)

// Node-label allocation: each node claims one small integer per area by
// probing the kv store. Allocation starts only once the adjacency hold has
// expired, so the probe runs over an established peer set, and a claimed
// label is persisted and preferred on subsequent restarts.

func nodeLabelKey(label int32) string {
	return fmt.Sprintf("alloc:node-label:%d", label)
}

func labelRangeSize() int32 {
	return state.NodeLabelRangeEnd - state.NodeLabelRangeStart + 1
}

// seedLabel is the first candidate: the persisted label if any, else a
// stable hash of (node, area) into the range.
func (lm *LinkMonitor) seedLabel(s *state.State, area state.Area) int32 {
	if label, ok := lm.lmState.NodeLabels[area]; ok && label != 0 {
		return label
	}
	h := fnv.New32a()
	h.Write([]byte(string(s.Id) + "/" + string(area)))
	return state.NodeLabelRangeStart + int32(h.Sum32()%uint32(labelRangeSize()))
}

func (lm *LinkMonitor) startLabelAllocators(s *state.State) {
	for _, area := range lm.areas {
		lm.tryClaimLabel(s, area, lm.seedLabel(s, area), 0)
	}
}

func nextLabel(label int32) int32 {
	label++
	if label > state.NodeLabelRangeEnd {
		label = state.NodeLabelRangeStart
	}
	return label
}

func (lm *LinkMonitor) tryClaimLabel(s *state.State, area state.Area, label int32, attempts int32) {
	if attempts >= labelRangeSize() {
		s.Log.Error("node label range exhausted", "area", area)
		return
	}
	retry := func(label int32, attempts int32) {
		// re-dispatched through the loop; dies naturally with the context
		s.Env.ScheduleTask(func(s *state.State) error {
			lm.tryClaimLabel(s, area, label, attempts)
			return nil
		}, state.AllocRetryDelay)
	}

	owner, ok, err := s.Kv.GetKey(area, nodeLabelKey(label))
	if err != nil {
		s.Log.Warn("label probe failed", "area", area, "label", label, "err", err)
		retry(label, attempts)
		return
	}
	if ok && string(owner) != string(s.Id) {
		// claimed by someone else, probe the next one
		retry(nextLabel(label), attempts+1)
		return
	}
	if err := s.Kv.PersistKey(area, nodeLabelKey(label), []byte(s.Id)); err != nil {
		s.Log.Warn("label claim failed", "area", area, "label", label, "err", err)
		retry(label, attempts)
		return
	}

	next := lm.lmState.Copy()
	if next.NodeLabels == nil {
		next.NodeLabels = make(map[state.Area]int32)
	}
	next.NodeLabels[area] = label
	if err := lm.commitState(s, next); err != nil {
		s.Log.Error("failed to persist node label", "area", area, "label", label, "err", err)
		return
	}
	s.Log.Info("node label claimed", "area", area, "label", label)
	lm.advertiseAdjThrottled.Call()
}
