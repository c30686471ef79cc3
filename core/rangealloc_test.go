package core

import (
	"testing"

	"github.com/aramidnet/aramid/kv"
	"github.com/aramidnet/aramid/state"
	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeLabelClaimedAfterHold(t *testing.T) {
	h := newHarness(t, defaultCentral(), defaultLocal(), nil)

	// nothing claimed while the hold is pending
	assert.Empty(t, h.lm.lmState.NodeLabels)

	h.expireHold()

	label, ok := h.lm.lmState.NodeLabels["0"]
	require.True(t, ok)
	assert.GreaterOrEqual(t, label, state.NodeLabelRangeStart)
	assert.LessOrEqual(t, label, state.NodeLabelRangeEnd)

	owner, ok, err := h.kvClient.GetKey("0", nodeLabelKey(label))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "N1", string(owner))

	// claimed labels survive restarts
	blob, ok, _ := h.memStore.Load(state.LinkMonitorStateKey)
	require.True(t, ok)
	var persisted state.LinkMonitorState
	require.NoError(t, yaml.Unmarshal(blob, &persisted))
	assert.Equal(t, label, persisted.NodeLabels["0"])

	// the claimed label lands in the adjacency database
	dbBlob, dbOk := h.adjacencyDbBlob("0")
	require.True(t, dbOk)
	assert.Equal(t, label, decodeAdjDb(t, dbBlob).NodeLabel)
}

func TestNodeLabelConflictProbesNext(t *testing.T) {
	h := newHarness(t, defaultCentral(), defaultLocal(), nil)
	seed := h.lm.seedLabel(h.s, "0")
	h.kvStore.Set("0", nodeLabelKey(seed), kv.Entry{Value: []byte("N9"), Originator: "N9"})

	h.expireHold()
	h.advance(state.AllocRetryDelay)
	h.advance(state.AllocRetryDelay)

	label := h.lm.lmState.NodeLabels["0"]
	require.NotZero(t, label)
	assert.NotEqual(t, seed, label)
	assert.Equal(t, nextLabel(seed), label)
}

func TestNodeLabelPersistedPreference(t *testing.T) {
	h := newHarness(t, defaultCentral(), defaultLocal(), func(h *harness) {
		blob, err := yaml.Marshal(&state.LinkMonitorState{
			NodeLabels: map[state.Area]int32{"0": 12345},
		})
		require.NoError(t, err)
		require.NoError(t, h.memStore.Save(state.LinkMonitorStateKey, blob))
	})
	h.expireHold()
	assert.Equal(t, int32(12345), h.lm.lmState.NodeLabels["0"])
	owner, ok, _ := h.kvClient.GetKey("0", nodeLabelKey(12345))
	require.True(t, ok)
	assert.Equal(t, "N1", string(owner))
}

func TestNoLabelWithoutSegmentRouting(t *testing.T) {
	lcfg := defaultLocal()
	lcfg.EnableSegmentRouting = false
	h := newHarness(t, defaultCentral(), lcfg, nil)
	h.expireHold()
	assert.Empty(t, h.lm.lmState.NodeLabels)
}

func TestNextLabelWraps(t *testing.T) {
	assert.Equal(t, state.NodeLabelRangeStart, nextLabel(state.NodeLabelRangeEnd))
	assert.Equal(t, state.NodeLabelRangeStart+1, nextLabel(state.NodeLabelRangeStart))
}
