package state

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
)

type Node string

type Area string

// PeerSpec identifies the control-plane endpoint of a remote node, one per
// (node, area) in the key-value store's gossip layer.
type PeerSpec struct {
	Addr     netip.Addr `yaml:"addr"`
	CtrlPort uint16     `yaml:"ctrl_port"`
	PeerId   string     `yaml:"peer_id,omitempty"`
}

type NeighborEventKind uint8

const (
	NeighborUp NeighborEventKind = iota
	NeighborDown
	NeighborRestarting
	NeighborRttChange
)

func (k NeighborEventKind) String() string {
	switch k {
	case NeighborUp:
		return "NEIGHBOR_UP"
	case NeighborDown:
		return "NEIGHBOR_DOWN"
	case NeighborRestarting:
		return "NEIGHBOR_RESTARTING"
	case NeighborRttChange:
		return "NEIGHBOR_RTT_CHANGE"
	}
	return "NEIGHBOR_UNKNOWN"
}

// NeighborEvent is emitted by the hello prober on every neighbor transition.
type NeighborEvent struct {
	Kind         NeighborEventKind
	Node         Node
	RemoteIfName string
	LocalIfName  string
	Spec         PeerSpec
	Rtt          time.Duration
	Area         Area
}

// NetlinkEvent is the tagged union of platform events; dispatch by type switch.
type NetlinkEvent interface {
	isNetlinkEvent()
}

type LinkEvent struct {
	IfName  string
	IfIndex int
	Up      bool
}

type AddrEvent struct {
	IfIndex int
	Addr    netip.Prefix
	Valid   bool // false on address removal
}

func (LinkEvent) isNetlinkEvent() {}
func (AddrEvent) isNetlinkEvent() {}

// Adjacency is a directional relationship to a remote node over a local
// interface, as published in the adjacency database.
type Adjacency struct {
	OtherNode    Node       `yaml:"other_node"`
	IfName       string     `yaml:"if_name"`
	OtherIfName  string     `yaml:"other_if_name"`
	NextHop      netip.Addr `yaml:"next_hop"`
	Metric       uint32     `yaml:"metric"`
	RttUs        int64      `yaml:"rtt_us"`
	Timestamp    int64      `yaml:"timestamp"`
	IsOverloaded bool       `yaml:"is_overloaded,omitempty"`
}

// AdjacencyDatabase is the per-area adjacency set persisted to the kv store.
type AdjacencyDatabase struct {
	Node         Node        `yaml:"node"`
	Area         Area        `yaml:"area"`
	IsOverloaded bool        `yaml:"is_overloaded"`
	NodeLabel    int32       `yaml:"node_label,omitempty"`
	Adjacencies  []Adjacency `yaml:"adjacencies"`
}

type InterfaceInfo struct {
	Name   string
	Up     bool
	Usable bool
	Index  int
	Addrs  []netip.Prefix
	Metric uint32
}

// InterfaceDatabase is the full interface snapshot published to the prober and fib.
type InterfaceDatabase struct {
	Node       Node
	Interfaces []InterfaceInfo
}

type PrefixUpdateCmd uint8

const (
	PrefixAdd PrefixUpdateCmd = iota
	PrefixWithdraw
)

// PrefixUpdateRequest carries redistributed interface prefixes to the prefix manager.
type PrefixUpdateRequest struct {
	Cmd            PrefixUpdateCmd
	Prefixes       []netip.Prefix
	Source         string
	ForwardingType string
	ForwardingAlgo string
}

// PeerUpdateRequest announces per-area peer deltas to the kv store module.
type PeerUpdateRequest struct {
	Area        Area
	AddOrUpdate map[Node]PeerSpec
	Del         []Node
}

// LogSample is one structured event record on the log queue.
type LogSample struct {
	Id     uuid.UUID
	At     time.Time
	Event  string
	Fields map[string]string
}

func NewLogSample(at time.Time, event string, fields map[string]string) LogSample {
	return LogSample{Id: uuid.New(), At: at, Event: event, Fields: fields}
}

// LinkMonitorState is the operator-set state persisted across restarts.
// It is rewritten on every operator change, before any advertisement.
type LinkMonitorState struct {
	NodeOverloaded      bool                         `yaml:"node_overloaded"`
	OverloadedLinks     []string                     `yaml:"overloaded_links,omitempty"`
	LinkMetricOverrides map[string]uint32            `yaml:"link_metric_overrides,omitempty"`
	AdjMetricOverrides  map[string]map[string]uint32 `yaml:"adj_metric_overrides,omitempty"`
	NodeLabels          map[Area]int32               `yaml:"node_labels,omitempty"`
}

func (st *LinkMonitorState) IsLinkOverloaded(ifName string) bool {
	for _, l := range st.OverloadedLinks {
		if l == ifName {
			return true
		}
	}
	return false
}

// Copy returns a deep copy, used so a failed persist never leaves a
// half-applied mutation behind.
func (st *LinkMonitorState) Copy() LinkMonitorState {
	out := LinkMonitorState{NodeOverloaded: st.NodeOverloaded}
	out.OverloadedLinks = append([]string(nil), st.OverloadedLinks...)
	if st.LinkMetricOverrides != nil {
		out.LinkMetricOverrides = make(map[string]uint32, len(st.LinkMetricOverrides))
		for k, v := range st.LinkMetricOverrides {
			out.LinkMetricOverrides[k] = v
		}
	}
	if st.AdjMetricOverrides != nil {
		out.AdjMetricOverrides = make(map[string]map[string]uint32, len(st.AdjMetricOverrides))
		for ifName, m := range st.AdjMetricOverrides {
			inner := make(map[string]uint32, len(m))
			for n, v := range m {
				inner[n] = v
			}
			out.AdjMetricOverrides[ifName] = inner
		}
	}
	if st.NodeLabels != nil {
		out.NodeLabels = make(map[Area]int32, len(st.NodeLabels))
		for a, l := range st.NodeLabels {
			out.NodeLabels[a] = l
		}
	}
	return out
}
