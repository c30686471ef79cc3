package state

import (
	"net/netip"
	"slices"
	"time"
)

// AreaCfg scopes a partition of the routing topology. The area set is
// static for the lifetime of the process.
type AreaCfg struct {
	Id               Area     `yaml:"id"`
	NeighborRegexes  []string `yaml:"neighbor_regexes,omitempty"`
	InterfaceRegexes []string `yaml:"interface_regexes,omitempty"`
}

// CentralCfg represents network-global configuration shared by all nodes.
type CentralCfg struct {
	Domain   string        `yaml:"domain"`
	Areas    []AreaCfg     `yaml:"areas"`
	KvKeyTTL time.Duration `yaml:"kv_key_ttl,omitempty"`
}

// LocalCfg represents local node-level configuration
type LocalCfg struct {
	Id Node `yaml:"id"` // unique id for this node

	IncludeInterfaceRegexes      []string `yaml:"include_interface_regexes,omitempty"`
	ExcludeInterfaceRegexes      []string `yaml:"exclude_interface_regexes,omitempty"`
	RedistributeInterfaceRegexes []string `yaml:"redistribute_interface_regexes,omitempty"`

	// redistributed prefixes falling inside any of these are withheld
	ExcludePrefixes []netip.Prefix `yaml:"exclude_prefixes,omitempty"`

	EnableV4             bool   `yaml:"enable_v4,omitempty"`
	EnableSegmentRouting bool   `yaml:"enable_segment_routing,omitempty"`
	PrefixForwardingType string `yaml:"prefix_forwarding_type,omitempty"` // "ip" or "sr_mpls"
	PrefixForwardingAlgo string `yaml:"prefix_forwarding_algo,omitempty"` // "sp" or "kspf"

	UseRttMetric bool `yaml:"use_rtt_metric,omitempty"`

	FlapInitialBackoff time.Duration `yaml:"flap_initial_backoff,omitempty"`
	FlapMaxBackoff     time.Duration `yaml:"flap_max_backoff,omitempty"`

	AdjHoldTime time.Duration `yaml:"adj_hold_time,omitempty"`

	// startup drain policy
	AssumeDrained      bool `yaml:"assume_drained,omitempty"`
	OverrideDrainState bool `yaml:"override_drain_state,omitempty"`

	StateDir string `yaml:"state_dir,omitempty"`
	LogPath  string `yaml:"log_path,omitempty"` // if not empty, aramid will write to this file
}

func (c *CentralCfg) AreaIds() []Area {
	ids := make([]Area, 0, len(c.Areas))
	for _, a := range c.Areas {
		ids = append(ids, a.Id)
	}
	slices.Sort(ids)
	return ids
}

func (c *CentralCfg) HasArea(id Area) bool {
	return slices.ContainsFunc(c.Areas, func(a AreaCfg) bool {
		return a.Id == id
	})
}

// ApplyDefaults fills unset durations with the stock values.
func (c *LocalCfg) ApplyDefaults() {
	if c.FlapInitialBackoff == 0 {
		c.FlapInitialBackoff = LinkFlapInitialBackoff
	}
	if c.FlapMaxBackoff == 0 {
		c.FlapMaxBackoff = LinkFlapMaxBackoff
	}
	if c.AdjHoldTime == 0 {
		c.AdjHoldTime = DefaultAdjHoldTime
	}
	if c.PrefixForwardingType == "" {
		c.PrefixForwardingType = "ip"
	}
	if c.PrefixForwardingAlgo == "" {
		c.PrefixForwardingAlgo = "sp"
	}
}

func (c *CentralCfg) ApplyDefaults() {
	if c.KvKeyTTL == 0 {
		c.KvKeyTTL = DefaultKvKeyTTL
	}
}
