package state

import "time"

const (
	// INF is the infinite metric; overload is signalled by flag, never by INF.
	INF = ^(uint32)(0)
)

var (
	DefaultLinkMetric = (uint32)(1)

	// rtt-derived metric granularity; 100us of rtt per metric unit
	RttMetricDivisor = (int64)(100)

	// coalescing windows for the advertisement throttles
	AdjAdvertiseThrottle   = time.Millisecond * 50
	PeerAdvertiseThrottle  = time.Millisecond * 50
	IfaceAdvertiseThrottle = time.Millisecond * 50

	// link flap damping defaults, clamped per interface to [init, max]
	LinkFlapInitialBackoff = time.Millisecond * 1000
	LinkFlapMaxBackoff     = time.Second * 60

	// periodic full resync of the interface inventory from the OS
	InterfaceSyncInterval   = time.Second * 60
	SyncRetryInitialBackoff = time.Second * 1
	SyncRetryMaxBackoff     = time.Second * 32

	// kv publish retry on transient store errors
	KvPublishRetryInitialBackoff = time.Second * 1
	KvPublishRetryMaxBackoff     = time.Second * 8

	// sticky kv keys are refreshed at 3/4 of this TTL
	DefaultKvKeyTTL = time.Second * 300

	// node label allocation window per area
	NodeLabelRangeStart = (int32)(101)
	NodeLabelRangeEnd   = (int32)(49999)
	AllocRetryDelay     = time.Millisecond * 250

	DefaultAdjHoldTime = time.Second * 4

	QueueDepth = 128

	DispatchWarnThreshold = time.Millisecond * 4

	LinkMonitorStateKey = "link-monitor-state"
)
