package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency = metric.NewHistogram("1m1s")
	NeighborEvents  = metric.NewCounter("10s1s")
	NetlinkEvents   = metric.NewCounter("10s1s")
	KvPublishes     = metric.NewCounter("10s1s")
	PeerDeltas      = metric.NewCounter("10s1s")
	InterfaceSyncs  = metric.NewCounter("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("aramid:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("aramid:NeighborEvents/s", NeighborEvents)
	expvar.Publish("aramid:NetlinkEvents/s", NetlinkEvents)
	expvar.Publish("aramid:KvPublishes/s", KvPublishes)
	expvar.Publish("aramid:PeerDeltas/s", PeerDeltas)
	expvar.Publish("aramid:InterfaceSyncs/s", InterfaceSyncs)
}
