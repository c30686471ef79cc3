package state

import (
	"context"
	"log/slog"
	"net/netip"
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

type Module interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on the main loop goroutine
type State struct {
	*Env
	Modules map[string]Module
}

// Env can be read from any goroutine
type Env struct {
	DispatchChannel chan<- func(s *State) error
	CentralCfg
	LocalCfg
	Context context.Context
	Cancel  context.CancelCauseFunc
	Log     *slog.Logger
	Clock   clock.Clock

	// external collaborators, owned by the process; their lifetimes
	// strictly exceed any module's
	Kv          KvClient
	ConfigStore PersistentStore
	Links       LinkLister

	// inbound queues, consumed by the link monitor
	NeighborUpdates chan NeighborEvent
	NetlinkUpdates  chan NetlinkEvent

	// outbound queues
	InterfaceUpdates chan InterfaceDatabase
	PrefixUpdates    chan PrefixUpdateRequest
	PeerUpdates      chan PeerUpdateRequest
	LogSamples       chan LogSample

	Started  atomic.Bool
	Stopping atomic.Bool
}

// KvClient is the narrow handle to the cluster key-value store. Keys
// persisted through it are refreshed at their TTL until Stop.
type KvClient interface {
	PersistKey(area Area, key string, value []byte) error
	GetKey(area Area, key string) ([]byte, bool, error)
	UnsetKey(area Area, key string) error
	Stop()
}

// PersistentStore holds opaque blobs across restarts.
type PersistentStore interface {
	Load(key string) ([]byte, bool, error)
	Save(key string, blob []byte) error
	Erase(key string) error
}

// LinkLister enumerates the OS link/address inventory.
type LinkLister interface {
	ListLinks() ([]LinkSnapshot, error)
}

// LinkSnapshot is one entry of the OS inventory.
type LinkSnapshot struct {
	Name  string
	Index int
	Up    bool
	Addrs []netip.Prefix
}
