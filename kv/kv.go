// Package kv holds the in-process key-value store partition map and the
// narrow client the link monitor publishes through. Gossip replication of
// the store between nodes happens elsewhere; everything here is local.
package kv

import (
	"sync"
	"time"

	"github.com/aramidnet/aramid/state"
	"github.com/benbjohnson/clock"
	"github.com/jellydator/ttlcache/v3"
)

// Entry is one stored value, tagged with the node that originated it.
type Entry struct {
	Value      []byte
	Originator state.Node
}

// Store is a per-area TTL'd key-value map.
type Store struct {
	mu    sync.Mutex
	ttl   time.Duration
	areas map[state.Area]*ttlcache.Cache[string, Entry]
}

func NewStore(ttl time.Duration) *Store {
	if ttl == 0 {
		ttl = state.DefaultKvKeyTTL
	}
	return &Store{
		ttl:   ttl,
		areas: make(map[state.Area]*ttlcache.Cache[string, Entry]),
	}
}

func (st *Store) area(a state.Area) *ttlcache.Cache[string, Entry] {
	st.mu.Lock()
	defer st.mu.Unlock()
	c, ok := st.areas[a]
	if !ok {
		c = ttlcache.New[string, Entry](
			ttlcache.WithTTL[string, Entry](st.ttl),
			ttlcache.WithDisableTouchOnHit[string, Entry](),
		)
		go c.Start()
		st.areas[a] = c
	}
	return c
}

func (st *Store) Set(a state.Area, key string, e Entry) {
	st.area(a).Set(key, e, ttlcache.DefaultTTL)
}

func (st *Store) Get(a state.Area, key string) (Entry, bool) {
	item := st.area(a).Get(key)
	if item == nil {
		return Entry{}, false
	}
	return item.Value(), true
}

func (st *Store) Delete(a state.Area, key string) {
	st.area(a).Delete(key)
}

func (st *Store) Stop() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, c := range st.areas {
		c.Stop()
	}
}

var _ state.KvClient = (*Client)(nil)

type persistedKey struct {
	area state.Area
	key  string
}

// Client persists keys into a Store on behalf of one node and keeps them
// alive ("sticky") by re-setting them at 3/4 of the key TTL until Stop.
// It implements state.KvClient.
type Client struct {
	store *Store
	node  state.Node
	ttl   time.Duration
	clk   clock.Clock

	mu        sync.Mutex
	persisted map[persistedKey][]byte

	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(store *Store, node state.Node, ttl time.Duration, clk clock.Clock) *Client {
	if ttl == 0 {
		ttl = state.DefaultKvKeyTTL
	}
	c := &Client{
		store:     store,
		node:      node,
		ttl:       ttl,
		clk:       clk,
		persisted: make(map[persistedKey][]byte),
		stop:      make(chan struct{}),
	}
	go c.refreshLoop()
	return c
}

func (c *Client) refreshLoop() {
	t := c.clk.Ticker(c.ttl * 3 / 4)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.mu.Lock()
			for pk, value := range c.persisted {
				c.store.Set(pk.area, pk.key, Entry{Value: value, Originator: c.node})
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

func (c *Client) PersistKey(area state.Area, key string, value []byte) error {
	c.mu.Lock()
	c.persisted[persistedKey{area, key}] = value
	c.mu.Unlock()
	c.store.Set(area, key, Entry{Value: value, Originator: c.node})
	return nil
}

func (c *Client) GetKey(area state.Area, key string) ([]byte, bool, error) {
	e, ok := c.store.Get(area, key)
	if !ok {
		return nil, false, nil
	}
	return e.Value, true, nil
}

func (c *Client) UnsetKey(area state.Area, key string) error {
	c.mu.Lock()
	delete(c.persisted, persistedKey{area, key})
	c.mu.Unlock()
	c.store.Delete(area, key)
	return nil
}

// Originator reports which node currently owns a key.
func (c *Client) Originator(area state.Area, key string) (state.Node, bool) {
	e, ok := c.store.Get(area, key)
	return e.Originator, ok
}

func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}
