// Package mock provides test doubles for the platform surfaces.
package mock

import (
	"fmt"
	"net/netip"
	"slices"
	"sync"

	"github.com/aramidnet/aramid/state"
)

// Links is an in-memory OS link inventory implementing state.LinkLister.
type Links struct {
	mu    sync.Mutex
	links map[string]state.LinkSnapshot

	// Fail makes ListLinks return an error, for exercising sync retry.
	Fail bool
}

var _ state.LinkLister = (*Links)(nil)

func NewLinks() *Links {
	return &Links{links: make(map[string]state.LinkSnapshot)}
}

func (l *Links) SetLink(name string, index int, up bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := l.links[name]
	snap.Name = name
	snap.Index = index
	snap.Up = up
	l.links[name] = snap
}

func (l *Links) AddAddr(name string, addr netip.Prefix) {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := l.links[name]
	if !slices.Contains(snap.Addrs, addr) {
		snap.Addrs = append(snap.Addrs, addr)
	}
	l.links[name] = snap
}

func (l *Links) RemoveLink(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.links, name)
}

func (l *Links) ListLinks() ([]state.LinkSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Fail {
		return nil, fmt.Errorf("inventory unavailable")
	}
	out := make([]state.LinkSnapshot, 0, len(l.links))
	for _, snap := range l.links {
		snap.Addrs = append([]netip.Prefix(nil), snap.Addrs...)
		out = append(out, snap)
	}
	slices.SortFunc(out, func(a, b state.LinkSnapshot) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}
