// Package sys talks to the OS network stack. The netlink watcher feeds the
// platform event queue and serves the full link/address inventory used by
// the periodic resync.
package sys

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/aramidnet/aramid/state"
	"github.com/vishvananda/netlink"
)

type NetlinkWatcher struct{}

var _ state.LinkLister = (*NetlinkWatcher)(nil)

func isOperUp(attrs *netlink.LinkAttrs) bool {
	if attrs.OperState == netlink.OperUp {
		return true
	}
	// loopback and some virtual devices report "unknown" while up
	return attrs.OperState == netlink.OperUnknown && attrs.Flags&net.FlagUp != 0
}

func toPrefix(n *net.IPNet) (netip.Prefix, bool) {
	addr, ok := netip.AddrFromSlice(n.IP)
	if !ok {
		return netip.Prefix{}, false
	}
	ones, _ := n.Mask.Size()
	return netip.PrefixFrom(addr.Unmap(), ones), true
}

// ListLinks enumerates all links and their addresses.
func (w *NetlinkWatcher) ListLinks() ([]state.LinkSnapshot, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("netlink link list: %w", err)
	}
	snaps := make([]state.LinkSnapshot, 0, len(links))
	for _, l := range links {
		attrs := l.Attrs()
		snap := state.LinkSnapshot{
			Name:  attrs.Name,
			Index: attrs.Index,
			Up:    isOperUp(attrs),
		}
		addrs, err := netlink.AddrList(l, netlink.FAMILY_ALL)
		if err != nil {
			return nil, fmt.Errorf("netlink addr list %s: %w", attrs.Name, err)
		}
		for _, a := range addrs {
			if p, ok := toPrefix(a.IPNet); ok {
				snap.Addrs = append(snap.Addrs, p)
			}
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Watch subscribes to kernel link and address updates and forwards them as
// platform events until the context is cancelled.
func (w *NetlinkWatcher) Watch(ctx context.Context, events chan<- state.NetlinkEvent) error {
	done := make(chan struct{})
	linkCh := make(chan netlink.LinkUpdate, 64)
	addrCh := make(chan netlink.AddrUpdate, 64)
	if err := netlink.LinkSubscribe(linkCh, done); err != nil {
		close(done)
		return fmt.Errorf("netlink link subscribe: %w", err)
	}
	if err := netlink.AddrSubscribe(addrCh, done); err != nil {
		close(done)
		return fmt.Errorf("netlink addr subscribe: %w", err)
	}

	go func() {
		defer close(done)
		for {
			select {
			case lu, ok := <-linkCh:
				if !ok {
					return
				}
				attrs := lu.Link.Attrs()
				send(ctx, events, state.LinkEvent{
					IfName:  attrs.Name,
					IfIndex: attrs.Index,
					Up:      isOperUp(attrs),
				})
			case au, ok := <-addrCh:
				if !ok {
					return
				}
				p, pok := toPrefix(&au.LinkAddress)
				if !pok {
					continue
				}
				send(ctx, events, state.AddrEvent{
					IfIndex: au.LinkIndex,
					Addr:    p,
					Valid:   au.NewAddr,
				})
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func send(ctx context.Context, events chan<- state.NetlinkEvent, ev state.NetlinkEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
