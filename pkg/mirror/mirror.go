// Package mirror applies kernel network state changes to the fast path.
// Address, route and link updates observed on a shadow interface's host side
// are replayed against the mapped fast-path interface; updates for unmapped
// interfaces are ignored.
package mirror

import (
	"log/slog"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/veesix-networks/osvrouter/pkg/ifmap"
	"github.com/veesix-networks/osvrouter/pkg/logger"
	"github.com/veesix-networks/osvrouter/pkg/southbound"
)

type Mirror struct {
	table    *ifmap.Table
	fastpath southbound.Tables
	log      *slog.Logger
}

func New(table *ifmap.Table, fastpath southbound.Tables) *Mirror {
	return &Mirror{
		table:    table,
		fastpath: fastpath,
		log:      logger.Component(logger.Mirror),
	}
}

// HandleAddr mirrors an IPv4 address add or delete onto the mapped fast-path
// interface.
func (m *Mirror) HandleAddr(update netlink.AddrUpdate) {
	swIfIndex, ok := m.table.Fastpath(update.LinkIndex)
	if !ok {
		return
	}
	prefix, ok := prefixFromIPNet(update.LinkAddress)
	if !ok {
		return
	}
	isDel := !update.NewAddr
	m.log.Debug("mirroring address", "interface", swIfIndex, "prefix", prefix, "delete", isDel)
	if err := m.fastpath.AddDelInterfaceAddress(swIfIndex, prefix, isDel); err != nil {
		m.log.Error("failed to mirror address",
			"interface", swIfIndex, "prefix", prefix.String(), "delete", isDel, "error", err)
	}
}

// HandleRoute mirrors an IPv4 route from the kernel main table onto the fast
// path. Routes in any other kernel table are left alone.
func (m *Mirror) HandleRoute(update netlink.RouteUpdate) {
	if update.Table != unix.RT_TABLE_MAIN {
		return
	}
	swIfIndex, ok := m.table.Fastpath(update.LinkIndex)
	if !ok {
		return
	}

	dst, ok := routeDst(update.Route)
	if !ok {
		return
	}
	var gateway netip.Addr
	if gw := update.Gw.To4(); gw != nil {
		gateway = netip.AddrFrom4([4]byte(gw))
	}

	isDel := update.Type == unix.RTM_DELROUTE
	m.log.Debug("mirroring route", "interface", swIfIndex, "dst", dst, "gateway", gateway, "delete", isDel)
	if err := m.fastpath.AddDelRoute(dst, gateway, swIfIndex, isDel); err != nil {
		m.log.Error("failed to mirror route",
			"interface", swIfIndex, "dst", dst.String(), "delete", isDel, "error", err)
	}
}

// HandleLink mirrors the host interface's admin state. The fast-path flag
// change is marshalled through the table owner so it does not race with
// packet-path state.
func (m *Mirror) HandleLink(update netlink.LinkUpdate) {
	attrs := update.Link.Attrs()
	if attrs == nil {
		return
	}
	swIfIndex, ok := m.table.Fastpath(attrs.Index)
	if !ok {
		return
	}

	up := attrs.Flags&net.FlagUp != 0
	m.log.Debug("mirroring link state", "interface", swIfIndex, "up", up)
	m.fastpath.Apply(func() {
		if err := m.fastpath.SetInterfaceAdminState(swIfIndex, up); err != nil {
			m.log.Error("failed to mirror link state", "interface", swIfIndex, "up", up, "error", err)
		}
	})
}

func prefixFromIPNet(ipnet net.IPNet) (netip.Prefix, bool) {
	ip := ipnet.IP.To4()
	if ip == nil {
		return netip.Prefix{}, false
	}
	ones, bits := ipnet.Mask.Size()
	if bits != 32 {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(netip.AddrFrom4([4]byte(ip)), ones), true
}

// routeDst normalizes the route destination; a nil destination is the
// default route.
func routeDst(route netlink.Route) (netip.Prefix, bool) {
	if route.Dst == nil {
		return netip.PrefixFrom(netip.AddrFrom4([4]byte{}), 0), true
	}
	return prefixFromIPNet(*route.Dst)
}
