// Package southbound defines the contract between osvrouter and the fast-path
// dataplane whose tables it programs. The only implementation speaks the VPP
// binary API (pkg/southbound/vpp); tests substitute fakes for the narrow
// sub-interfaces.
package southbound

import (
	"errors"
	"net"
	"net/netip"

	"github.com/veesix-networks/osvrouter/pkg/ifmgr"
)

var ErrUnavailable = errors.New("dataplane unavailable")

// Tables mutates the fast-path forwarding state: interface addresses, routes,
// admin flags, and the IPv4 neighbor (address-resolution) table.
type Tables interface {
	// Apply marshals fn onto the goroutine that owns fast-path table
	// mutations and returns without waiting. Handlers running on other
	// goroutines use this instead of mutating in place.
	Apply(fn func())

	AddDelInterfaceAddress(swIfIndex uint32, prefix netip.Prefix, isDel bool) error
	AddDelRoute(dst netip.Prefix, gateway netip.Addr, swIfIndex uint32, isDel bool) error
	SetInterfaceAdminState(swIfIndex uint32, up bool) error

	// UpsertNeighbor installs or replaces the (ip -> mac) binding on the
	// given interface. Aging is the neighbor table's own concern.
	UpsertNeighbor(swIfIndex uint32, ip netip.Addr, mac net.HardwareAddr) error
}

// ShadowPlane manages the dataplane half of a shadow interface pairing.
type ShadowPlane interface {
	// CreateTap creates a host-visible tap with the given host interface
	// name and dataplane-side MAC, returning its sw_if_index.
	CreateTap(hostIfName string, mac net.HardwareAddr) (uint32, error)
	DeleteTap(swIfIndex uint32) error
	SetL2Xconnect(rxSwIfIndex, txSwIfIndex uint32, enable bool) error

	// InstallMulticastDivertArc steers 224.0.0.0/24 into the local punt
	// path so IGMP and OSPF multicast reach the classified entry point.
	InstallMulticastDivertArc() error
}

// Inventory exposes the cached view of fast-path interfaces.
type Inventory interface {
	IfMgr() *ifmgr.Manager

	// WatchInterfaceEvents delivers interface create/delete notifications.
	WatchInterfaceEvents(fn func(swIfIndex uint32, deleted bool)) error
}

type Southbound interface {
	Tables
	ShadowPlane
	Inventory
	Close() error
}
