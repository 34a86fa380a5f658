package ifmgr

import (
	"net"
	"net/netip"
)

// Interface mirrors one fast-path (VPP) interface. IPv4Prefixes carries the
// configured addresses with their masks so the diversion engine can do
// subnet-membership checks on ARP replies.
type Interface struct {
	SwIfIndex    uint32
	SupSwIfIndex uint32
	Name         string
	DevType      string
	AdminUp      bool
	LinkUp       bool
	MTU          uint32
	MAC          net.HardwareAddr
	IPv4Prefixes []netip.Prefix
}
