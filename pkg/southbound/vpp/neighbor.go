package vpp

import (
	"fmt"
	"net"
	"net/netip"

	"go.fd.io/govpp/binapi/ethernet_types"
	"go.fd.io/govpp/binapi/ip_neighbor"
)

// UpsertNeighbor replaces the IPv4 neighbor binding for ip on the given
// interface. VPP treats an add of an existing neighbor as an update, which is
// exactly the learn-or-refresh semantic the ARP snooping path needs.
func (v *VPP) UpsertNeighbor(swIfIndex uint32, ip netip.Addr, mac net.HardwareAddr) error {
	ch, err := v.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if !ip.Is4() {
		return fmt.Errorf("not an IPv4 address: %s", ip)
	}

	req := &ip_neighbor.IPNeighborAddDel{
		IsAdd: true,
		Neighbor: ip_neighbor.IPNeighbor{
			SwIfIndex:  ifIndex(swIfIndex),
			MacAddress: ethernet_types.MacAddress(macBytes(mac)),
			IPAddress:  ip4Address(ip),
		},
	}

	reply := &ip_neighbor.IPNeighborAddDelReply{}
	if err := ch.SendRequest(req).ReceiveReply(reply); err != nil {
		return fmt.Errorf("ip_neighbor_add_del: %w", err)
	}

	v.logger.Debug("Learned neighbor", "ip", ip.String(), "mac", mac.String(), "sw_if_index", swIfIndex)
	return nil
}
