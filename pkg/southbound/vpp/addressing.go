package vpp

import (
	"fmt"
	"net/netip"

	interfaces "go.fd.io/govpp/binapi/interface"
	"go.fd.io/govpp/binapi/ip_types"
)

func (v *VPP) AddDelInterfaceAddress(swIfIndex uint32, prefix netip.Prefix, isDel bool) error {
	ch, err := v.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if !prefix.Addr().Is4() {
		return fmt.Errorf("not an IPv4 prefix: %s", prefix)
	}

	req := &interfaces.SwInterfaceAddDelAddress{
		SwIfIndex: ifIndex(swIfIndex),
		IsAdd:     !isDel,
		Prefix: ip_types.AddressWithPrefix{
			Address: ip4Address(prefix.Addr()),
			Len:     uint8(prefix.Bits()),
		},
	}

	reply := &interfaces.SwInterfaceAddDelAddressReply{}
	if err := ch.SendRequest(req).ReceiveReply(reply); err != nil {
		return fmt.Errorf("sw_interface_add_del_address: %w", err)
	}

	if isDel {
		v.ifMgr.RemoveIPv4Prefix(swIfIndex, prefix)
	} else {
		v.ifMgr.AddIPv4Prefix(swIfIndex, prefix)
	}

	v.logger.Debug("Applied interface address", "sw_if_index", swIfIndex, "prefix", prefix.String(), "is_del", isDel)
	return nil
}

func ip4Address(addr netip.Addr) ip_types.Address {
	a4 := addr.As4()
	return ip_types.Address{
		Af: ip_types.ADDRESS_IP4,
		Un: ip_types.AddressUnionIP4(ip_types.IP4Address{a4[0], a4[1], a4[2], a4[3]}),
	}
}
