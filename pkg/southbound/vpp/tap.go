package vpp

import (
	"fmt"
	"net"

	"go.fd.io/govpp/binapi/ethernet_types"
	"go.fd.io/govpp/binapi/l2"
	"go.fd.io/govpp/binapi/tapv2"

	"github.com/veesix-networks/osvrouter/pkg/ifmgr"
)

// CreateTap creates the dataplane side of a shadow interface: a tap whose
// host interface carries hostIfName and whose VPP side inherits the paired
// fast-path interface's MAC.
func (v *VPP) CreateTap(hostIfName string, mac net.HardwareAddr) (uint32, error) {
	ch, err := v.channel()
	if err != nil {
		return 0, err
	}
	defer ch.Close()

	req := &tapv2.TapCreateV2{
		ID:            ^uint32(0),
		UseRandomMac:  false,
		MacAddress:    ethernet_types.MacAddress(macBytes(mac)),
		HostIfNameSet: true,
		HostIfName:    hostIfName,
		TxRingSz:      1024,
		RxRingSz:      1024,
	}

	reply := &tapv2.TapCreateV2Reply{}
	if err := ch.SendRequest(req).ReceiveReply(reply); err != nil {
		return 0, fmt.Errorf("tap_create_v2: %w", err)
	}
	if reply.Retval != 0 {
		return 0, fmt.Errorf("tap create failed with retval: %d", reply.Retval)
	}

	swIfIndex := uint32(reply.SwIfIndex)

	v.ifMgr.Add(&ifmgr.Interface{
		SwIfIndex:    swIfIndex,
		SupSwIfIndex: swIfIndex,
		Name:         hostIfName,
		DevType:      "tap",
		MAC:          mac,
	})

	v.logger.Debug("Created tap", "host_if_name", hostIfName, "sw_if_index", swIfIndex)
	return swIfIndex, nil
}

func (v *VPP) DeleteTap(swIfIndex uint32) error {
	ch, err := v.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	req := &tapv2.TapDeleteV2{
		SwIfIndex: ifIndex(swIfIndex),
	}

	reply := &tapv2.TapDeleteV2Reply{}
	if err := ch.SendRequest(req).ReceiveReply(reply); err != nil {
		return fmt.Errorf("tap_delete_v2: %w", err)
	}

	v.ifMgr.Remove(swIfIndex)

	v.logger.Debug("Deleted tap", "sw_if_index", swIfIndex)
	return nil
}

// SetL2Xconnect cross-connects rx to tx at layer 2 (one direction).
func (v *VPP) SetL2Xconnect(rxSwIfIndex, txSwIfIndex uint32, enable bool) error {
	ch, err := v.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	req := &l2.SwInterfaceSetL2Xconnect{
		RxSwIfIndex: ifIndex(rxSwIfIndex),
		TxSwIfIndex: ifIndex(txSwIfIndex),
		Enable:      enable,
	}

	reply := &l2.SwInterfaceSetL2XconnectReply{}
	if err := ch.SendRequest(req).ReceiveReply(reply); err != nil {
		return fmt.Errorf("sw_interface_set_l2_xconnect %d->%d: %w", rxSwIfIndex, txSwIfIndex, err)
	}

	v.logger.Debug("Set L2 cross-connect", "rx", rxSwIfIndex, "tx", txSwIfIndex, "enable", enable)
	return nil
}
