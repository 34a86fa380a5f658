package vpp

import (
	"fmt"
	"net/netip"

	"go.fd.io/govpp/binapi/fib_types"
	"go.fd.io/govpp/binapi/ip"
	"go.fd.io/govpp/binapi/ip_types"
)

var multicastDivertPrefix = netip.MustParsePrefix("224.0.0.0/24")

// InstallMulticastDivertArc punts link-local multicast (224.0.0.0/24) to the
// local path so IGMP membership reports and OSPF hellos reach the classified
// entry point instead of being dropped by the FIB. Callers latch this to run
// at most once per process.
func (v *VPP) InstallMulticastDivertArc() error {
	ch, err := v.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	req := &ip.IPRouteAddDel{
		IsAdd: true,
		Route: ip.IPRoute{
			TableID: 0,
			Prefix: ip_types.Prefix{
				Address: ip4Address(multicastDivertPrefix.Addr()),
				Len:     uint8(multicastDivertPrefix.Bits()),
			},
			NPaths: 1,
			Paths: []fib_types.FibPath{
				{
					SwIfIndex: ^uint32(0),
					Type:      fib_types.FIB_API_PATH_TYPE_LOCAL,
					Proto:     fib_types.FIB_API_PATH_NH_PROTO_IP4,
				},
			},
		},
	}

	reply := &ip.IPRouteAddDelReply{}
	if err := ch.SendRequest(req).ReceiveReply(reply); err != nil {
		return fmt.Errorf("install multicast divert arc: %w", err)
	}

	v.logger.Info("Installed multicast divert arc", "prefix", multicastDivertPrefix.String())
	return nil
}
