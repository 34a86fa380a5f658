package vpp

import (
	"fmt"
	"net/netip"

	"go.fd.io/govpp/binapi/fib_types"
	"go.fd.io/govpp/binapi/ip"
	"go.fd.io/govpp/binapi/ip_types"
)

// AddDelRoute installs or removes a unicast route in the main table with the
// given gateway and egress interface. Gateway may be the zero Addr for
// directly attached destinations.
func (v *VPP) AddDelRoute(dst netip.Prefix, gateway netip.Addr, swIfIndex uint32, isDel bool) error {
	ch, err := v.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if !dst.Addr().Is4() {
		return fmt.Errorf("not an IPv4 prefix: %s", dst)
	}

	path := fib_types.FibPath{
		SwIfIndex: swIfIndex,
		TableID:   0,
		Proto:     fib_types.FIB_API_PATH_NH_PROTO_IP4,
	}
	if gateway.Is4() {
		g4 := gateway.As4()
		path.Nh = fib_types.FibPathNh{
			Address: ip_types.AddressUnionIP4(ip_types.IP4Address{g4[0], g4[1], g4[2], g4[3]}),
		}
	}

	req := &ip.IPRouteAddDel{
		IsAdd: !isDel,
		Route: ip.IPRoute{
			TableID: 0,
			Prefix: ip_types.Prefix{
				Address: ip4Address(dst.Addr()),
				Len:     uint8(dst.Bits()),
			},
			NPaths: 1,
			Paths:  []fib_types.FibPath{path},
		},
	}

	reply := &ip.IPRouteAddDelReply{}
	if err := ch.SendRequest(req).ReceiveReply(reply); err != nil {
		return fmt.Errorf("ip_route_add_del: %w", err)
	}

	v.logger.Debug("Applied route", "dst", dst.String(), "gateway", gateway.String(), "sw_if_index", swIfIndex, "is_del", isDel)
	return nil
}
