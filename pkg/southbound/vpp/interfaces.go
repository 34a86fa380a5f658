package vpp

import (
	"fmt"
	"net"
	"net/netip"
	"os"

	"go.fd.io/govpp/api"
	interfaces "go.fd.io/govpp/binapi/interface"
	"go.fd.io/govpp/binapi/interface_types"
	"go.fd.io/govpp/binapi/ip"

	"github.com/veesix-networks/osvrouter/pkg/ifmgr"
)

// LoadInterfaces refreshes the interface cache from a full dump.
func (v *VPP) LoadInterfaces() error {
	ch, err := v.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	v.ifMgr.Clear()

	reqCtx := ch.SendMultiRequest(&interfaces.SwInterfaceDump{
		SwIfIndex: ifIndex(^uint32(0)),
	})
	for {
		details := &interfaces.SwInterfaceDetails{}
		stop, err := reqCtx.ReceiveReply(details)
		if err != nil {
			return fmt.Errorf("sw_interface_dump: %w", err)
		}
		if stop {
			break
		}

		v.ifMgr.Add(&ifmgr.Interface{
			SwIfIndex:    uint32(details.SwIfIndex),
			SupSwIfIndex: details.SupSwIfIndex,
			Name:         details.InterfaceName,
			DevType:      details.InterfaceDevType,
			AdminUp:      details.Flags&interface_types.IF_STATUS_API_FLAG_ADMIN_UP != 0,
			LinkUp:       details.Flags&interface_types.IF_STATUS_API_FLAG_LINK_UP != 0,
			MTU:          uint32(details.LinkMtu),
			MAC:          net.HardwareAddr(details.L2Address[:]),
		})
	}

	return nil
}

// LoadIPState fills per-interface IPv4 prefixes from an address dump.
func (v *VPP) LoadIPState() error {
	ch, err := v.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	for _, iface := range v.ifMgr.List() {
		reqCtx := ch.SendMultiRequest(&ip.IPAddressDump{
			SwIfIndex: ifIndex(iface.SwIfIndex),
			IsIPv6:    false,
		})
		for {
			details := &ip.IPAddressDetails{}
			stop, err := reqCtx.ReceiveReply(details)
			if err != nil {
				return fmt.Errorf("ip_address_dump sw_if_index %d: %w", iface.SwIfIndex, err)
			}
			if stop {
				break
			}

			addr := netip.AddrFrom4([4]byte(details.Prefix.Address.Un.GetIP4()))
			prefix := netip.PrefixFrom(addr, int(details.Prefix.Len))
			v.ifMgr.AddIPv4Prefix(iface.SwIfIndex, prefix)
		}
	}

	return nil
}

func (v *VPP) SetInterfaceAdminState(swIfIndex uint32, up bool) error {
	ch, err := v.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	var flags interface_types.IfStatusFlags
	if up {
		flags = interface_types.IF_STATUS_API_FLAG_ADMIN_UP
	}

	req := &interfaces.SwInterfaceSetFlags{
		SwIfIndex: ifIndex(swIfIndex),
		Flags:     flags,
	}

	reply := &interfaces.SwInterfaceSetFlagsReply{}
	if err := ch.SendRequest(req).ReceiveReply(reply); err != nil {
		return fmt.Errorf("sw_interface_set_flags: %w", err)
	}

	v.ifMgr.SetAdminUp(swIfIndex, up)

	v.logger.Debug("Set interface admin state", "sw_if_index", swIfIndex, "up", up)
	return nil
}

// WatchInterfaceEvents subscribes to interface create/delete notifications
// and invokes fn for each. The callback runs on the notification goroutine.
func (v *VPP) WatchInterfaceEvents(fn func(swIfIndex uint32, deleted bool)) error {
	ch, err := v.channel()
	if err != nil {
		return err
	}

	notifChan := make(chan api.Message, 256)
	sub, err := ch.SubscribeNotification(notifChan, &interfaces.SwInterfaceEvent{})
	if err != nil {
		ch.Close()
		return fmt.Errorf("subscribe interface events: %w", err)
	}

	req := &interfaces.WantInterfaceEvents{
		EnableDisable: 1,
		PID:           uint32(os.Getpid()),
	}
	reply := &interfaces.WantInterfaceEventsReply{}
	if err := ch.SendRequest(req).ReceiveReply(reply); err != nil {
		sub.Unsubscribe()
		ch.Close()
		return fmt.Errorf("want_interface_events: %w", err)
	}

	v.watchChan = ch
	v.watchSub = sub

	go func() {
		for msg := range notifChan {
			event, ok := msg.(*interfaces.SwInterfaceEvent)
			if !ok {
				continue
			}
			fn(uint32(event.SwIfIndex), event.Deleted)
		}
	}()

	return nil
}
