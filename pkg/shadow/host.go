package shadow

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// NetlinkHost configures tap host interfaces through rtnetlink. When Netns
// names a network namespace, the tap is moved there first and all further
// host-side operations happen inside it.
type NetlinkHost struct {
	Netns string
}

func (h *NetlinkHost) Configure(hostIfName string, mac net.HardwareAddr, up bool) (int, error) {
	handle := &netlink.Handle{}
	link, err := netlink.LinkByName(hostIfName)
	if err != nil {
		return 0, fmt.Errorf("host link %s not found: %w", hostIfName, err)
	}

	if h.Netns != "" {
		nsHandle, err := netns.GetFromName(h.Netns)
		if err != nil {
			return 0, fmt.Errorf("network namespace %s: %w", h.Netns, err)
		}
		defer nsHandle.Close()

		if err := netlink.LinkSetNsFd(link, int(nsHandle)); err != nil {
			return 0, fmt.Errorf("failed to move %s into namespace %s: %w", hostIfName, h.Netns, err)
		}
		handle, err = netlink.NewHandleAt(nsHandle)
		if err != nil {
			return 0, fmt.Errorf("netlink handle in namespace %s: %w", h.Netns, err)
		}
		defer handle.Close()

		link, err = handle.LinkByName(hostIfName)
		if err != nil {
			return 0, fmt.Errorf("host link %s not found in namespace %s: %w", hostIfName, h.Netns, err)
		}
	}

	if err := handle.LinkSetHardwareAddr(link, mac); err != nil {
		return 0, fmt.Errorf("failed to set %s hardware address: %w", hostIfName, err)
	}
	if up {
		err = handle.LinkSetUp(link)
	} else {
		err = handle.LinkSetDown(link)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to set %s link state: %w", hostIfName, err)
	}
	return link.Attrs().Index, nil
}
