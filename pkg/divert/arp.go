package divert

import (
	"bytes"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// snoopARP inspects a packet taken by the ARP entry point and, when it is a
// valid reply addressed to one of our own interface addresses, installs the
// sender as a fast-path neighbor. The packet is diverted either way; learning
// failures only mean no entry is installed.
func (e *Engine) snoopARP(p *Packet) {
	pkt := gopacket.NewPacket(p.Frame, layers.LayerTypeEthernet, gopacket.NoCopy)
	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	if ethLayer == nil || arpLayer == nil {
		return
	}
	e.learnFromReply(p.RxSwIfIndex, ethLayer.(*layers.Ethernet), arpLayer.(*layers.ARP))
}

func (e *Engine) learnFromReply(swIfIndex uint32, eth *layers.Ethernet, arp *layers.ARP) {
	if arp.AddrType != layers.LinkTypeEthernet || arp.Protocol != layers.EthernetTypeIPv4 {
		return
	}
	if arp.HwAddressSize != 6 || arp.ProtAddressSize != 4 {
		return
	}
	if arp.Operation != layers.ARPReply {
		return
	}

	sender, ok := netip.AddrFromSlice(arp.SourceProtAddress)
	if !ok {
		return
	}
	target, ok := netip.AddrFromSlice(arp.DstProtAddress)
	if !ok {
		return
	}

	// The reply has to be for one of our own addresses on the receiving
	// interface, with the sender on the same subnet.
	var local netip.Prefix
	found := false
	for _, pfx := range e.addrs.IPv4Prefixes(swIfIndex) {
		if pfx.Contains(target) {
			local = pfx
			found = true
			break
		}
	}
	if !found {
		return
	}
	if !local.Contains(sender) {
		return
	}
	if local.Addr() == sender {
		// Someone else is answering for our address.
		e.log.Warn("arp reply claims local address", "interface", swIfIndex, "sender", sender)
		return
	}
	if local.Addr() != target {
		return
	}
	if !bytes.Equal(eth.SrcMAC, arp.SourceHwAddress) {
		return
	}
	if sender == netip.AddrFrom4([4]byte{}) || sender == target {
		return
	}
	if len(eth.DstMAC) != 6 || eth.DstMAC[0]&1 != 0 {
		return
	}

	mac := net.HardwareAddr(arp.SourceHwAddress)
	if err := e.neighbors.UpsertNeighbor(swIfIndex, sender, mac); err != nil {
		e.log.Error("failed to install learned neighbor",
			"interface", swIfIndex, "ip", sender, "mac", mac.String(), "error", err)
		return
	}
	e.learned.Inc()
	e.log.Debug("learned neighbor from arp reply", "interface", swIfIndex, "ip", sender, "mac", mac.String())
}
