package divert

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/veesix-networks/osvrouter/pkg/proto"
)

type arpReplyParams struct {
	ethSrc    net.HardwareAddr
	ethDst    net.HardwareAddr
	operation uint16
	senderHW  net.HardwareAddr
	senderIP  net.IP
	targetHW  net.HardwareAddr
	targetIP  net.IP
}

// arpReplyFrame builds an ethernet ARP frame. Zero-value fields default to a
// well-formed reply from 10.0.0.5 at 11:11:11:11:11:11 answering the local
// address 10.0.0.1.
func arpReplyFrame(t *testing.T, p arpReplyParams) []byte {
	t.Helper()
	senderHW := p.senderHW
	if senderHW == nil {
		senderHW = net.HardwareAddr{0x11, 0x11, 0x11, 0x11, 0x11, 0x11}
	}
	ethSrc := p.ethSrc
	if ethSrc == nil {
		ethSrc = senderHW
	}
	ethDst := p.ethDst
	if ethDst == nil {
		ethDst = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	}
	operation := p.operation
	if operation == 0 {
		operation = layers.ARPReply
	}
	senderIP := p.senderIP
	if senderIP == nil {
		senderIP = net.IPv4(10, 0, 0, 5)
	}
	targetHW := p.targetHW
	if targetHW == nil {
		targetHW = ethDst
	}
	targetIP := p.targetIP
	if targetIP == nil {
		targetIP = net.IPv4(10, 0, 0, 1)
	}

	eth := &layers.Ethernet{
		SrcMAC:       ethSrc,
		DstMAC:       ethDst,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         operation,
		SourceHwAddress:   senderHW,
		SourceProtAddress: senderIP.To4(),
		DstHwAddress:      targetHW,
		DstProtAddress:    targetIP.To4(),
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp); err != nil {
		t.Fatalf("serialize arp frame: %v", err)
	}
	return buf.Bytes()
}

func classifyARP(t *testing.T, frame []byte) (*fakeNeighbors, Disposition) {
	t.Helper()
	engine, table, neighbors := testEngine(t)
	table.SetShadow(1, 7, proto.BitARP)

	pkts := []*Packet{{RxSwIfIndex: 1, Frame: frame, L3Offset: 14}}
	got := engine.ClassifyBatch(ModeARP, pkts)
	return neighbors, got[0]
}

func TestARPReplyLearnsNeighbor(t *testing.T) {
	neighbors, disposition := classifyARP(t, arpReplyFrame(t, arpReplyParams{}))
	if disposition != Redirect {
		t.Fatalf("got %v, want Redirect", disposition)
	}
	if len(neighbors.upserts) != 1 {
		t.Fatalf("got %d neighbor upserts, want 1", len(neighbors.upserts))
	}
	up := neighbors.upserts[0]
	if up.swIfIndex != 1 {
		t.Errorf("swIfIndex = %d, want 1", up.swIfIndex)
	}
	if up.ip.String() != "10.0.0.5" {
		t.Errorf("ip = %s, want 10.0.0.5", up.ip)
	}
	if up.mac.String() != "11:11:11:11:11:11" {
		t.Errorf("mac = %s, want 11:11:11:11:11:11", up.mac)
	}
}

func TestARPReplyRejected(t *testing.T) {
	tests := []struct {
		name   string
		params arpReplyParams
	}{
		{"request not a reply", arpReplyParams{operation: layers.ARPRequest}},
		{"frame source differs from sender hw", arpReplyParams{
			ethSrc: net.HardwareAddr{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA},
		}},
		{"target not a local address", arpReplyParams{targetIP: net.IPv4(10, 1, 0, 1)}},
		{"target is subnet but not the address", arpReplyParams{targetIP: net.IPv4(10, 0, 0, 9)}},
		{"sender outside local subnet", arpReplyParams{senderIP: net.IPv4(192, 168, 1, 5)}},
		{"sender claims local address", arpReplyParams{senderIP: net.IPv4(10, 0, 0, 1)}},
		{"zero sender", arpReplyParams{senderIP: net.IPv4(0, 0, 0, 0)}},
		{"broadcast destination", arpReplyParams{
			ethDst: net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			neighbors, disposition := classifyARP(t, arpReplyFrame(t, tt.params))
			if disposition != Redirect {
				t.Fatalf("got %v, want Redirect", disposition)
			}
			if len(neighbors.upserts) != 0 {
				t.Fatalf("got %d neighbor upserts, want 0", len(neighbors.upserts))
			}
		})
	}
}

func TestARPUnmappedInterfaceNotDiverted(t *testing.T) {
	engine, _, neighbors := testEngine(t)

	pkts := []*Packet{{RxSwIfIndex: 1, Frame: arpReplyFrame(t, arpReplyParams{}), L3Offset: 14}}
	got := engine.ClassifyBatch(ModeARP, pkts)
	if got[0] != Continue {
		t.Fatalf("got %v, want Continue", got[0])
	}
	if len(neighbors.upserts) != 0 {
		t.Fatalf("got %d neighbor upserts, want 0", len(neighbors.upserts))
	}
}
