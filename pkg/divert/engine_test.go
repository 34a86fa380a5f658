package divert

import (
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/veesix-networks/osvrouter/pkg/ifmap"
	"github.com/veesix-networks/osvrouter/pkg/proto"
)

type fakeAddrs struct {
	prefixes map[uint32][]netip.Prefix
}

func (f *fakeAddrs) IPv4Prefixes(swIfIndex uint32) []netip.Prefix {
	return f.prefixes[swIfIndex]
}

type recordedNeighbor struct {
	swIfIndex uint32
	ip        netip.Addr
	mac       net.HardwareAddr
}

type fakeNeighbors struct {
	upserts []recordedNeighbor
}

func (f *fakeNeighbors) UpsertNeighbor(swIfIndex uint32, ip netip.Addr, mac net.HardwareAddr) error {
	f.upserts = append(f.upserts, recordedNeighbor{swIfIndex, ip, mac})
	return nil
}

func testEngine(t *testing.T) (*Engine, *ifmap.Table, *fakeNeighbors) {
	t.Helper()
	table := ifmap.New()
	addrs := &fakeAddrs{prefixes: map[uint32][]netip.Prefix{
		1: {netip.MustParsePrefix("10.0.0.1/24")},
	}}
	neighbors := &fakeNeighbors{}
	return NewEngine(table, addrs, neighbors), table, neighbors
}

func ipv4Frame(t *testing.T, protocol layers.IPProtocol) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: protocol,
		SrcIP:    net.IPv4(10, 0, 0, 5),
		DstIP:    net.IPv4(10, 0, 0, 1),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, gopacket.Payload([]byte{0, 0, 0, 0})); err != nil {
		t.Fatalf("serialize frame: %v", err)
	}
	return buf.Bytes()
}

func TestClassifyUnmappedInterface(t *testing.T) {
	engine, _, _ := testEngine(t)

	frame := ipv4Frame(t, layers.IPProtocolTCP)
	pkts := []*Packet{{RxSwIfIndex: 1, Frame: frame, L3Offset: 14}}
	got := engine.ClassifyBatch(ModeClassified, pkts)
	if got[0] != Continue {
		t.Fatalf("unmapped interface: got %v, want Continue", got[0])
	}
}

func TestClassifyByProtocol(t *testing.T) {
	tests := []struct {
		name     string
		protocol layers.IPProtocol
		protos   proto.Set
		want     Disposition
	}{
		{"tcp diverted", layers.IPProtocolTCP, proto.BitTCP, Redirect},
		{"udp diverted", layers.IPProtocolUDP, proto.BitUDP, Redirect},
		{"ospf diverted", layers.IPProtocolOSPF, proto.BitOSPF2, Redirect},
		{"igmp diverted", layers.IPProtocolIGMP, proto.BitIGMP4, Redirect},
		{"tcp not in set", layers.IPProtocolTCP, proto.BitUDP, Continue},
		{"tcp with only arp diverted", layers.IPProtocolTCP, proto.BitARP, Continue},
		{"unhandled protocol", layers.IPProtocolGRE, proto.BitTCP | proto.BitUDP, Continue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, table, _ := testEngine(t)
			table.SetShadow(1, 7, tt.protos)

			pkts := []*Packet{{RxSwIfIndex: 1, Frame: ipv4Frame(t, tt.protocol), L3Offset: 14}}
			got := engine.ClassifyBatch(ModeClassified, pkts)
			if got[0] != tt.want {
				t.Fatalf("got %v, want %v", got[0], tt.want)
			}
			if tt.want == Redirect && pkts[0].TxSwIfIndex != 7 {
				t.Fatalf("TxSwIfIndex = %d, want 7", pkts[0].TxSwIfIndex)
			}
		})
	}
}

func TestClassifyFixedModes(t *testing.T) {
	tests := []struct {
		name   string
		mode   Mode
		protos proto.Set
		want   Disposition
	}{
		{"icmp mode with icmp4 bit", ModeICMP, proto.BitICMP4, Redirect},
		{"icmp mode without icmp4 bit", ModeICMP, proto.BitTCP, Continue},
		{"icmp mode with only arp diverted", ModeICMP, proto.BitARP, Continue},
		{"arp mode with arp bit", ModeARP, proto.BitARP, Redirect},
		{"arp mode without arp bit", ModeARP, proto.BitICMP4, Continue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, table, _ := testEngine(t)
			table.SetShadow(1, 7, tt.protos)

			frame := ipv4Frame(t, layers.IPProtocolICMPv4)
			if tt.mode == ModeARP {
				frame = arpReplyFrame(t, arpReplyParams{})
			}
			pkts := []*Packet{{RxSwIfIndex: 1, Frame: frame, L3Offset: 14}}
			got := engine.ClassifyBatch(tt.mode, pkts)
			if got[0] != tt.want {
				t.Fatalf("got %v, want %v", got[0], tt.want)
			}
		})
	}
}

func TestClassifyBatchMixed(t *testing.T) {
	engine, table, _ := testEngine(t)
	table.SetShadow(1, 7, proto.BitTCP)

	pkts := []*Packet{
		{RxSwIfIndex: 1, Frame: ipv4Frame(t, layers.IPProtocolTCP), L3Offset: 14},
		{RxSwIfIndex: 1, Frame: ipv4Frame(t, layers.IPProtocolUDP), L3Offset: 14},
		{RxSwIfIndex: 2, Frame: ipv4Frame(t, layers.IPProtocolTCP), L3Offset: 14},
	}
	got := engine.ClassifyBatch(ModeClassified, pkts)
	want := []Disposition{Redirect, Continue, Continue}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("packet %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestClassifyTruncatedPayload(t *testing.T) {
	engine, table, _ := testEngine(t)
	table.SetShadow(1, 7, proto.BitTCP)

	frame := ipv4Frame(t, layers.IPProtocolTCP)
	pkts := []*Packet{{RxSwIfIndex: 1, Frame: frame[:18], L3Offset: 14}}
	got := engine.ClassifyBatch(ModeClassified, pkts)
	if got[0] != Continue {
		t.Fatalf("truncated payload: got %v, want Continue", got[0])
	}
}
