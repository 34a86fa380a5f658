package divert

import "github.com/veesix-networks/osvrouter/pkg/proto"

// Mode identifies which registered entry point handed the packet in, and with
// it how the packet's protocol bit is resolved: the ARP and ICMP entry points
// carry their bit implicitly, the classified entry point derives it from the
// IPv4 protocol field.
type Mode int

const (
	ModeARP Mode = iota
	ModeICMP
	ModeClassified
)

func (m Mode) String() string {
	switch m {
	case ModeARP:
		return "arp"
	case ModeICMP:
		return "icmp4"
	default:
		return "classified"
	}
}

// Disposition is the outcome of classifying one packet. Continue means the
// untapped path appropriate to the entry point (arp-input, icmp-input, or
// drop); Redirect means the packet leaves through the shadow interface set in
// Packet.TxSwIfIndex.
type Disposition uint8

const (
	Continue Disposition = iota
	Redirect
)

// Packet is one packet handle within a batch. Frame holds the full frame
// starting at the ethernet header; L3Offset marks where upstream
// classification left the current payload (the ethernet header in front of it
// is restored when the packet is redirected). VLAN tags are not handled on
// the redirect path.
type Packet struct {
	RxSwIfIndex uint32
	TxSwIfIndex uint32
	Frame       []byte
	L3Offset    int
}

// Payload returns the protocol payload the entry point was invoked with.
func (p *Packet) Payload() []byte {
	if p.L3Offset < 0 || p.L3Offset > len(p.Frame) {
		return nil
	}
	return p.Frame[p.L3Offset:]
}

// classifyIPProtocol maps the IPv4 protocol field to a divertable protocol
// bit. Anything unrecognized, truncated or malformed yields no bit and the
// packet continues untapped.
func classifyIPProtocol(payload []byte) proto.Set {
	if len(payload) < ipv4ProtocolOffset+1 {
		return 0
	}
	switch payload[ipv4ProtocolOffset] {
	case ipProtoTCP:
		return proto.BitTCP
	case ipProtoUDP:
		return proto.BitUDP
	case ipProtoOSPF:
		return proto.BitOSPF2
	case ipProtoIGMP:
		return proto.BitIGMP4
	default:
		return 0
	}
}

const (
	ipv4ProtocolOffset = 9

	ipProtoIGMP = 2
	ipProtoTCP  = 6
	ipProtoUDP  = 17
	ipProtoOSPF = 89
)
