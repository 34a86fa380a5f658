// Package proto defines the closed set of protocol classes that can be
// diverted from the fast path to a shadow interface.
package proto

import (
	"fmt"
	"strings"
)

type Proto uint8

const (
	ARP Proto = iota
	ICMP4
	IGMP4
	OSPF2
	TCP
	UDP
	nTotal
)

var names = [nTotal]string{
	ARP:   "arp",
	ICMP4: "icmp4",
	IGMP4: "igmp4",
	OSPF2: "ospf2",
	TCP:   "tcp",
	UDP:   "udp",
}

func (p Proto) String() string {
	if p < nTotal {
		return names[p]
	}
	return "unknown"
}

// Set is a bitmask over the six divertable protocol classes.
type Set uint32

const (
	BitARP   Set = 1 << ARP
	BitICMP4 Set = 1 << ICMP4
	BitIGMP4 Set = 1 << IGMP4
	BitOSPF2 Set = 1 << OSPF2
	BitTCP   Set = 1 << TCP
	BitUDP   Set = 1 << UDP
)

func (s Set) Has(p Proto) bool {
	return s&(1<<p) != 0
}

func (s Set) Contains(bits Set) bool {
	return s&bits == bits
}

func (s Set) Empty() bool {
	return s == 0
}

func (s Set) String() string {
	var parts []string
	for p := ARP; p < nTotal; p++ {
		if s.Has(p) {
			parts = append(parts, names[p])
		}
	}
	return strings.Join(parts, ",")
}

// Parse converts a comma-separated protocol list to a Set. Matching is exact
// and case-sensitive; unrecognized tokens are ignored rather than rejected,
// so an all-bogus list parses to the empty set.
func Parse(text string) Set {
	var set Set
	for _, tok := range strings.Split(text, ",") {
		for p := ARP; p < nTotal; p++ {
			if tok == names[p] {
				set |= 1 << p
			}
		}
	}
	return set
}

// Validate enforces the cross-protocol prerequisites: diverting routed
// protocols is useless unless the shadow stack can also resolve neighbors and
// receive errors. Checks run in enumeration order, ospf2 first, and the first
// unmet prerequisite aborts.
func Validate(set Set) error {
	if set.Has(OSPF2) && !set.Contains(BitARP|BitICMP4|BitIGMP4) {
		return fmt.Errorf("ospf2 requires arp, icmp4, and igmp4")
	}
	if set.Has(TCP) && !set.Contains(BitARP|BitICMP4) {
		return fmt.Errorf("tcp requires arp and icmp4")
	}
	if set.Has(UDP) && !set.Contains(BitARP|BitICMP4|BitIGMP4) {
		return fmt.Errorf("udp requires arp, icmp4, and igmp4")
	}
	return nil
}
