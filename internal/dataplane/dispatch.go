package dataplane

import (
	"sync"

	"github.com/veesix-networks/osvrouter/pkg/divert"
)

const (
	etherTypeIPv4 = 0x0800
	etherTypeARP  = 0x0806

	ipProtoICMP = 1

	etherHeaderLen = 14
)

// Dispatcher maps punted traffic to a registered classification entry point.
// Entry points are registered as diversions enable protocol bits and stay
// registered for the life of the process; traffic with no registered entry
// point takes the untapped path.
type Dispatcher struct {
	mu       sync.RWMutex
	arp      bool
	icmp     bool
	ipProtos map[uint8]bool
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{ipProtos: make(map[uint8]bool)}
}

func (d *Dispatcher) RegisterARP() {
	d.mu.Lock()
	d.arp = true
	d.mu.Unlock()
}

func (d *Dispatcher) RegisterICMP() {
	d.mu.Lock()
	d.icmp = true
	d.mu.Unlock()
}

// RegisterIPProto routes an IPv4 protocol number to the classified entry
// point. ICMP has its own entry point and is not registered here.
func (d *Dispatcher) RegisterIPProto(protocol uint8) {
	d.mu.Lock()
	d.ipProtos[protocol] = true
	d.mu.Unlock()
}

// Resolve picks the entry point for a frame. The returned offset is where
// the entry point's payload starts; ok is false when no entry point is
// registered for the frame. VLAN tags are not parsed.
func (d *Dispatcher) Resolve(frame []byte) (mode divert.Mode, l3Offset int, ok bool) {
	if len(frame) < etherHeaderLen {
		return 0, 0, false
	}
	etherType := uint16(frame[12])<<8 | uint16(frame[13])

	d.mu.RLock()
	defer d.mu.RUnlock()

	switch etherType {
	case etherTypeARP:
		if d.arp {
			return divert.ModeARP, etherHeaderLen, true
		}
	case etherTypeIPv4:
		if len(frame) < etherHeaderLen+20 {
			return 0, 0, false
		}
		protocol := frame[etherHeaderLen+9]
		if protocol == ipProtoICMP {
			if d.icmp {
				return divert.ModeICMP, etherHeaderLen, true
			}
			return 0, 0, false
		}
		if d.ipProtos[protocol] {
			return divert.ModeClassified, etherHeaderLen, true
		}
	}
	return 0, 0, false
}
