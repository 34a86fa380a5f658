// Package ifmap holds the two coupled lookup structures behind packet
// diversion: fast-path interface -> (shadow interface, enabled protocols),
// and shadow host ifindex -> fast-path interface.
package ifmap

import (
	"sync"

	"github.com/veesix-networks/osvrouter/pkg/proto"
)

// NoShadow marks a fast-path interface with no diversion configured.
const NoShadow = ^uint32(0)

type entry struct {
	shadow uint32
	protos proto.Set
}

type reverseEntry struct {
	hostIfIndex int
	fastpath    uint32
}

// Table is read on every classified packet and written only from the control
// path (diversion setup and interface-creation notifications). Reads out of
// the table's current extent return the no-diversion sentinel.
type Table struct {
	mu      sync.RWMutex
	entries []entry
	reverse []reverseEntry
}

func New() *Table {
	return &Table{}
}

// Lookup returns the shadow sw_if_index and enabled protocol set for a
// fast-path interface, or (NoShadow, 0) when none is configured.
func (t *Table) Lookup(fastpath uint32) (uint32, proto.Set) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(fastpath) >= len(t.entries) {
		return NoShadow, 0
	}
	e := t.entries[fastpath]
	return e.shadow, e.protos
}

// SetShadow commits a diversion for a fast-path interface, overwriting any
// previous one. The table grows as needed.
func (t *Table) SetShadow(fastpath, shadow uint32, protos proto.Set) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.growLocked(fastpath)
	t.entries[fastpath] = entry{shadow: shadow, protos: protos}
}

// Grow extends the table to cover index, filling new slots with the sentinel.
// Called on fast-path interface creation so later lookups stay in range.
func (t *Table) Grow(index uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.growLocked(index)
}

func (t *Table) growLocked(index uint32) {
	for int(index) >= len(t.entries) {
		t.entries = append(t.entries, entry{shadow: NoShadow})
	}
}

// Fastpath resolves a shadow interface's host ifindex to its fast-path
// interface. The reverse list is append-only and scanned linearly; with a
// duplicate registration the first entry added wins, which is unspecified
// behavior callers must not rely on.
func (t *Table) Fastpath(hostIfIndex int) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, r := range t.reverse {
		if r.hostIfIndex == hostIfIndex {
			return r.fastpath, true
		}
	}
	return 0, false
}

// AddReverse appends a host-ifindex mapping. Duplicate detection is the
// caller's responsibility.
func (t *Table) AddReverse(hostIfIndex int, fastpath uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reverse = append(t.reverse, reverseEntry{hostIfIndex: hostIfIndex, fastpath: fastpath})
}

// Diversions returns the configured (fastpath, shadow, protos) triples,
// skipping sentinel entries. Used by the API and the exporter.
func (t *Table) Diversions() []Diversion {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Diversion
	for i, e := range t.entries {
		if e.shadow == NoShadow || e.protos.Empty() {
			continue
		}
		out = append(out, Diversion{
			Fastpath: uint32(i),
			Shadow:   e.shadow,
			Protos:   e.protos,
		})
	}
	return out
}

type Diversion struct {
	Fastpath uint32
	Shadow   uint32
	Protos   proto.Set
}
