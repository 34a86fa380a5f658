package divert

import (
	"log/slog"
	"net"
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veesix-networks/osvrouter/pkg/ifmap"
	"github.com/veesix-networks/osvrouter/pkg/logger"
	"github.com/veesix-networks/osvrouter/pkg/proto"
)

// AddressSource exposes the locally configured IPv4 prefixes of a fast-path
// interface. *ifmgr.Manager satisfies it.
type AddressSource interface {
	IPv4Prefixes(swIfIndex uint32) []netip.Prefix
}

// NeighborWriter installs learned IPv4 neighbor entries in the fast path.
type NeighborWriter interface {
	UpsertNeighbor(swIfIndex uint32, ip netip.Addr, mac net.HardwareAddr) error
}

// Engine makes the per-packet redirect-or-continue decision for every
// registered entry point. It is safe for concurrent use; the diversion table
// carries its own locking.
type Engine struct {
	table     *ifmap.Table
	addrs     AddressSource
	neighbors NeighborWriter
	log       *slog.Logger

	redirected *prometheus.CounterVec
	learned    prometheus.Counter
}

func NewEngine(table *ifmap.Table, addrs AddressSource, neighbors NeighborWriter) *Engine {
	return &Engine{
		table:     table,
		addrs:     addrs,
		neighbors: neighbors,
		log:       logger.Component(logger.Engine),
		redirected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "osvrouter_diverted_packets_total",
			Help: "Packets redirected to a shadow interface, by entry point.",
		}, []string{"entry_point"}),
		learned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osvrouter_arp_neighbors_learned_total",
			Help: "Neighbor entries installed from snooped ARP replies.",
		}),
	}
}

// Collectors returns the engine's metrics for registration.
func (e *Engine) Collectors() []prometheus.Collector {
	return []prometheus.Collector{e.redirected, e.learned}
}

// ClassifyBatch decides the disposition of every packet in the batch. For
// redirected packets TxSwIfIndex is set to the shadow interface; the counter
// for the entry point is bumped once per batch by the number redirected.
func (e *Engine) ClassifyBatch(mode Mode, pkts []*Packet) []Disposition {
	out := make([]Disposition, len(pkts))
	redirected := 0
	for i, p := range pkts {
		out[i] = e.classify(mode, p)
		if out[i] == Redirect {
			redirected++
		}
	}
	if redirected > 0 {
		e.redirected.WithLabelValues(mode.String()).Add(float64(redirected))
	}
	return out
}

func (e *Engine) classify(mode Mode, p *Packet) Disposition {
	shadow, protos := e.table.Lookup(p.RxSwIfIndex)
	if shadow == ifmap.NoShadow || protos.Empty() {
		return Continue
	}

	var bit proto.Set
	switch mode {
	case ModeARP:
		bit = proto.BitARP
	case ModeICMP:
		bit = proto.BitICMP4
	case ModeClassified:
		bit = classifyIPProtocol(p.Payload())
	}
	if bit == 0 || !protos.Contains(bit) {
		return Continue
	}

	p.TxSwIfIndex = shadow
	if mode == ModeARP {
		e.snoopARP(p)
	}
	return Redirect
}
