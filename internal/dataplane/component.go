// Package dataplane moves packets between the fast path and the
// classification engine: punted frames come in over a unixgram socket, are
// dispatched to the registered entry point, and redirected frames are
// injected back out through their shadow interface.
package dataplane

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/veesix-networks/osvrouter/pkg/component"
	"github.com/veesix-networks/osvrouter/pkg/divert"
	"github.com/veesix-networks/osvrouter/pkg/ifmap"
	"github.com/veesix-networks/osvrouter/pkg/logger"
	"github.com/veesix-networks/osvrouter/pkg/southbound"
)

const (
	puntHeaderLen = 8
	maxFrameLen   = 65535
	batchSize     = 32
)

type Component struct {
	*component.Base

	logger     *slog.Logger
	engine     *divert.Engine
	dispatch   *Dispatcher
	table      *ifmap.Table
	fastpath   southbound.Inventory
	puntPath   string
	injectPath string

	puntConn   *net.UnixConn
	injectConn *net.UnixConn
	readBuf    []byte
}

func New(deps component.Dependencies, engine *divert.Engine, dispatch *Dispatcher) (component.Component, error) {
	return &Component{
		Base:       component.NewBase("dataplane"),
		logger:     logger.Component(logger.Dataplane),
		engine:     engine,
		dispatch:   dispatch,
		table:      deps.Mappings,
		fastpath:   deps.Fastpath,
		puntPath:   deps.Config.Dataplane.PuntSocketPath,
		injectPath: deps.Config.Dataplane.InjectSocketPath,
		readBuf:    make([]byte, puntHeaderLen+maxFrameLen),
	}, nil
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.logger.Info("Starting dataplane component", "punt", c.puntPath, "inject", c.injectPath)

	if err := os.Remove(c.puntPath); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Failed to remove existing punt socket", "error", err)
	}

	addr, err := net.ResolveUnixAddr("unixgram", c.puntPath)
	if err != nil {
		return fmt.Errorf("resolve punt addr: %w", err)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return fmt.Errorf("create punt socket: %w", err)
	}
	if err := conn.SetReadBuffer(1 << 20); err != nil {
		c.logger.Warn("Failed to set punt socket read buffer", "error", err)
	}
	c.puntConn = conn

	injectAddr, err := net.ResolveUnixAddr("unixgram", c.injectPath)
	if err != nil {
		conn.Close()
		return fmt.Errorf("resolve inject addr: %w", err)
	}
	injectConn, err := net.DialUnix("unixgram", nil, injectAddr)
	if err != nil {
		conn.Close()
		return fmt.Errorf("connect inject socket: %w", err)
	}
	c.injectConn = injectConn

	// New fast-path interfaces need sentinel slots in the diversion table
	// before any packet from them can be looked up.
	err = c.fastpath.WatchInterfaceEvents(func(swIfIndex uint32, deleted bool) {
		if !deleted {
			c.table.Grow(swIfIndex)
		}
	})
	if err != nil {
		return fmt.Errorf("watch interface events: %w", err)
	}

	c.Go(c.readLoop)
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping dataplane component")
	if c.puntConn != nil {
		c.puntConn.Close()
	}
	if c.injectConn != nil {
		c.injectConn.Close()
	}
	c.StopContext()
	os.Remove(c.puntPath)
	return nil
}

func (c *Component) readLoop() {
	batch := make([]*divert.Packet, 0, batchSize)
	modes := make([]divert.Mode, 0, batchSize)

	for {
		select {
		case <-c.Ctx.Done():
			return
		default:
		}

		batch = batch[:0]
		modes = modes[:0]

		// Block for the first packet, then drain whatever else is already
		// queued so a burst is classified as one batch per entry point.
		pkt, mode, ok := c.readOne(time.Second)
		if !ok {
			continue
		}
		batch = append(batch, pkt)
		modes = append(modes, mode)
		for len(batch) < batchSize {
			pkt, mode, ok := c.readOne(0)
			if !ok {
				break
			}
			batch = append(batch, pkt)
			modes = append(modes, mode)
		}

		c.process(batch, modes)
	}
}

// readOne reads a single punted frame and resolves its entry point. A zero
// wait means only already-queued datagrams are taken.
func (c *Component) readOne(wait time.Duration) (*divert.Packet, divert.Mode, bool) {
	deadline := time.Now()
	if wait > 0 {
		deadline = deadline.Add(wait)
	}
	c.puntConn.SetReadDeadline(deadline)

	n, err := c.puntConn.Read(c.readBuf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, 0, false
		}
		select {
		case <-c.Ctx.Done():
		default:
			c.logger.Warn("Error reading punt socket", "error", err)
		}
		return nil, 0, false
	}
	if n < puntHeaderLen+etherHeaderLen {
		c.logger.Debug("Punted packet too small", "size", n)
		return nil, 0, false
	}

	swIfIndex := binary.LittleEndian.Uint32(c.readBuf[0:4])
	frame := make([]byte, n-puntHeaderLen)
	copy(frame, c.readBuf[puntHeaderLen:n])

	mode, l3Offset, ok := c.dispatch.Resolve(frame)
	if !ok {
		return nil, 0, false
	}
	return &divert.Packet{RxSwIfIndex: swIfIndex, Frame: frame, L3Offset: l3Offset}, mode, true
}

// process classifies the batch one entry point at a time, preserving packet
// order within each entry point, and injects the redirected frames.
func (c *Component) process(batch []*divert.Packet, modes []divert.Mode) {
	for _, mode := range []divert.Mode{divert.ModeARP, divert.ModeICMP, divert.ModeClassified} {
		sub := make([]*divert.Packet, 0, len(batch))
		for i, p := range batch {
			if modes[i] == mode {
				sub = append(sub, p)
			}
		}
		if len(sub) == 0 {
			continue
		}
		dispositions := c.engine.ClassifyBatch(mode, sub)
		for i, d := range dispositions {
			if d == divert.Redirect {
				c.inject(sub[i])
			}
		}
	}
}

// inject writes a redirected frame back to the fast path, addressed to its
// shadow interface. The ethernet header is already in place.
func (c *Component) inject(p *divert.Packet) {
	msg := make([]byte, puntHeaderLen+len(p.Frame))
	binary.LittleEndian.PutUint32(msg[0:4], p.TxSwIfIndex)
	copy(msg[puntHeaderLen:], p.Frame)

	if _, err := c.injectConn.Write(msg); err != nil {
		c.logger.Warn("Failed to inject frame", "tx_sw_if_index", p.TxSwIfIndex, "error", err)
	}
}
