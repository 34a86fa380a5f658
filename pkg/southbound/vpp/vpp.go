// Package vpp implements the southbound contract over the VPP binary API.
package vpp

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"go.fd.io/govpp/api"
	"go.fd.io/govpp/binapi/interface_types"
	"go.fd.io/govpp/core"

	"github.com/veesix-networks/osvrouter/pkg/ifmgr"
	"github.com/veesix-networks/osvrouter/pkg/logger"
	"github.com/veesix-networks/osvrouter/pkg/southbound"
)

var _ southbound.Southbound = (*VPP)(nil)

type VPP struct {
	conn   *core.Connection
	ifMgr  *ifmgr.Manager
	logger *slog.Logger

	// applyCh feeds the single goroutine that owns fast-path table
	// mutations issued from event-handling contexts.
	applyCh chan func()
	applyWg sync.WaitGroup
	closing chan struct{}

	watchChan api.Channel
	watchSub  api.SubscriptionCtx
}

type Config struct {
	Connection *core.Connection
	IfMgr      *ifmgr.Manager
}

func New(cfg Config) (*VPP, error) {
	if cfg.Connection == nil {
		return nil, fmt.Errorf("VPP connection is required")
	}
	ifMgr := cfg.IfMgr
	if ifMgr == nil {
		ifMgr = ifmgr.New()
	}

	v := &VPP{
		conn:    cfg.Connection,
		ifMgr:   ifMgr,
		logger:  logger.Component(logger.Southbound),
		applyCh: make(chan func(), 1024),
		closing: make(chan struct{}),
	}

	if err := v.LoadInterfaces(); err != nil {
		return nil, fmt.Errorf("load interfaces: %w", err)
	}
	if err := v.LoadIPState(); err != nil {
		v.logger.Warn("Failed to load IP state at startup", "error", err)
	}

	v.applyWg.Add(1)
	go v.applyLoop()

	v.logger.Debug("Connected to VPP", "interfaces_loaded", len(v.ifMgr.List()))

	return v, nil
}

func (v *VPP) IfMgr() *ifmgr.Manager {
	return v.ifMgr
}

// Apply marshals fn onto the table-owner goroutine and returns immediately.
func (v *VPP) Apply(fn func()) {
	select {
	case v.applyCh <- fn:
	case <-v.closing:
	}
}

func (v *VPP) applyLoop() {
	defer v.applyWg.Done()
	for {
		select {
		case <-v.closing:
			return
		case fn := <-v.applyCh:
			fn()
		}
	}
}

func (v *VPP) Close() error {
	close(v.closing)
	v.applyWg.Wait()
	if v.watchSub != nil {
		v.watchSub.Unsubscribe()
	}
	if v.watchChan != nil {
		v.watchChan.Close()
	}
	v.conn.Disconnect()
	return nil
}

func (v *VPP) channel() (api.Channel, error) {
	ch, err := v.conn.NewAPIChannel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", southbound.ErrUnavailable, err)
	}
	return ch, nil
}

func macBytes(mac net.HardwareAddr) [6]uint8 {
	var out [6]uint8
	copy(out[:], mac)
	return out
}

func ifIndex(swIfIndex uint32) interface_types.InterfaceIndex {
	return interface_types.InterfaceIndex(swIfIndex)
}
