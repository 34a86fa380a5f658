// Package divert is the control-plane side of packet diversion: it parses
// diversion commands, builds the shadow interface pairing, registers the
// engine entry points, and commits the mappings the packet path reads.
package divert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veesix-networks/osvrouter/internal/dataplane"
	"github.com/veesix-networks/osvrouter/pkg/component"
	"github.com/veesix-networks/osvrouter/pkg/ifmap"
	"github.com/veesix-networks/osvrouter/pkg/logger"
	"github.com/veesix-networks/osvrouter/pkg/opdb"
	"github.com/veesix-networks/osvrouter/pkg/proto"
	"github.com/veesix-networks/osvrouter/pkg/shadow"
	"github.com/veesix-networks/osvrouter/pkg/southbound"
)

// NetlinkWatcher lazily opens the process-wide netlink subscription. It is
// latched: once open it stays open for the life of the process.
type NetlinkWatcher interface {
	EnsureSubscribed() error
}

// Record describes one installed diversion.
type Record struct {
	ID              string    `json:"id"`
	Protocols       string    `json:"protocols"`
	Interface       string    `json:"interface"`
	HostIfName      string    `json:"host_if_name"`
	SwIfIndex       uint32    `json:"sw_if_index"`
	ShadowSwIfIndex uint32    `json:"shadow_sw_if_index"`
	HostIfIndex     int       `json:"host_if_index"`
	CreatedAt       time.Time `json:"created_at"`
}

type Component struct {
	*component.Base

	logger   *slog.Logger
	fastpath southbound.Southbound
	table    *ifmap.Table
	shadows  *shadow.Manager
	dispatch *dataplane.Dispatcher
	watcher  NetlinkWatcher
	store    opdb.Store
	static   []staticDiversion

	mu           sync.Mutex
	diversions   map[string]*Record // keyed by fast-path interface name
	multicastArc bool
}

type staticDiversion struct {
	command string
}

func New(deps component.Dependencies, shadows *shadow.Manager, dispatch *dataplane.Dispatcher, watcher NetlinkWatcher) (*Component, error) {
	c := &Component{
		Base:       component.NewBase("divert"),
		logger:     logger.Component(logger.Divert),
		fastpath:   deps.Fastpath,
		table:      deps.Mappings,
		shadows:    shadows,
		dispatch:   dispatch,
		watcher:    watcher,
		store:      deps.Store,
		diversions: make(map[string]*Record),
	}
	for _, d := range deps.Config.Diversions {
		c.static = append(c.static, staticDiversion{
			command: fmt.Sprintf("%s from %s as %s", d.Protocols, d.Interface, d.Shadow),
		})
	}
	return c, nil
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.logger.Info("Starting divert component")
	return nil
}

// ApplyStatic installs the diversions listed in the startup configuration.
// It runs after persisted diversions are restored, so an interface that came
// back from the store keeps its restored setup.
func (c *Component) ApplyStatic(ctx context.Context) error {
	for _, d := range c.static {
		if _, err := c.Divert(ctx, d.command); err != nil {
			if errors.Is(err, errAlreadyDiverted) {
				continue
			}
			return fmt.Errorf("configured diversion %q: %w", d.command, err)
		}
	}
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping divert component")
	c.StopContext()
	return nil
}

var errAlreadyDiverted = errors.New("interface is already diverted")

// Divert parses and installs one diversion command.
func (c *Component) Divert(ctx context.Context, command string) (*Record, error) {
	req, err := ParseCommand(command)
	if err != nil {
		return nil, err
	}
	return c.Setup(ctx, req)
}

// Setup installs a parsed diversion. The order matters: everything that can
// fail runs before the mappings are committed, so the packet path never sees
// a half-built diversion, and a failed setup tears its tap down again.
func (c *Component) Setup(ctx context.Context, req Request) (*Record, error) {
	if req.Protocols.Empty() {
		return nil, errNoProtocols
	}

	fp := c.fastpath.IfMgr().GetByName(req.Interface)
	if fp == nil {
		return nil, errBadIfName
	}
	if !validHostIfName(req.HostIfName) {
		return nil, errBadHostName
	}

	if err := proto.Validate(req.Protocols); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.diversions[fp.Name]; ok {
		return nil, errAlreadyDiverted
	}
	if shadowIdx, _ := c.table.Lookup(fp.SwIfIndex); shadowIdx != ifmap.NoShadow {
		return nil, errAlreadyDiverted
	}

	sh, err := c.shadows.Connect(fp, req.HostIfName)
	if err != nil {
		return nil, err
	}

	if req.Protocols.Contains(proto.BitARP) || req.Protocols.Contains(proto.BitICMP4) {
		if err := c.watcher.EnsureSubscribed(); err != nil {
			c.rollback(sh)
			return nil, fmt.Errorf("netlink subscription: %w", err)
		}
	}
	if req.Protocols.Contains(proto.BitIGMP4) {
		if err := c.ensureMulticastArc(); err != nil {
			c.rollback(sh)
			return nil, fmt.Errorf("multicast divert arc: %w", err)
		}
	}

	c.registerEntryPoints(req.Protocols)

	// Commit last. Lookup starts redirecting the moment this lands.
	c.table.SetShadow(fp.SwIfIndex, sh.SwIfIndex, req.Protocols)
	c.table.AddReverse(sh.HostIfIndex, fp.SwIfIndex)

	rec := &Record{
		ID:              uuid.New().String(),
		Protocols:       req.Protocols.String(),
		Interface:       fp.Name,
		HostIfName:      sh.HostIfName,
		SwIfIndex:       fp.SwIfIndex,
		ShadowSwIfIndex: sh.SwIfIndex,
		HostIfIndex:     sh.HostIfIndex,
		CreatedAt:       time.Now().UTC(),
	}
	c.diversions[fp.Name] = rec
	c.persist(ctx, rec)

	c.logger.Info("diversion installed",
		"interface", rec.Interface, "host_interface", rec.HostIfName, "protocols", rec.Protocols)
	return rec, nil
}

// Remove tears down the diversion on the named fast-path interface. The
// forward mapping is cleared first so the packet path stops redirecting
// before the tap disappears; the reverse list keeps its stale entry, which
// can never match again once the host interface is gone.
func (c *Component) Remove(ctx context.Context, ifName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.diversions[ifName]
	if !ok {
		return fmt.Errorf("no diversion on %s", ifName)
	}

	c.table.SetShadow(rec.SwIfIndex, ifmap.NoShadow, 0)

	err := c.shadows.Disconnect(&shadow.Shadow{
		SwIfIndex:   rec.ShadowSwIfIndex,
		HostIfIndex: rec.HostIfIndex,
		HostIfName:  rec.HostIfName,
	})
	if err != nil {
		return err
	}

	delete(c.diversions, ifName)
	if err := c.store.Delete(ctx, opdb.NamespaceDiversions, rec.Interface); err != nil {
		c.logger.Warn("failed to delete diversion record", "interface", rec.Interface, "error", err)
	}
	c.logger.Info("diversion removed", "interface", ifName)
	return nil
}

// List returns the installed diversions.
func (c *Component) List() []*Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Record, 0, len(c.diversions))
	for _, rec := range c.diversions {
		out = append(out, rec)
	}
	return out
}

func (c *Component) registerEntryPoints(set proto.Set) {
	if set.Contains(proto.BitARP) {
		c.dispatch.RegisterARP()
	}
	if set.Contains(proto.BitICMP4) {
		c.dispatch.RegisterICMP()
	}
	if set.Contains(proto.BitIGMP4) {
		c.dispatch.RegisterIPProto(2)
	}
	if set.Contains(proto.BitOSPF2) {
		c.dispatch.RegisterIPProto(89)
	}
	if set.Contains(proto.BitTCP) {
		c.dispatch.RegisterIPProto(6)
	}
	if set.Contains(proto.BitUDP) {
		c.dispatch.RegisterIPProto(17)
	}
}

// ensureMulticastArc installs the 224.0.0.0/24 divert arc at most once,
// retrying on a later setup if the install failed. Caller holds c.mu.
func (c *Component) ensureMulticastArc() error {
	if c.multicastArc {
		return nil
	}
	if err := c.fastpath.InstallMulticastDivertArc(); err != nil {
		return err
	}
	c.multicastArc = true
	return nil
}

func (c *Component) rollback(sh *shadow.Shadow) {
	if err := c.shadows.Disconnect(sh); err != nil {
		c.logger.Warn("failed to tear down partial diversion", "host_interface", sh.HostIfName, "error", err)
	}
}

func (c *Component) persist(ctx context.Context, rec *Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		c.logger.Warn("failed to encode diversion record", "interface", rec.Interface, "error", err)
		return
	}
	if err := c.store.Put(ctx, opdb.NamespaceDiversions, rec.Interface, data); err != nil {
		c.logger.Warn("failed to persist diversion record", "interface", rec.Interface, "error", err)
	}
}

// Namespaces implements opdb.Provider.
// Restore reinstalls persisted diversions, satisfying opdb.Provider. Records
// whose interface or tap no longer exists are dropped from the store rather
// than kept stale.
func (c *Component) Restore(ctx context.Context, store opdb.Store) error {
	type stale struct{ key string }
	var drop []stale

	err := store.Load(ctx, opdb.NamespaceDiversions, func(key string, value []byte) error {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			c.logger.Warn("dropping undecodable diversion record", "key", key, "error", err)
			drop = append(drop, stale{key})
			return nil
		}
		req := Request{
			Protocols:  proto.Parse(rec.Protocols),
			Interface:  rec.Interface,
			HostIfName: rec.HostIfName,
		}
		if _, err := c.Setup(ctx, req); err != nil {
			c.logger.Warn("dropping unrestorable diversion",
				"interface", rec.Interface, "error", err)
			drop = append(drop, stale{key})
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, s := range drop {
		if err := store.Delete(ctx, opdb.NamespaceDiversions, s.key); err != nil {
			c.logger.Warn("failed to delete stale diversion record", "key", s.key, "error", err)
		}
	}
	return nil
}
