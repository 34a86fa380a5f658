// Package shadow pairs a fast-path interface with a host-visible tap. The
// tap clones the fast-path interface's MAC and admin state so the OS stack
// sees a faithful twin; frames the OS writes into the tap are cross-connected
// back out of the paired interface.
package shadow

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/veesix-networks/osvrouter/pkg/ifmgr"
	"github.com/veesix-networks/osvrouter/pkg/logger"
	"github.com/veesix-networks/osvrouter/pkg/southbound"
)

// Fastpath is the slice of the southbound surface the shadow manager needs.
type Fastpath interface {
	southbound.ShadowPlane
	SetInterfaceAdminState(swIfIndex uint32, up bool) error
}

// HostConfigurer applies host-side link settings to a freshly created tap.
type HostConfigurer interface {
	Configure(hostIfName string, mac net.HardwareAddr, up bool) (hostIfIndex int, err error)
}

// Shadow describes one established pairing.
type Shadow struct {
	SwIfIndex   uint32
	HostIfIndex int
	HostIfName  string
}

type Manager struct {
	fastpath Fastpath
	host     HostConfigurer
	log      *slog.Logger
}

func NewManager(fastpath Fastpath, host HostConfigurer) *Manager {
	return &Manager{
		fastpath: fastpath,
		host:     host,
		log:      logger.Component(logger.Shadow),
	}
}

// Connect creates the shadow tap for fp and wires it up end to end. Any
// failure after tap creation tears the partial tap down again, so a failed
// Connect leaves no state behind.
func (m *Manager) Connect(fp *ifmgr.Interface, hostIfName string) (*Shadow, error) {
	swIfIndex, err := m.fastpath.CreateTap(hostIfName, fp.MAC)
	if err != nil {
		return nil, fmt.Errorf("failed to create tap %s: %w", hostIfName, err)
	}

	hostIfIndex, err := m.host.Configure(hostIfName, fp.MAC, fp.AdminUp)
	if err != nil {
		m.teardown(swIfIndex, false)
		return nil, fmt.Errorf("failed to configure host side of %s: %w", hostIfName, err)
	}

	if err := m.fastpath.SetL2Xconnect(swIfIndex, fp.SwIfIndex, true); err != nil {
		m.teardown(swIfIndex, false)
		return nil, fmt.Errorf("failed to cross-connect %s to %s: %w", hostIfName, fp.Name, err)
	}

	if err := m.fastpath.SetInterfaceAdminState(swIfIndex, true); err != nil {
		m.teardown(swIfIndex, true)
		return nil, fmt.Errorf("failed to bring up tap %s: %w", hostIfName, err)
	}

	m.log.Info("shadow interface connected",
		"interface", fp.Name, "host_interface", hostIfName, "tap", swIfIndex)
	return &Shadow{SwIfIndex: swIfIndex, HostIfIndex: hostIfIndex, HostIfName: hostIfName}, nil
}

// Disconnect removes the pairing and deletes the tap.
func (m *Manager) Disconnect(s *Shadow) error {
	if err := m.fastpath.SetL2Xconnect(s.SwIfIndex, 0, false); err != nil {
		m.log.Warn("failed to remove cross-connect", "host_interface", s.HostIfName, "error", err)
	}
	if err := m.fastpath.DeleteTap(s.SwIfIndex); err != nil {
		return fmt.Errorf("failed to delete tap %s: %w", s.HostIfName, err)
	}
	m.log.Info("shadow interface disconnected", "host_interface", s.HostIfName)
	return nil
}

func (m *Manager) teardown(swIfIndex uint32, xconnected bool) {
	if xconnected {
		if err := m.fastpath.SetL2Xconnect(swIfIndex, 0, false); err != nil {
			m.log.Warn("teardown: failed to remove cross-connect", "tap", swIfIndex, "error", err)
		}
	}
	if err := m.fastpath.DeleteTap(swIfIndex); err != nil {
		m.log.Warn("teardown: failed to delete tap", "tap", swIfIndex, "error", err)
	}
}
