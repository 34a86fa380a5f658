package ifmgr

import (
	"net"
	"net/netip"
	"sync"
)

type Manager struct {
	mu          sync.RWMutex
	bySwIfIndex map[uint32]*Interface
	byName      map[string]*Interface
}

func New() *Manager {
	return &Manager{
		bySwIfIndex: make(map[uint32]*Interface),
		byName:      make(map[string]*Interface),
	}
}

func (m *Manager) Add(iface *Interface) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bySwIfIndex[iface.SwIfIndex] = iface
	if iface.Name != "" {
		m.byName[iface.Name] = iface
	}
}

func (m *Manager) Remove(swIfIndex uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if iface, ok := m.bySwIfIndex[swIfIndex]; ok {
		delete(m.bySwIfIndex, swIfIndex)
		if iface.Name != "" {
			delete(m.byName, iface.Name)
		}
	}
}

func (m *Manager) Get(swIfIndex uint32) *Interface {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.bySwIfIndex[swIfIndex]
}

func (m *Manager) GetByName(name string) *Interface {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if iface, ok := m.byName[name]; ok {
		return iface
	}
	return m.byName["host-"+name]
}

func (m *Manager) GetSwIfIndex(name string) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if iface, ok := m.byName[name]; ok {
		return iface.SwIfIndex, true
	}
	if iface, ok := m.byName["host-"+name]; ok {
		return iface.SwIfIndex, true
	}
	return 0, false
}

func (m *Manager) List() []*Interface {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Interface, 0, len(m.bySwIfIndex))
	for _, iface := range m.bySwIfIndex {
		result = append(result, iface)
	}
	return result
}

func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bySwIfIndex = make(map[uint32]*Interface)
	m.byName = make(map[string]*Interface)
}

func (m *Manager) MAC(swIfIndex uint32) (net.HardwareAddr, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iface, ok := m.bySwIfIndex[swIfIndex]
	if !ok || len(iface.MAC) == 0 {
		return nil, false
	}
	return iface.MAC, true
}

func (m *Manager) AdminUp(swIfIndex uint32) (bool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iface, ok := m.bySwIfIndex[swIfIndex]
	if !ok {
		return false, false
	}
	return iface.AdminUp, true
}

func (m *Manager) SetAdminUp(swIfIndex uint32, up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if iface, ok := m.bySwIfIndex[swIfIndex]; ok {
		iface.AdminUp = up
	}
}

// IPv4Prefixes returns a copy of the interface's configured IPv4 prefixes.
func (m *Manager) IPv4Prefixes(swIfIndex uint32) []netip.Prefix {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iface, ok := m.bySwIfIndex[swIfIndex]
	if !ok {
		return nil
	}
	out := make([]netip.Prefix, len(iface.IPv4Prefixes))
	copy(out, iface.IPv4Prefixes)
	return out
}

func (m *Manager) AddIPv4Prefix(swIfIndex uint32, prefix netip.Prefix) {
	m.mu.Lock()
	defer m.mu.Unlock()

	iface, ok := m.bySwIfIndex[swIfIndex]
	if !ok {
		return
	}
	for _, existing := range iface.IPv4Prefixes {
		if existing == prefix {
			return
		}
	}
	iface.IPv4Prefixes = append(iface.IPv4Prefixes, prefix)
}

func (m *Manager) RemoveIPv4Prefix(swIfIndex uint32, prefix netip.Prefix) {
	m.mu.Lock()
	defer m.mu.Unlock()

	iface, ok := m.bySwIfIndex[swIfIndex]
	if !ok {
		return
	}
	for i, existing := range iface.IPv4Prefixes {
		if existing == prefix {
			iface.IPv4Prefixes = append(iface.IPv4Prefixes[:i], iface.IPv4Prefixes[i+1:]...)
			return
		}
	}
}
