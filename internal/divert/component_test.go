package divert

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/veesix-networks/osvrouter/internal/dataplane"
	"github.com/veesix-networks/osvrouter/pkg/component"
	"github.com/veesix-networks/osvrouter/pkg/config"
	"github.com/veesix-networks/osvrouter/pkg/ifmap"
	"github.com/veesix-networks/osvrouter/pkg/ifmgr"
	"github.com/veesix-networks/osvrouter/pkg/opdb"
	"github.com/veesix-networks/osvrouter/pkg/proto"
	"github.com/veesix-networks/osvrouter/pkg/shadow"
)

type fakeSouthbound struct {
	ifMgr *ifmgr.Manager

	nextTap     uint32
	taps        map[uint32]bool
	deleted     []uint32
	multicast   int
	watchCalled bool
}

func newFakeSouthbound() *fakeSouthbound {
	return &fakeSouthbound{ifMgr: ifmgr.New(), nextTap: 100, taps: map[uint32]bool{}}
}

func (f *fakeSouthbound) Apply(fn func()) { fn() }
func (f *fakeSouthbound) AddDelInterfaceAddress(uint32, netip.Prefix, bool) error { return nil }
func (f *fakeSouthbound) AddDelRoute(netip.Prefix, netip.Addr, uint32, bool) error { return nil }
func (f *fakeSouthbound) SetInterfaceAdminState(uint32, bool) error { return nil }
func (f *fakeSouthbound) UpsertNeighbor(uint32, netip.Addr, net.HardwareAddr) error { return nil }

func (f *fakeSouthbound) CreateTap(hostIfName string, mac net.HardwareAddr) (uint32, error) {
	idx := f.nextTap
	f.nextTap++
	f.taps[idx] = true
	return idx, nil
}

func (f *fakeSouthbound) DeleteTap(swIfIndex uint32) error {
	delete(f.taps, swIfIndex)
	f.deleted = append(f.deleted, swIfIndex)
	return nil
}

func (f *fakeSouthbound) SetL2Xconnect(rx, tx uint32, enable bool) error { return nil }

func (f *fakeSouthbound) InstallMulticastDivertArc() error {
	f.multicast++
	return nil
}

func (f *fakeSouthbound) IfMgr() *ifmgr.Manager { return f.ifMgr }

func (f *fakeSouthbound) WatchInterfaceEvents(fn func(uint32, bool)) error {
	f.watchCalled = true
	return nil
}

func (f *fakeSouthbound) Close() error { return nil }

type fakeHost struct{ next int }

func (f *fakeHost) Configure(string, net.HardwareAddr, bool) (int, error) {
	f.next++
	return 50 + f.next, nil
}

type fakeWatcher struct {
	calls int
	err   error
}

func (f *fakeWatcher) EnsureSubscribed() error {
	f.calls++
	return f.err
}

type fakeStore struct {
	records map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{records: map[string][]byte{}} }

func (f *fakeStore) Put(_ context.Context, _ string, key string, value []byte) error {
	f.records[key] = value
	return nil
}

func (f *fakeStore) Delete(_ context.Context, _ string, key string) error {
	delete(f.records, key)
	return nil
}

func (f *fakeStore) Load(_ context.Context, _ string, fn opdb.LoadFunc) error {
	for k, v := range f.records {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) Clear(_ context.Context, _ string) error {
	f.records = map[string][]byte{}
	return nil
}

func (f *fakeStore) Close() error { return nil }

type harness struct {
	c        *Component
	sb       *fakeSouthbound
	table    *ifmap.Table
	dispatch *dataplane.Dispatcher
	watcher  *fakeWatcher
	store    *fakeStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	sb := newFakeSouthbound()
	sb.ifMgr.Add(&ifmgr.Interface{
		SwIfIndex: 1,
		Name:      "GigabitEthernet0/8/0",
		AdminUp:   true,
		MAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
	})

	table := ifmap.New()
	dispatch := dataplane.NewDispatcher()
	watcher := &fakeWatcher{}
	store := newFakeStore()

	deps := component.Dependencies{
		Config:   &config.Config{},
		Fastpath: sb,
		Mappings: table,
		Store:    store,
	}
	c, err := New(deps, shadow.NewManager(sb, &fakeHost{}), dispatch, watcher)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{c: c, sb: sb, table: table, dispatch: dispatch, watcher: watcher, store: store}
}

func TestDivert(t *testing.T) {
	h := newHarness(t)

	rec, err := h.c.Divert(context.Background(), "arp,icmp4,tcp from GigabitEthernet0/8/0 as vpp0")
	if err != nil {
		t.Fatalf("Divert: %v", err)
	}
	if rec.SwIfIndex != 1 || rec.ShadowSwIfIndex != 100 || rec.HostIfName != "vpp0" {
		t.Fatalf("record = %+v", rec)
	}

	shadowIdx, protos := h.table.Lookup(1)
	if shadowIdx != 100 {
		t.Errorf("shadow = %d, want 100", shadowIdx)
	}
	if want := proto.BitARP | proto.BitICMP4 | proto.BitTCP; protos != want {
		t.Errorf("protos = %v, want %v", protos, want)
	}
	if fp, ok := h.table.Fastpath(rec.HostIfIndex); !ok || fp != 1 {
		t.Errorf("reverse mapping = (%d, %v)", fp, ok)
	}

	if h.watcher.calls != 1 {
		t.Errorf("netlink subscriptions = %d, want 1", h.watcher.calls)
	}
	if h.sb.multicast != 0 {
		t.Errorf("multicast arc installed %d times, want 0", h.sb.multicast)
	}
	if _, ok := h.store.records["GigabitEthernet0/8/0"]; !ok {
		t.Error("diversion not persisted")
	}
	if len(h.c.List()) != 1 {
		t.Errorf("List() returned %d records", len(h.c.List()))
	}

	// Entry points for enabled bits are registered, others are not.
	if _, _, ok := h.dispatch.Resolve(tcpFrame()); !ok {
		t.Error("tcp entry point not registered")
	}
	if _, _, ok := h.dispatch.Resolve(udpFrame()); ok {
		t.Error("udp entry point registered without udp bit")
	}
}

func tcpFrame() []byte { return ipFrame(6) }
func udpFrame() []byte { return ipFrame(17) }

func ipFrame(protocol uint8) []byte {
	frame := make([]byte, 34)
	frame[12] = 0x08
	frame[23] = protocol
	return frame
}

func TestDivertErrors(t *testing.T) {
	tests := []struct {
		name    string
		command string
		wantErr string
	}{
		{"unknown interface", "arp from eth99 as vpp0", "interface name is missing or invalid"},
		{"unknown interface reported before prerequisites", "ospf2 from eth99 as vpp0", "interface name is missing or invalid"},
		{"missing prerequisites", "ospf2 from GigabitEthernet0/8/0 as vpp0", "ospf2 requires arp, icmp4, and igmp4"},
		{"tcp prerequisites", "tcp from GigabitEthernet0/8/0 as vpp0", "tcp requires arp and icmp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.c.Divert(context.Background(), tt.command)
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
			if len(h.sb.taps) != 0 {
				t.Fatalf("taps left behind: %v", h.sb.taps)
			}
		})
	}
}

func TestDivertAlreadyDiverted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.c.Divert(ctx, "arp from GigabitEthernet0/8/0 as vpp0"); err != nil {
		t.Fatalf("first Divert: %v", err)
	}
	_, err := h.c.Divert(ctx, "arp from GigabitEthernet0/8/0 as vpp1")
	if err == nil || err.Error() != "interface is already diverted" {
		t.Fatalf("err = %v", err)
	}
}

func TestDivertRollbackOnWatcherFailure(t *testing.T) {
	h := newHarness(t)
	h.watcher.err = errors.New("boom")

	_, err := h.c.Divert(context.Background(), "arp from GigabitEthernet0/8/0 as vpp0")
	if err == nil {
		t.Fatal("Divert succeeded, want error")
	}
	if len(h.sb.deleted) != 1 {
		t.Fatalf("deleted = %v, want the partial tap removed", h.sb.deleted)
	}
	if shadowIdx, _ := h.table.Lookup(1); shadowIdx != ifmap.NoShadow {
		t.Fatalf("mapping committed despite failure: %d", shadowIdx)
	}
}

func TestMulticastArcInstalledOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.sb.ifMgr.Add(&ifmgr.Interface{
		SwIfIndex: 2,
		Name:      "GigabitEthernet0/9/0",
		AdminUp:   true,
		MAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
	})

	if _, err := h.c.Divert(ctx, "arp,icmp4,igmp4 from GigabitEthernet0/8/0 as vpp0"); err != nil {
		t.Fatalf("Divert: %v", err)
	}
	if _, err := h.c.Divert(ctx, "arp,icmp4,igmp4 from GigabitEthernet0/9/0 as vpp1"); err != nil {
		t.Fatalf("Divert: %v", err)
	}
	if h.sb.multicast != 1 {
		t.Fatalf("multicast arc installed %d times, want 1", h.sb.multicast)
	}
}

func TestRemove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.c.Divert(ctx, "arp from GigabitEthernet0/8/0 as vpp0"); err != nil {
		t.Fatalf("Divert: %v", err)
	}
	if err := h.c.Remove(ctx, "GigabitEthernet0/8/0"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if shadowIdx, _ := h.table.Lookup(1); shadowIdx != ifmap.NoShadow {
		t.Fatalf("mapping still present: %d", shadowIdx)
	}
	if len(h.sb.deleted) != 1 {
		t.Fatalf("deleted = %v", h.sb.deleted)
	}
	if len(h.store.records) != 0 {
		t.Fatalf("store still has %v", h.store.records)
	}
	if err := h.c.Remove(ctx, "GigabitEthernet0/8/0"); err == nil {
		t.Fatal("second Remove succeeded")
	}
}

func TestRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rec, err := h.c.Divert(ctx, "arp,icmp4 from GigabitEthernet0/8/0 as vpp0")
	if err != nil {
		t.Fatalf("Divert: %v", err)
	}

	// Fresh component over the same store, as after a daemon restart. The
	// registry drives the replay, the way the daemon does at boot.
	fresh := newHarness(t)
	fresh.store.records = h.store.records
	fresh.store.records["gone"] = []byte(`{"interface":"gone","host_if_name":"vpp9","protocols":"arp"}`)

	providers := opdb.NewProviderRegistry()
	providers.Register(fresh.c)
	if err := providers.RestoreAll(ctx, fresh.store); err != nil {
		t.Fatalf("RestoreAll: %v", err)
	}

	shadowIdx, protos := fresh.table.Lookup(1)
	if shadowIdx == ifmap.NoShadow {
		t.Fatal("diversion not restored")
	}
	if want := proto.BitARP | proto.BitICMP4; protos != want {
		t.Errorf("protos = %v, want %v", protos, want)
	}
	if _, ok := fresh.store.records["gone"]; ok {
		t.Error("unrestorable record not dropped")
	}
	if _, ok := fresh.store.records[rec.Interface]; !ok {
		t.Error("restored record dropped")
	}
}

func TestApplyStatic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.c.static = []staticDiversion{
		{command: "arp from GigabitEthernet0/8/0 as vpp0"},
		{command: "arp from GigabitEthernet0/8/0 as vpp1"}, // already diverted, skipped
	}
	if err := h.c.ApplyStatic(ctx); err != nil {
		t.Fatalf("ApplyStatic: %v", err)
	}

	if shadowIdx, _ := h.table.Lookup(1); shadowIdx == ifmap.NoShadow {
		t.Fatal("configured diversion not installed")
	}
	if len(h.sb.taps) != 1 {
		t.Fatalf("taps = %v", h.sb.taps)
	}
}
