package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.fd.io/govpp"

	"github.com/veesix-networks/osvrouter/internal/api"
	"github.com/veesix-networks/osvrouter/internal/dataplane"
	divertd "github.com/veesix-networks/osvrouter/internal/divert"
	"github.com/veesix-networks/osvrouter/internal/exporter"
	mirrord "github.com/veesix-networks/osvrouter/internal/mirror"
	"github.com/veesix-networks/osvrouter/internal/netmon"
	"github.com/veesix-networks/osvrouter/pkg/component"
	"github.com/veesix-networks/osvrouter/pkg/config"
	"github.com/veesix-networks/osvrouter/pkg/divert"
	"github.com/veesix-networks/osvrouter/pkg/events/local"
	"github.com/veesix-networks/osvrouter/pkg/ifmap"
	"github.com/veesix-networks/osvrouter/pkg/logger"
	"github.com/veesix-networks/osvrouter/pkg/opdb"
	"github.com/veesix-networks/osvrouter/pkg/opdb/sqlite"
	"github.com/veesix-networks/osvrouter/pkg/shadow"
	"github.com/veesix-networks/osvrouter/pkg/southbound/vpp"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Configure(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Components)

	mainLog := logger.Component(logger.Main)
	mainLog.Info("Starting osvrouter")

	vppConn, err := govpp.Connect(cfg.Dataplane.VPPAPISocket)
	if err != nil {
		log.Fatalf("Failed to connect to VPP: %v", err)
	}

	fastpath, err := vpp.New(vpp.Config{Connection: vppConn})
	if err != nil {
		log.Fatalf("Failed to create VPP southbound: %v", err)
	}

	// All divertable IPv4 protocols are punted up front; the dispatch table
	// decides which of them have a live entry point.
	err = fastpath.RegisterPuntSocket(cfg.Dataplane.PuntSocketPath, 1, 2, 6, 17, 89)
	if err != nil {
		log.Fatalf("Failed to register punt socket: %v", err)
	}
	if err := fastpath.RegisterExceptionPunt(cfg.Dataplane.PuntSocketPath, "arp"); err != nil {
		mainLog.Warn("Failed to register ARP exception punt", "error", err)
	}

	store, err := sqlite.Open(cfg.Dataplane.OpDBPath)
	if err != nil {
		log.Fatalf("Failed to open operational database: %v", err)
	}

	eventBus := local.NewBus()
	table := ifmap.New()
	for _, iface := range fastpath.IfMgr().List() {
		table.Grow(iface.SwIfIndex)
	}

	deps := component.Dependencies{
		EventBus: eventBus,
		Config:   cfg,
		Fastpath: fastpath,
		Mappings: table,
		Store:    store,
	}

	engine := divert.NewEngine(table, fastpath.IfMgr(), fastpath)
	dispatch := dataplane.NewDispatcher()
	shadows := shadow.NewManager(fastpath, &shadow.NetlinkHost{Netns: cfg.Dataplane.ShadowNetns})

	netmonComp, err := netmon.New(deps)
	if err != nil {
		log.Fatalf("Failed to create netmon component: %v", err)
	}

	mirrorComp, err := mirrord.New(deps)
	if err != nil {
		log.Fatalf("Failed to create mirror component: %v", err)
	}

	dataplaneComp, err := dataplane.New(deps, engine, dispatch)
	if err != nil {
		log.Fatalf("Failed to create dataplane component: %v", err)
	}

	divertComp, err := divertd.New(deps, shadows, dispatch, netmonComp)
	if err != nil {
		log.Fatalf("Failed to create divert component: %v", err)
	}

	providers := opdb.NewProviderRegistry()
	providers.Register(divertComp)

	apiComp, err := api.New(deps, divertComp)
	if err != nil {
		log.Fatalf("Failed to create api component: %v", err)
	}

	exporterComp, err := exporter.New(deps, engine.Collectors()...)
	if err != nil {
		log.Fatalf("Failed to create exporter component: %v", err)
	}

	orch := component.NewOrchestrator()
	orch.Register(netmonComp)
	orch.Register(mirrorComp)
	orch.Register(dataplaneComp)
	orch.Register(divertComp)
	orch.Register(apiComp)
	orch.Register(exporterComp)

	ctx := context.Background()
	if err := orch.Start(ctx); err != nil {
		log.Fatalf("Failed to start components: %v", err)
	}

	// Persisted state comes back first; configured diversions fill in the
	// rest without overriding what was restored.
	if err := providers.RestoreAll(ctx, store); err != nil {
		log.Fatalf("Failed to restore operational state: %v", err)
	}
	if err := divertComp.ApplyStatic(ctx); err != nil {
		log.Fatalf("Failed to apply configured diversions: %v", err)
	}

	mainLog.Info("osvrouter started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	mainLog.Info("Shutting down osvrouter...")

	if err := orch.Stop(ctx); err != nil {
		mainLog.Error("Error stopping components", "error", err)
	}
	if err := store.Close(); err != nil {
		mainLog.Error("Error closing operational database", "error", err)
	}
	if err := fastpath.Close(); err != nil {
		mainLog.Error("Error closing VPP connection", "error", err)
	}

	mainLog.Info("osvrouter stopped")
}
