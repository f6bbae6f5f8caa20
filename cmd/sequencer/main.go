// Copyright 2025 Astria Sequencer Contributors
//
// Sequencer node entrypoint: wires the ABCI application into an
// embedded CometBFT node, the SequencerService gRPC surface, and the
// /health and /metrics HTTP endpoints, following the teacher's
// NewRealCometBFTEngine embedding pattern and main.go's health/metrics
// server wiring.

package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	cmtconfig "github.com/cometbft/cometbft/config"
	dbm "github.com/cometbft/cometbft-db"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/astriaorg/astria-go-sequencer/pkg/abci"
	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/archive"
	"github.com/astriaorg/astria-go-sequencer/pkg/asset"
	"github.com/astriaorg/astria-go-sequencer/pkg/config"
	"github.com/astriaorg/astria-go-sequencer/pkg/grpcserver"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/astriaorg/astria-go-sequencer/pkg/upgrades"
)

// HealthStatus tracks component health for the /health endpoint,
// matching the teacher's main.go HealthStatus shape.
type HealthStatus struct {
	Status        string `json:"status"`
	Consensus     string `json:"consensus"`
	Archive       string `json:"archive"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	mu        sync.RWMutex
	startTime time.Time
}

func newHealthStatus() *HealthStatus {
	return &HealthStatus{Status: "starting", Consensus: "unknown", Archive: "disabled", startTime: time.Now()}
}

func (h *HealthStatus) set(consensus, archiveStatus string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Consensus = consensus
	if archiveStatus != "" {
		h.Archive = archiveStatus
	}
	h.Status = "ok"
}

func (h *HealthStatus) snapshot() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := *h
	out.UptimeSeconds = int64(time.Since(h.startTime).Seconds())
	return out
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("sequencer: %v", err)
	}
}

func run() error {
	logger := log.New(log.Writer(), "[sequencer] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	chainSecret, err := cfg.ChainSecret()
	if err != nil {
		return err
	}

	prefixes := address.Prefixes{Base: cfg.AddressPrefix, IBC: cfg.IBCAddressPrefix}

	dataDir := filepath.Join(cfg.CometBFTHome, "sequencer-data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := dbm.NewDB("sequencer", dbm.GoLevelDBBackend, dataDir)
	if err != nil {
		return fmt.Errorf("open sequencer db: %w", err)
	}
	store := storage.New(db)

	registry := prometheus.NewRegistry()
	metrics := abci.NewMetrics(registry)

	var schedule *upgrades.Scheduler
	if cfg.UpgradeSchedulePath != "" {
		sf, err := upgrades.LoadSchedule(cfg.UpgradeSchedulePath)
		if err != nil {
			return fmt.Errorf("load upgrade schedule: %w", err)
		}
		schedule = upgrades.New(sf, upgrades.NewRegistry())
	}

	app := abci.New(store, abci.Config{
		ChainID:          cfg.ChainID,
		Prefixes:         prefixes,
		ChainSecret:      chainSecret,
		DefaultFeeAsset:  asset.Denom(cfg.DefaultFeeAsset),
		MempoolCapacity:  cfg.MempoolCapacity,
		MaxProposalBytes: cfg.MaxProposalBytes,
		MaxProposalGas:   cfg.MaxProposalGas,
	}, schedule, metrics)

	health := newHealthStatus()

	var archiveStore *archive.Store
	if cfg.DatabaseURL != "" {
		archiveStore, err = archive.Open(archive.Config{
			DatabaseURL:     cfg.DatabaseURL,
			MaxOpenConns:    cfg.DatabaseMaxOpenConns,
			MaxIdleConns:    cfg.DatabaseMaxIdleConns,
			ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer archiveStore.Close()
		if err := archiveStore.Migrate(context.Background()); err != nil {
			return fmt.Errorf("migrate archive: %w", err)
		}
		app.SetRecorder(archiveStore)
		health.Archive = "connected"
	}

	cmtNode, err := startCometBFT(cfg, app, logger)
	if err != nil {
		return fmt.Errorf("start cometbft node: %w", err)
	}
	defer cmtNode.Stop() //nolint:errcheck

	var backendArchive grpcserver.BlockArchive
	if archiveStore != nil {
		backendArchive = archiveStore
	}
	backend := grpcserver.NewBackend(store, app.Mempool(), prefixes, schedule, backendArchive)
	grpcSrv := grpcserver.NewServer(backend)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Printf("grpc server stopped: %v", err)
		}
	}()
	defer grpcSrv.GracefulStop()

	health.set("running", "")

	httpServers := startHTTPServers(cfg, registry, health, logger)
	defer func() {
		for _, s := range httpServers {
			_ = s.Close()
		}
	}()

	waitForShutdown(logger)
	return nil
}

func startCometBFT(cfg *config.Config, app *abci.App, logger *log.Logger) (*node.Node, error) {
	cometCfg := cmtconfig.DefaultConfig()
	cometCfg.SetRoot(cfg.CometBFTHome)
	cometCfg.ProxyApp = cfg.ListenAddr

	dbProvider := cmtconfig.DBProvider(func(ctx *cmtconfig.DBContext) (dbm.DB, error) {
		return dbm.NewDB(ctx.ID, dbm.BackendType(cometCfg.DBBackend), filepath.Join(cometCfg.RootDir, "data"))
	})

	pv := privval.LoadFilePV(cometCfg.PrivValidatorKeyFile(), cometCfg.PrivValidatorStateFile())
	nodeKey, err := p2p.LoadNodeKey(cometCfg.NodeKeyFile())
	if err != nil {
		return nil, fmt.Errorf("load node key: %w", err)
	}

	tmLogger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)).With("module", "cometbft")

	n, err := node.NewNode(
		cometCfg,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(app),
		node.DefaultGenesisDocProviderFunc(cometCfg),
		dbProvider,
		node.DefaultMetricsProvider(cometCfg.Instrumentation),
		tmLogger,
	)
	if err != nil {
		return nil, err
	}
	if err := n.Start(); err != nil {
		return nil, fmt.Errorf("start node: %w", err)
	}
	logger.Printf("cometbft node started, chain_id=%s", cfg.ChainID)
	return n, nil
}

func startHTTPServers(cfg *config.Config, registry *prometheus.Registry, health *HealthStatus, logger *log.Logger) []*http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		snap := health.snapshot()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":%q,"consensus":%q,"archive":%q,"uptime_seconds":%d}`,
			snap.Status, snap.Consensus, snap.Archive, snap.UptimeSeconds)
	})
	healthSrv := &http.Server{Addr: cfg.HealthAddr, Handler: healthMux}

	for name, s := range map[string]*http.Server{"metrics": metricsSrv, "health": healthSrv} {
		srv := s
		srvName := name
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("%s server stopped: %v", srvName, err)
			}
		}()
	}
	return []*http.Server{metricsSrv, healthSrv}
}

func waitForShutdown(logger *log.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("received signal %v, shutting down", sig)
}
