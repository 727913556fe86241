// Command coordinator boots the Distributed Query Coordinator (C7) and the
// router-control admin surface (C8) for one deployment's shard topology.
// It holds no graph state of its own; every query it answers is a fan-out
// over the node processes named in its topology file.
//
// Grounded on the teacher's cmd/api/main.go bootstrap shape, generalized
// to run two independent HTTP servers — query and admin — the same way
// the teacher itself splits cmd/api from cmd/ws-connect/cmd/ws-send-message
// into separate processes for separate trust boundaries.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/accessgraph/engine/internal/adminapi"
	"github.com/accessgraph/engine/internal/config"
	"github.com/accessgraph/engine/internal/coordinator"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	topologyPath := os.Getenv("TOPOLOGY_FILE")
	if topologyPath == "" {
		topologyPath = "topology.json"
	}
	userShards, groupShards, err := loadTopology(topologyPath)
	if err != nil {
		logger.Fatal("failed to load shard topology", zap.Error(err))
	}

	table := coordinator.NewRoutingTable(userShards, groupShards)
	live := coordinator.NewLiveCoordinator(table, coordinator.NoopMetrics{})

	queryRouter := coordinator.NewRouter(live, logger)
	adminRouter := adminapi.New(table, logger)

	querySrv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      queryRouter.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	adminSrv := &http.Server{
		Addr:         cfg.AdminAddress,
		Handler:      adminRouter.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting coordinator query server", zap.String("address", cfg.ServerAddress))
		if err := querySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("query server failed to start", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("starting coordinator admin server", zap.String("address", cfg.AdminAddress))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("admin server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down coordinator")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	if err := querySrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("query server shutdown error", zap.Error(err))
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown error", zap.Error(err))
	}
	log.Println("coordinator stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
