package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aspchain/config"
	"aspchain/core"
	"aspchain/observability/logging"
	"aspchain/protocol"
	"aspchain/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.toml", "path to node configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("aspchaind: load config: %v", err)
	}

	logging.Setup("aspchaind", cfg.Network, cfg.LogEnv)
	slog.Info("starting node", "instance", uuid.New().String(), "network", cfg.Network)

	table := protocol.DefaultTable()
	if cfg.ProtocolChangesFile != "" {
		table, err = protocol.LoadTable(cfg.ProtocolChangesFile)
		if err != nil {
			log.Fatalf("aspchaind: load protocol changes: %v", err)
		}
		slog.Info("protocol change table loaded", "path", cfg.ProtocolChangesFile)
	}
	gate := protocol.NewGate(table, cfg.Testnet())

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("aspchaind: open store: %v", err)
	}
	defer store.Close()

	engine := core.NewEngine(store, gate, cfg.Testnet(), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	supply, err := engine.Ledger().Supply(ctx, config.ProtocolAsset)
	if err != nil {
		log.Fatalf("aspchaind: read supply: %v", err)
	}
	slog.Info("store opened", "path", cfg.DatabasePath, "supply", supply, "asset", config.ProtocolAsset)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
	go func() {
		slog.Info("metrics listening", "address", cfg.MetricsAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics shutdown", "error", err)
	}
}
