package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"nftamm/config"
	"nftamm/native/pool"
	"nftamm/observability/logging"
	"nftamm/rpc"
	"nftamm/state"
	"nftamm/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memoryFlag := flag.Bool("memory", false, "DEV ONLY: run against an in-memory database")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("ammd", logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxAgeDays: cfg.LogMaxAgeDay,
	})

	var db storage.Database
	if *memoryFlag {
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
		if err != nil {
			logger.Error("Failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		db = ldb
	}
	defer db.Close()

	manager := state.NewManager(db)
	engine := pool.NewEngine()
	engine.SetState(manager)
	engine.SetMetadataSource(manager)

	server := rpc.NewServer(engine, manager, logger, rpc.Options{FaucetEnabled: cfg.FaucetEnabled})
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("RPC server listening", slog.String("address", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", slog.Any("error", err))
	}
}
