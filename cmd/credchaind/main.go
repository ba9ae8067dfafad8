package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"credchain/config"
	"credchain/core"
	"credchain/observability"
	"credchain/observability/logging"
	"credchain/rpc"
	"credchain/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the node configuration file")
	memory := flag.Bool("memory", false, "run with an in-memory database instead of LevelDB")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := logging.Setup("credchaind", cfg.LogEnvironment, logging.ParseLevel(cfg.LogLevel))

	var db storage.Database
	if *memory {
		db = storage.NewMemDB()
	} else {
		path := filepath.Join(cfg.DataDir, "chaindata")
		leveldb, err := storage.NewLevelDB(path)
		if err != nil {
			logger.Error("failed to open database", slog.String("path", path), slog.String("err", err.Error()))
			os.Exit(1)
		}
		db = leveldb
	}

	node, err := core.NewNode(db, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize node", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer node.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opsMux := http.NewServeMux()
	opsMux.Handle("/metrics", observability.Handler())
	opsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           opsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", slog.String("addr", cfg.MetricsAddress))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", slog.String("err", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	server := rpc.NewServer(node, logger)
	logger.Info("rpc listening",
		slog.String("addr", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName),
	)
	if err := server.Serve(ctx, cfg.RPCAddress); err != nil {
		logger.Error("rpc server failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
