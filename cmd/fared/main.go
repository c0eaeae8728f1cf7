package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fareledger/config"
	"fareledger/core"
	"fareledger/core/genesis"
	"fareledger/gateway/middleware"
	"fareledger/gateway/routes"
	"fareledger/observability/logging"
	"fareledger/rpc"
	"fareledger/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides config GenesisFile)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("FARE_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	var fileCfg *logging.FileConfig
	if strings.TrimSpace(cfg.LogFile) != "" {
		fileCfg = &logging.FileConfig{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
		}
	}
	logger := logging.Setup("fared", env, fileCfg)

	db, err := openDatabase(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	ledger := core.NewLedger(db, cfg.FeeCollectorAddress(), core.WithLogger(logger))

	genesisPath := strings.TrimSpace(*genesisFlag)
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(cfg.GenesisFile)
	}
	if genesisPath != "" {
		gen, err := genesis.Load(genesisPath)
		if err != nil {
			logger.Error("Failed to load genesis", slog.Any("error", err))
			os.Exit(1)
		}
		if err := ledger.ApplyGenesis(gen); err != nil {
			logger.Error("Failed to apply genesis", slog.Any("error", err))
			os.Exit(1)
		}
	}

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   "fared",
		MetricsPrefix: "fareledger",
		LogRequests:   true,
		Enabled:       true,
	}, logger)
	gatewayHandler := routes.New(routes.Config{Ledger: ledger, Observability: obs})

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gateway listening", slog.String("addr", cfg.GatewayAddress))
		errCh <- http.ListenAndServe(cfg.GatewayAddress, gatewayHandler)
	}()
	go func() {
		logger.Info("JSON-RPC listening", slog.String("addr", cfg.RPCAddress))
		errCh <- rpc.NewServer(ledger).Start(cfg.RPCAddress, time.Duration(cfg.RPCWriteTimeout)*time.Second)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageBackend)) {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(cfg.DataDir + "/fareledger.db")
	default:
		return storage.NewLevelDB(cfg.DataDir)
	}
}
