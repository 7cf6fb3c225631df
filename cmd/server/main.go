// Package main provides the API server entry point for the trust ledger service.
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trust-ledger/internal/api"
	"github.com/trust-ledger/internal/boost"
	"github.com/trust-ledger/internal/config"
	"github.com/trust-ledger/internal/crosschain"
	"github.com/trust-ledger/internal/events"
	"github.com/trust-ledger/internal/logging"
	"github.com/trust-ledger/internal/metrics"
	"github.com/trust-ledger/internal/pool"
	"github.com/trust-ledger/internal/storage"
	"github.com/trust-ledger/internal/token"
	"github.com/trust-ledger/internal/trustscore"
	"github.com/trust-ledger/internal/yield"
)

func main() {
	fmt.Println("Trust Ledger API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories and caches
	paymentRepo := storage.NewPaymentRepository(postgres)
	vouchRepo := storage.NewVouchRepository(postgres)
	loanRepo := storage.NewLoanRepository(postgres)
	transferRepo := storage.NewTransferRepository(postgres)
	scoreCache := storage.NewScoreCache(redis, cfg.Cache.TTL)

	// Initialize observability: in-process ring, Prometheus counters,
	// ClickHouse archive. Every ledger event fans out to all three.
	eventLog := events.NewLog(1024)
	ledgerMetrics := metrics.New()
	archive := storage.NewEventArchive(clickhouse, logger, 100)
	sink := events.Multi{eventLog, ledgerMetrics, archive}

	// Initialize services
	logger.Info("Initializing services...")

	owner := common.HexToAddress(cfg.Ledger.Owner)
	settlement := token.NewMemoryToken()

	boosts := boost.NewCreditBoostRegistry(boost.Config{
		Verifier:    boost.NewSaltedCommitmentVerifier(cfg.Ledger.BoostProofSalt),
		Provider:    common.HexToAddress(cfg.Ledger.DataProvider),
		Freshness:   cfg.Ledger.FreshnessWindow,
		Logger:      logger,
		Invalidator: scoreCache,
	})

	trustScore := trustscore.NewService(trustscore.Config{
		Token:           settlement,
		Boosts:          boosts,
		AccountAgeBonus: cfg.Ledger.AccountAgeBonus,
		Logger:          logger,
		Events:          sink,
		PaymentRepo:     paymentRepo,
		VouchRepo:       vouchRepo,
		Invalidator:     scoreCache,
	})

	yieldEngine := yield.NewEngine(yield.Config{
		Owner:  owner,
		Logger: logger,
		Events: sink,
	})

	liquidityPool := pool.NewService(pool.Config{
		Token:         settlement,
		Vault:         yieldEngine,
		LoanRepo:      loanRepo,
		Logger:        logger,
		Events:        sink,
		Custody:       common.HexToAddress(cfg.Ledger.PoolCustody),
		LendingModule: common.HexToAddress(cfg.Ledger.LendingModule),
		MinDeposit:    big.NewInt(cfg.Ledger.MinDeposit),
	})

	bridge := crosschain.NewService(crosschain.Config{
		Token:           settlement,
		Trust:           trustScore,
		TransferRepo:    transferRepo,
		Invalidator:     scoreCache,
		Logger:          logger,
		Events:          sink,
		Owner:           owner,
		Custody:         common.HexToAddress(cfg.Ledger.BridgeCustody),
		MinRelayerStake: big.NewInt(cfg.Ledger.MinRelayerStake),
		QuorumThreshold: cfg.Ledger.QuorumThreshold,
		FreshnessWindow: cfg.Ledger.FreshnessWindow,
	})

	logger.Info("Services initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		FreeTierRPS:     cfg.RateLimit.FreeTier,
		PaidTierRPS:     cfg.RateLimit.PaidTier,
	}

	server := api.NewServer(serverConfig, api.Deps{
		TrustScore: trustScore,
		Pool:       liquidityPool,
		Yield:      yieldEngine,
		CrossChain: bridge,
		Boosts:     boosts,
		ScoreCache: scoreCache,
		EventLog:   eventLog,
		Metrics:    ledgerMetrics,
		Logger:     logger,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Trust ledger API server started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	// Drain buffered events to the archive before closing connections
	if err := archive.Close(ctx); err != nil {
		logger.WithError(err).Error("Failed to flush event archive")
	}

	logger.Info("Server exited")
}
