// Package api provides the HTTP API server for the trust ledger.
package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trust-ledger/internal/events"
	"github.com/trust-ledger/internal/logging"
	"github.com/trust-ledger/internal/metrics"
	"github.com/trust-ledger/internal/models"
	"github.com/trust-ledger/internal/storage"
)

// Service interfaces for dependency injection and testing

// TrustScoreService defines the trust-score operations the API consumes
type TrustScoreService interface {
	RecordPayment(ctx context.Context, from, to common.Address, amount *big.Int, message string) (*models.Payment, error)
	VouchForUser(ctx context.Context, voucher, vouchee common.Address, amount uint64) (*models.Vouch, error)
	RevokeVouch(ctx context.Context, voucher common.Address, vouchID string) error
	GetUserTrustScore(ctx context.Context, user common.Address) (uint64, error)
	GetPaymentHistory(user common.Address, limit int) []*models.Payment
	GetVouchesReceived(user common.Address) []*models.Vouch
}

// PoolService defines the liquidity pool operations the API consumes
type PoolService interface {
	AddLiquidity(ctx context.Context, provider common.Address, amount *big.Int) (*big.Int, error)
	RemoveLiquidity(ctx context.Context, provider common.Address, shares *big.Int) (*big.Int, error)
	FundLoan(ctx context.Context, caller, borrower common.Address, amount *big.Int) (bool, error)
	ProcessRepayment(ctx context.Context, caller, borrower common.Address, principal, interest *big.Int) error
	RecordDefault(ctx context.Context, caller, borrower common.Address, principal *big.Int) error
	GetClaimableYield(user common.Address) *big.Int
	ClaimYield(ctx context.Context, user common.Address) (*big.Int, error)
	GetUtilizationRatio() uint64
	GetPoolStats() *models.PoolStats
	ShareBalance(provider common.Address) *big.Int
}

// YieldService defines the yield engine operations the API consumes
type YieldService interface {
	AddStrategy(ctx context.Context, caller common.Address, name string, protocolRef common.Address, allocationBps, yieldRateBps uint64) (*models.Strategy, error)
	UpdateStrategy(ctx context.Context, caller common.Address, id, allocationBps uint64, active bool) error
	GetStrategies() []*models.Strategy
	GetCurrentAPY() uint64
	HarvestYield(ctx context.Context) (*big.Int, error)
	Rebalance(ctx context.Context, caller common.Address) error
	EmergencyWithdraw(ctx context.Context, caller common.Address) (*big.Int, error)
}

// CrossChainService defines the cross-chain operations the API consumes
type CrossChainService interface {
	ConfigureChain(ctx context.Context, caller common.Address, cfg models.ChainConfig) error
	AuthorizeRelayer(ctx context.Context, caller, relayer common.Address, authorized bool, stake *big.Int) error
	InitiateCrossChainTransfer(ctx context.Context, sender common.Address, destChainID uint64, recipient common.Address, amount *big.Int) (*models.CrossChainTransfer, error)
	CompleteTransfer(ctx context.Context, messageID string) error
	SyncTrustScore(ctx context.Context, user common.Address, sourceChainID, score uint64, timestamp time.Time, signatures [][]byte) error
	GetAggregatedTrustScore(ctx context.Context, user common.Address) (uint64, error)
	GetAggregatedBalance(ctx context.Context, user common.Address) (*big.Int, error)
	GetTransfer(messageID string) (*models.CrossChainTransfer, error)
}

// BoostService defines the credit-boost operations the API consumes
type BoostService interface {
	SubmitReputationProof(ctx context.Context, user common.Address, metric string, value uint64, proof []byte, auxRef common.Hash) (bool, error)
	SubmitDataProviderVerification(ctx context.Context, user common.Address, metric string, value uint64, signature []byte, timestamp time.Time, auxRef common.Hash) (bool, error)
	GetUserCreditBoost(ctx context.Context, user common.Address) (uint64, error)
}

// Server represents the HTTP API server
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	logger     *logging.Logger

	trustScore TrustScoreService
	pool       PoolService
	yield      YieldService
	crossChain CrossChainService
	boosts     BoostService

	scoreCache *storage.ScoreCache
	eventLog   *events.Log
	metrics    *metrics.Metrics

	config *ServerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	FreeTierRPS     int
	PaidTierRPS     int
}

// Deps bundles the server's collaborators
type Deps struct {
	TrustScore TrustScoreService
	Pool       PoolService
	Yield      YieldService
	CrossChain CrossChainService
	Boosts     BoostService
	ScoreCache *storage.ScoreCache
	EventLog   *events.Log
	Metrics    *metrics.Metrics
	Logger     *logging.Logger
}

// NewServer creates a new API server instance
func NewServer(config *ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		trustScore: deps.TrustScore,
		pool:       deps.Pool,
		yield:      deps.Yield,
		crossChain: deps.CrossChain,
		boosts:     deps.Boosts,
		scoreCache: deps.ScoreCache,
		eventLog:   deps.EventLog,
		metrics:    deps.Metrics,
		config:     config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.FreeTierRPS, s.config.PaidTierRPS)

	// Middleware order matters: logging first, recovery inside it
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	if s.metrics != nil {
		s.router.Use(MetricsMiddleware(s.metrics))
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Trust-score endpoints
	api.HandleFunc("/payments", s.handleRecordPayment).Methods("POST")
	api.HandleFunc("/vouches", s.handleVouch).Methods("POST")
	api.HandleFunc("/vouches/{id}", s.handleRevokeVouch).Methods("DELETE")
	api.HandleFunc("/users/{address}/score", s.handleGetTrustScore).Methods("GET")
	api.HandleFunc("/users/{address}/payments", s.handleGetPaymentHistory).Methods("GET")
	api.HandleFunc("/users/{address}/vouches", s.handleGetVouchesReceived).Methods("GET")

	// Credit-boost endpoints
	api.HandleFunc("/boosts/proofs", s.handleSubmitReputationProof).Methods("POST")
	api.HandleFunc("/boosts/verifications", s.handleSubmitDataProviderVerification).Methods("POST")
	api.HandleFunc("/users/{address}/boost", s.handleGetCreditBoost).Methods("GET")

	// Liquidity pool endpoints
	api.HandleFunc("/pool/deposits", s.handleAddLiquidity).Methods("POST")
	api.HandleFunc("/pool/withdrawals", s.handleRemoveLiquidity).Methods("POST")
	api.HandleFunc("/pool/loans", s.handleFundLoan).Methods("POST")
	api.HandleFunc("/pool/repayments", s.handleProcessRepayment).Methods("POST")
	api.HandleFunc("/pool/defaults", s.handleRecordDefault).Methods("POST")
	api.HandleFunc("/pool/yield/claims", s.handleClaimYield).Methods("POST")
	api.HandleFunc("/pool/stats", s.handleGetPoolStats).Methods("GET")
	api.HandleFunc("/pool/providers/{address}", s.handleGetProviderPosition).Methods("GET")

	// Yield strategy endpoints
	api.HandleFunc("/strategies", s.handleAddStrategy).Methods("POST")
	api.HandleFunc("/strategies", s.handleGetStrategies).Methods("GET")
	api.HandleFunc("/strategies/{id}", s.handleUpdateStrategy).Methods("PUT")
	api.HandleFunc("/yield/harvest", s.handleHarvestYield).Methods("POST")
	api.HandleFunc("/yield/rebalance", s.handleRebalance).Methods("POST")
	api.HandleFunc("/yield/emergency-withdraw", s.handleEmergencyWithdraw).Methods("POST")
	api.HandleFunc("/yield/apy", s.handleGetCurrentAPY).Methods("GET")

	// Cross-chain endpoints
	api.HandleFunc("/chains", s.handleConfigureChain).Methods("POST")
	api.HandleFunc("/relayers", s.handleAuthorizeRelayer).Methods("POST")
	api.HandleFunc("/transfers", s.handleInitiateTransfer).Methods("POST")
	api.HandleFunc("/transfers/{id}", s.handleGetTransfer).Methods("GET")
	api.HandleFunc("/transfers/{id}/complete", s.handleCompleteTransfer).Methods("POST")
	api.HandleFunc("/sync/scores", s.handleSyncTrustScore).Methods("POST")
	api.HandleFunc("/users/{address}/aggregated-score", s.handleGetAggregatedScore).Methods("GET")
	api.HandleFunc("/users/{address}/aggregated-balance", s.handleGetAggregatedBalance).Methods("GET")

	// Observability
	api.HandleFunc("/events", s.handleGetEvents).Methods("GET")
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "trust-ledger",
	})
}

// handleGetEvents returns the most recent ledger events, newest first
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if s.eventLog == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"events": []models.LedgerEvent{}})
		return
	}

	limit := parseQueryInt(r, "limit", 100)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": s.eventLog.Recent(limit),
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the router for tests
func (s *Server) Router() *mux.Router {
	return s.router
}
