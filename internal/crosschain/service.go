package crosschain

import (
	"context"
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/trust-ledger/internal/clock"
	"github.com/trust-ledger/internal/errors"
	"github.com/trust-ledger/internal/events"
	"github.com/trust-ledger/internal/logging"
	"github.com/trust-ledger/internal/models"
	"github.com/trust-ledger/internal/token"
	"github.com/trust-ledger/internal/types"
)

// trustScoreMessageType domain-separates score attestations from any other
// signed payloads relayers may carry
const trustScoreMessageType = "TRUST_SCORE_SYNC"

// TrustSource reads the locally computed trust score for aggregation
type TrustSource interface {
	GetUserTrustScore(ctx context.Context, user common.Address) (uint64, error)
}

// TransferRepository persists the cross-chain transfer audit trail
type TransferRepository interface {
	Append(ctx context.Context, transfer *models.CrossChainTransfer) error
	MarkSettled(ctx context.Context, messageID string, at time.Time) error
}

// ScoreInvalidator evicts a user's cached score after a sync changes it
type ScoreInvalidator interface {
	InvalidateScore(ctx context.Context, user common.Address) error
}

// Service is the cross-chain synchronization ledger
type Service struct {
	mu sync.Mutex

	token        token.SettlementToken
	trust        TrustSource
	transferRepo TransferRepository
	invalidator  ScoreInvalidator
	verifier     *QuorumVerifier
	clk          clock.Clock
	logger       *logging.Logger
	sink         events.Sink

	owner common.Address
	// custody holds transferred value until the destination releases it
	custody         common.Address
	minRelayerStake *big.Int
	freshnessWindow time.Duration

	chains        map[uint64]*models.ChainConfig
	relayers      map[common.Address]*models.Relayer
	transfers     map[string]*models.CrossChainTransfer
	crossBalances map[common.Address]map[uint64]*big.Int
	remoteScores  map[common.Address]map[uint64]*models.RemoteTrustScore
}

// Config holds the service's construction parameters
type Config struct {
	Token           token.SettlementToken
	Trust           TrustSource
	TransferRepo    TransferRepository
	Invalidator     ScoreInvalidator
	Clock           clock.Clock
	Logger          *logging.Logger
	Events          events.Sink
	Owner           common.Address
	Custody         common.Address
	MinRelayerStake *big.Int
	QuorumThreshold int
	FreshnessWindow time.Duration
}

// NewService creates a cross-chain synchronization service
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	sink := cfg.Events
	if sink == nil {
		sink = events.Nop{}
	}
	minStake := cfg.MinRelayerStake
	if minStake == nil {
		minStake = big.NewInt(1000)
	}
	threshold := cfg.QuorumThreshold
	if threshold < 2 {
		threshold = 2
	}
	window := cfg.FreshnessWindow
	if window <= 0 {
		window = time.Hour
	}
	return &Service{
		token:           cfg.Token,
		trust:           cfg.Trust,
		transferRepo:    cfg.TransferRepo,
		invalidator:     cfg.Invalidator,
		verifier:        NewQuorumVerifier(threshold),
		clk:             clk,
		logger:          logger,
		sink:            sink,
		owner:           cfg.Owner,
		custody:         cfg.Custody,
		minRelayerStake: minStake,
		freshnessWindow: window,
		chains:          make(map[uint64]*models.ChainConfig),
		relayers:        make(map[common.Address]*models.Relayer),
		transfers:       make(map[string]*models.CrossChainTransfer),
		crossBalances:   make(map[common.Address]map[uint64]*big.Int),
		remoteScores:    make(map[common.Address]map[uint64]*models.RemoteTrustScore),
	}
}

// ConfigureChain registers or updates a destination chain
func (s *Service) ConfigureChain(ctx context.Context, caller common.Address, cfg models.ChainConfig) error {
	if caller != s.owner {
		return errors.NewUnauthorizedCallerError("owner")
	}
	if cfg.FeeBps > types.MaxTransferFeeBps {
		return errors.NewFeeAboveCapError(cfg.FeeBps)
	}
	if cfg.MinTransfer == nil || cfg.MinTransfer.Sign() < 0 || cfg.MaxTransfer == nil || cfg.MaxTransfer.Cmp(cfg.MinTransfer) < 0 {
		return errors.NewInvalidAmountError("transfer bounds")
	}

	s.mu.Lock()
	stored := cfg
	stored.MinTransfer = new(big.Int).Set(cfg.MinTransfer)
	stored.MaxTransfer = new(big.Int).Set(cfg.MaxTransfer)
	s.chains[cfg.ChainID] = &stored
	s.mu.Unlock()

	s.sink.Emit(ctx, events.New(types.EventChainConfigured, s.clk.Now(), map[string]interface{}{
		"chainId": cfg.ChainID,
		"active":  cfg.Active,
		"feeBps":  cfg.FeeBps,
	}))

	return nil
}

// AuthorizeRelayer grants or revokes a relayer's authorization. Granting
// requires the relayer's stake to meet the configured minimum.
func (s *Service) AuthorizeRelayer(ctx context.Context, caller, relayer common.Address, authorized bool, stake *big.Int) error {
	if caller != s.owner {
		return errors.NewUnauthorizedCallerError("owner")
	}
	if relayer == (common.Address{}) {
		return errors.NewZeroAddressError("relayer")
	}
	if authorized {
		if stake == nil || stake.Cmp(s.minRelayerStake) < 0 {
			have := "0"
			if stake != nil {
				have = stake.String()
			}
			return errors.NewBelowMinimumError("relayer stake", s.minRelayerStake.String()+", got "+have)
		}
	}
	if stake == nil {
		stake = big.NewInt(0)
	}

	s.mu.Lock()
	s.relayers[relayer] = &models.Relayer{
		Address:    relayer,
		Authorized: authorized,
		Stake:      new(big.Int).Set(stake),
	}
	s.mu.Unlock()

	s.sink.Emit(ctx, events.New(types.EventRelayerAuthorized, s.clk.Now(), map[string]interface{}{
		"relayer":    relayer.Hex(),
		"authorized": authorized,
	}))

	return nil
}

// InitiateCrossChainTransfer locks amount in bridge custody, deducts the
// destination chain's fee and credits the recipient's cross-chain balance
// with the net. Requires a prior settlement-token approval for custody.
func (s *Service) InitiateCrossChainTransfer(ctx context.Context, sender common.Address, destChainID uint64, recipient common.Address, amount *big.Int) (*models.CrossChainTransfer, error) {
	if sender == (common.Address{}) {
		return nil, errors.NewZeroAddressError("sender")
	}
	if recipient == (common.Address{}) {
		return nil, errors.NewZeroAddressError("recipient")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.NewInvalidAmountError("amount")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chain, ok := s.chains[destChainID]
	if !ok || !chain.Active {
		return nil, errors.NewUnsupportedChainError(destChainID)
	}
	if amount.Cmp(chain.MinTransfer) < 0 || amount.Cmp(chain.MaxTransfer) > 0 {
		return nil, errors.NewTransferOutOfBoundsError(destChainID, amount.String())
	}

	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(chain.FeeBps))
	fee.Div(fee, big.NewInt(types.BpsDenominator))
	net := new(big.Int).Sub(amount, fee)

	transfer := &models.CrossChainTransfer{
		MessageID:   uuid.New().String(),
		Sender:      sender,
		Recipient:   recipient,
		DestChainID: destChainID,
		Amount:      new(big.Int).Set(amount),
		Fee:         fee,
		Net:         net,
		State:       types.TransferInitiated,
		InitiatedAt: s.clk.Now(),
	}
	s.transfers[transfer.MessageID] = transfer
	s.creditCrossBalanceLocked(recipient, destChainID, net)

	// Effects before interactions: the custody transfer runs last; failure
	// restores the prior state.
	if err := s.token.TransferFrom(ctx, s.custody, sender, s.custody, amount); err != nil {
		delete(s.transfers, transfer.MessageID)
		s.creditCrossBalanceLocked(recipient, destChainID, new(big.Int).Neg(net))
		return nil, err
	}

	s.persistTransfer(ctx, transfer)

	s.sink.Emit(ctx, events.New(types.EventTransferInitiated, transfer.InitiatedAt, map[string]interface{}{
		"messageId": transfer.MessageID,
		"sender":    sender.Hex(),
		"recipient": recipient.Hex(),
		"destChain": destChainID,
		"amount":    amount.String(),
		"fee":       fee.String(),
	}))

	return transfer, nil
}

// CompleteTransfer marks an initiated transfer as settled on the destination
func (s *Service) CompleteTransfer(ctx context.Context, messageID string) error {
	s.mu.Lock()
	transfer, ok := s.transfers[messageID]
	if !ok {
		s.mu.Unlock()
		return errors.NewNotFoundError("transfer", messageID)
	}
	if transfer.State == types.TransferSettled {
		s.mu.Unlock()
		return nil
	}
	now := s.clk.Now()
	transfer.State = types.TransferSettled
	transfer.SettledAt = &now
	s.mu.Unlock()

	if s.transferRepo != nil {
		if err := s.transferRepo.MarkSettled(ctx, messageID, now); err != nil {
			s.logger.WithError(err).WithField("messageId", messageID).Error("Failed to persist transfer settlement")
		}
	}

	s.sink.Emit(ctx, events.New(types.EventTransferSettled, now, map[string]interface{}{
		"messageId": messageID,
	}))

	return nil
}

// SyncTrustScore accepts a relayer-attested trust score from another chain.
// The attestation must be inside the freshness window and carry a quorum of
// distinct authorized relayer signatures over the canonical digest.
func (s *Service) SyncTrustScore(ctx context.Context, user common.Address, sourceChainID uint64, score uint64, timestamp time.Time, signatures [][]byte) error {
	if user == (common.Address{}) {
		return errors.NewZeroAddressError("user")
	}

	now := s.clk.Now()
	age := now.Sub(timestamp)
	if age < 0 {
		age = -age
	}
	if age > s.freshnessWindow {
		return errors.NewStaleAttestationError(age.String(), s.freshnessWindow.String())
	}

	digest := TrustScoreDigest(user, sourceChainID, score, timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()

	signers, err := s.verifier.Verify(digest, signatures, s.relayerAuthorizedLocked)
	if err != nil {
		return err
	}

	byChain, ok := s.remoteScores[user]
	if !ok {
		byChain = make(map[uint64]*models.RemoteTrustScore)
		s.remoteScores[user] = byChain
	}
	byChain[sourceChainID] = &models.RemoteTrustScore{
		User:          user,
		SourceChainID: sourceChainID,
		Score:         score,
		Timestamp:     timestamp,
	}

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateScore(ctx, user); err != nil {
			s.logger.WithError(err).WithField("user", user.Hex()).Warn("Failed to invalidate cached score")
		}
	}

	s.sink.Emit(ctx, events.New(types.EventTrustScoreSynced, now, map[string]interface{}{
		"user":        user.Hex(),
		"sourceChain": sourceChainID,
		"score":       score,
		"signers":     len(signers),
	}))

	return nil
}

// GetAggregatedTrustScore returns the maximum of the local score and all
// quorum-verified remote scores
func (s *Service) GetAggregatedTrustScore(ctx context.Context, user common.Address) (uint64, error) {
	local, err := s.trust.GetUserTrustScore(ctx, user)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	best := local
	for _, remote := range s.remoteScores[user] {
		if remote.Score > best {
			best = remote.Score
		}
	}
	return best, nil
}

// GetAggregatedBalance returns the user's settlement balance plus all
// pending cross-chain credits
func (s *Service) GetAggregatedBalance(ctx context.Context, user common.Address) (*big.Int, error) {
	balance, err := s.token.BalanceOf(ctx, user)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total := new(big.Int).Set(balance)
	for _, credit := range s.crossBalances[user] {
		total.Add(total, credit)
	}
	return total, nil
}

// CrossChainBalance returns the user's pending credit on one destination chain
func (s *Service) CrossChainBalance(user common.Address, destChainID uint64) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byChain, ok := s.crossBalances[user]; ok {
		if credit, ok := byChain[destChainID]; ok {
			return new(big.Int).Set(credit)
		}
	}
	return big.NewInt(0)
}

// GetTransfer returns a transfer by message ID
func (s *Service) GetTransfer(messageID string) (*models.CrossChainTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, ok := s.transfers[messageID]
	if !ok {
		return nil, errors.NewNotFoundError("transfer", messageID)
	}
	snapshot := *transfer
	return &snapshot, nil
}

// GetChainConfig returns the configuration of a destination chain
func (s *Service) GetChainConfig(chainID uint64) (*models.ChainConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, ok := s.chains[chainID]
	if !ok {
		return nil, errors.NewUnsupportedChainError(chainID)
	}
	snapshot := *chain
	return &snapshot, nil
}

// GetRelayer returns a relayer's authorization record
func (s *Service) GetRelayer(addr common.Address) (*models.Relayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	relayer, ok := s.relayers[addr]
	if !ok {
		return nil, errors.NewNotFoundError("relayer", addr.Hex())
	}
	snapshot := *relayer
	return &snapshot, nil
}

// TrustScoreDigest computes the canonical digest relayers sign for a trust
// score attestation: keccak(user, messageType, sourceChainID, score, unix
// timestamp), all integers big-endian uint64.
func TrustScoreDigest(user common.Address, sourceChainID, score uint64, timestamp time.Time) common.Hash {
	var chainBuf, scoreBuf, tsBuf [8]byte
	binary.BigEndian.PutUint64(chainBuf[:], sourceChainID)
	binary.BigEndian.PutUint64(scoreBuf[:], score)
	binary.BigEndian.PutUint64(tsBuf[:], uint64(timestamp.Unix()))
	return crypto.Keccak256Hash(
		user.Bytes(),
		[]byte(trustScoreMessageType),
		chainBuf[:],
		scoreBuf[:],
		tsBuf[:],
	)
}

func (s *Service) relayerAuthorizedLocked(addr common.Address) bool {
	relayer, ok := s.relayers[addr]
	return ok && relayer.Authorized
}

func (s *Service) creditCrossBalanceLocked(user common.Address, chainID uint64, amount *big.Int) {
	byChain, ok := s.crossBalances[user]
	if !ok {
		byChain = make(map[uint64]*big.Int)
		s.crossBalances[user] = byChain
	}
	current, ok := byChain[chainID]
	if !ok {
		current = big.NewInt(0)
	}
	byChain[chainID] = new(big.Int).Add(current, amount)
}

func (s *Service) persistTransfer(ctx context.Context, transfer *models.CrossChainTransfer) {
	if s.transferRepo == nil {
		return
	}
	if err := s.transferRepo.Append(ctx, transfer); err != nil {
		s.logger.WithError(err).WithField("messageId", transfer.MessageID).Error("Failed to persist cross-chain transfer")
	}
}
