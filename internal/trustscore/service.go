// Package trustscore implements the trust-score ledger: payment history,
// peer vouches and externally verified credit boosts roll up into a single
// per-user reputation number.
package trustscore

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/trust-ledger/internal/boost"
	"github.com/trust-ledger/internal/clock"
	"github.com/trust-ledger/internal/errors"
	"github.com/trust-ledger/internal/events"
	"github.com/trust-ledger/internal/logging"
	"github.com/trust-ledger/internal/models"
	"github.com/trust-ledger/internal/token"
	"github.com/trust-ledger/internal/types"
)

// Score formula constants. The point-based arithmetic is canonical: payments
// and received vouches accrue linearly, account age adds a one-time flat bonus.
const (
	pointsPerPayment = 10
	accountAgeBonus  = 50
)

// Repository interfaces for dependency injection

// PaymentRepository persists the payment audit trail
type PaymentRepository interface {
	Append(ctx context.Context, payment *models.Payment) error
}

// VouchRepository persists the vouch audit trail
type VouchRepository interface {
	Append(ctx context.Context, vouch *models.Vouch) error
	SetActive(ctx context.Context, id string, active bool) error
}

// ScoreInvalidator drops cached scores after a score-affecting mutation
type ScoreInvalidator interface {
	InvalidateScore(ctx context.Context, user common.Address) error
}

// Service is the source of truth for per-user trust scores.
// It is the sole mutator of User, Payment and Vouch entities.
type Service struct {
	mu sync.RWMutex

	token       token.SettlementToken
	boosts      boost.Registry
	clk         clock.Clock
	ageBonusAge time.Duration
	logger      *logging.Logger
	sink        events.Sink

	paymentRepo PaymentRepository
	vouchRepo   VouchRepository
	invalidator ScoreInvalidator

	users    map[common.Address]*models.User
	payments []*models.Payment
	vouches  map[string]*models.Vouch
	// active outgoing/incoming vouch indexes, maintained on every vouch mutation
	vouchesByVoucher map[common.Address][]*models.Vouch
	vouchesByVouchee map[common.Address][]*models.Vouch
}

// Config holds the service's construction parameters
type Config struct {
	Token           token.SettlementToken
	Boosts          boost.Registry
	Clock           clock.Clock
	AccountAgeBonus time.Duration
	Logger          *logging.Logger
	Events          events.Sink
	PaymentRepo     PaymentRepository
	VouchRepo       VouchRepository
	Invalidator     ScoreInvalidator
}

// NewService creates a trust-score ledger
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
	ageBonusAge := cfg.AccountAgeBonus
	if ageBonusAge == 0 {
		ageBonusAge = 30 * 24 * time.Hour
	}
	return &Service{
		token:            cfg.Token,
		boosts:           cfg.Boosts,
		clk:              clk,
		ageBonusAge:      ageBonusAge,
		logger:           logger,
		sink:             sink,
		paymentRepo:      cfg.PaymentRepo,
		vouchRepo:        cfg.VouchRepo,
		invalidator:      cfg.Invalidator,
		users:            make(map[common.Address]*models.User),
		vouches:          make(map[string]*models.Vouch),
		vouchesByVoucher: make(map[common.Address][]*models.Vouch),
		vouchesByVouchee: make(map[common.Address][]*models.Vouch),
	}
}

// RecordPayment settles a payment and updates the sender's score.
// Zero amounts and self-payments are permitted; the ledger does not treat
// them specially.
func (s *Service) RecordPayment(ctx context.Context, from, to common.Address, amount *big.Int, message string) (*models.Payment, error) {
	if from == (common.Address{}) {
		return nil, errors.NewZeroAddressError("from")
	}
	if to == (common.Address{}) {
		return nil, errors.NewZeroAddressError("to")
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, errors.NewInvalidAmountError("amount")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.token.BalanceOf(ctx, from)
	if err != nil {
		return nil, errors.NewInternalError("settlement balance lookup failed", err)
	}
	if balance.Cmp(amount) < 0 {
		return nil, errors.NewInsufficientBalanceError(amount.String(), balance.String())
	}

	now := s.clk.Now()
	payment := &models.Payment{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		Amount:    new(big.Int).Set(amount),
		Message:   message,
		Completed: true,
		CreatedAt: now,
	}

	sender := s.userLocked(from)
	sender.PaymentCount++
	s.payments = append(s.payments, payment)
	s.recomputeScoreLocked(sender, now)
	s.userLocked(to) // ensure the recipient exists with a first-activity timestamp

	// Effects before interactions: the transfer runs after internal state is
	// final; a transfer failure restores the prior state.
	if err := s.token.Transfer(ctx, from, to, amount); err != nil {
		sender.PaymentCount--
		s.payments = s.payments[:len(s.payments)-1]
		s.recomputeScoreLocked(sender, now)
		return nil, err
	}

	s.persistPayment(ctx, payment)
	s.invalidateScore(ctx, from)
	s.sink.Emit(ctx, events.New(types.EventPaymentSent, now, map[string]interface{}{
		"id":     payment.ID,
		"from":   from.Hex(),
		"to":     to.Hex(),
		"amount": amount.String(),
	}))

	return payment, nil
}

// VouchForUser stakes part of the voucher's trust score on the vouchee.
// The new vouch plus all the voucher's outstanding active vouches must fit
// within their current score, bounding total risk exposure per user.
func (s *Service) VouchForUser(ctx context.Context, voucher, vouchee common.Address, amount uint64) (*models.Vouch, error) {
	if voucher == (common.Address{}) {
		return nil, errors.NewZeroAddressError("voucher")
	}
	if vouchee == (common.Address{}) {
		return nil, errors.NewZeroAddressError("vouchee")
	}
	if voucher == vouchee {
		return nil, errors.NewInvalidAmountError("vouchee")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	v := s.userLocked(voucher)
	score := s.localScoreLocked(v, now)
	if s.boosts != nil {
		boostPoints, err := s.boosts.GetUserCreditBoost(ctx, voucher)
		if err != nil {
			return nil, errors.NewInternalError("credit boost lookup failed", err)
		}
		score += boostPoints
	}
	if amount > score {
		return nil, errors.NewVouchCapacityError(amount, score)
	}

	outstanding := v.VouchAmountExtended
	if outstanding+amount > score {
		return nil, errors.NewVouchCapacityError(amount, score-outstanding)
	}

	vouch := &models.Vouch{
		ID:        uuid.New().String(),
		Voucher:   voucher,
		Vouchee:   vouchee,
		Amount:    amount,
		Active:    true,
		CreatedAt: now,
	}

	s.vouches[vouch.ID] = vouch
	s.vouchesByVoucher[voucher] = append(s.vouchesByVoucher[voucher], vouch)
	s.vouchesByVouchee[vouchee] = append(s.vouchesByVouchee[vouchee], vouch)
	v.VouchAmountExtended += amount

	receiver := s.userLocked(vouchee)
	receiver.VouchAmountReceived += amount
	s.recomputeScoreLocked(receiver, now)

	s.persistVouch(ctx, vouch)
	s.invalidateScore(ctx, vouchee)
	s.sink.Emit(ctx, events.New(types.EventVouchCreated, now, map[string]interface{}{
		"id":      vouch.ID,
		"voucher": voucher.Hex(),
		"vouchee": vouchee.Hex(),
		"amount":  amount,
	}))

	return vouch, nil
}

// RevokeVouch deactivates a vouch. The record survives for the audit trail.
func (s *Service) RevokeVouch(ctx context.Context, voucher common.Address, vouchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vouch, ok := s.vouches[vouchID]
	if !ok {
		return errors.NewNotFoundError("vouch", vouchID)
	}
	if vouch.Voucher != voucher {
		return errors.NewUnauthorizedCallerError("vouch_owner")
	}
	if !vouch.Active {
		return errors.NewNotFoundError("active vouch", vouchID)
	}

	now := s.clk.Now()
	vouch.Active = false
	s.userLocked(voucher).VouchAmountExtended -= vouch.Amount

	receiver := s.userLocked(vouch.Vouchee)
	receiver.VouchAmountReceived -= vouch.Amount
	s.recomputeScoreLocked(receiver, now)

	if s.vouchRepo != nil {
		if err := s.vouchRepo.SetActive(ctx, vouchID, false); err != nil {
			s.logger.WithError(err).Warn("Failed to persist vouch deactivation")
		}
	}
	s.invalidateScore(ctx, vouch.Vouchee)
	s.sink.Emit(ctx, events.New(types.EventVouchRevoked, now, map[string]interface{}{
		"id":      vouchID,
		"voucher": voucher.Hex(),
		"vouchee": vouch.Vouchee.Hex(),
	}))

	return nil
}

// GetUserTrustScore returns the user's aggregate score: the local point-based
// score plus the external credit boost.
func (s *Service) GetUserTrustScore(ctx context.Context, user common.Address) (uint64, error) {
	local := s.LocalTrustScore(user)

	if s.boosts == nil {
		return local, nil
	}
	boostPoints, err := s.boosts.GetUserCreditBoost(ctx, user)
	if err != nil {
		return 0, errors.NewInternalError("credit boost lookup failed", err)
	}
	return local + boostPoints, nil
}

// LocalTrustScore returns the boost-free score derived from ledger activity
func (s *Service) LocalTrustScore(user common.Address) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[user]
	if !ok {
		return 0
	}
	return s.localScoreLocked(u, s.clk.Now())
}

// GetUser returns a snapshot of the user's ledger state
func (s *Service) GetUser(user common.Address) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[user]
	if !ok {
		return nil, errors.NewNotFoundError("user", user.Hex())
	}
	snapshot := *u
	return &snapshot, nil
}

// GetPaymentHistory returns the user's payments, newest first
func (s *Service) GetPaymentHistory(user common.Address, limit int) []*models.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Payment
	for i := len(s.payments) - 1; i >= 0; i-- {
		p := s.payments[i]
		if p.From == user || p.To == user {
			out = append(out, p)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// GetVouchesReceived returns all vouches extended to the user
func (s *Service) GetVouchesReceived(user common.Address) []*models.Vouch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vouches := s.vouchesByVouchee[user]
	out := make([]*models.Vouch, len(vouches))
	copy(out, vouches)
	return out
}

// userLocked returns the user record, creating it on first activity
func (s *Service) userLocked(addr common.Address) *models.User {
	u, ok := s.users[addr]
	if !ok {
		u = &models.User{
			Address:         addr,
			FirstActivityAt: s.clk.Now(),
		}
		s.users[addr] = u
	}
	return u
}

// localScoreLocked computes the canonical point-based score:
// 10 points per payment, 1 point per unit of active vouch amount received,
// and a flat 50-point bonus once the account is older than the bonus age.
// Deterministic, non-negative, strictly increasing in each factor.
func (s *Service) localScoreLocked(u *models.User, now time.Time) uint64 {
	score := u.PaymentCount*pointsPerPayment + u.VouchAmountReceived
	if now.Sub(u.FirstActivityAt) >= s.ageBonusAge {
		score += accountAgeBonus
	}
	return score
}

func (s *Service) recomputeScoreLocked(u *models.User, now time.Time) {
	u.TrustScore = s.localScoreLocked(u, now)
}

// persistPayment appends to the durable audit trail. The in-memory ledger is
// the source of truth; persistence failures are logged, not propagated.
func (s *Service) persistPayment(ctx context.Context, payment *models.Payment) {
	if s.paymentRepo == nil {
		return
	}
	if err := s.paymentRepo.Append(ctx, payment); err != nil {
		s.logger.WithError(err).WithField("paymentId", payment.ID).Warn("Failed to persist payment")
	}
}

func (s *Service) persistVouch(ctx context.Context, vouch *models.Vouch) {
	if s.vouchRepo == nil {
		return
	}
	if err := s.vouchRepo.Append(ctx, vouch); err != nil {
		s.logger.WithError(err).WithField("vouchId", vouch.ID).Warn("Failed to persist vouch")
	}
}

func (s *Service) invalidateScore(ctx context.Context, user common.Address) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateScore(ctx, user); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate cached score")
	}
}
