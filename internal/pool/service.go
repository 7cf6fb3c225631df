// Package pool implements the shared liquidity pool: proportional-share
// accounting over deposits, capped loan funding, and pro-rata yield
// distribution to shareholders.
package pool

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/trust-ledger/internal/clock"
	"github.com/trust-ledger/internal/errors"
	"github.com/trust-ledger/internal/events"
	"github.com/trust-ledger/internal/logging"
	"github.com/trust-ledger/internal/models"
	"github.com/trust-ledger/internal/token"
	"github.com/trust-ledger/internal/types"
)

// YieldVault receives the pool's idle capital for allocation
type YieldVault interface {
	Deposit(ctx context.Context, from common.Address, amount *big.Int) error
	Withdraw(ctx context.Context, to common.Address, amount *big.Int) error
}

// LoanRepository persists the loan audit trail
type LoanRepository interface {
	Append(ctx context.Context, loan *models.Loan) error
	MarkRepaid(ctx context.Context, id string, at time.Time) error
	MarkDefaulted(ctx context.Context, id string) error
}

// Service is the liquidity pool ledger. Shares are minted on deposit and
// burned on withdrawal; Σ share balances == totalShareSupply at all times.
type Service struct {
	mu sync.Mutex

	token    token.SettlementToken
	vault    YieldVault
	loanRepo LoanRepository
	clk      clock.Clock
	logger   *logging.Logger
	sink     events.Sink

	// custody is the pool's own settlement address
	custody common.Address
	// lendingModule is the single capability allowed to fund and settle loans
	lendingModule common.Address
	minDeposit    *big.Int

	shares      map[common.Address]*big.Int
	totalShares *big.Int

	totalDeposits *big.Int
	totalLoans    *big.Int
	yieldEarned   *big.Int
	defaultsLost  *big.Int
	claimed       map[common.Address]*big.Int

	loansByBorrower map[common.Address][]*models.Loan
}

// Config holds the pool's construction parameters
type Config struct {
	Token         token.SettlementToken
	Vault         YieldVault
	LoanRepo      LoanRepository
	Clock         clock.Clock
	Logger        *logging.Logger
	Events        events.Sink
	Custody       common.Address
	LendingModule common.Address
	MinDeposit    *big.Int
}

// NewService creates a liquidity pool
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
	minDeposit := cfg.MinDeposit
	if minDeposit == nil {
		minDeposit = big.NewInt(10)
	}
	return &Service{
		token:           cfg.Token,
		vault:           cfg.Vault,
		loanRepo:        cfg.LoanRepo,
		clk:             clk,
		logger:          logger,
		sink:            sink,
		custody:         cfg.Custody,
		lendingModule:   cfg.LendingModule,
		minDeposit:      minDeposit,
		shares:          make(map[common.Address]*big.Int),
		totalShares:     big.NewInt(0),
		totalDeposits:   big.NewInt(0),
		totalLoans:      big.NewInt(0),
		yieldEarned:     big.NewInt(0),
		defaultsLost:    big.NewInt(0),
		claimed:         make(map[common.Address]*big.Int),
		loansByBorrower: make(map[common.Address][]*models.Loan),
	}
}

// AddLiquidity deposits into the pool and mints proportional shares.
// Requires a prior settlement-token approval for the pool's custody address.
func (s *Service) AddLiquidity(ctx context.Context, provider common.Address, amount *big.Int) (*big.Int, error) {
	if provider == (common.Address{}) {
		return nil, errors.NewZeroAddressError("provider")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.NewInvalidAmountError("amount")
	}
	if amount.Cmp(s.minDeposit) < 0 {
		return nil, errors.NewBelowMinimumError("deposit", s.minDeposit.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	minted := s.sharesForDepositLocked(amount)
	s.creditSharesLocked(provider, minted)
	s.totalDeposits.Add(s.totalDeposits, amount)

	// Effects before interactions: custody transfer runs last; failure
	// restores the prior state.
	if err := s.token.TransferFrom(ctx, s.custody, provider, s.custody, amount); err != nil {
		s.debitSharesLocked(provider, minted)
		s.totalDeposits.Sub(s.totalDeposits, amount)
		return nil, err
	}

	// Idle capital is forwarded to the yield vault (bookkeeping only; the
	// settlement balance stays in custody)
	if s.vault != nil {
		if err := s.vault.Deposit(ctx, s.custody, amount); err != nil {
			s.logger.WithError(err).Warn("Failed to forward deposit to yield vault")
		}
	}

	s.sink.Emit(ctx, events.New(types.EventLiquidityAdded, s.clk.Now(), map[string]interface{}{
		"provider": provider.Hex(),
		"amount":   amount.String(),
		"shares":   minted.String(),
	}))

	return minted, nil
}

// RemoveLiquidity burns shares and pays out the proportional deposit value
func (s *Service) RemoveLiquidity(ctx context.Context, provider common.Address, shares *big.Int) (*big.Int, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, errors.NewInvalidAmountError("shares")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.shareBalanceLocked(provider)
	if balance.Cmp(shares) < 0 {
		return nil, errors.NewInsufficientSharesError(shares.String(), balance.String())
	}

	// payout = shares × totalDeposits / totalShareSupply
	payout := new(big.Int).Mul(shares, s.totalDeposits)
	payout.Div(payout, s.totalShares)

	s.debitSharesLocked(provider, shares)
	s.totalDeposits.Sub(s.totalDeposits, payout)

	if s.vault != nil {
		if err := s.vault.Withdraw(ctx, s.custody, payout); err != nil {
			s.logger.WithError(err).Warn("Failed to withdraw from yield vault")
		}
	}

	if err := s.token.Transfer(ctx, s.custody, provider, payout); err != nil {
		s.creditSharesLocked(provider, shares)
		s.totalDeposits.Add(s.totalDeposits, payout)
		if s.vault != nil {
			if depErr := s.vault.Deposit(ctx, s.custody, payout); depErr != nil {
				s.logger.WithError(depErr).Warn("Failed to restore yield vault deposit")
			}
		}
		return nil, err
	}

	s.sink.Emit(ctx, events.New(types.EventLiquidityRemoved, s.clk.Now(), map[string]interface{}{
		"provider": provider.Hex(),
		"shares":   shares.String(),
		"payout":   payout.String(),
	}))

	return payout, nil
}

// FundLoan transfers pooled capital to a borrower. Callable only by the
// authorized lending module. Insufficient liquidity or utilization headroom
// yields (false, nil) with the pool untouched, so the caller can degrade
// gracefully; an unauthorized caller is a fatal error.
func (s *Service) FundLoan(ctx context.Context, caller, borrower common.Address, amount *big.Int) (bool, error) {
	if caller != s.lendingModule {
		return false, errors.NewUnauthorizedCallerError("lending_module")
	}
	if borrower == (common.Address{}) {
		return false, errors.NewZeroAddressError("borrower")
	}
	if amount == nil || amount.Sign() <= 0 {
		return false, errors.NewInvalidAmountError("amount")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if amount.Cmp(s.availableLiquidityLocked()) > 0 {
		return false, nil
	}

	// totalLoans + amount must stay within 80% of totalDeposits
	newLoans := new(big.Int).Add(s.totalLoans, amount)
	if newLoans.Cmp(utilizationCap(s.totalDeposits)) > 0 {
		return false, nil
	}

	now := s.clk.Now()
	loan := &models.Loan{
		ID:        uuid.New().String(),
		Borrower:  borrower,
		Principal: new(big.Int).Set(amount),
		FundedAt:  now,
	}
	s.totalLoans.Set(newLoans)
	s.loansByBorrower[borrower] = append(s.loansByBorrower[borrower], loan)

	if s.vault != nil {
		if err := s.vault.Withdraw(ctx, s.custody, amount); err != nil {
			s.logger.WithError(err).Warn("Failed to withdraw loan principal from yield vault")
		}
	}

	if err := s.token.Transfer(ctx, s.custody, borrower, amount); err != nil {
		s.totalLoans.Sub(s.totalLoans, amount)
		s.loansByBorrower[borrower] = s.loansByBorrower[borrower][:len(s.loansByBorrower[borrower])-1]
		return false, err
	}

	s.persistLoan(ctx, loan)
	s.sink.Emit(ctx, events.New(types.EventLoanFunded, now, map[string]interface{}{
		"id":       loan.ID,
		"borrower": borrower.Hex(),
		"amount":   amount.String(),
	}))

	return true, nil
}

// ProcessRepayment returns loan principal to the pool and credits interest
// to the yield pool. Same lending-module capability as FundLoan.
func (s *Service) ProcessRepayment(ctx context.Context, caller, borrower common.Address, principal, interest *big.Int) error {
	if caller != s.lendingModule {
		return errors.NewUnauthorizedCallerError("lending_module")
	}
	if principal == nil || principal.Sign() < 0 || interest == nil || interest.Sign() < 0 {
		return errors.NewInvalidAmountError("principal/interest")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalLoans.Cmp(principal) < 0 {
		return errors.NewInvalidAmountError("principal")
	}

	total := new(big.Int).Add(principal, interest)
	s.totalLoans.Sub(s.totalLoans, principal)
	s.yieldEarned.Add(s.yieldEarned, interest)

	if err := s.token.TransferFrom(ctx, s.custody, borrower, s.custody, total); err != nil {
		s.totalLoans.Add(s.totalLoans, principal)
		s.yieldEarned.Sub(s.yieldEarned, interest)
		return err
	}

	if s.vault != nil {
		if err := s.vault.Deposit(ctx, s.custody, principal); err != nil {
			s.logger.WithError(err).Warn("Failed to return principal to yield vault")
		}
	}

	now := s.clk.Now()
	s.markLoanRepaidLocked(ctx, borrower, principal, now)
	s.sink.Emit(ctx, events.New(types.EventLoanRepaid, now, map[string]interface{}{
		"borrower":  borrower.Hex(),
		"principal": principal.String(),
		"interest":  interest.String(),
	}))

	return nil
}

// RecordDefault writes off an outstanding loan principal. The loss is
// socialized across shareholders by shrinking totalDeposits.
func (s *Service) RecordDefault(ctx context.Context, caller, borrower common.Address, principal *big.Int) error {
	if caller != s.lendingModule {
		return errors.NewUnauthorizedCallerError("lending_module")
	}
	if principal == nil || principal.Sign() <= 0 {
		return errors.NewInvalidAmountError("principal")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalLoans.Cmp(principal) < 0 {
		return errors.NewInvalidAmountError("principal")
	}

	s.totalLoans.Sub(s.totalLoans, principal)
	s.totalDeposits.Sub(s.totalDeposits, principal)
	s.defaultsLost.Add(s.defaultsLost, principal)

	now := s.clk.Now()
	for _, loan := range s.loansByBorrower[borrower] {
		if loan.RepaidAt == nil && !loan.Defaulted && loan.Principal.Cmp(principal) == 0 {
			loan.Defaulted = true
			if s.loanRepo != nil {
				if err := s.loanRepo.MarkDefaulted(ctx, loan.ID); err != nil {
					s.logger.WithError(err).Warn("Failed to persist loan default")
				}
			}
			break
		}
	}

	s.sink.Emit(ctx, events.New(types.EventLoanDefaulted, now, map[string]interface{}{
		"borrower":  borrower.Hex(),
		"principal": principal.String(),
	}))

	return nil
}

// GetClaimableYield returns the user's unclaimed pro-rata share of yield
func (s *Service) GetClaimableYield(user common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimableLocked(user)
}

// ClaimYield pays out the caller's claimable yield. A zero claimable amount
// is a no-op, not an error.
func (s *Service) ClaimYield(ctx context.Context, user common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claimable := s.claimableLocked(user)
	if claimable.Sign() <= 0 {
		return big.NewInt(0), nil
	}

	claimed := s.claimedLocked(user)
	claimed.Add(claimed, claimable)

	if err := s.token.Transfer(ctx, s.custody, user, claimable); err != nil {
		claimed.Sub(claimed, claimable)
		return nil, err
	}

	s.sink.Emit(ctx, events.New(types.EventYieldClaimed, s.clk.Now(), map[string]interface{}{
		"user":   user.Hex(),
		"amount": claimable.String(),
	}))

	return claimable, nil
}

// GetUtilizationRatio returns totalLoans × 10000 / totalDeposits, 0 when empty
func (s *Service) GetUtilizationRatio() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalDeposits.Sign() == 0 {
		return 0
	}
	ratio := new(big.Int).Mul(s.totalLoans, big.NewInt(types.BpsDenominator))
	ratio.Div(ratio, s.totalDeposits)
	return ratio.Uint64()
}

// GetPoolStats returns a snapshot of the pool's accounting state
func (s *Service) GetPoolStats() *models.PoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &models.PoolStats{
		TotalDeposits:      new(big.Int).Set(s.totalDeposits),
		TotalLoans:         new(big.Int).Set(s.totalLoans),
		AvailableLiquidity: s.availableLiquidityLocked(),
		YieldEarned:        new(big.Int).Set(s.yieldEarned),
		DefaultsLost:       new(big.Int).Set(s.defaultsLost),
	}
}

// ShareBalance returns the provider's share-token balance
func (s *Service) ShareBalance(provider common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.shareBalanceLocked(provider))
}

// TotalShares returns the total share supply
func (s *Service) TotalShares() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.totalShares)
}

// ShareHolderSum returns the sum of all holder balances. Equals TotalShares
// in every reachable state; exposed for invariant checks.
func (s *Service) ShareHolderSum() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := big.NewInt(0)
	for _, b := range s.shares {
		sum.Add(sum, b)
	}
	return sum
}

// sharesForDepositLocked computes the shares minted for a deposit:
// the deposit amount when supply is empty, else amount × supply / deposits.
func (s *Service) sharesForDepositLocked(amount *big.Int) *big.Int {
	if s.totalShares.Sign() == 0 {
		return new(big.Int).Set(amount)
	}
	minted := new(big.Int).Mul(amount, s.totalShares)
	return minted.Div(minted, s.totalDeposits)
}

// availableLiquidityLocked = min(totalDeposits − totalLoans,
// 0.8 × totalDeposits − totalLoans), clamped at zero.
func (s *Service) availableLiquidityLocked() *big.Int {
	idle := new(big.Int).Sub(s.totalDeposits, s.totalLoans)
	headroom := new(big.Int).Sub(utilizationCap(s.totalDeposits), s.totalLoans)

	available := idle
	if headroom.Cmp(idle) < 0 {
		available = headroom
	}
	if available.Sign() < 0 {
		return big.NewInt(0)
	}
	return available
}

func utilizationCap(totalDeposits *big.Int) *big.Int {
	bound := new(big.Int).Mul(totalDeposits, big.NewInt(types.UtilizationCapBps))
	return bound.Div(bound, big.NewInt(types.BpsDenominator))
}

func (s *Service) claimableLocked(user common.Address) *big.Int {
	if s.totalShares.Sign() == 0 {
		return big.NewInt(0)
	}
	entitled := new(big.Int).Mul(s.yieldEarned, s.shareBalanceLocked(user))
	entitled.Div(entitled, s.totalShares)
	return entitled.Sub(entitled, s.claimedLocked(user))
}

func (s *Service) shareBalanceLocked(provider common.Address) *big.Int {
	if b, ok := s.shares[provider]; ok {
		return b
	}
	return big.NewInt(0)
}

func (s *Service) claimedLocked(user common.Address) *big.Int {
	c, ok := s.claimed[user]
	if !ok {
		c = big.NewInt(0)
		s.claimed[user] = c
	}
	return c
}

func (s *Service) creditSharesLocked(provider common.Address, amount *big.Int) {
	s.shares[provider] = new(big.Int).Add(s.shareBalanceLocked(provider), amount)
	s.totalShares.Add(s.totalShares, amount)
}

func (s *Service) debitSharesLocked(provider common.Address, amount *big.Int) {
	s.shares[provider] = new(big.Int).Sub(s.shareBalanceLocked(provider), amount)
	s.totalShares.Sub(s.totalShares, amount)
}

func (s *Service) markLoanRepaidLocked(ctx context.Context, borrower common.Address, principal *big.Int, at time.Time) {
	for _, loan := range s.loansByBorrower[borrower] {
		if loan.RepaidAt == nil && !loan.Defaulted && loan.Principal.Cmp(principal) == 0 {
			repaidAt := at
			loan.RepaidAt = &repaidAt
			if s.loanRepo != nil {
				if err := s.loanRepo.MarkRepaid(ctx, loan.ID, at); err != nil {
					s.logger.WithError(err).Warn("Failed to persist loan repayment")
				}
			}
			return
		}
	}
}

func (s *Service) persistLoan(ctx context.Context, loan *models.Loan) {
	if s.loanRepo == nil {
		return
	}
	if err := s.loanRepo.Append(ctx, loan); err != nil {
		s.logger.WithError(err).WithField("loanId", loan.ID).Warn("Failed to persist loan")
	}
}
