// Package yield implements multi-strategy allocation of pooled capital and
// time-based yield accrual against an injected clock.
package yield

import (
	"context"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trust-ledger/internal/clock"
	"github.com/trust-ledger/internal/errors"
	"github.com/trust-ledger/internal/events"
	"github.com/trust-ledger/internal/logging"
	"github.com/trust-ledger/internal/models"
	"github.com/trust-ledger/internal/types"
)

// secondsPerYear is the accrual denominator
const secondsPerYear = 365 * 24 * 60 * 60

// Engine allocates deposits across named strategies by weight
type Engine struct {
	mu sync.Mutex

	owner  common.Address
	clk    clock.Clock
	logger *logging.Logger
	sink   events.Sink

	strategies map[uint64]*models.Strategy
	nextID     uint64

	balances         map[common.Address]*big.Int
	totalDeposits    *big.Int
	totalYieldEarned *big.Int
	lastHarvest      time.Time
}

// Config holds the engine's construction parameters
type Config struct {
	Owner  common.Address
	Clock  clock.Clock
	Logger *logging.Logger
	Events events.Sink
}

// NewEngine creates a yield engine with no strategies
func NewEngine(cfg Config) *Engine {
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
	return &Engine{
		owner:            cfg.Owner,
		clk:              clk,
		logger:           logger,
		sink:             sink,
		strategies:       make(map[uint64]*models.Strategy),
		nextID:           1,
		balances:         make(map[common.Address]*big.Int),
		totalDeposits:    big.NewInt(0),
		totalYieldEarned: big.NewInt(0),
		lastHarvest:      clk.Now(),
	}
}

// AddStrategy registers a new allocation target. The active allocation sum
// must stay within 10000 bps.
func (e *Engine) AddStrategy(ctx context.Context, caller common.Address, name string, protocolRef common.Address, allocationBps, yieldRateBps uint64) (*models.Strategy, error) {
	if caller != e.owner {
		return nil, errors.NewUnauthorizedCallerError("owner")
	}
	if protocolRef == (common.Address{}) {
		return nil, errors.NewZeroAddressError("protocolRef")
	}
	if allocationBps == 0 || allocationBps > types.BpsDenominator {
		return nil, errors.NewAllocationOutOfRangeError(allocationBps)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sum := e.activeAllocationSumLocked() + allocationBps
	if sum > types.BpsDenominator {
		return nil, errors.NewAllocationSumError(sum)
	}

	strategy := &models.Strategy{
		ID:             e.nextID,
		Name:           name,
		ProtocolRef:    protocolRef,
		AllocationBps:  allocationBps,
		YieldRateBps:   yieldRateBps,
		Active:         true,
		CurrentDeposit: big.NewInt(0),
	}
	e.strategies[strategy.ID] = strategy
	e.nextID++

	e.sink.Emit(ctx, events.New(types.EventStrategyAdded, e.clk.Now(), map[string]interface{}{
		"id":            strategy.ID,
		"name":          name,
		"allocationBps": allocationBps,
	}))

	return strategy, nil
}

// UpdateStrategy reconfigures a strategy, revalidating the allocation sum
// under the new value.
func (e *Engine) UpdateStrategy(ctx context.Context, caller common.Address, id, allocationBps uint64, active bool) error {
	if caller != e.owner {
		return errors.NewUnauthorizedCallerError("owner")
	}
	if allocationBps == 0 || allocationBps > types.BpsDenominator {
		return errors.NewAllocationOutOfRangeError(allocationBps)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	strategy, ok := e.strategies[id]
	if !ok {
		return errors.NewNotFoundError("strategy", strconv.FormatUint(id, 10))
	}

	sum := e.activeAllocationSumLocked()
	if strategy.Active {
		sum -= strategy.AllocationBps
	}
	if active {
		sum += allocationBps
	}
	if sum > types.BpsDenominator {
		return errors.NewAllocationSumError(sum)
	}

	strategy.AllocationBps = allocationBps
	strategy.Active = active

	e.sink.Emit(ctx, events.New(types.EventStrategyUpdated, e.clk.Now(), map[string]interface{}{
		"id":            id,
		"allocationBps": allocationBps,
		"active":        active,
	}))

	return nil
}

// Deposit records capital entering the engine. Requires at least one active
// strategy to allocate against.
func (e *Engine) Deposit(_ context.Context, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.NewInvalidAmountError("amount")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeStrategyCountLocked() == 0 {
		return errors.NewNoStrategiesError()
	}

	e.balances[from] = new(big.Int).Add(e.balanceLocked(from), amount)
	e.totalDeposits.Add(e.totalDeposits, amount)
	return nil
}

// Withdraw records capital leaving the engine
func (e *Engine) Withdraw(_ context.Context, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.NewInvalidAmountError("amount")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	balance := e.balanceLocked(to)
	if balance.Cmp(amount) < 0 {
		return errors.NewInsufficientSharesError(amount.String(), balance.String())
	}

	e.balances[to] = new(big.Int).Sub(balance, amount)
	e.totalDeposits.Sub(e.totalDeposits, amount)
	return nil
}

// GetCurrentAPY returns the allocation-weighted average yield rate in bps
// across active strategies, 0 with none.
func (e *Engine) GetCurrentAPY() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentAPYLocked()
}

// HarvestYield accrues totalDeposits × APY × elapsed / year since the last
// harvest and returns the newly accrued amount.
func (e *Engine) HarvestYield(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clk.Now()
	elapsed := now.Sub(e.lastHarvest)
	e.lastHarvest = now
	if elapsed <= 0 || e.totalDeposits.Sign() == 0 {
		return big.NewInt(0), nil
	}

	apy := e.currentAPYLocked()
	accrued := new(big.Int).Mul(e.totalDeposits, new(big.Int).SetUint64(apy))
	accrued.Mul(accrued, big.NewInt(int64(elapsed.Seconds())))
	accrued.Div(accrued, big.NewInt(types.BpsDenominator))
	accrued.Div(accrued, big.NewInt(secondsPerYear))

	e.totalYieldEarned.Add(e.totalYieldEarned, accrued)

	e.sink.Emit(ctx, events.New(types.EventYieldHarvested, now, map[string]interface{}{
		"accrued": accrued.String(),
		"apyBps":  apy,
	}))

	return accrued, nil
}

// Rebalance redistributes strategy deposits to match current allocation
// weights against total deposits.
func (e *Engine) Rebalance(ctx context.Context, caller common.Address) error {
	if caller != e.owner {
		return errors.NewUnauthorizedCallerError("owner")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, strategy := range e.strategies {
		if !strategy.Active {
			strategy.CurrentDeposit = big.NewInt(0)
			continue
		}
		target := new(big.Int).Mul(e.totalDeposits, new(big.Int).SetUint64(strategy.AllocationBps))
		target.Div(target, big.NewInt(types.BpsDenominator))
		strategy.CurrentDeposit = target
	}

	e.logger.WithField("totalDeposits", e.totalDeposits.String()).Info("Strategies rebalanced")
	return nil
}

// EmergencyWithdraw pulls all funds back to the owner and zeroes deposits.
// Circuit breaker, not a normal-path operation.
func (e *Engine) EmergencyWithdraw(ctx context.Context, caller common.Address) (*big.Int, error) {
	if caller != e.owner {
		return nil, errors.NewUnauthorizedCallerError("owner")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	withdrawn := new(big.Int).Set(e.totalDeposits)
	e.totalDeposits = big.NewInt(0)
	e.balances = make(map[common.Address]*big.Int)
	for _, strategy := range e.strategies {
		strategy.CurrentDeposit = big.NewInt(0)
	}

	e.logger.WithField("withdrawn", withdrawn.String()).Warn("Emergency withdrawal executed")
	return withdrawn, nil
}

// GetStrategies returns a snapshot of all registered strategies
func (e *Engine) GetStrategies() []*models.Strategy {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*models.Strategy, 0, len(e.strategies))
	for id := uint64(1); id < e.nextID; id++ {
		if strategy, ok := e.strategies[id]; ok {
			snapshot := *strategy
			snapshot.CurrentDeposit = new(big.Int).Set(strategy.CurrentDeposit)
			out = append(out, &snapshot)
		}
	}
	return out
}

// TotalYieldEarned returns the cumulative harvested yield
func (e *Engine) TotalYieldEarned() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.totalYieldEarned)
}

// TotalDeposits returns the engine's current deposit bookkeeping total
func (e *Engine) TotalDeposits() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.totalDeposits)
}

func (e *Engine) currentAPYLocked() uint64 {
	var weighted, totalBps uint64
	for _, strategy := range e.strategies {
		if !strategy.Active {
			continue
		}
		weighted += strategy.YieldRateBps * strategy.AllocationBps
		totalBps += strategy.AllocationBps
	}
	if totalBps == 0 {
		return 0
	}
	return weighted / totalBps
}

func (e *Engine) activeAllocationSumLocked() uint64 {
	var sum uint64
	for _, strategy := range e.strategies {
		if strategy.Active {
			sum += strategy.AllocationBps
		}
	}
	return sum
}

func (e *Engine) activeStrategyCountLocked() int {
	count := 0
	for _, strategy := range e.strategies {
		if strategy.Active {
			count++
		}
	}
	return count
}

func (e *Engine) balanceLocked(addr common.Address) *big.Int {
	if b, ok := e.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}
