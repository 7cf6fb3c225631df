package yield

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-ledger/internal/clock"
	"github.com/trust-ledger/internal/errors"
	"github.com/trust-ledger/internal/types"
)

var (
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	stranger  = common.HexToAddress("0x00000000000000000000000000000000000000BB")
	aaveRef   = common.HexToAddress("0x0000000000000000000000000000000000000A01")
	curveRef  = common.HexToAddress("0x0000000000000000000000000000000000000A02")
	depositor = common.HexToAddress("0x00000000000000000000000000000000000000CC")
)

func newTestEngine(t *testing.T) (*Engine, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	engine := NewEngine(Config{Owner: owner, Clock: clk})
	return engine, clk
}

func TestAddStrategy(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	strategy, err := engine.AddStrategy(ctx, owner, "aave-v3", aaveRef, 6000, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), strategy.ID)
	assert.True(t, strategy.Active)

	// Non-owner cannot register strategies
	_, err = engine.AddStrategy(ctx, stranger, "curve", curveRef, 2000, 800)
	assert.True(t, errors.IsAuthorization(err))
}

func TestAddStrategyAllocationBounds(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.AddStrategy(ctx, owner, "too-big", aaveRef, types.BpsDenominator+1, 500)
	assert.True(t, errors.IsValidation(err))

	_, err = engine.AddStrategy(ctx, owner, "zero", aaveRef, 0, 500)
	assert.True(t, errors.IsValidation(err))

	_, err = engine.AddStrategy(ctx, owner, "zero-ref", common.Address{}, 5000, 500)
	assert.True(t, errors.IsValidation(err))

	// Active allocations may not exceed 100% in aggregate
	_, err = engine.AddStrategy(ctx, owner, "a", aaveRef, 7000, 500)
	require.NoError(t, err)
	_, err = engine.AddStrategy(ctx, owner, "b", curveRef, 4000, 800)
	assert.True(t, errors.IsKind(err, types.KindState))
	_, err = engine.AddStrategy(ctx, owner, "b", curveRef, 3000, 800)
	assert.NoError(t, err)
}

func TestUpdateStrategy(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	strategy, err := engine.AddStrategy(ctx, owner, "aave-v3", aaveRef, 6000, 500)
	require.NoError(t, err)

	require.NoError(t, engine.UpdateStrategy(ctx, owner, strategy.ID, 8000, true))

	strategies := engine.GetStrategies()
	require.Len(t, strategies, 1)
	assert.Equal(t, uint64(8000), strategies[0].AllocationBps)

	// Deactivating frees the allocation for another strategy
	require.NoError(t, engine.UpdateStrategy(ctx, owner, strategy.ID, 8000, false))
	_, err = engine.AddStrategy(ctx, owner, "curve", curveRef, 9000, 800)
	assert.NoError(t, err)

	err = engine.UpdateStrategy(ctx, owner, 99, 100, true)
	assert.True(t, errors.IsValidation(err))

	err = engine.UpdateStrategy(ctx, stranger, strategy.ID, 100, true)
	assert.True(t, errors.IsAuthorization(err))
}

func TestDepositRequiresActiveStrategy(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	err := engine.Deposit(ctx, depositor, big.NewInt(1000))
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientResource(err))

	_, err = engine.AddStrategy(ctx, owner, "aave-v3", aaveRef, 6000, 500)
	require.NoError(t, err)

	require.NoError(t, engine.Deposit(ctx, depositor, big.NewInt(1000)))
	assert.Equal(t, big.NewInt(1000), engine.TotalDeposits())
}

func TestWithdraw(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.AddStrategy(ctx, owner, "aave-v3", aaveRef, 6000, 500)
	require.NoError(t, err)
	require.NoError(t, engine.Deposit(ctx, depositor, big.NewInt(1000)))

	err = engine.Withdraw(ctx, depositor, big.NewInt(1500))
	assert.True(t, errors.IsInsufficientResource(err))

	require.NoError(t, engine.Withdraw(ctx, depositor, big.NewInt(400)))
	assert.Equal(t, big.NewInt(600), engine.TotalDeposits())
}

func TestGetCurrentAPYWeighted(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	assert.Equal(t, uint64(0), engine.GetCurrentAPY())

	_, err := engine.AddStrategy(ctx, owner, "aave-v3", aaveRef, 6000, 500)
	require.NoError(t, err)
	_, err = engine.AddStrategy(ctx, owner, "curve", curveRef, 4000, 800)
	require.NoError(t, err)

	// (500*6000 + 800*4000) / 10000 = 620
	assert.Equal(t, uint64(620), engine.GetCurrentAPY())
}

func TestHarvestYieldAccrual(t *testing.T) {
	engine, clk := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.AddStrategy(ctx, owner, "aave-v3", aaveRef, 6000, 500)
	require.NoError(t, err)
	_, err = engine.AddStrategy(ctx, owner, "curve", curveRef, 4000, 800)
	require.NoError(t, err)

	require.NoError(t, engine.Deposit(ctx, depositor, big.NewInt(1_000_000)))

	clk.Advance(365 * 24 * time.Hour)
	accrued, err := engine.HarvestYield(ctx)
	require.NoError(t, err)
	// 1_000_000 * 620 bps over one year
	assert.Equal(t, big.NewInt(62_000), accrued)
	assert.Equal(t, big.NewInt(62_000), engine.TotalYieldEarned())

	// Immediate second harvest accrues nothing
	accrued, err = engine.HarvestYield(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), accrued.Int64())
}

func TestHarvestYieldEmptyEngine(t *testing.T) {
	engine, clk := newTestEngine(t)

	clk.Advance(24 * time.Hour)
	accrued, err := engine.HarvestYield(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), accrued.Int64())
}

func TestRebalance(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.AddStrategy(ctx, owner, "aave-v3", aaveRef, 6000, 500)
	require.NoError(t, err)
	_, err = engine.AddStrategy(ctx, owner, "curve", curveRef, 4000, 800)
	require.NoError(t, err)
	require.NoError(t, engine.Deposit(ctx, depositor, big.NewInt(10_000)))

	err = engine.Rebalance(ctx, stranger)
	assert.True(t, errors.IsAuthorization(err))

	require.NoError(t, engine.Rebalance(ctx, owner))
	strategies := engine.GetStrategies()
	require.Len(t, strategies, 2)
	assert.Equal(t, big.NewInt(6000), strategies[0].CurrentDeposit)
	assert.Equal(t, big.NewInt(4000), strategies[1].CurrentDeposit)
}

func TestEmergencyWithdraw(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.AddStrategy(ctx, owner, "aave-v3", aaveRef, 6000, 500)
	require.NoError(t, err)
	require.NoError(t, engine.Deposit(ctx, depositor, big.NewInt(5000)))
	require.NoError(t, engine.Rebalance(ctx, owner))

	_, err = engine.EmergencyWithdraw(ctx, stranger)
	assert.True(t, errors.IsAuthorization(err))

	withdrawn, err := engine.EmergencyWithdraw(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5000), withdrawn)
	assert.Equal(t, int64(0), engine.TotalDeposits().Int64())
	for _, strategy := range engine.GetStrategies() {
		assert.Equal(t, int64(0), strategy.CurrentDeposit.Int64())
	}
}
