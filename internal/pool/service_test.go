package pool

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
	"github.com/trust-ledger/internal/token"
)

var (
	custody  = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	lender   = common.HexToAddress("0x000000000000000000000000000000000000001e")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	borrower = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

func newTestPool(t *testing.T) (*Service, *token.MemoryToken) {
	t.Helper()

	tok := token.NewMemoryToken()
	svc := NewService(Config{
		Token:         tok,
		Clock:         clock.NewFake(time.Unix(1_700_000_000, 0)),
		Custody:       custody,
		LendingModule: lender,
		MinDeposit:    big.NewInt(10),
	})
	return svc, tok
}

// fund mints and approves so provider can deposit amount
func fund(t *testing.T, tok *token.MemoryToken, provider common.Address, amount int64) {
	t.Helper()
	ctx := context.Background()
	tok.Mint(provider, big.NewInt(amount))
	require.NoError(t, tok.Approve(ctx, provider, custody, big.NewInt(amount)))
}

func TestAddLiquidityMintsShares(t *testing.T) {
	ctx := context.Background()
	svc, tok := newTestPool(t)
	fund(t, tok, alice, 1000)

	minted, err := svc.AddLiquidity(ctx, alice, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), minted.Int64(), "first deposit mints 1:1")

	fund(t, tok, bob, 500)
	minted, err = svc.AddLiquidity(ctx, bob, big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, int64(500), minted.Int64())

	assert.Equal(t, int64(1500), svc.TotalShares().Int64())
	assert.Equal(t, int64(1500), svc.ShareHolderSum().Int64())
}

func TestBelowMinimumDepositRejected(t *testing.T) {
	ctx := context.Background()
	svc, tok := newTestPool(t)
	fund(t, tok, alice, 100)

	_, err := svc.AddLiquidity(ctx, alice, big.NewInt(5))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err), "expected validation error, got %v", err)
	catErr := errors.Categorize(err)
	assert.Equal(t, "BELOW_MINIMUM", catErr.Code)
}

func TestRoundTripReturnsExactDeposit(t *testing.T) {
	ctx := context.Background()
	svc, tok := newTestPool(t)
	fund(t, tok, alice, 777)

	minted, err := svc.AddLiquidity(ctx, alice, big.NewInt(777))
	require.NoError(t, err)

	payout, err := svc.RemoveLiquidity(ctx, alice, minted)
	require.NoError(t, err)
	assert.Equal(t, int64(777), payout.Int64(), "round trip with no loans or yield returns the deposit")

	balance, _ := tok.BalanceOf(ctx, alice)
	assert.Equal(t, int64(777), balance.Int64())
	assert.Equal(t, int64(0), svc.TotalShares().Int64())
}

func TestRemoveLiquidityOverBalanceRejected(t *testing.T) {
	ctx := context.Background()
	svc, tok := newTestPool(t)
	fund(t, tok, alice, 100)

	_, err := svc.AddLiquidity(ctx, alice, big.NewInt(100))
	require.NoError(t, err)

	_, err = svc.RemoveLiquidity(ctx, alice, big.NewInt(101))
	assert.True(t, errors.IsInsufficientResource(err), "expected insufficient_resource, got %v", err)
}

func TestFundLoanRequiresLendingModule(t *testing.T) {
	ctx := context.Background()
	svc, tok := newTestPool(t)
	fund(t, tok, alice, 1000)
	_, err := svc.AddLiquidity(ctx, alice, big.NewInt(1000))
	require.NoError(t, err)

	_, err = svc.FundLoan(ctx, alice, borrower, big.NewInt(100))
	assert.True(t, errors.IsAuthorization(err), "expected authorization error, got %v", err)
}

func TestFundLoanInsufficientLiquidityIsSoftFailure(t *testing.T) {
	ctx := context.Background()
	svc, tok := newTestPool(t)
	fund(t, tok, alice, 1000)
	_, err := svc.AddLiquidity(ctx, alice, big.NewInt(1000))
	require.NoError(t, err)

	before := svc.GetPoolStats()

	// Available liquidity is 800 (80% cap); asking for more is a boolean
	// failure, not an error
	funded, err := svc.FundLoan(ctx, lender, borrower, big.NewInt(900))
	require.NoError(t, err)
	assert.False(t, funded)

	after := svc.GetPoolStats()
	assert.Equal(t, before.TotalDeposits, after.TotalDeposits)
	assert.Equal(t, before.TotalLoans, after.TotalLoans)
	assert.Equal(t, before.AvailableLiquidity, after.AvailableLiquidity)
}

func TestFundLoanRespectsUtilizationCap(t *testing.T) {
	ctx := context.Background()
	svc, tok := newTestPool(t)
	fund(t, tok, alice, 1000)
	_, err := svc.AddLiquidity(ctx, alice, big.NewInt(1000))
	require.NoError(t, err)

	funded, err := svc.FundLoan(ctx, lender, borrower, big.NewInt(800))
	require.NoError(t, err)
	assert.True(t, funded, "exactly 80% utilization must fund")

	stats := svc.GetPoolStats()
	assert.Equal(t, int64(800), stats.TotalLoans.Int64())
	assert.Equal(t, uint64(8000), svc.GetUtilizationRatio())

	// One more unit breaches the cap
	funded, err = svc.FundLoan(ctx, lender, borrower, big.NewInt(1))
	require.NoError(t, err)
	assert.False(t, funded)
}

func TestScenarioProRataYield(t *testing.T) {
	ctx := context.Background()
	svc, tok := newTestPool(t)

	// Alice deposits 1000, Bob deposits 500
	fund(t, tok, alice, 1000)
	fund(t, tok, bob, 500)
	_, err := svc.AddLiquidity(ctx, alice, big.NewInt(1000))
	require.NoError(t, err)
	_, err = svc.AddLiquidity(ctx, bob, big.NewInt(500))
	require.NoError(t, err)

	// A loan of 100 is funded, then repaid with 150 interest
	funded, err := svc.FundLoan(ctx, lender, borrower, big.NewInt(100))
	require.NoError(t, err)
	require.True(t, funded)

	tok.Mint(borrower, big.NewInt(150))
	require.NoError(t, tok.Approve(ctx, borrower, custody, big.NewInt(250)))
	require.NoError(t, svc.ProcessRepayment(ctx, lender, borrower, big.NewInt(100), big.NewInt(150)))

	stats := svc.GetPoolStats()
	assert.Equal(t, int64(0), stats.TotalLoans.Int64())
	assert.Equal(t, int64(150), stats.YieldEarned.Int64())

	// Yield splits 100:50 along the 1000:500 share ratio
	assert.Equal(t, int64(100), svc.GetClaimableYield(alice).Int64())
	assert.Equal(t, int64(50), svc.GetClaimableYield(bob).Int64())

	claimed, err := svc.ClaimYield(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(100), claimed.Int64())

	claimed, err = svc.ClaimYield(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(50), claimed.Int64())

	// Claims do not repeat
	assert.Equal(t, int64(0), svc.GetClaimableYield(alice).Int64())
	claimed, err = svc.ClaimYield(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), claimed.Int64(), "second claim is a no-op")
}

func TestRepaymentRequiresLendingModule(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestPool(t)

	err := svc.ProcessRepayment(ctx, alice, borrower, big.NewInt(10), big.NewInt(1))
	assert.True(t, errors.IsAuthorization(err))
}

func TestRecordDefaultSocializesLoss(t *testing.T) {
	ctx := context.Background()
	svc, tok := newTestPool(t)
	fund(t, tok, alice, 1000)
	_, err := svc.AddLiquidity(ctx, alice, big.NewInt(1000))
	require.NoError(t, err)

	funded, err := svc.FundLoan(ctx, lender, borrower, big.NewInt(200))
	require.NoError(t, err)
	require.True(t, funded)

	require.NoError(t, svc.RecordDefault(ctx, lender, borrower, big.NewInt(200)))

	stats := svc.GetPoolStats()
	assert.Equal(t, int64(0), stats.TotalLoans.Int64())
	assert.Equal(t, int64(800), stats.TotalDeposits.Int64())
	assert.Equal(t, int64(200), stats.DefaultsLost.Int64())

	// Alice's shares now redeem against the shrunken pool
	payout, err := svc.RemoveLiquidity(ctx, alice, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(800), payout.Int64())
}

func TestUtilizationRatioEmptyPool(t *testing.T) {
	svc, _ := newTestPool(t)
	assert.Equal(t, uint64(0), svc.GetUtilizationRatio())
}
