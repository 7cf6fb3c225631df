package trustscore

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trust-ledger/internal/clock"
	"github.com/trust-ledger/internal/errors"
	"github.com/trust-ledger/internal/events"
	"github.com/trust-ledger/internal/token"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

// fixedBoosts serves a constant boost per user
type fixedBoosts struct {
	points map[common.Address]uint64
}

func (f *fixedBoosts) SubmitReputationProof(context.Context, common.Address, string, uint64, []byte, common.Hash) (bool, error) {
	return false, nil
}

func (f *fixedBoosts) SubmitDataProviderVerification(context.Context, common.Address, string, uint64, []byte, time.Time, common.Hash) (bool, error) {
	return false, nil
}

func (f *fixedBoosts) GetUserCreditBoost(_ context.Context, user common.Address) (uint64, error) {
	return f.points[user], nil
}

func newTestService(t *testing.T) (*Service, *token.MemoryToken, *clock.Fake, *fixedBoosts) {
	t.Helper()

	tok := token.NewMemoryToken()
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	boosts := &fixedBoosts{points: make(map[common.Address]uint64)}
	svc := NewService(Config{
		Token:  tok,
		Boosts: boosts,
		Clock:  clk,
		Events: events.NewLog(64),
	})
	return svc, tok, clk, boosts
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	svc, tok, _, _ := newTestService(t)
	tok.Mint(alice, big.NewInt(100))

	payment, err := svc.RecordPayment(ctx, alice, bob, big.NewInt(25), "lunch")
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if !payment.Completed || payment.ID == "" {
		t.Errorf("payment not completed or missing id: %+v", payment)
	}

	aliceBal, _ := tok.BalanceOf(ctx, alice)
	bobBal, _ := tok.BalanceOf(ctx, bob)
	if aliceBal.Int64() != 75 || bobBal.Int64() != 25 {
		t.Errorf("expected 75/25 balances, got %s/%s", aliceBal, bobBal)
	}

	score, err := svc.GetUserTrustScore(ctx, alice)
	if err != nil {
		t.Fatalf("GetUserTrustScore failed: %v", err)
	}
	if score != 10 {
		t.Errorf("expected 10 points after one payment, got %d", score)
	}
}

func TestRecordPaymentInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	svc, tok, _, _ := newTestService(t)
	tok.Mint(alice, big.NewInt(5))

	_, err := svc.RecordPayment(ctx, alice, bob, big.NewInt(10), "")
	if !errors.IsInsufficientResource(err) {
		t.Fatalf("expected insufficient_resource error, got %v", err)
	}

	// Rejection must leave no trace
	if score, _ := svc.GetUserTrustScore(ctx, alice); score != 0 {
		t.Errorf("score changed on rejected payment: %d", score)
	}
	if history := svc.GetPaymentHistory(alice, 0); len(history) != 0 {
		t.Errorf("payment recorded despite rejection: %d entries", len(history))
	}
}

func TestSelfAndZeroPaymentsPermitted(t *testing.T) {
	ctx := context.Background()
	svc, tok, _, _ := newTestService(t)
	tok.Mint(alice, big.NewInt(10))

	if _, err := svc.RecordPayment(ctx, alice, alice, big.NewInt(10), "self"); err != nil {
		t.Fatalf("self-payment rejected: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, alice, bob, big.NewInt(0), "zero"); err != nil {
		t.Fatalf("zero-amount payment rejected: %v", err)
	}

	if score, _ := svc.GetUserTrustScore(ctx, alice); score != 20 {
		t.Errorf("expected 20 points after two payments, got %d", score)
	}
}

func TestVouchRaisesVoucheeScore(t *testing.T) {
	ctx := context.Background()
	svc, tok, _, _ := newTestService(t)
	tok.Mint(alice, big.NewInt(100))

	// Alice earns 30 points from three payments
	for i := 0; i < 3; i++ {
		if _, err := svc.RecordPayment(ctx, alice, bob, big.NewInt(1), ""); err != nil {
			t.Fatalf("payment %d failed: %v", i, err)
		}
	}

	vouch, err := svc.VouchForUser(ctx, alice, carol, 20)
	if err != nil {
		t.Fatalf("VouchForUser failed: %v", err)
	}
	if !vouch.Active {
		t.Error("new vouch should be active")
	}

	if score, _ := svc.GetUserTrustScore(ctx, carol); score != 20 {
		t.Errorf("expected vouchee score 20, got %d", score)
	}
}

func TestVouchExceedingCapacityRejected(t *testing.T) {
	ctx := context.Background()
	svc, tok, _, _ := newTestService(t)
	tok.Mint(alice, big.NewInt(100))

	if _, err := svc.RecordPayment(ctx, alice, bob, big.NewInt(1), ""); err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	// Score is 10; vouching 11 must fail with insufficient_resource
	_, err := svc.VouchForUser(ctx, alice, carol, 11)
	if !errors.IsInsufficientResource(err) {
		t.Fatalf("expected insufficient_resource error, got %v", err)
	}
}

func TestAggregateVouchCapacity(t *testing.T) {
	ctx := context.Background()
	svc, tok, _, _ := newTestService(t)
	tok.Mint(alice, big.NewInt(100))

	// Score 30 from three payments
	for i := 0; i < 3; i++ {
		if _, err := svc.RecordPayment(ctx, alice, bob, big.NewInt(1), ""); err != nil {
			t.Fatalf("payment failed: %v", err)
		}
	}

	if _, err := svc.VouchForUser(ctx, alice, carol, 20); err != nil {
		t.Fatalf("first vouch failed: %v", err)
	}

	// 20 outstanding + 20 > 30: the aggregate cap rejects it even though the
	// individual amount fits within the score
	_, err := svc.VouchForUser(ctx, alice, bob, 20)
	if !errors.IsInsufficientResource(err) {
		t.Fatalf("expected aggregate capacity rejection, got %v", err)
	}

	// 10 more still fits
	if _, err := svc.VouchForUser(ctx, alice, bob, 10); err != nil {
		t.Fatalf("vouch within remaining capacity failed: %v", err)
	}
}

func TestRevokeVouchFreesCapacityAndLowersScore(t *testing.T) {
	ctx := context.Background()
	svc, tok, _, _ := newTestService(t)
	tok.Mint(alice, big.NewInt(100))

	for i := 0; i < 3; i++ {
		if _, err := svc.RecordPayment(ctx, alice, bob, big.NewInt(1), ""); err != nil {
			t.Fatalf("payment failed: %v", err)
		}
	}

	vouch, err := svc.VouchForUser(ctx, alice, carol, 30)
	if err != nil {
		t.Fatalf("vouch failed: %v", err)
	}

	if err := svc.RevokeVouch(ctx, alice, vouch.ID); err != nil {
		t.Fatalf("RevokeVouch failed: %v", err)
	}

	if score, _ := svc.GetUserTrustScore(ctx, carol); score != 0 {
		t.Errorf("expected vouchee score 0 after revoke, got %d", score)
	}

	// Audit trail survives deactivation
	received := svc.GetVouchesReceived(carol)
	if len(received) != 1 || received[0].Active {
		t.Errorf("expected one inactive vouch on record, got %+v", received)
	}

	// Capacity is freed
	if _, err := svc.VouchForUser(ctx, alice, carol, 30); err != nil {
		t.Fatalf("vouch after revoke failed: %v", err)
	}
}

func TestRevokeVouchOnlyByOwner(t *testing.T) {
	ctx := context.Background()
	svc, tok, _, _ := newTestService(t)
	tok.Mint(alice, big.NewInt(100))

	if _, err := svc.RecordPayment(ctx, alice, bob, big.NewInt(1), ""); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	vouch, err := svc.VouchForUser(ctx, alice, carol, 5)
	if err != nil {
		t.Fatalf("vouch failed: %v", err)
	}

	if err := svc.RevokeVouch(ctx, bob, vouch.ID); !errors.IsAuthorization(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestAccountAgeBonus(t *testing.T) {
	ctx := context.Background()
	svc, tok, clk, _ := newTestService(t)
	tok.Mint(alice, big.NewInt(100))

	if _, err := svc.RecordPayment(ctx, alice, bob, big.NewInt(1), ""); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if score, _ := svc.GetUserTrustScore(ctx, alice); score != 10 {
		t.Errorf("expected 10 before age bonus, got %d", score)
	}

	clk.Advance(31 * 24 * time.Hour)
	if score, _ := svc.GetUserTrustScore(ctx, alice); score != 60 {
		t.Errorf("expected 60 after age bonus, got %d", score)
	}
}

func TestBoostAddsToAggregateScore(t *testing.T) {
	ctx := context.Background()
	svc, tok, _, boosts := newTestService(t)
	tok.Mint(alice, big.NewInt(100))

	if _, err := svc.RecordPayment(ctx, alice, bob, big.NewInt(1), ""); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	boosts.points[alice] = 25

	if score, _ := svc.GetUserTrustScore(ctx, alice); score != 35 {
		t.Errorf("expected 10 local + 25 boost = 35, got %d", score)
	}
}
