package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-ledger/internal/boost"
	"github.com/trust-ledger/internal/clock"
	"github.com/trust-ledger/internal/crosschain"
	"github.com/trust-ledger/internal/events"
	"github.com/trust-ledger/internal/pool"
	"github.com/trust-ledger/internal/token"
	"github.com/trust-ledger/internal/trustscore"
	"github.com/trust-ledger/internal/yield"
)

var (
	testOwner         = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	testPoolCustody   = common.HexToAddress("0x00000000000000000000000000000000000000FD")
	testBridgeCustody = common.HexToAddress("0x00000000000000000000000000000000000000FE")
	testLender        = common.HexToAddress("0x00000000000000000000000000000000000000FC")
	testAlice         = common.HexToAddress("0x0000000000000000000000000000000000000A11")
	testBob           = common.HexToAddress("0x0000000000000000000000000000000000000B22")
)

// acceptAllProofs approves any reputation proof
type acceptAllProofs struct{}

func (acceptAllProofs) VerifyProof(string, uint64, []byte) (bool, error) { return true, nil }

type testEnv struct {
	server *Server
	token  *token.MemoryToken
	clk    *clock.Fake
}

// newTestEnv wires the full service graph against in-memory collaborators
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tok := token.NewMemoryToken()
	clk := clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	eventLog := events.NewLog(256)
	sink := events.Multi{eventLog}

	boosts := boost.NewCreditBoostRegistry(boost.Config{
		Verifier:  acceptAllProofs{},
		Provider:  testOwner,
		Clock:     clk,
		Freshness: time.Hour,
	})

	scores := trustscore.NewService(trustscore.Config{
		Token:  tok,
		Boosts: boosts,
		Clock:  clk,
		Events: sink,
	})

	yieldEngine := yield.NewEngine(yield.Config{
		Owner: testOwner,
		Clock: clk,
	})

	liquidityPool := pool.NewService(pool.Config{
		Token:         tok,
		Vault:         yieldEngine,
		Clock:         clk,
		Events:        sink,
		Custody:       testPoolCustody,
		LendingModule: testLender,
		MinDeposit:    big.NewInt(10),
	})

	bridge := crosschain.NewService(crosschain.Config{
		Token:           tok,
		Trust:           scores,
		Clock:           clk,
		Events:          sink,
		Owner:           testOwner,
		Custody:         testBridgeCustody,
		MinRelayerStake: big.NewInt(1000),
		QuorumThreshold: 2,
		FreshnessWindow: time.Hour,
	})

	server := NewServer(&ServerConfig{
		Host:        "127.0.0.1",
		Port:        "0",
		FreeTierRPS: 1000,
		PaidTierRPS: 10000,
	}, Deps{
		TrustScore: scores,
		Pool:       liquidityPool,
		Yield:      yieldEngine,
		CrossChain: bridge,
		Boosts:     boosts,
		EventLog:   eventLog,
	})

	return &testEnv{server: server, token: tok, clk: clk}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decodeBody(t, w)["status"])
}

func TestRecordPaymentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.token.Mint(testAlice, big.NewInt(1000))

	w := env.do(t, "POST", "/api/payments", map[string]interface{}{
		"from":    testAlice.Hex(),
		"to":      testBob.Hex(),
		"amount":  "100",
		"message": "lunch",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Sender's score reflects the payment
	w = env.do(t, "GET", "/api/users/"+testAlice.Hex()+"/score", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(10), decodeBody(t, w)["score"])
}

func TestRecordPaymentInvalidBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/api/payments", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordPaymentInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/payments", map[string]interface{}{
		"from":   testAlice.Hex(),
		"to":     testBob.Hex(),
		"amount": "100",
	}, nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())

	// Taxonomy kind and machine code surface verbatim
	body := decodeBody(t, w)
	assert.Equal(t, "insufficient_resource", body["kind"])
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "INSUFFICIENT_BALANCE", errBody["code"])
}

func TestVouchEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.token.Mint(testAlice, big.NewInt(1000))

	// Build voucher capacity: 2 payments = 20 points
	for i := 0; i < 2; i++ {
		w := env.do(t, "POST", "/api/payments", map[string]interface{}{
			"from":   testAlice.Hex(),
			"to":     testBob.Hex(),
			"amount": "10",
		}, nil)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(t, "POST", "/api/vouches", map[string]interface{}{
		"voucher": testAlice.Hex(),
		"vouchee": testBob.Hex(),
		"amount":  15,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	vouchID := decodeBody(t, w)["id"].(string)

	w = env.do(t, "GET", "/api/users/"+testBob.Hex()+"/vouches", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Revocation requires the voucher's identity
	w = env.do(t, "DELETE", "/api/vouches/"+vouchID, nil, map[string]string{
		"X-Caller-Address": testBob.Hex(),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "DELETE", "/api/vouches/"+vouchID, nil, map[string]string{
		"X-Caller-Address": testAlice.Hex(),
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPoolEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.token.Mint(testAlice, big.NewInt(10_000))
	require.NoError(t, env.token.Approve(ctx, testAlice, testPoolCustody, big.NewInt(10_000)))

	w := env.do(t, "POST", "/api/pool/deposits", map[string]interface{}{
		"provider": testAlice.Hex(),
		"amount":   "1000",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "1000", decodeBody(t, w)["shares"])

	// Below-minimum deposit rejected with its machine code
	w = env.do(t, "POST", "/api/pool/deposits", map[string]interface{}{
		"provider": testAlice.Hex(),
		"amount":   "5",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decodeBody(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "BELOW_MINIMUM", errBody["code"])

	// Loan funding requires the lending module capability
	w = env.do(t, "POST", "/api/pool/loans", map[string]interface{}{
		"borrower": testBob.Hex(),
		"amount":   "100",
	}, map[string]string{"X-Caller-Address": testAlice.Hex()})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "POST", "/api/pool/loans", map[string]interface{}{
		"borrower": testBob.Hex(),
		"amount":   "100",
	}, map[string]string{"X-Caller-Address": testLender.Hex()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, decodeBody(t, w)["funded"])

	// Oversized loan is a soft failure, not an error
	w = env.do(t, "POST", "/api/pool/loans", map[string]interface{}{
		"borrower": testBob.Hex(),
		"amount":   "100000",
	}, map[string]string{"X-Caller-Address": testLender.Hex()})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["funded"])

	w = env.do(t, "GET", "/api/pool/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/pool/providers/"+testAlice.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1000", decodeBody(t, w)["shares"])
}

func TestStrategyEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ownerHeader := map[string]string{"X-Caller-Address": testOwner.Hex()}

	w := env.do(t, "POST", "/api/strategies", map[string]interface{}{
		"name":          "aave-v3",
		"protocolRef":   "0x0000000000000000000000000000000000000A01",
		"allocationBps": 6000,
		"yieldRateBps":  500,
	}, ownerHeader)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Non-owner is rejected
	w = env.do(t, "POST", "/api/strategies", map[string]interface{}{
		"name":          "curve",
		"protocolRef":   "0x0000000000000000000000000000000000000A02",
		"allocationBps": 2000,
		"yieldRateBps":  800,
	}, map[string]string{"X-Caller-Address": testAlice.Hex()})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "GET", "/api/strategies", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/yield/apy", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(500), decodeBody(t, w)["apyBps"])

	w = env.do(t, "PUT", "/api/strategies/1", map[string]interface{}{
		"allocationBps": 7000,
		"active":        true,
	}, ownerHeader)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, "POST", "/api/yield/harvest", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCrossChainEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	ownerHeader := map[string]string{"X-Caller-Address": testOwner.Hex()}

	w := env.do(t, "POST", "/api/chains", map[string]interface{}{
		"chainId":     7,
		"selector":    700,
		"active":      true,
		"minTransfer": "10",
		"maxTransfer": "1000000",
		"feeBps":      50,
	}, ownerHeader)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	env.token.Mint(testAlice, big.NewInt(10_000))
	require.NoError(t, env.token.Approve(ctx, testAlice, testBridgeCustody, big.NewInt(10_000)))

	w = env.do(t, "POST", "/api/transfers", map[string]interface{}{
		"sender":      testAlice.Hex(),
		"destChainId": 7,
		"recipient":   testBob.Hex(),
		"amount":      "10000",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	transferBody := decodeBody(t, w)
	assert.Equal(t, float64(50), transferBody["fee"])
	messageID := transferBody["messageId"].(string)

	w = env.do(t, "GET", "/api/transfers/"+messageID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "POST", "/api/transfers/"+messageID+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Net amount shows up in the recipient's aggregated balance
	w = env.do(t, "GET", "/api/users/"+testBob.Hex()+"/aggregated-balance", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "9950", decodeBody(t, w)["balance"])

	// Sync without signatures fails quorum
	w = env.do(t, "POST", "/api/sync/scores", map[string]interface{}{
		"user":          testAlice.Hex(),
		"sourceChainId": 7,
		"score":         500,
		"timestamp":     env.clk.Now().Unix(),
		"signatures":    []string{},
	}, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "consistency", decodeBody(t, w)["kind"])
}

func TestBoostEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/boosts/proofs", map[string]interface{}{
		"user":   testAlice.Hex(),
		"metric": "credit_score",
		"value":  40,
		"proof":  "0xdeadbeef",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, decodeBody(t, w)["accepted"])

	w = env.do(t, "GET", "/api/users/"+testAlice.Hex()+"/boost", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(40), decodeBody(t, w)["boost"])

	// Replayed commitment is rejected
	w = env.do(t, "POST", "/api/boosts/proofs", map[string]interface{}{
		"user":   testAlice.Hex(),
		"metric": "credit_score",
		"value":  40,
		"proof":  "0xdeadbeef",
	}, nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestEventsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.token.Mint(testAlice, big.NewInt(1000))

	w := env.do(t, "POST", "/api/payments", map[string]interface{}{
		"from":   testAlice.Hex(),
		"to":     testBob.Hex(),
		"amount": "100",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, "GET", "/api/events?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	eventsList := decodeBody(t, w)["events"].([]interface{})
	require.NotEmpty(t, eventsList)
	first := eventsList[0].(map[string]interface{})
	assert.Equal(t, "PaymentSent", first["type"])
}

func TestRateLimiting(t *testing.T) {
	env := newTestEnv(t)
	// Rebuild with a tiny free-tier budget
	env.server = NewServer(&ServerConfig{
		Host:        "127.0.0.1",
		Port:        "0",
		FreeTierRPS: 1,
		PaidTierRPS: 1000,
	}, Deps{
		TrustScore: env.server.trustScore,
		Pool:       env.server.pool,
		Yield:      env.server.yield,
		CrossChain: env.server.crossChain,
		Boosts:     env.server.boosts,
	})

	limited := false
	for i := 0; i < 20; i++ {
		w := env.do(t, "GET", "/health", nil, map[string]string{
			"X-Caller-Address": testAlice.Hex(),
		})
		if w.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "expected the free tier to hit its rate limit")
}

func TestUnknownFieldRejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/payments", map[string]interface{}{
		"from":       testAlice.Hex(),
		"to":         testBob.Hex(),
		"amount":     "100",
		"unexpected": "field",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, fmt.Sprintf("body: %s", w.Body.String()))
}
