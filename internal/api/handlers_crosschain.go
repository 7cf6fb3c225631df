package api

import (
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"

	"github.com/trust-ledger/internal/models"
)

// handleConfigureChain handles POST /api/chains
func (s *Server) handleConfigureChain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChainID     uint64 `json:"chainId"`
		Selector    uint64 `json:"selector"`
		Active      bool   `json:"active"`
		MinTransfer string `json:"minTransfer"`
		MaxTransfer string `json:"maxTransfer"`
		FeeBps      uint64 `json:"feeBps"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	caller, err := callerAddress(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	minTransfer, err := parseBigInt(req.MinTransfer, "minTransfer")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	maxTransfer, err := parseBigInt(req.MaxTransfer, "maxTransfer")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	cfg := models.ChainConfig{
		ChainID:     req.ChainID,
		Selector:    req.Selector,
		Active:      req.Active,
		MinTransfer: minTransfer,
		MaxTransfer: maxTransfer,
		FeeBps:      req.FeeBps,
	}

	if err := s.crossChain.ConfigureChain(r.Context(), caller, cfg); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, cfg)
}

// handleAuthorizeRelayer handles POST /api/relayers
func (s *Server) handleAuthorizeRelayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Relayer    string `json:"relayer"`
		Authorized bool   `json:"authorized"`
		Stake      string `json:"stake,omitempty"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	caller, err := callerAddress(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	relayer, err := parseAddress(req.Relayer, "relayer")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	var stake *big.Int
	if req.Stake != "" {
		stake, err = parseBigInt(req.Stake, "stake")
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
			return
		}
	}

	if err := s.crossChain.AuthorizeRelayer(r.Context(), caller, relayer, req.Authorized, stake); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"relayer":    relayer.Hex(),
		"authorized": req.Authorized,
	})
}

// handleInitiateTransfer handles POST /api/transfers
func (s *Server) handleInitiateTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sender      string `json:"sender"`
		DestChainID uint64 `json:"destChainId"`
		Recipient   string `json:"recipient"`
		Amount      string `json:"amount"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	sender, err := parseAddress(req.Sender, "sender")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	recipient, err := parseAddress(req.Recipient, "recipient")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	amount, err := parseBigInt(req.Amount, "amount")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	transfer, err := s.crossChain.InitiateCrossChainTransfer(r.Context(), sender, req.DestChainID, recipient, amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, transfer)
}

// handleGetTransfer handles GET /api/transfers/{id}
func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	transfer, err := s.crossChain.GetTransfer(mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, transfer)
}

// handleCompleteTransfer handles POST /api/transfers/{id}/complete
func (s *Server) handleCompleteTransfer(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["id"]
	if err := s.crossChain.CompleteTransfer(r.Context(), messageID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"messageId": messageID,
		"settled":   true,
	})
}

// handleSyncTrustScore handles POST /api/sync/scores. Signatures are
// 0x-prefixed hex over the canonical attestation digest.
func (s *Server) handleSyncTrustScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User          string   `json:"user"`
		SourceChainID uint64   `json:"sourceChainId"`
		Score         uint64   `json:"score"`
		Timestamp     int64    `json:"timestamp"`
		Signatures    []string `json:"signatures"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	user, err := parseAddress(req.User, "user")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	signatures := make([][]byte, 0, len(req.Signatures))
	for _, sigHex := range req.Signatures {
		sig, err := hexutil.Decode(sigHex)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Signatures must be 0x-prefixed hex", nil)
			return
		}
		signatures = append(signatures, sig)
	}

	timestamp := time.Unix(req.Timestamp, 0).UTC()
	if err := s.crossChain.SyncTrustScore(r.Context(), user, req.SourceChainID, req.Score, timestamp, signatures); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":          user.Hex(),
		"sourceChainId": req.SourceChainID,
		"score":         req.Score,
		"synced":        true,
	})
}

// handleGetAggregatedScore handles GET /api/users/{address}/aggregated-score
func (s *Server) handleGetAggregatedScore(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(mux.Vars(r)["address"], "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	score, err := s.crossChain.GetAggregatedTrustScore(r.Context(), user)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address": user.Hex(),
		"score":   score,
	})
}

// handleGetAggregatedBalance handles GET /api/users/{address}/aggregated-balance
func (s *Server) handleGetAggregatedBalance(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(mux.Vars(r)["address"], "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	balance, err := s.crossChain.GetAggregatedBalance(r.Context(), user)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address": user.Hex(),
		"balance": balance.String(),
	})
}
