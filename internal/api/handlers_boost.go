package api

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
)

// handleSubmitReputationProof handles POST /api/boosts/proofs
func (s *Server) handleSubmitReputationProof(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User   string `json:"user"`
		Metric string `json:"metric"`
		Value  uint64 `json:"value"`
		Proof  string `json:"proof"`
		AuxRef string `json:"auxRef,omitempty"`
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
	proof, err := hexutil.Decode(req.Proof)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Proof must be 0x-prefixed hex", nil)
		return
	}

	accepted, err := s.boosts.SubmitReputationProof(r.Context(), user, req.Metric, req.Value, proof, common.HexToHash(req.AuxRef))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"user":     user.Hex(),
		"metric":   req.Metric,
		"accepted": accepted,
	})
}

// handleSubmitDataProviderVerification handles POST /api/boosts/verifications
func (s *Server) handleSubmitDataProviderVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User      string `json:"user"`
		Metric    string `json:"metric"`
		Value     uint64 `json:"value"`
		Signature string `json:"signature"`
		Timestamp int64  `json:"timestamp"`
		AuxRef    string `json:"auxRef,omitempty"`
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
	signature, err := hexutil.Decode(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Signature must be 0x-prefixed hex", nil)
		return
	}

	timestamp := time.Unix(req.Timestamp, 0).UTC()
	accepted, err := s.boosts.SubmitDataProviderVerification(r.Context(), user, req.Metric, req.Value, signature, timestamp, common.HexToHash(req.AuxRef))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"user":     user.Hex(),
		"metric":   req.Metric,
		"accepted": accepted,
	})
}

// handleGetCreditBoost handles GET /api/users/{address}/boost
func (s *Server) handleGetCreditBoost(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(mux.Vars(r)["address"], "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	boost, err := s.boosts.GetUserCreditBoost(r.Context(), user)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address": user.Hex(),
		"boost":   boost,
	})
}
