package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleRecordPayment handles POST /api/payments
func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Amount  string `json:"amount"`
		Message string `json:"message,omitempty"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	from, err := parseAddress(req.From, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	to, err := parseAddress(req.To, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	amount, err := parseBigInt(req.Amount, "amount")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	payment, err := s.trustScore.RecordPayment(r.Context(), from, to, amount, req.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, payment)
}

// handleVouch handles POST /api/vouches
func (s *Server) handleVouch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Voucher string `json:"voucher"`
		Vouchee string `json:"vouchee"`
		Amount  uint64 `json:"amount"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	voucher, err := parseAddress(req.Voucher, "voucher")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	vouchee, err := parseAddress(req.Vouchee, "vouchee")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	vouch, err := s.trustScore.VouchForUser(r.Context(), voucher, vouchee, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, vouch)
}

// handleRevokeVouch handles DELETE /api/vouches/{id}
func (s *Server) handleRevokeVouch(w http.ResponseWriter, r *http.Request) {
	vouchID := mux.Vars(r)["id"]
	if vouchID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Vouch ID required", nil)
		return
	}

	caller, err := callerAddress(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	if err := s.trustScore.RevokeVouch(r.Context(), caller, vouchID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":      vouchID,
		"revoked": true,
	})
}

// handleGetTrustScore handles GET /api/users/{address}/score.
// Reads go through the score cache when one is configured.
func (s *Server) handleGetTrustScore(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(mux.Vars(r)["address"], "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	if s.scoreCache != nil {
		if score, found, err := s.scoreCache.GetScore(r.Context(), user); err == nil && found {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"address": user.Hex(),
				"score":   score,
				"cached":  true,
			})
			return
		}
	}

	score, err := s.trustScore.GetUserTrustScore(r.Context(), user)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if s.scoreCache != nil {
		if err := s.scoreCache.SetScore(r.Context(), user, score); err != nil {
			s.logger.WithError(err).Warn("Failed to cache trust score")
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address": user.Hex(),
		"score":   score,
		"cached":  false,
	})
}

// handleGetPaymentHistory handles GET /api/users/{address}/payments
func (s *Server) handleGetPaymentHistory(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(mux.Vars(r)["address"], "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	limit := parseQueryInt(r, "limit", 100)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address":  user.Hex(),
		"payments": s.trustScore.GetPaymentHistory(user, limit),
	})
}

// handleGetVouchesReceived handles GET /api/users/{address}/vouches
func (s *Server) handleGetVouchesReceived(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(mux.Vars(r)["address"], "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address": user.Hex(),
		"vouches": s.trustScore.GetVouchesReceived(user),
	})
}
