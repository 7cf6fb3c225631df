package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleAddLiquidity handles POST /api/pool/deposits
func (s *Server) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		Amount   string `json:"amount"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	provider, err := parseAddress(req.Provider, "provider")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	amount, err := parseBigInt(req.Amount, "amount")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	shares, err := s.pool.AddLiquidity(r.Context(), provider, amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"provider": provider.Hex(),
		"amount":   amount.String(),
		"shares":   shares.String(),
	})
}

// handleRemoveLiquidity handles POST /api/pool/withdrawals
func (s *Server) handleRemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		Shares   string `json:"shares"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	provider, err := parseAddress(req.Provider, "provider")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	shares, err := parseBigInt(req.Shares, "shares")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	payout, err := s.pool.RemoveLiquidity(r.Context(), provider, shares)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"provider": provider.Hex(),
		"shares":   shares.String(),
		"payout":   payout.String(),
	})
}

// handleFundLoan handles POST /api/pool/loans. The caller must hold the
// lending module capability; insufficient liquidity is a soft failure
// reported as funded=false.
func (s *Server) handleFundLoan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Borrower string `json:"borrower"`
		Amount   string `json:"amount"`
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
	borrower, err := parseAddress(req.Borrower, "borrower")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	amount, err := parseBigInt(req.Amount, "amount")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	funded, err := s.pool.FundLoan(r.Context(), caller, borrower, amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if !funded {
		status = http.StatusOK
	}
	respondJSON(w, status, map[string]interface{}{
		"borrower": borrower.Hex(),
		"amount":   amount.String(),
		"funded":   funded,
	})
}

// handleProcessRepayment handles POST /api/pool/repayments
func (s *Server) handleProcessRepayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Borrower  string `json:"borrower"`
		Principal string `json:"principal"`
		Interest  string `json:"interest"`
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
	borrower, err := parseAddress(req.Borrower, "borrower")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	principal, err := parseBigInt(req.Principal, "principal")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	interest, err := parseBigInt(req.Interest, "interest")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	if err := s.pool.ProcessRepayment(r.Context(), caller, borrower, principal, interest); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"borrower":  borrower.Hex(),
		"principal": principal.String(),
		"interest":  interest.String(),
	})
}

// handleRecordDefault handles POST /api/pool/defaults
func (s *Server) handleRecordDefault(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Borrower  string `json:"borrower"`
		Principal string `json:"principal"`
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
	borrower, err := parseAddress(req.Borrower, "borrower")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	principal, err := parseBigInt(req.Principal, "principal")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	if err := s.pool.RecordDefault(r.Context(), caller, borrower, principal); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"borrower":  borrower.Hex(),
		"principal": principal.String(),
		"defaulted": true,
	})
}

// handleClaimYield handles POST /api/pool/yield/claims
func (s *Server) handleClaimYield(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	claimed, err := s.pool.ClaimYield(r.Context(), caller)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"provider": caller.Hex(),
		"claimed":  claimed.String(),
	})
}

// handleGetPoolStats handles GET /api/pool/stats
func (s *Server) handleGetPoolStats(w http.ResponseWriter, r *http.Request) {
	stats := s.pool.GetPoolStats()
	utilization := s.pool.GetUtilizationRatio()
	if s.metrics != nil {
		s.metrics.SetPoolUtilization(utilization)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":          stats,
		"utilizationBps": utilization,
	})
}

// handleGetProviderPosition handles GET /api/pool/providers/{address}
func (s *Server) handleGetProviderPosition(w http.ResponseWriter, r *http.Request) {
	provider, err := parseAddress(mux.Vars(r)["address"], "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"provider":       provider.Hex(),
		"shares":         s.pool.ShareBalance(provider).String(),
		"claimableYield": s.pool.GetClaimableYield(provider).String(),
	})
}
