package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// handleAddStrategy handles POST /api/strategies
func (s *Server) handleAddStrategy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		ProtocolRef   string `json:"protocolRef"`
		AllocationBps uint64 `json:"allocationBps"`
		YieldRateBps  uint64 `json:"yieldRateBps"`
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
	protocolRef, err := parseAddress(req.ProtocolRef, "protocolRef")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	strategy, err := s.yield.AddStrategy(r.Context(), caller, req.Name, protocolRef, req.AllocationBps, req.YieldRateBps)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, strategy)
}

// handleGetStrategies handles GET /api/strategies
func (s *Server) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": s.yield.GetStrategies(),
	})
}

// handleUpdateStrategy handles PUT /api/strategies/{id}
func (s *Server) handleUpdateStrategy(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Strategy ID must be an integer", nil)
		return
	}

	var req struct {
		AllocationBps uint64 `json:"allocationBps"`
		Active        bool   `json:"active"`
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

	if err := s.yield.UpdateStrategy(r.Context(), caller, id, req.AllocationBps, req.Active); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":            id,
		"allocationBps": req.AllocationBps,
		"active":        req.Active,
	})
}

// handleHarvestYield handles POST /api/yield/harvest
func (s *Server) handleHarvestYield(w http.ResponseWriter, r *http.Request) {
	accrued, err := s.yield.HarvestYield(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accrued": accrued.String(),
	})
}

// handleRebalance handles POST /api/yield/rebalance
func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	if err := s.yield.Rebalance(r.Context(), caller); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rebalanced": true,
	})
}

// handleEmergencyWithdraw handles POST /api/yield/emergency-withdraw
func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	withdrawn, err := s.yield.EmergencyWithdraw(r.Context(), caller)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"withdrawn": withdrawn.String(),
	})
}

// handleGetCurrentAPY handles GET /api/yield/apy
func (s *Server) handleGetCurrentAPY(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"apyBps": s.yield.GetCurrentAPY(),
	})
}
