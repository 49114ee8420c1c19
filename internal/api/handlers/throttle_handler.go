package handlers

import (
	"encoding/json"
	"net/http"

	"tradegate/pkg/utils"
)

// ThrottleForcer - операция одноразового обхода троттлинга
type ThrottleForcer interface {
	Force(symbol, strategy, side string) error
}

// ThrottleHandler управляет троттлингом через операторский API
type ThrottleHandler struct {
	gate ThrottleForcer
}

// NewThrottleHandler создаёт handler троттлинга
func NewThrottleHandler(gate ThrottleForcer) *ThrottleHandler {
	return &ThrottleHandler{gate: gate}
}

type forceRequest struct {
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`
	Side     string `json:"side"`
}

// ForceNext выставляет одноразовый обход гейтов для ключа
// POST /api/v1/throttle/force
//
// Используется после изменения операторской конфигурации, когда
// накопленная история троттлинга больше не актуальна.
func (h *ThrottleHandler) ForceNext(w http.ResponseWriter, r *http.Request) {
	var req forceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Symbol = utils.NormalizeSymbol(req.Symbol)
	if err := utils.ValidateSymbol(req.Symbol); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := utils.ValidateSide(req.Side); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Strategy == "" {
		respondError(w, http.StatusBadRequest, "strategy is required")
		return
	}

	if err := h.gate.Force(req.Symbol, req.Strategy, req.Side); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to set force flag")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Message: "next signal will bypass throttle"})
}
