package handlers

import (
	"encoding/json"
	"net/http"

	"tradegate/internal/repository"
)

// SettingsStore - нужные handler'у операции над настройками
type SettingsStore interface {
	Get() (*repository.Settings, error)
	SetTradingEnabled(enabled bool) error
}

// SettingsHandler управляет kill switch'ем live-трейдинга
//
// Выключенный трейдинг не останавливает пайплайн: сигналы и алёрты
// идут как обычно, подавляются только попытки ордеров.
type SettingsHandler struct {
	store SettingsStore
}

// NewSettingsHandler создаёт handler настроек
func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// GetSettings возвращает текущие настройки
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Get()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: settings})
}

type updateSettingsRequest struct {
	TradingEnabled *bool `json:"trading_enabled"`
}

// UpdateSettings переключает kill switch
// PATCH /api/v1/settings
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TradingEnabled == nil {
		respondError(w, http.StatusBadRequest, "trading_enabled is required")
		return
	}

	if err := h.store.SetTradingEnabled(*req.TradingEnabled); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Message: "settings updated"})
}
