package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tradegate/internal/models"
	"tradegate/internal/repository"
)

// IntentStore - нужные handler'у операции над интентами
type IntentStore interface {
	GetByID(id int64) (*models.OrderIntent, error)
	GetRecent(limit int) ([]*models.OrderIntent, error)
	CountByStatus(status string) (int, error)
}

// IntentHandler отдаёт журнал интентов операторскому фронтенду
//
// Интенты read-only через API: создаёт и мутирует их только
// пайплайн, ручное вмешательство в журнал идемпотентности
// сломало бы дедупликацию.
type IntentHandler struct {
	store IntentStore
}

// NewIntentHandler создаёт handler интентов
func NewIntentHandler(store IntentStore) *IntentHandler {
	return &IntentHandler{store: store}
}

// GetIntents возвращает последние интенты
// GET /api/v1/intents?limit=50
func (h *IntentHandler) GetIntents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 500)

	intents, err := h.store.GetRecent(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load intents")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: intents})
}

// GetIntent возвращает один интент
// GET /api/v1/intents/{id}
func (h *IntentHandler) GetIntent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid intent id")
		return
	}

	intent, err := h.store.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrIntentNotFound) {
			respondError(w, http.StatusNotFound, "intent not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load intent")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: intent})
}

// GetIntentStats возвращает счётчики интентов по статусам
// GET /api/v1/intents/stats
func (h *IntentHandler) GetIntentStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]int)
	for _, status := range []string{
		models.IntentStatusPending,
		models.IntentStatusBlocked,
		models.IntentStatusPlaced,
		models.IntentStatusFailed,
	} {
		count, err := h.store.CountByStatus(status)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to count intents")
			return
		}
		stats[status] = count
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: stats})
}
