package handlers

import (
	"net/http"

	"tradegate/internal/models"
)

// NotificationStore - нужные handler'у операции журнала алёртов
type NotificationStore interface {
	GetRecent(limit int) ([]*models.Notification, error)
}

// NotificationHandler отдаёт журнал алёртов
type NotificationHandler struct {
	store NotificationStore
}

// NewNotificationHandler создаёт handler алёртов
func NewNotificationHandler(store NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// GetNotifications возвращает последние алёрты
// GET /api/v1/notifications?limit=100
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 100, 500)

	notifs, err := h.store.GetRecent(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: notifs})
}
