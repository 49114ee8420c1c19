package websocket

import (
	"time"

	"tradegate/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeNotification - алёрт пайплайна (сигнал, ордер,
	// блокировка лимитами, события OCO, ошибки)
	MessageTypeNotification MessageType = "notification"

	// MessageTypeIntentUpdate - изменение статуса интента
	MessageTypeIntentUpdate MessageType = "intentUpdate"

	// MessageTypeBreakerUpdate - изменение состояния circuit breaker'а
	MessageTypeBreakerUpdate MessageType = "breakerUpdate"
)

// BaseMessage - общие поля всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// NotificationMessage - сообщение с алёртом пайплайна
type NotificationMessage struct {
	BaseMessage
	Data *NotificationData `json:"data"`
}

// NotificationData - данные алёрта
type NotificationData struct {
	ID        int64                  `json:"id"`
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	Symbol    string                 `json:"symbol"`
	Message   string                 `json:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// IntentUpdateMessage - сообщение об изменении статуса интента
type IntentUpdateMessage struct {
	BaseMessage
	IntentID int64   `json:"intent_id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Status   string  `json:"status"`
	Reason   string  `json:"reason,omitempty"`
	OrderID  *string `json:"order_id,omitempty"`
}

// BreakerUpdateMessage - сообщение о состоянии breaker'а
type BreakerUpdateMessage struct {
	BaseMessage
	Dependency   string `json:"dependency"`
	Open         bool   `json:"open"`
	FailureCount int    `json:"failure_count"`
}

// NewNotificationMessage создаёт сообщение алёрта
func NewNotificationMessage(notif *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		Data: &NotificationData{
			ID:        notif.ID,
			Type:      notif.Type,
			Severity:  notif.Severity,
			Symbol:    notif.Symbol,
			Message:   notif.Message,
			Meta:      notif.Meta,
			Timestamp: notif.Timestamp,
		},
	}
}

// NewIntentUpdateMessage создаёт сообщение об изменении интента
func NewIntentUpdateMessage(intent *models.OrderIntent) *IntentUpdateMessage {
	return &IntentUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeIntentUpdate,
			Timestamp: time.Now(),
		},
		IntentID: intent.ID,
		Symbol:   intent.Symbol,
		Side:     intent.Side,
		Status:   intent.Status,
		Reason:   intent.Reason,
		OrderID:  intent.OrderID,
	}
}

// NewBreakerUpdateMessage создаёт сообщение о состоянии breaker'а
func NewBreakerUpdateMessage(dependency string, open bool, failures int) *BreakerUpdateMessage {
	return &BreakerUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeBreakerUpdate,
			Timestamp: time.Now(),
		},
		Dependency:   dependency,
		Open:         open,
		FailureCount: failures,
	}
}
