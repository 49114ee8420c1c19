package models

import "time"

// OrderIntent представляет намерение отправить ордер по логическому сигналу
//
// Создаётся РОВНО ОДИН РАЗ на idempotency_key атомарной вставкой,
// опирающейся на уникальный констрейнт БД. Нарушение констрейнта -
// это успешная дедупликация, а не ошибка. Записи никогда не удаляются.
type OrderIntent struct {
	ID             int64      `json:"id" db:"id"`
	IdempotencyKey string     `json:"idempotency_key" db:"idempotency_key"`
	SignalID       *int64     `json:"signal_id,omitempty" db:"signal_id"`
	Symbol         string     `json:"symbol" db:"symbol"`
	Side           string     `json:"side" db:"side"` // BUY, SELL
	Strategy       string     `json:"strategy" db:"strategy"`
	Price          float64    `json:"price" db:"price"`
	Status         string     `json:"status" db:"status"`
	Reason         string     `json:"reason" db:"reason"` // код из таксономии причин
	OrderID        *string    `json:"order_id,omitempty" db:"order_id"`
	ErrorMessage   string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// Статусы OrderIntent
const (
	IntentStatusPending = "PENDING"                    // claim выигран, попытка ордера впереди
	IntentStatusBlocked = "ORDER_BLOCKED_LIVE_TRADING" // kill switch: алерт отправлен, ордер подавлен
	IntentStatusPlaced  = "ORDER_PLACED"               // ордер размещён на бирже
	IntentStatusFailed  = "ORDER_FAILED"               // все попытки исчерпаны
)

// Terminal возвращает true если статус терминальный
func (i *OrderIntent) Terminal() bool {
	return i.Status == IntentStatusPlaced || i.Status == IntentStatusFailed || i.Status == IntentStatusBlocked
}
