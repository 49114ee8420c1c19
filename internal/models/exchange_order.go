package models

import "time"

// ExchangeOrder представляет локальное зеркало ордера на бирже
//
// Источник истины - биржа; зеркало обновляется периодической сверкой
// и событиями user stream. Защитные ордера (SL/TP) ссылаются на
// породивший их входной ордер через parent_order_id и связаны между
// собой общим oco_group_id.
type ExchangeOrder struct {
	ID              int64      `json:"id" db:"id"`
	ExchangeOrderID string     `json:"exchange_order_id" db:"exchange_order_id"`
	ClientOrderID   string     `json:"client_order_id" db:"client_order_id"`
	ParentOrderID   *string    `json:"parent_order_id,omitempty" db:"parent_order_id"`
	OCOGroupID      *string    `json:"oco_group_id,omitempty" db:"oco_group_id"`
	Symbol          string     `json:"symbol" db:"symbol"`
	Side            string     `json:"side" db:"side"` // BUY, SELL
	Role            string     `json:"role" db:"role"` // NONE, STOP_LOSS, TAKE_PROFIT
	Quantity        float64    `json:"quantity" db:"quantity"`
	Price           float64    `json:"price" db:"price"` // цена исполнения или триггер-цена
	Status          string     `json:"status" db:"status"`
	ProtectionState string     `json:"protection_state" db:"protection_state"` // только для входных ордеров
	FilledAt        *time.Time `json:"filled_at,omitempty" db:"filled_at"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Роли ордера
const (
	RoleNone       = "NONE"        // входной ордер
	RoleStopLoss   = "STOP_LOSS"   // защитный стоп-лосс
	RoleTakeProfit = "TAKE_PROFIT" // защитный тейк-профит
)

// Статусы ордера на бирже
const (
	OrderStatusNew             = "NEW"
	OrderStatusActive          = "ACTIVE"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCancelled       = "CANCELLED"
)

// Состояния защиты входного ордера (OCO state machine)
const (
	ProtectionNone     = "NONE"               // защитные ордера не требуются/не создавались
	ProtectionPending  = "PENDING_PROTECTION" // fill замечен, защита ещё не выставлена
	ProtectionActive   = "PROTECTED"          // SL и TP активны в одной OCO-группе
	ProtectionResolved = "RESOLVED"           // один защитный исполнен, второй отменён
)

// Open возвращает true если ордер ещё жив на бирже
func OrderOpen(status string) bool {
	return status == OrderStatusNew || status == OrderStatusActive || status == OrderStatusPartiallyFilled
}
