package models

import "time"

// Notification представляет уведомление пайплайна (алерт)
//
// Отправляется fire-and-forget: РОВНО ОДИН РАЗ на каждое пропущенное
// троттлингом решение, независимо от исхода последующей попытки ордера.
type Notification struct {
	ID        int64                  `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`
	Severity  string                 `json:"severity" db:"severity"`
	Symbol    string                 `json:"symbol" db:"symbol"`
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"-"`
}

// Типы уведомлений
const (
	NotificationTypeSignal = "signal" // сигнал прошёл троттлинг
	NotificationTypeOrder  = "order"  // исход попытки ордера
	NotificationTypeRisk   = "risk"   // блокировка гардрейлом
	NotificationTypeOCO    = "oco"    // события жизненного цикла защитных ордеров
	NotificationTypeError  = "error"  // ошибки пайплайна
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
