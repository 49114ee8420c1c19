package models

import "time"

// ThrottleState представляет снэпшот последнего пропущенного сигнала
// для ключа (symbol, strategy, side)
//
// Владелец - Throttle Gate. Мутируется только после того как сигнал
// пропущен. BUY и SELL троттлятся независимо отдельными записями.
// Записи никогда не удаляются (сохраняются для аудита).
type ThrottleState struct {
	ID              int64     `json:"id" db:"id"`
	Symbol          string    `json:"symbol" db:"symbol"`
	Strategy        string    `json:"strategy" db:"strategy"`
	Side            string    `json:"side" db:"side"` // BUY, SELL
	LastPrice       float64   `json:"last_price" db:"last_price"`
	LastTime        time.Time `json:"last_time" db:"last_time"`
	ForceNextSignal bool      `json:"force_next_signal" db:"force_next_signal"` // одноразовый обход гейтов
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
