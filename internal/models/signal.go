package models

import "time"

// Signal представляет торговый сигнал от внешнего индикаторного движка
//
// Сигнал неизменяем и потребляется один раз за тик оценки.
// Расчёт индикаторов (RSI/MA/EMA/volume) - вне этого сервиса,
// сюда приходит только готовое решение + набор причин.
type Signal struct {
	ID       *int64    `json:"id,omitempty"` // идентификатор сигнала (если движок его присвоил)
	Symbol   string    `json:"symbol"`
	Side     string    `json:"side"`     // BUY, SELL
	Price    float64   `json:"price"`
	Strategy string    `json:"strategy"` // ключ стратегии, породившей сигнал
	Decision string    `json:"decision"` // BUY, SELL, WAIT
	Reasons  []string  `json:"reasons"`  // причины решения индикаторного движка
	Time     time.Time `json:"time"`
}

// Стороны сигнала/ордера
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Решения индикаторного движка
const (
	DecisionBuy  = "BUY"
	DecisionSell = "SELL"
	DecisionWait = "WAIT"
)

// Actionable возвращает true если сигнал требует действия (не WAIT)
func (s *Signal) Actionable() bool {
	return s.Decision == DecisionBuy || s.Decision == DecisionSell
}
