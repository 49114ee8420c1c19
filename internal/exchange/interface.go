// Package exchange предоставляет подписанный клиент внешней биржи.
package exchange

import (
	"context"
	"fmt"
	"time"
)

// Client определяет операции биржи, нужные пайплайну
//
// Все вызовы оборачиваются снаружи в Retry Executor + Circuit Breaker;
// сам клиент повторов не делает.
type Client interface {
	// PlaceMarketOrder размещает рыночный входной ордер
	PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*Order, error)

	// PlaceStopLoss размещает защитный стоп-лосс
	PlaceStopLoss(ctx context.Context, symbol, side string, qty, stopPrice float64) (*Order, error)

	// PlaceTakeProfit размещает защитный тейк-профит
	PlaceTakeProfit(ctx context.Context, symbol, side string, qty, limitPrice float64) (*Order, error)

	// CancelOrder отменяет ордер
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// GetOrder возвращает текущее состояние ордера (для сверки)
	GetOrder(ctx context.Context, symbol, orderID string) (*Order, error)

	// GetBalance возвращает баланс аккаунта в котируемой валюте
	GetBalance(ctx context.Context) (float64, error)

	// Close закрывает соединения
	Close() error
}

// Order представляет ордер в терминах биржи
type Order struct {
	ID            string    `json:"id"`
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`   // BUY, SELL
	Type          string    `json:"type"`   // MARKET, STOP_LOSS, TAKE_PROFIT
	Status        string    `json:"status"` // NEW, ACTIVE, PARTIALLY_FILLED, FILLED, CANCELLED
	Quantity      float64   `json:"quantity"`
	FilledQty     float64   `json:"filled_qty"`
	AvgFillPrice  float64   `json:"avg_fill_price"`
	StopPrice     float64   `json:"stop_price,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ExchangeError - структурированная ошибка биржи
//
// Code - числовой код из тела ответа (0 = успех), HTTPStatus - статус
// ответа. Message сохраняется для диагностики, но классификация
// решений делается ТОЛЬКО по кодам (см. classifier.go).
type ExchangeError struct {
	Code       int
	HTTPStatus int
	Message    string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange error %d (http %d): %s", e.Code, e.HTTPStatus, e.Message)
}

// Retryable сообщает Retry Executor'у можно ли повторять вызов
func (e *ExchangeError) Retryable() bool {
	return classifyExchangeError(e).retryable
}

// Fill - событие исполнения с user stream биржи
type Fill struct {
	OrderID   string
	Symbol    string
	Side      string
	Status    string // FILLED, PARTIALLY_FILLED, CANCELLED
	Qty       float64
	Price     float64
	Timestamp time.Time
}
