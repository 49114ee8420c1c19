package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradegate/internal/exchange"
	"tradegate/pkg/breaker"
	"tradegate/pkg/retry"
)

// ============================================================
// Исполнитель внешних вызовов: retry + circuit breaker
// ============================================================

// Executor оборачивает каждый исходящий вызов биржи
//
// Один экземпляр на зависимость: breaker и история повторов общие
// для всех вызовов, иначе состояние отказов не накапливается.
// Порядок строгий: сначала IsOpen, потом попытки с повтором; ни
// один вызывающий не обходит проверку breaker'а.
type Executor struct {
	breaker  *breaker.Breaker
	retryCfg retry.Config
	logger   *zap.Logger
	metrics  *Metrics
}

// NewExecutor создаёт исполнителя для зависимости
func NewExecutor(br *breaker.Breaker, retryCfg retry.Config, logger *zap.Logger, metrics *Metrics) *Executor {
	retryCfg.RetryIf = exchange.IsRetryableError
	return &Executor{breaker: br, retryCfg: retryCfg, logger: logger, metrics: metrics}
}

// Do выполняет операцию под защитой breaker'а и с повторами
//
// Открытый breaker отклоняет вызов сразу, зависимость не трогается.
// Исход каждой серии попыток записывается в breaker: успех очищает
// историю отказов, неудача добавляет отметку в скользящее окно.
func (x *Executor) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if x.breaker.IsOpen() {
		x.logger.Warn("call rejected, circuit breaker open",
			zap.String("dependency", x.breaker.Name()),
			zap.String("operation", operation))
		x.observe("circuit_open", 0)
		return breaker.ErrOpen
	}

	start := time.Now()
	err := retry.Do(ctx, func() error { return fn(ctx) }, x.retryCfg)
	elapsed := time.Since(start)

	if err != nil {
		x.breaker.RecordFailure()
		x.observe("failure", elapsed)
		return err
	}

	x.breaker.RecordSuccess()
	x.observe("success", elapsed)
	return nil
}

// DoWithOrder - вариант Do для операций, возвращающих ордер
func (x *Executor) DoWithOrder(ctx context.Context, operation string, fn func(ctx context.Context) (*exchange.Order, error)) (*exchange.Order, error) {
	var order *exchange.Order
	err := x.Do(ctx, operation, func(ctx context.Context) error {
		var callErr error
		order, callErr = fn(ctx)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (x *Executor) observe(outcome string, elapsed time.Duration) {
	if x.metrics == nil {
		return
	}
	x.metrics.ExchangeCalls.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		x.metrics.ExchangeLatency.Observe(elapsed.Seconds())
	}
	open := 0.0
	if x.breaker.IsOpen() {
		open = 1.0
	}
	x.metrics.BreakerOpen.WithLabelValues(x.breaker.Name()).Set(open)
}
