package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config конфигурация для retry логики
//
// Экспоненциальный backoff с full jitter:
// delay = min(MaxDelay, BaseDelay*2^attempt + uniform(0, Jitter*BaseDelay*2^attempt))
//
// Jitter добавляет случайность чтобы избежать "thundering herd"
// когда несколько оценок retry'ят биржу одновременно
type Config struct {
	// MaxAttempts - максимальное количество попыток (включая первую)
	// 0 или отрицательное = одна попытка
	MaxAttempts int

	// BaseDelay - базовая задержка между попытками
	// По умолчанию: 100ms
	BaseDelay time.Duration

	// MaxDelay - максимальная задержка между попытками
	// По умолчанию: 30s
	MaxDelay time.Duration

	// Jitter - фактор случайности (0.0 - 1.0) от экспоненциальной задержки
	// По умолчанию: 0.1
	Jitter float64

	// RetryIf - классификатор: нужно ли retry'ить эту ошибку
	// По умолчанию: retry все ошибки
	RetryIf func(error) bool

	// OnRetry - callback перед каждым retry (для логирования и метрик)
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig возвращает конфигурацию по умолчанию
//
// Подходит для большинства запросов к бирже:
// - 4 попытки
// - Задержки: 100ms, 200ms, 400ms (+ jitter)
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 4,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Jitter:      0.1,
	}
}

// AggressiveConfig для критичных операций (отмена защитных ордеров)
//
// Больше попыток, быстрее retry
func AggressiveConfig() Config {
	return Config{
		MaxAttempts: 6,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      0.1,
	}
}

// validate проверяет и устанавливает значения по умолчанию
func (c *Config) validate() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.Jitter > 1 {
		c.Jitter = 1
	}
}

// calculateDelay вычисляет задержку перед попыткой attempt+1
//
// exp = BaseDelay * 2^attempt
// delay = min(MaxDelay, exp + uniform(0, Jitter*exp))
func (c *Config) calculateDelay(attempt int) time.Duration {
	exp := float64(c.BaseDelay) * math.Pow(2, float64(attempt))

	delay := exp
	if c.Jitter > 0 {
		delay += rand.Float64() * c.Jitter * exp
	}

	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	return time.Duration(delay)
}

// Do выполняет операцию с повторными попытками
//
// Контекст проверяется перед каждой попыткой: запущенная попытка
// не прерывается посередине (иначе состояние ордера на бирже
// становится неоднозначным), но новая попытка после отмены не стартует.
//
// Возвращает nil при успехе, иначе последнюю ошибку.
func Do(ctx context.Context, operation func() error, cfg Config) error {
	cfg.validate()

	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return err
		}

		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		delay := cfg.calculateDelay(attempt)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return lastErr
		}
	}

	return lastErr
}

// DoWithResult выполняет операцию с результатом и retry
//
//	order, err := retry.DoWithResult(ctx, func() (*exchange.Order, error) {
//	    return client.PlaceMarketOrder(ctx, symbol, side, qty)
//	}, cfg)
func DoWithResult[T any](ctx context.Context, operation func() (T, error), cfg Config) (T, error) {
	var result T
	err := Do(ctx, func() error {
		var opErr error
		result, opErr = operation()
		return opErr
	}, cfg)
	return result, err
}

// ============================================================
// Классификация ошибок
// ============================================================

// RetryableError интерфейс для ошибок, знающих свою retryability
type RetryableError interface {
	error
	Retryable() bool
}

// IsRetryable проверяет можно ли retry'ить ошибку
//
// Ошибки контекста не retry'ятся. Ошибка, реализующая RetryableError
// (в том числе через wrapping), отвечает сама. Всё остальное retry'ится.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.Retryable()
	}

	return true
}

// PermanentError оборачивает ошибку которую не нужно retry'ить
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func (e *PermanentError) Retryable() bool {
	return false
}

// Permanent помечает ошибку как не подлежащую retry
//
//	if breaker.IsOpen() {
//	    return retry.Permanent(ErrCircuitOpen)
//	}
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// ============================================================
// Retryer - объект для многократного использования
// ============================================================

// Retryer хранит конфигурацию и разделяется всеми вызовами
// к одной зависимости
type Retryer struct {
	cfg Config
}

// NewRetryer создаёт новый Retryer
func NewRetryer(cfg Config) *Retryer {
	cfg.validate()
	return &Retryer{cfg: cfg}
}

// Do выполняет операцию с retry
func (r *Retryer) Do(ctx context.Context, operation func() error) error {
	return Do(ctx, operation, r.cfg)
}

// WithOnRetry возвращает копию Retryer с callback'ом
func (r *Retryer) WithOnRetry(onRetry func(attempt int, err error, delay time.Duration)) *Retryer {
	newCfg := r.cfg
	newCfg.OnRetry = onRetry
	return &Retryer{cfg: newCfg}
}

// WithRetryIf возвращает копию Retryer с классификатором ошибок
func (r *Retryer) WithRetryIf(retryIf func(error) bool) *Retryer {
	newCfg := r.cfg
	newCfg.RetryIf = retryIf
	return &Retryer{cfg: newCfg}
}
