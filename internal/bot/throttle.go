package bot

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradegate/internal/models"
	"tradegate/internal/repository"
	"tradegate/pkg/utils"
)

// ============================================================
// Throttle Gate - время + цена
// ============================================================

// ThrottleConfig - настройки гейтов троттлинга
type ThrottleConfig struct {
	// MinInterval - минимальный интервал между пропущенными
	// сигналами одной стороны
	MinInterval time.Duration

	// MinPriceChangePct - минимальное движение цены в процентах
	// от цены последнего пропущенного сигнала
	MinPriceChangePct float64
}

// DefaultThrottleConfig возвращает настройки по умолчанию
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MinInterval:       60 * time.Second,
		MinPriceChangePct: 1.0,
	}
}

// ThrottleDecision - результат оценки сигнала гейтом
type ThrottleDecision struct {
	Allowed bool
	// Forced = true если сигнал пропущен из-за одноразового
	// флага force_next_signal
	Forced bool
	// Reasons - коды причин блокировки; оба гейта проверяются
	// всегда, поэтому здесь может быть и время и цена сразу
	Reasons []string
}

// throttleStore - нужная гейту часть репозитория троттлинга
type throttleStore interface {
	Get(symbol, strategy, side string) (*models.ThrottleState, error)
	Upsert(state *models.ThrottleState) error
	SetForce(symbol, strategy, side string) error
	ConsumeForce(symbol, strategy, side string) (bool, error)
}

// ThrottleGate решает может ли сигнал породить алёрт/ордер
//
// Два независимых гейта, оба должны пройти: временной (не раньше
// MinInterval после последнего пропущенного сигнала этой же стороны)
// и ценовой (движение не меньше MinPriceChangePct от цены последнего
// пропущенного). Самый первый сигнал для ключа всегда проходит.
//
// BUY и SELL троттлятся полностью независимо: сигнал одной стороны
// никогда не сбрасывает окно другой. Для операторских изменений
// конфигурации есть force_next_signal - одноразовый обход обоих
// гейтов, снимаемый атомарно при потреблении.
type ThrottleGate struct {
	cfg    ThrottleConfig
	store  throttleStore
	logger *zap.Logger
}

// NewThrottleGate создаёт гейт троттлинга
func NewThrottleGate(cfg ThrottleConfig, store throttleStore, logger *zap.Logger) *ThrottleGate {
	return &ThrottleGate{cfg: cfg, store: store, logger: logger}
}

// Evaluate оценивает сигнал против сохранённого состояния
//
// Состояние НЕ мутируется здесь: после пропуска сигнала вызывающий
// обязан вызвать Commit, чтобы окно сдвинулось только для реально
// обработанных сигналов.
func (g *ThrottleGate) Evaluate(symbol, strategy, side string, price float64, now time.Time) (*ThrottleDecision, error) {
	// Одноразовый обход: потребление атомарно, поэтому два
	// конкурирующих тика не пройдут по одному флагу дважды
	forced, err := g.store.ConsumeForce(symbol, strategy, side)
	if err != nil {
		return nil, fmt.Errorf("failed to consume force flag: %w", err)
	}
	if forced {
		g.logger.Info("throttle bypassed by force flag",
			zap.String("symbol", symbol),
			zap.String("side", side))
		return &ThrottleDecision{Allowed: true, Forced: true}, nil
	}

	state, err := g.store.Get(symbol, strategy, side)
	if err != nil {
		if errors.Is(err, repository.ErrThrottleNotFound) {
			// Первый сигнал для ключа всегда проходит
			return &ThrottleDecision{Allowed: true}, nil
		}
		return nil, fmt.Errorf("failed to load throttle state: %w", err)
	}

	decision := &ThrottleDecision{}

	if now.Sub(state.LastTime) < g.cfg.MinInterval {
		decision.Reasons = append(decision.Reasons, models.ReasonThrottledTime)
	}

	if utils.PercentChange(state.LastPrice, price) < g.cfg.MinPriceChangePct {
		decision.Reasons = append(decision.Reasons, models.ReasonThrottledPrice)
	}

	decision.Allowed = len(decision.Reasons) == 0
	return decision, nil
}

// Commit фиксирует пропущенный сигнал как новую точку отсчёта окна
func (g *ThrottleGate) Commit(symbol, strategy, side string, price float64, now time.Time) error {
	err := g.store.Upsert(&models.ThrottleState{
		Symbol:    symbol,
		Strategy:  strategy,
		Side:      side,
		LastPrice: price,
		LastTime:  now,
	})
	if err != nil {
		return fmt.Errorf("failed to persist throttle state: %w", err)
	}
	return nil
}

// Force выставляет одноразовый обход для ключа
//
// Используется операторским API когда изменение конфигурации
// обесценивает накопленную историю троттлинга.
func (g *ThrottleGate) Force(symbol, strategy, side string) error {
	return g.store.SetForce(symbol, strategy, side)
}
