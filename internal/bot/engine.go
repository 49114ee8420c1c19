package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tradegate/internal/exchange"
	"tradegate/internal/models"
	"tradegate/pkg/breaker"
)

// ============================================================
// Engine - тиковый планировщик пайплайна
// ============================================================

// EngineConfig - настройки планировщика
type EngineConfig struct {
	// TickPeriod - период оценки всего watch set
	TickPeriod time.Duration

	// RequestTimeout - потолок одного похода к бирже вместе с
	// повторами; обязан быть меньше TickPeriod, иначе тики
	// начинают накапливаться
	RequestTimeout time.Duration

	// ReconcileEvery - каждый N-й тик запускает сверку OCO
	ReconcileEvery int

	// OrderValue - размер ордера в котируемой валюте
	OrderValue float64

	// Symbols - наблюдаемые символы
	Symbols []string
}

// DefaultEngineConfig возвращает настройки по умолчанию
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickPeriod:     60 * time.Second,
		RequestTimeout: 30 * time.Second,
		ReconcileEvery: 5,
		OrderValue:     100.0,
	}
}

// Validate проверяет согласованность настроек
func (c EngineConfig) Validate() error {
	if c.TickPeriod <= 0 {
		return errors.New("tick period must be positive")
	}
	if c.RequestTimeout <= 0 || c.RequestTimeout >= c.TickPeriod {
		return errors.New("request timeout must be positive and shorter than tick period")
	}
	if len(c.Symbols) == 0 {
		return errors.New("at least one symbol is required")
	}
	return nil
}

// SignalSource - внешний движок индикаторов
//
// Потребляется как чистая функция рыночных данных: решение и набор
// причин непрозрачны для пайплайна.
type SignalSource interface {
	Evaluate(ctx context.Context, symbol string) (*models.Signal, error)
}

// Alerter - fire-and-forget канал уведомлений
type Alerter interface {
	Notify(n *models.Notification)
}

type throttler interface {
	Evaluate(symbol, strategy, side string, price float64, now time.Time) (*ThrottleDecision, error)
	Commit(symbol, strategy, side string, price float64, now time.Time) error
}

type riskChecker interface {
	CheckTradeAllowed(req TradeRequest, now time.Time) (string, error)
}

type claimer interface {
	Claim(req ClaimRequest) (*models.OrderIntent, ClaimStatus, error)
	RecordOutcome(intentID int64, reason string, orderID *string, errorMessage string) error
}

type protector interface {
	EnsureProtection(ctx context.Context, entry *models.ExchangeOrder) error
	OnProtectiveFill(ctx context.Context, exchangeOrderID string, filledAt time.Time) error
	Reconcile(ctx context.Context) error
}

type entryStore interface {
	Create(order *models.ExchangeOrder) error
	GetByExchangeID(exchangeOrderID string) (*models.ExchangeOrder, error)
	UpdateStatus(exchangeOrderID, status string, filledAt, cancelledAt *time.Time) error
}

// Engine гоняет пайплайн по фиксированному периоду
//
// Каждый тик оценивает весь watch set; символы идут параллельно,
// стадии одного символа строго последовательно: выход каждой стадии
// является предусловием следующей. Перекрывающиеся тики и ручные
// повторы безопасны: единственная точка синхронизации - атомарный
// claim оркестратора.
type Engine struct {
	cfg       EngineConfig
	source    SignalSource
	throttle  throttler
	guardrail riskChecker
	intents   claimer
	executor  *Executor
	client    exchange.Client
	orders    entryStore
	oco       protector
	alerter   Alerter
	fills     <-chan exchange.Fill
	logger    *zap.Logger
	metrics   *Metrics
}

// NewEngine собирает пайплайн
func NewEngine(
	cfg EngineConfig,
	source SignalSource,
	throttle throttler,
	guardrail riskChecker,
	intents claimer,
	executor *Executor,
	client exchange.Client,
	orders entryStore,
	oco protector,
	alerter Alerter,
	fills <-chan exchange.Fill,
	logger *zap.Logger,
	metrics *Metrics,
) *Engine {
	return &Engine{
		cfg:       cfg,
		source:    source,
		throttle:  throttle,
		guardrail: guardrail,
		intents:   intents,
		executor:  executor,
		client:    client,
		orders:    orders,
		oco:       oco,
		alerter:   alerter,
		fills:     fills,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run крутит планировщик до отмены контекста
func (e *Engine) Run(ctx context.Context) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	e.logger.Info("engine started",
		zap.Duration("tick_period", e.cfg.TickPeriod),
		zap.Strings("symbols", e.cfg.Symbols))

	go e.consumeFills(ctx)

	ticker := time.NewTicker(e.cfg.TickPeriod)
	defer ticker.Stop()

	tickNum := 0
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped")
			return ctx.Err()
		case <-ticker.C:
			tickNum++
			e.tick(ctx)
			if e.cfg.ReconcileEvery > 0 && tickNum%e.cfg.ReconcileEvery == 0 {
				if err := e.oco.Reconcile(ctx); err != nil {
					e.logger.Error("oco reconcile failed", zap.Error(err))
				}
			}
		}
	}
}

// tick оценивает весь watch set, символы параллельно
func (e *Engine) tick(ctx context.Context) {
	start := time.Now()

	var wg sync.WaitGroup
	for _, symbol := range e.cfg.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			if err := e.EvaluateSymbol(ctx, symbol); err != nil {
				e.logger.Error("symbol evaluation failed",
					zap.String("symbol", symbol),
					zap.Error(err))
			}
		}(symbol)
	}
	wg.Wait()

	if e.metrics != nil {
		e.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}
}

// EvaluateSymbol прогоняет один символ через все стадии
//
// Ошибки бизнес-условий (троттлинг, лимиты, дедупликация, отказ
// биржи) разрешаются локально и не возвращаются наверх: наверх
// уходят только сбои самой инфраструктуры пайплайна.
func (e *Engine) EvaluateSymbol(ctx context.Context, symbol string) error {
	sig, err := e.source.Evaluate(ctx, symbol)
	if err != nil {
		return fmt.Errorf("signal source failed: %w", err)
	}
	if sig == nil || !sig.Actionable() {
		return nil
	}

	now := time.Now().UTC()

	decision, err := e.throttle.Evaluate(sig.Symbol, sig.Strategy, sig.Side, sig.Price, now)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		e.countDecision(models.DecisionSkipped)
		for _, reason := range decision.Reasons {
			if e.metrics != nil {
				e.metrics.ThrottleBlocks.WithLabelValues(reason).Inc()
			}
		}
		e.logger.Debug("signal throttled",
			zap.String("symbol", sig.Symbol),
			zap.String("side", sig.Side),
			zap.Strings("reasons", decision.Reasons))
		return nil
	}

	// Алёрт уходит ровно один раз на пропущенный троттлингом
	// сигнал, независимо от судьбы последующего ордера
	e.alerter.Notify(&models.Notification{
		Type:     models.NotificationTypeSignal,
		Severity: models.SeverityInfo,
		Symbol:   sig.Symbol,
		Message:  fmt.Sprintf("%s signal at %.2f", sig.Side, sig.Price),
	})

	if err := e.throttle.Commit(sig.Symbol, sig.Strategy, sig.Side, sig.Price, now); err != nil {
		return err
	}

	reason, err := e.guardrail.CheckTradeAllowed(TradeRequest{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		OrderValue: e.cfg.OrderValue,
	}, now)
	if err != nil {
		return err
	}
	if reason != "" {
		e.countDecision(models.DecisionSkipped)
		e.alerter.Notify(&models.Notification{
			Type:     models.NotificationTypeRisk,
			Severity: models.SeverityWarn,
			Symbol:   sig.Symbol,
			Message:  fmt.Sprintf("trade blocked: %s", reason),
		})
		return nil
	}

	intent, status, err := e.intents.Claim(ClaimRequest{
		SignalID: sig.ID,
		Symbol:   sig.Symbol,
		Side:     sig.Side,
		Strategy: sig.Strategy,
		Price:    sig.Price,
	})
	if err != nil {
		return err
	}
	if status != ClaimCreated {
		e.countDecision(models.DecisionSkipped)
		return nil
	}

	return e.placeEntryOrder(ctx, sig, intent)
}

// placeEntryOrder выполняет попытку ордера и записывает исход
func (e *Engine) placeEntryOrder(ctx context.Context, sig *models.Signal, intent *models.OrderIntent) error {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	qty := e.cfg.OrderValue / sig.Price

	order, err := e.executor.DoWithOrder(callCtx, "place_market_order", func(ctx context.Context) (*exchange.Order, error) {
		return e.client.PlaceMarketOrder(ctx, sig.Symbol, sig.Side, qty)
	})
	if err != nil {
		reason := exchange.ClassifyError(err)
		if errors.Is(err, breaker.ErrOpen) {
			reason = models.ReasonCircuitOpen
		}
		e.countDecision(models.DecisionFailed)
		if recordErr := e.intents.RecordOutcome(intent.ID, reason, nil, err.Error()); recordErr != nil {
			return recordErr
		}
		e.alerter.Notify(&models.Notification{
			Type:     models.NotificationTypeError,
			Severity: models.SeverityError,
			Symbol:   sig.Symbol,
			Message:  fmt.Sprintf("order attempt failed: %s", reason),
		})
		return nil
	}

	if err := e.intents.RecordOutcome(intent.ID, models.ReasonOrderPlaced, &order.ID, ""); err != nil {
		return err
	}
	e.countDecision(models.DecisionExecuted)

	entry := &models.ExchangeOrder{
		ExchangeOrderID: order.ID,
		ClientOrderID:   order.ClientOrderID,
		Symbol:          order.Symbol,
		Side:            order.Side,
		Role:            models.RoleNone,
		Quantity:        order.Quantity,
		Price:           order.AvgFillPrice,
		Status:          order.Status,
		ProtectionState: models.ProtectionNone,
	}
	if order.Status == models.OrderStatusFilled {
		ts := order.Timestamp
		entry.FilledAt = &ts
	}
	if err := e.orders.Create(entry); err != nil {
		return err
	}

	e.alerter.Notify(&models.Notification{
		Type:     models.NotificationTypeOrder,
		Severity: models.SeverityInfo,
		Symbol:   sig.Symbol,
		Message:  fmt.Sprintf("%s order placed, id %s", sig.Side, order.ID),
	})

	// Рыночный вход обычно исполняется сразу; защиту ставим не
	// дожидаясь события в user stream
	if order.Status == models.OrderStatusFilled {
		if err := e.oco.EnsureProtection(ctx, entry); err != nil {
			e.logger.Error("failed to protect entry order",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}
	return nil
}

// consumeFills обрабатывает события исполнения с user stream
func (e *Engine) consumeFills(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fill, ok := <-e.fills:
			if !ok {
				return
			}
			if fill.Status != models.OrderStatusFilled {
				continue
			}
			e.handleFill(ctx, fill)
		}
	}
}

func (e *Engine) handleFill(ctx context.Context, fill exchange.Fill) {
	order, err := e.orders.GetByExchangeID(fill.OrderID)
	if err != nil {
		e.logger.Warn("fill for unknown order",
			zap.String("order_id", fill.OrderID),
			zap.Error(err))
		return
	}

	if order.Role == models.RoleNone {
		filledAt := fill.Timestamp
		if filledAt.IsZero() {
			filledAt = time.Now().UTC()
		}
		// Сначала зеркало: защита ставится только после того как
		// исполнение записано, иначе сверке не от чего оттолкнуться
		if err := e.orders.UpdateStatus(fill.OrderID, models.OrderStatusFilled, &filledAt, nil); err != nil {
			e.logger.Error("failed to record entry fill",
				zap.String("order_id", fill.OrderID),
				zap.Error(err))
			return
		}
		order.Status = models.OrderStatusFilled
		order.FilledAt = &filledAt
		if fill.Price > 0 {
			order.Price = fill.Price
		}
		if err := e.oco.EnsureProtection(ctx, order); err != nil {
			e.logger.Error("failed to protect entry order",
				zap.String("order_id", fill.OrderID),
				zap.Error(err))
		}
		return
	}

	if err := e.oco.OnProtectiveFill(ctx, fill.OrderID, fill.Timestamp); err != nil {
		e.logger.Error("failed to resolve protective pair",
			zap.String("order_id", fill.OrderID),
			zap.Error(err))
		e.alerter.Notify(&models.Notification{
			Type:     models.NotificationTypeOCO,
			Severity: models.SeverityError,
			Symbol:   fill.Symbol,
			Message:  fmt.Sprintf("oco resolution failed for %s", fill.OrderID),
		})
	}
}

func (e *Engine) countDecision(d models.DecisionType) {
	if e.metrics != nil {
		e.metrics.SignalsEvaluated.WithLabelValues(string(d)).Inc()
	}
}
