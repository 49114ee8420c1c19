package bot

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradegate/internal/models"
	"tradegate/pkg/utils"
)

// ============================================================
// Risk Guardrail Engine
// ============================================================

// RiskLimits - лимиты риска; read-only снэпшот на время оценки
type RiskLimits struct {
	// MaxOpenOrders - глобальный потолок открытых ордеров
	MaxOpenOrders int

	// MaxOrdersPerSymbolPerDay - дневной потолок ордеров по символу
	MaxOrdersPerSymbolPerDay int

	// PortfolioExposureMultiplier - допустимая экспозиция портфеля
	// в стоимостях запрашиваемого ордера
	PortfolioExposureMultiplier float64

	// Cooldown - минимальная пауза между ордерами по символу
	Cooldown time.Duration

	// MinEquity - минимальный требуемый equity для маржинальной сделки
	MinEquity float64

	// MaxMarginExposure - потолок суммарной маржинальной экспозиции
	MaxMarginExposure float64

	// MaxDailyLossPct - дневной потолок убытка в процентах,
	// после которого маржинальная торговля останавливается
	MaxDailyLossPct float64
}

// DefaultRiskLimits возвращает консервативные лимиты по умолчанию
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxOpenOrders:               10,
		MaxOrdersPerSymbolPerDay:    5,
		PortfolioExposureMultiplier: 10.0,
		Cooldown:                    5 * time.Minute,
		MinEquity:                   100.0,
		MaxMarginExposure:           50000.0,
		MaxDailyLossPct:             5.0,
	}
}

// orderCounter - живые счётчики из хранилища ордеров
//
// Движок намеренно не кэширует счётчики: каждый чек читает
// хранилище, чтобы лимиты не расходились с реальностью.
type orderCounter interface {
	CountOpen() (int, error)
	CountBySymbolSince(symbol string, since time.Time) (int, error)
	SumOpenNotional() (float64, error)
	LastOrderTime(symbol string) (*time.Time, error)
}

// TradeRequest - параметры проверяемой сделки
type TradeRequest struct {
	Symbol     string
	Side       string
	OrderValue float64

	// Маржинальные параметры; при IsMargin=false не проверяются
	IsMargin            bool
	AccountEquity       float64
	TotalMarginExposure float64
	DailyLossPct        float64
	Leverage            float64
}

// GuardrailEngine проверяет лимиты перед любым вызовом биржи
//
// Вызывается строго после троттлинга и строго до вызова биржи.
// Проверки идут по порядку и обрываются на первой сработавшей,
// каждая отдаёт свой код причины.
type GuardrailEngine struct {
	limits  RiskLimits
	orders  orderCounter
	logger  *zap.Logger
	metrics *Metrics
}

// NewGuardrailEngine создаёт движок лимитов
func NewGuardrailEngine(limits RiskLimits, orders orderCounter, logger *zap.Logger, metrics *Metrics) *GuardrailEngine {
	return &GuardrailEngine{limits: limits, orders: orders, logger: logger, metrics: metrics}
}

// CheckTradeAllowed возвращает ("", nil) если сделка разрешена,
// иначе код причины блокировки
//
// Ошибка возвращается только при сбое чтения хранилища: такой сбой
// трактуется как блокировка (лимиты нельзя проверить - торговать нельзя).
func (e *GuardrailEngine) CheckTradeAllowed(req TradeRequest, now time.Time) (string, error) {
	open, err := e.orders.CountOpen()
	if err != nil {
		return "", fmt.Errorf("failed to count open orders: %w", err)
	}
	if open >= e.limits.MaxOpenOrders {
		return e.blocked(req, models.ReasonMaxOpenOrders, "open", open), nil
	}

	todayCount, err := e.orders.CountBySymbolSince(req.Symbol, utils.GetDayStartFrom(now))
	if err != nil {
		return "", fmt.Errorf("failed to count symbol orders: %w", err)
	}
	if todayCount >= e.limits.MaxOrdersPerSymbolPerDay {
		return e.blocked(req, models.ReasonMaxOrdersPerSymbolPerDay, "today", todayCount), nil
	}

	exposure, err := e.orders.SumOpenNotional()
	if err != nil {
		return "", fmt.Errorf("failed to sum open notional: %w", err)
	}
	if req.OrderValue > 0 && exposure > e.limits.PortfolioExposureMultiplier*req.OrderValue {
		return e.blocked(req, models.ReasonPortfolioLimit, "exposure", int(exposure)), nil
	}

	last, err := e.orders.LastOrderTime(req.Symbol)
	if err != nil {
		return "", fmt.Errorf("failed to get last order time: %w", err)
	}
	if last != nil && now.Sub(*last) < e.limits.Cooldown {
		return e.blocked(req, models.ReasonCooldown, "since_last_sec", int(now.Sub(*last).Seconds())), nil
	}

	if req.IsMargin {
		if reason := e.checkMargin(req); reason != "" {
			return e.blocked(req, reason, "equity", int(req.AccountEquity)), nil
		}
	}

	return "", nil
}

// checkMargin выполняет маржинальные проверки
func (e *GuardrailEngine) checkMargin(req TradeRequest) string {
	required := req.OrderValue
	if req.Leverage > 1 {
		required = req.OrderValue / req.Leverage
	}
	if req.AccountEquity < e.limits.MinEquity || req.AccountEquity < required {
		return models.ReasonInsufficientEquity
	}

	if req.TotalMarginExposure+req.OrderValue > e.limits.MaxMarginExposure {
		return models.ReasonMarginExposure
	}

	if req.DailyLossPct >= e.limits.MaxDailyLossPct {
		return models.ReasonDailyLossLimit
	}

	return ""
}

func (e *GuardrailEngine) blocked(req TradeRequest, reason string, field string, value int) string {
	e.logger.Warn("trade blocked by guardrail",
		zap.String("symbol", req.Symbol),
		zap.String("side", req.Side),
		zap.String("reason", reason),
		zap.Int(field, value))
	if e.metrics != nil {
		e.metrics.GuardrailBlocks.WithLabelValues(reason).Inc()
	}
	return reason
}
