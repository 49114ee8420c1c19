package models

// Таксономия причин (reason codes) для всех решений пайплайна.
//
// Каждое терминальное состояние OrderIntent и каждое пропущенное/неудачное
// решение несёт РОВНО ОДИН код из этого закрытого перечисления.
// Коды никогда не придумываются вызывающим кодом на месте - только здесь.
//
// Разделы:
// - SKIPPED:  сигнал обработан, но ордер не отправлялся (локальное решение)
// - FAILED:   попытка отправки ордера завершилась ошибкой
// - EXECUTED: ордер отправлен успешно

// DecisionType - тип решения по сигналу
type DecisionType string

const (
	DecisionSkipped  DecisionType = "SKIPPED"
	DecisionFailed   DecisionType = "FAILED"
	DecisionExecuted DecisionType = "EXECUTED"
)

// Коды причин SKIPPED
const (
	ReasonThrottledTime            = "throttled_time"                // не прошёл временной гейт троттлинга
	ReasonThrottledPrice           = "throttled_price"               // не прошёл ценовой гейт троттлинга
	ReasonTradingDisabled          = "trading_disabled"              // live-трейдинг выключен (kill switch)
	ReasonDedupSkipped             = "dedup_skipped"                 // дубликат по idempotency key
	ReasonMaxOpenOrders            = "max_open_orders"               // превышен глобальный лимит открытых ордеров
	ReasonMaxOrdersPerSymbolPerDay = "max_orders_per_symbol_per_day" // дневной лимит по символу
	ReasonPortfolioLimit           = "portfolio_limit"               // превышена допустимая экспозиция портфеля
	ReasonCooldown                 = "cooldown"                      // не истёк межордерный cooldown
	ReasonInsufficientEquity       = "insufficient_equity"           // недостаточно equity для маржи
	ReasonMarginExposure           = "margin_exposure"               // превышен лимит маржинальной экспозиции
	ReasonDailyLossLimit           = "daily_loss_limit"              // достигнут дневной потолок убытка
)

// Коды причин FAILED
const (
	ReasonExchangeRejected     = "exchange_rejected"      // биржа отклонила запрос (4xx)
	ReasonInsufficientFunds    = "insufficient_funds"     // недостаточно средств на бирже
	ReasonSignatureError       = "signature_error"        // ошибка подписи/timestamp
	ReasonRateLimited          = "rate_limited"           // биржа ограничила частоту запросов
	ReasonTimeout              = "timeout"                // таймаут запроса к бирже
	ReasonCircuitOpen          = "circuit_open"           // circuit breaker открыт, вызов не выполнялся
	ReasonUnknownExchangeError = "unknown_exchange_error" // неклассифицированная ошибка биржи
)

// Коды причин EXECUTED
const (
	ReasonOrderPlaced = "order_placed" // ордер успешно размещён
)

// reasonDecisions - единственное место сопоставления код → тип решения
var reasonDecisions = map[string]DecisionType{
	ReasonThrottledTime:            DecisionSkipped,
	ReasonThrottledPrice:           DecisionSkipped,
	ReasonTradingDisabled:          DecisionSkipped,
	ReasonDedupSkipped:             DecisionSkipped,
	ReasonMaxOpenOrders:            DecisionSkipped,
	ReasonMaxOrdersPerSymbolPerDay: DecisionSkipped,
	ReasonPortfolioLimit:           DecisionSkipped,
	ReasonCooldown:                 DecisionSkipped,
	ReasonInsufficientEquity:       DecisionSkipped,
	ReasonMarginExposure:           DecisionSkipped,
	ReasonDailyLossLimit:           DecisionSkipped,

	ReasonExchangeRejected:     DecisionFailed,
	ReasonInsufficientFunds:    DecisionFailed,
	ReasonSignatureError:       DecisionFailed,
	ReasonRateLimited:          DecisionFailed,
	ReasonTimeout:              DecisionFailed,
	ReasonCircuitOpen:          DecisionFailed,
	ReasonUnknownExchangeError: DecisionFailed,

	ReasonOrderPlaced: DecisionExecuted,
}

// DecisionFor возвращает тип решения для кода причины
//
// Для неизвестного кода возвращает DecisionFailed и ok=false -
// такой код указывает на ошибку программирования, а не бизнес-условие.
func DecisionFor(reason string) (DecisionType, bool) {
	d, ok := reasonDecisions[reason]
	if !ok {
		return DecisionFailed, false
	}
	return d, true
}

// KnownReasons возвращает все зарегистрированные коды причин
func KnownReasons() []string {
	reasons := make([]string, 0, len(reasonDecisions))
	for r := range reasonDecisions {
		reasons = append(reasons, r)
	}
	return reasons
}
