package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Метрики Prometheus
// ============================================================

// Metrics - счётчики и гистограммы пайплайна
type Metrics struct {
	SignalsEvaluated *prometheus.CounterVec
	ThrottleBlocks   *prometheus.CounterVec
	GuardrailBlocks  *prometheus.CounterVec
	IntentsClaimed   *prometheus.CounterVec
	ExchangeCalls    *prometheus.CounterVec
	ExchangeLatency  prometheus.Histogram
	BreakerOpen      *prometheus.GaugeVec
	OCOTransitions   *prometheus.CounterVec
	TickDuration     prometheus.Histogram
}

// NewMetrics регистрирует метрики в реестре
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SignalsEvaluated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_signals_evaluated_total",
			Help: "Обработанные сигналы по типу решения",
		}, []string{"decision"}),

		ThrottleBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_throttle_blocks_total",
			Help: "Сигналы, заблокированные троттлингом, по причине",
		}, []string{"reason"}),

		GuardrailBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_guardrail_blocks_total",
			Help: "Сделки, заблокированные лимитами риска, по причине",
		}, []string{"reason"}),

		IntentsClaimed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_intents_claimed_total",
			Help: "Результаты атомарного claim по статусу",
		}, []string{"status"}),

		ExchangeCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_exchange_calls_total",
			Help: "Вызовы биржи по исходу",
		}, []string{"outcome"}),

		ExchangeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradegate_exchange_latency_seconds",
			Help:    "Длительность вызова биржи с учётом повторов",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		BreakerOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradegate_breaker_open",
			Help: "1 если circuit breaker зависимости открыт",
		}, []string{"dependency"}),

		OCOTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_oco_transitions_total",
			Help: "Переходы состояний защитных пар",
		}, []string{"to_state"}),

		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradegate_tick_duration_seconds",
			Help:    "Длительность полного тика оценки",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}
