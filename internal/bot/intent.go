package bot

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tradegate/internal/models"
	"tradegate/internal/repository"
	"tradegate/pkg/crypto"
	"tradegate/pkg/utils"
)

// ============================================================
// Order-Intent Orchestrator - атомарный claim сигнала
// ============================================================

// ClaimStatus - исход попытки claim
type ClaimStatus string

const (
	// ClaimCreated - эта попытка выиграла вставку, интент наш
	ClaimCreated ClaimStatus = "CREATED"
	// ClaimDeduplicated - интент с таким ключом уже существует
	ClaimDeduplicated ClaimStatus = "DEDUP_SKIPPED"
	// ClaimBlocked - интент создан, но live-трейдинг выключен
	ClaimBlocked ClaimStatus = "BLOCKED"
)

// timeBucketSize - ширина временного бакета для ключей без
// идентификатора сигнала
const timeBucketSize = 5 * time.Minute

// ClaimRequest - входные данные для вычисления ключа и claim
type ClaimRequest struct {
	SignalID       *int64
	Symbol         string
	Side           string
	Strategy       string
	Price          float64
	MessageContent string
}

// intentStore - нужная оркестратору часть репозитория интентов
type intentStore interface {
	Create(intent *models.OrderIntent) error
	GetByKey(key string) (*models.OrderIntent, error)
	UpdateStatus(id int64, status, reason string, orderID *string, errorMessage string) error
}

// killSwitch - флаг разрешения live-трейдинга
type killSwitch interface {
	TradingEnabled() (bool, error)
}

// Orchestrator гарантирует не больше одной попытки ордера на
// логический сигнал
//
// Claim - единственный примитив синхронизации пайплайна: вставка
// под уникальным ограничением на idempotency_key. Нарушение
// ограничения - не ошибка, а успешная дедупликация: ровно один
// конкурирующий вызов выигрывает вставку, остальные получают
// DEDUP_SKIPPED и существующий интент.
type Orchestrator struct {
	intents intentStore
	kill    killSwitch
	logger  *zap.Logger
	metrics *Metrics
}

// NewOrchestrator создаёт оркестратор интентов
func NewOrchestrator(intents intentStore, kill killSwitch, logger *zap.Logger, metrics *Metrics) *Orchestrator {
	return &Orchestrator{intents: intents, kill: kill, logger: logger, metrics: metrics}
}

// IdempotencyKey детерминированно выводит ключ для запроса
//
// Приоритет источников:
//  1. идентификатор сигнала - ключ идемпотентен навсегда;
//  2. содержимое сообщения - для сигналов из внешних алёртов;
//  3. временной бакет 5 минут - последний рубеж для анонимных
//     сигналов, дедуплицирует повторы внутри бакета.
func IdempotencyKey(req ClaimRequest) string {
	symbol := utils.NormalizeSymbol(req.Symbol)

	if req.SignalID != nil {
		return crypto.HashKey("signal", req.Side, strconv.FormatInt(*req.SignalID, 10))
	}

	if req.MessageContent != "" {
		content := req.MessageContent
		if len(content) > 256 {
			content = content[:256]
		}
		return crypto.HashKey("message", symbol, content)
	}

	bucket := utils.TimeBucket(time.Now(), timeBucketSize)
	parts := []string{"bucket", req.Side, symbol, req.Strategy, strconv.FormatInt(bucket, 10)}
	if req.Price > 0 {
		parts = append(parts, strconv.FormatFloat(req.Price, 'f', 2, 64))
	}
	return crypto.HashKey(parts...)
}

// Claim атомарно закрепляет сигнал за этим вызовом
//
// При выключенном kill switch claim всё равно выполняется, но интент
// сразу помечается ORDER_BLOCKED_LIVE_TRADING: сигналы никогда не
// теряются молча, подавляется только попытка ордера.
func (o *Orchestrator) Claim(req ClaimRequest) (*models.OrderIntent, ClaimStatus, error) {
	key := IdempotencyKey(req)

	enabled, err := o.kill.TradingEnabled()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read kill switch: %w", err)
	}

	intent := &models.OrderIntent{
		IdempotencyKey: key,
		SignalID:       req.SignalID,
		Symbol:         utils.NormalizeSymbol(req.Symbol),
		Side:           req.Side,
		Strategy:       req.Strategy,
		Price:          req.Price,
		Status:         models.IntentStatusPending,
	}
	if !enabled {
		intent.Status = models.IntentStatusBlocked
		intent.Reason = models.ReasonTradingDisabled
	}

	err = o.intents.Create(intent)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateIntent) {
			existing, getErr := o.intents.GetByKey(key)
			if getErr != nil {
				return nil, "", fmt.Errorf("failed to load existing intent: %w", getErr)
			}
			o.logger.Info("signal deduplicated",
				zap.String("symbol", req.Symbol),
				zap.String("side", req.Side),
				zap.Int64("existing_intent_id", existing.ID))
			o.countClaim(string(ClaimDeduplicated))
			return existing, ClaimDeduplicated, nil
		}
		return nil, "", fmt.Errorf("failed to claim signal: %w", err)
	}

	if !enabled {
		o.logger.Warn("order attempt suppressed, live trading disabled",
			zap.String("symbol", req.Symbol),
			zap.String("side", req.Side),
			zap.Int64("intent_id", intent.ID))
		o.countClaim(string(ClaimBlocked))
		return intent, ClaimBlocked, nil
	}

	o.countClaim(string(ClaimCreated))
	return intent, ClaimCreated, nil
}

// RecordOutcome записывает терминальный исход попытки биржи
//
// reason обязан быть кодом из таксономии: незнакомый код указывает
// на ошибку программирования и отклоняется.
func (o *Orchestrator) RecordOutcome(intentID int64, reason string, orderID *string, errorMessage string) error {
	decision, ok := models.DecisionFor(reason)
	if !ok {
		return fmt.Errorf("unknown reason code %q", reason)
	}

	status := models.IntentStatusFailed
	if decision == models.DecisionExecuted {
		status = models.IntentStatusPlaced
	}

	if err := o.intents.UpdateStatus(intentID, status, reason, orderID, errorMessage); err != nil {
		return fmt.Errorf("failed to record intent outcome: %w", err)
	}
	return nil
}

func (o *Orchestrator) countClaim(status string) {
	if o.metrics != nil {
		o.metrics.IntentsClaimed.WithLabelValues(status).Inc()
	}
}
