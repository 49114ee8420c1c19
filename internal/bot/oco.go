package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradegate/internal/exchange"
	"tradegate/internal/models"
)

// ============================================================
// OCO Lifecycle Manager - защитные пары stop-loss / take-profit
// ============================================================

// OCOConfig - параметры размещения защитных ордеров
type OCOConfig struct {
	// StopLossPct - отступ стоп-лосса от цены входа в процентах
	StopLossPct float64

	// TakeProfitPct - отступ тейк-профита от цены входа в процентах
	TakeProfitPct float64
}

// DefaultOCOConfig возвращает настройки по умолчанию
func DefaultOCOConfig() OCOConfig {
	return OCOConfig{
		StopLossPct:   2.0,
		TakeProfitPct: 4.0,
	}
}

// ocoStore - нужная менеджеру часть репозитория ордеров
type ocoStore interface {
	Create(order *models.ExchangeOrder) error
	GetByExchangeID(exchangeOrderID string) (*models.ExchangeOrder, error)
	GetActiveProtective(parentOrderID string) ([]*models.ExchangeOrder, error)
	GetProtectiveGroup(ocoGroupID string) ([]*models.ExchangeOrder, error)
	GetUnprotectedFilled() ([]*models.ExchangeOrder, error)
	GetOpenEntries() ([]*models.ExchangeOrder, error)
	GetOpenProtective() ([]*models.ExchangeOrder, error)
	UpdateStatus(exchangeOrderID, status string, filledAt, cancelledAt *time.Time) error
	UpdateProtectionState(exchangeOrderID, state string) error
}

// OCOManager создаёт и сверяет пары защитных ордеров
//
// Состояние защиты входного ордера идёт строго по машине из
// state_machine.go. Переход в PROTECTED срабатывает ровно один раз
// на исполненный вход: перед размещением проверяется существующая
// активная пара, поэтому повторный прогон сверки безопасен.
type OCOManager struct {
	cfg      OCOConfig
	store    ocoStore
	client   exchange.Client
	executor *Executor
	logger   *zap.Logger
	metrics  *Metrics

	now func() time.Time
}

// NewOCOManager создаёт менеджер защитных пар
func NewOCOManager(cfg OCOConfig, store ocoStore, client exchange.Client, executor *Executor, logger *zap.Logger, metrics *Metrics) *OCOManager {
	return &OCOManager{
		cfg:      cfg,
		store:    store,
		client:   client,
		executor: executor,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// EnsureProtection размещает SL+TP для исполненного входного ордера
//
// Идемпотентна: если активная пара уже существует, новые ордера не
// создаются. Оба защитных ордера делят один oco_group_id и ссылаются
// на вход через parent_order_id.
func (m *OCOManager) EnsureProtection(ctx context.Context, entry *models.ExchangeOrder) error {
	if entry.Status != models.OrderStatusFilled {
		return fmt.Errorf("entry order %s is not filled (status %s)", entry.ExchangeOrderID, entry.Status)
	}
	if entry.Role != models.RoleNone {
		return fmt.Errorf("order %s is protective, not an entry", entry.ExchangeOrderID)
	}

	// Защита от повторной сверки: активная пара уже есть
	existing, err := m.store.GetActiveProtective(entry.ExchangeOrderID)
	if err != nil {
		return fmt.Errorf("failed to check existing protection: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	if entry.ProtectionState == models.ProtectionNone {
		if err := m.transition(entry.ExchangeOrderID, entry.ProtectionState, models.ProtectionPending); err != nil {
			return err
		}
		entry.ProtectionState = models.ProtectionPending
	}

	groupID := uuid.NewString()
	exitSide := oppositeSide(entry.Side)
	stopPrice, takePrice := m.protectivePrices(entry)

	sl, err := m.executor.DoWithOrder(ctx, "place_stop_loss", func(ctx context.Context) (*exchange.Order, error) {
		return m.client.PlaceStopLoss(ctx, entry.Symbol, exitSide, entry.Quantity, stopPrice)
	})
	if err != nil {
		return fmt.Errorf("failed to place stop loss: %w", err)
	}
	if err := m.recordProtective(sl, entry, groupID, models.RoleStopLoss, stopPrice); err != nil {
		return err
	}

	tp, err := m.executor.DoWithOrder(ctx, "place_take_profit", func(ctx context.Context) (*exchange.Order, error) {
		return m.client.PlaceTakeProfit(ctx, entry.Symbol, exitSide, entry.Quantity, takePrice)
	})
	if err != nil {
		// Пара осталась половинчатой; Reconcile доразместит TP,
		// вход остаётся в PENDING_PROTECTION
		return fmt.Errorf("failed to place take profit: %w", err)
	}
	if err := m.recordProtective(tp, entry, groupID, models.RoleTakeProfit, takePrice); err != nil {
		return err
	}

	if err := m.transition(entry.ExchangeOrderID, entry.ProtectionState, models.ProtectionActive); err != nil {
		return err
	}

	m.logger.Info("protective pair placed",
		zap.String("entry_order_id", entry.ExchangeOrderID),
		zap.String("oco_group_id", groupID),
		zap.Float64("stop_price", stopPrice),
		zap.Float64("take_price", takePrice))
	return nil
}

// OnProtectiveFill обрабатывает исполнение защитного ордера:
// отменяет второго в паре и переводит вход в RESOLVED
//
// Инвариант: отметка отмены проигравшего не раньше отметки
// исполнения выигравшего. Более ранняя отмена означает гонку
// и возвращается как ошибка, а не проглатывается.
func (m *OCOManager) OnProtectiveFill(ctx context.Context, exchangeOrderID string, filledAt time.Time) error {
	winner, err := m.store.GetByExchangeID(exchangeOrderID)
	if err != nil {
		return fmt.Errorf("failed to load filled order: %w", err)
	}
	if winner.Role == models.RoleNone || winner.OCOGroupID == nil {
		return fmt.Errorf("order %s is not part of a protective pair", exchangeOrderID)
	}

	if err := m.store.UpdateStatus(winner.ExchangeOrderID, models.OrderStatusFilled, &filledAt, nil); err != nil {
		return fmt.Errorf("failed to mark winner filled: %w", err)
	}

	group, err := m.store.GetProtectiveGroup(*winner.OCOGroupID)
	if err != nil {
		return fmt.Errorf("failed to load oco group: %w", err)
	}

	for _, sibling := range group {
		if sibling.ExchangeOrderID == winner.ExchangeOrderID {
			continue
		}

		if sibling.Status == models.OrderStatusCancelled {
			// Уже отменён: проверяем инвариант отметок времени
			if sibling.CancelledAt != nil && sibling.CancelledAt.Before(filledAt) {
				return fmt.Errorf("sibling %s cancelled at %s before winner fill at %s, possible race",
					sibling.ExchangeOrderID, sibling.CancelledAt.Format(time.RFC3339), filledAt.Format(time.RFC3339))
			}
			continue
		}

		err := m.executor.Do(ctx, "cancel_sibling", func(ctx context.Context) error {
			return m.client.CancelOrder(ctx, sibling.Symbol, sibling.ExchangeOrderID)
		})
		if err != nil {
			return fmt.Errorf("failed to cancel sibling %s: %w", sibling.ExchangeOrderID, err)
		}

		cancelledAt := m.now()
		if cancelledAt.Before(filledAt) {
			cancelledAt = filledAt
		}
		if err := m.store.UpdateStatus(sibling.ExchangeOrderID, models.OrderStatusCancelled, nil, &cancelledAt); err != nil {
			return fmt.Errorf("failed to mark sibling cancelled: %w", err)
		}

		m.logger.Info("protective sibling cancelled",
			zap.String("winner", winner.ExchangeOrderID),
			zap.String("cancelled", sibling.ExchangeOrderID))
	}

	if winner.ParentOrderID != nil {
		if err := m.transition(*winner.ParentOrderID, models.ProtectionActive, models.ProtectionResolved); err != nil {
			return err
		}
	}
	return nil
}

// Reconcile догоняет пропущенные события
//
// Три заботы: входы, висящие открытыми в зеркале (пропущенный fill),
// исполненные входы без защиты (упавшее размещение TP) и открытые
// защитные ордера, чьё состояние на бирже могло измениться пока
// user stream был оборван.
func (m *OCOManager) Reconcile(ctx context.Context) error {
	openEntries, err := m.store.GetOpenEntries()
	if err != nil {
		return fmt.Errorf("failed to load open entry orders: %w", err)
	}
	for _, entry := range openEntries {
		remote, err := m.executor.DoWithOrder(ctx, "get_order", func(ctx context.Context) (*exchange.Order, error) {
			return m.client.GetOrder(ctx, entry.Symbol, entry.ExchangeOrderID)
		})
		if err != nil {
			m.logger.Warn("reconcile: failed to fetch entry state",
				zap.String("order_id", entry.ExchangeOrderID),
				zap.Error(err))
			continue
		}
		if remote.Status != models.OrderStatusFilled {
			continue
		}

		filledAt := remote.Timestamp
		if filledAt.IsZero() {
			filledAt = m.now()
		}
		if err := m.store.UpdateStatus(entry.ExchangeOrderID, models.OrderStatusFilled, &filledAt, nil); err != nil {
			m.logger.Error("reconcile: failed to record entry fill",
				zap.String("order_id", entry.ExchangeOrderID),
				zap.Error(err))
			continue
		}
		entry.Status = models.OrderStatusFilled
		entry.FilledAt = &filledAt
		if remote.AvgFillPrice > 0 {
			entry.Price = remote.AvgFillPrice
		}
		if err := m.EnsureProtection(ctx, entry); err != nil {
			m.logger.Error("reconcile: failed to protect entry",
				zap.String("entry_order_id", entry.ExchangeOrderID),
				zap.Error(err))
		}
	}

	unprotected, err := m.store.GetUnprotectedFilled()
	if err != nil {
		return fmt.Errorf("failed to load unprotected orders: %w", err)
	}
	for _, entry := range unprotected {
		if err := m.EnsureProtection(ctx, entry); err != nil {
			m.logger.Error("reconcile: failed to protect entry",
				zap.String("entry_order_id", entry.ExchangeOrderID),
				zap.Error(err))
		}
	}

	open, err := m.store.GetOpenProtective()
	if err != nil {
		return fmt.Errorf("failed to load open protective orders: %w", err)
	}
	for _, order := range open {
		remote, err := m.executor.DoWithOrder(ctx, "get_order", func(ctx context.Context) (*exchange.Order, error) {
			return m.client.GetOrder(ctx, order.Symbol, order.ExchangeOrderID)
		})
		if err != nil {
			m.logger.Warn("reconcile: failed to fetch order state",
				zap.String("order_id", order.ExchangeOrderID),
				zap.Error(err))
			continue
		}

		if remote.Status == models.OrderStatusFilled && order.Status != models.OrderStatusFilled {
			if err := m.OnProtectiveFill(ctx, order.ExchangeOrderID, remote.Timestamp); err != nil {
				m.logger.Error("reconcile: failed to resolve pair",
					zap.String("order_id", order.ExchangeOrderID),
					zap.Error(err))
			}
		}
	}
	return nil
}

func (m *OCOManager) recordProtective(placed *exchange.Order, entry *models.ExchangeOrder, groupID, role string, price float64) error {
	err := m.store.Create(&models.ExchangeOrder{
		ExchangeOrderID: placed.ID,
		ClientOrderID:   placed.ClientOrderID,
		ParentOrderID:   &entry.ExchangeOrderID,
		OCOGroupID:      &groupID,
		Symbol:          entry.Symbol,
		Side:            oppositeSide(entry.Side),
		Role:            role,
		Quantity:        entry.Quantity,
		Price:           price,
		Status:          models.OrderStatusActive,
		ProtectionState: models.ProtectionNone,
	})
	if err != nil {
		return fmt.Errorf("failed to record protective order: %w", err)
	}
	return nil
}

func (m *OCOManager) transition(exchangeOrderID, from, to string) error {
	if !CanTransition(from, to) {
		return &TransitionError{OrderID: exchangeOrderID, From: from, To: to}
	}
	if err := m.store.UpdateProtectionState(exchangeOrderID, to); err != nil {
		return fmt.Errorf("failed to update protection state: %w", err)
	}
	if m.metrics != nil {
		m.metrics.OCOTransitions.WithLabelValues(to).Inc()
	}
	return nil
}

// protectivePrices считает цены SL/TP от средней цены входа
func (m *OCOManager) protectivePrices(entry *models.ExchangeOrder) (stopPrice, takePrice float64) {
	base := entry.Price
	if entry.Side == models.SideBuy {
		stopPrice = base * (1 - m.cfg.StopLossPct/100)
		takePrice = base * (1 + m.cfg.TakeProfitPct/100)
	} else {
		stopPrice = base * (1 + m.cfg.StopLossPct/100)
		takePrice = base * (1 - m.cfg.TakeProfitPct/100)
	}
	return stopPrice, takePrice
}

func oppositeSide(side string) string {
	if side == models.SideBuy {
		return models.SideSell
	}
	return models.SideBuy
}
