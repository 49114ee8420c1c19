package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"tradegate/internal/exchange"
	"tradegate/internal/models"
	"tradegate/internal/repository"
	"tradegate/pkg/breaker"
	"tradegate/pkg/retry"
)

// fakeExchangeClient - биржа в памяти для тестов
type fakeExchangeClient struct {
	nextID    int
	placed    []*exchange.Order
	cancelled []string
	placeErr  error
}

func (c *fakeExchangeClient) place(symbol, side, orderType string, qty, price float64) (*exchange.Order, error) {
	if c.placeErr != nil {
		return nil, c.placeErr
	}
	c.nextID++
	order := &exchange.Order{
		ID:        fmt.Sprintf("EX-%d", c.nextID),
		Symbol:    symbol,
		Side:      side,
		Type:      orderType,
		Status:    models.OrderStatusActive,
		Quantity:  qty,
		StopPrice: price,
		Timestamp: time.Now(),
	}
	c.placed = append(c.placed, order)
	return order, nil
}

func (c *fakeExchangeClient) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*exchange.Order, error) {
	order, err := c.place(symbol, side, "MARKET", qty, 0)
	if err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusFilled
	order.AvgFillPrice = 50000
	order.FilledQty = qty
	return order, nil
}

func (c *fakeExchangeClient) PlaceStopLoss(ctx context.Context, symbol, side string, qty, stopPrice float64) (*exchange.Order, error) {
	return c.place(symbol, side, "STOP_LOSS", qty, stopPrice)
}

func (c *fakeExchangeClient) PlaceTakeProfit(ctx context.Context, symbol, side string, qty, limitPrice float64) (*exchange.Order, error) {
	return c.place(symbol, side, "TAKE_PROFIT", qty, limitPrice)
}

func (c *fakeExchangeClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	c.cancelled = append(c.cancelled, orderID)
	return nil
}

func (c *fakeExchangeClient) GetOrder(ctx context.Context, symbol, orderID string) (*exchange.Order, error) {
	for _, o := range c.placed {
		if o.ID == orderID {
			return o, nil
		}
	}
	return nil, &exchange.ExchangeError{Code: -1, HTTPStatus: 404, Message: "order not found"}
}

func (c *fakeExchangeClient) GetBalance(ctx context.Context) (float64, error) { return 10000, nil }
func (c *fakeExchangeClient) Close() error                                    { return nil }

// fakeOrderStore - хранилище ордеров в памяти
type fakeOrderStore struct {
	orders map[string]*models.ExchangeOrder
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*models.ExchangeOrder)}
}

func (s *fakeOrderStore) Create(order *models.ExchangeOrder) error {
	copy := *order
	s.orders[order.ExchangeOrderID] = &copy
	return nil
}

func (s *fakeOrderStore) GetByExchangeID(id string) (*models.ExchangeOrder, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	copy := *order
	return &copy, nil
}

func (s *fakeOrderStore) GetActiveProtective(parentOrderID string) ([]*models.ExchangeOrder, error) {
	var result []*models.ExchangeOrder
	for _, o := range s.orders {
		if o.ParentOrderID != nil && *o.ParentOrderID == parentOrderID &&
			o.Role != models.RoleNone && models.OrderOpen(o.Status) {
			result = append(result, o)
		}
	}
	return result, nil
}

func (s *fakeOrderStore) GetProtectiveGroup(groupID string) ([]*models.ExchangeOrder, error) {
	var result []*models.ExchangeOrder
	for _, o := range s.orders {
		if o.OCOGroupID != nil && *o.OCOGroupID == groupID {
			result = append(result, o)
		}
	}
	return result, nil
}

func (s *fakeOrderStore) GetUnprotectedFilled() ([]*models.ExchangeOrder, error) {
	var result []*models.ExchangeOrder
	for _, o := range s.orders {
		if o.Role == models.RoleNone && o.Status == models.OrderStatusFilled &&
			o.ProtectionState != models.ProtectionActive && o.ProtectionState != models.ProtectionResolved {
			result = append(result, o)
		}
	}
	return result, nil
}

func (s *fakeOrderStore) GetOpenEntries() ([]*models.ExchangeOrder, error) {
	var result []*models.ExchangeOrder
	for _, o := range s.orders {
		if o.Role == models.RoleNone && models.OrderOpen(o.Status) {
			copy := *o
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (s *fakeOrderStore) GetOpenProtective() ([]*models.ExchangeOrder, error) {
	var result []*models.ExchangeOrder
	for _, o := range s.orders {
		if o.Role != models.RoleNone && models.OrderOpen(o.Status) {
			result = append(result, o)
		}
	}
	return result, nil
}

func (s *fakeOrderStore) UpdateStatus(id, status string, filledAt, cancelledAt *time.Time) error {
	order, ok := s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.Status = status
	if filledAt != nil {
		order.FilledAt = filledAt
	}
	if cancelledAt != nil {
		order.CancelledAt = cancelledAt
	}
	return nil
}

func (s *fakeOrderStore) UpdateProtectionState(id, state string) error {
	order, ok := s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.ProtectionState = state
	return nil
}

func newTestExecutor() *Executor {
	return NewExecutor(
		breaker.New("test", breaker.DefaultConfig()),
		retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond},
		zap.NewNop(),
		nil,
	)
}

func newTestOCOManager(store ocoStore, client exchange.Client) *OCOManager {
	return NewOCOManager(DefaultOCOConfig(), store, client, newTestExecutor(), zap.NewNop(), nil)
}

func filledEntry(store *fakeOrderStore) *models.ExchangeOrder {
	now := time.Now()
	entry := &models.ExchangeOrder{
		ExchangeOrderID: "ENTRY-1",
		Symbol:          "BTCUSDT",
		Side:            models.SideBuy,
		Role:            models.RoleNone,
		Quantity:        0.002,
		Price:           50000,
		Status:          models.OrderStatusFilled,
		ProtectionState: models.ProtectionNone,
		FilledAt:        &now,
	}
	store.Create(entry)
	return entry
}

func TestEnsureProtectionPlacesPair(t *testing.T) {
	store := newFakeOrderStore()
	client := &fakeExchangeClient{}
	manager := newTestOCOManager(store, client)
	entry := filledEntry(store)

	if err := manager.EnsureProtection(context.Background(), entry); err != nil {
		t.Fatalf("EnsureProtection: %v", err)
	}

	protective, _ := store.GetActiveProtective("ENTRY-1")
	if len(protective) != 2 {
		t.Fatalf("защитных ордеров %d, ожидалось 2", len(protective))
	}

	var group string
	roles := make(map[string]bool)
	for _, o := range protective {
		roles[o.Role] = true
		if o.OCOGroupID == nil {
			t.Fatal("oco_group_id пуст")
		}
		if group == "" {
			group = *o.OCOGroupID
		} else if group != *o.OCOGroupID {
			t.Error("SL и TP должны делить одну oco-группу")
		}
		if o.Side != models.SideSell {
			t.Errorf("защита входа BUY должна быть на стороне SELL, получено %s", o.Side)
		}
	}
	if !roles[models.RoleStopLoss] || !roles[models.RoleTakeProfit] {
		t.Errorf("ожидались роли SL и TP, получено %v", roles)
	}

	stored, _ := store.GetByExchangeID("ENTRY-1")
	if stored.ProtectionState != models.ProtectionActive {
		t.Errorf("ProtectionState = %s, ожидался PROTECTED", stored.ProtectionState)
	}
}

func TestEnsureProtectionIdempotent(t *testing.T) {
	store := newFakeOrderStore()
	client := &fakeExchangeClient{}
	manager := newTestOCOManager(store, client)
	entry := filledEntry(store)

	if err := manager.EnsureProtection(context.Background(), entry); err != nil {
		t.Fatalf("EnsureProtection: %v", err)
	}
	placedAfterFirst := len(client.placed)

	// Повторная сверка не создаёт новых ордеров
	stored, _ := store.GetByExchangeID("ENTRY-1")
	if err := manager.EnsureProtection(context.Background(), stored); err != nil {
		t.Fatalf("EnsureProtection повтор: %v", err)
	}
	if len(client.placed) != placedAfterFirst {
		t.Errorf("повторная защита разместила новые ордера: %d -> %d", placedAfterFirst, len(client.placed))
	}
}

func TestOnProtectiveFillCancelsSibling(t *testing.T) {
	store := newFakeOrderStore()
	client := &fakeExchangeClient{}
	manager := newTestOCOManager(store, client)
	entry := filledEntry(store)

	if err := manager.EnsureProtection(context.Background(), entry); err != nil {
		t.Fatalf("EnsureProtection: %v", err)
	}

	protective, _ := store.GetActiveProtective("ENTRY-1")
	var tp, sl *models.ExchangeOrder
	for _, o := range protective {
		switch o.Role {
		case models.RoleTakeProfit:
			tp = o
		case models.RoleStopLoss:
			sl = o
		}
	}

	fillTime := time.Now()
	if err := manager.OnProtectiveFill(context.Background(), tp.ExchangeOrderID, fillTime); err != nil {
		t.Fatalf("OnProtectiveFill: %v", err)
	}

	cancelled, _ := store.GetByExchangeID(sl.ExchangeOrderID)
	if cancelled.Status != models.OrderStatusCancelled {
		t.Fatalf("SL Status = %s, ожидался CANCELLED", cancelled.Status)
	}
	if cancelled.CancelledAt == nil || cancelled.CancelledAt.Before(fillTime) {
		t.Error("отметка отмены SL должна быть не раньше отметки исполнения TP")
	}

	winner, _ := store.GetByExchangeID(tp.ExchangeOrderID)
	if winner.Status != models.OrderStatusFilled {
		t.Errorf("TP Status = %s, ожидался FILLED", winner.Status)
	}

	parent, _ := store.GetByExchangeID("ENTRY-1")
	if parent.ProtectionState != models.ProtectionResolved {
		t.Errorf("ProtectionState = %s, ожидался RESOLVED", parent.ProtectionState)
	}
}

func TestOnProtectiveFillDetectsEarlyCancellation(t *testing.T) {
	store := newFakeOrderStore()
	client := &fakeExchangeClient{}
	manager := newTestOCOManager(store, client)
	entry := filledEntry(store)

	if err := manager.EnsureProtection(context.Background(), entry); err != nil {
		t.Fatalf("EnsureProtection: %v", err)
	}

	protective, _ := store.GetActiveProtective("ENTRY-1")
	var tp, sl *models.ExchangeOrder
	for _, o := range protective {
		switch o.Role {
		case models.RoleTakeProfit:
			tp = o
		case models.RoleStopLoss:
			sl = o
		}
	}

	// SL отменён ДО исполнения TP: гонка, должна быть ошибкой
	early := time.Now().Add(-time.Hour)
	store.UpdateStatus(sl.ExchangeOrderID, models.OrderStatusCancelled, nil, &early)

	err := manager.OnProtectiveFill(context.Background(), tp.ExchangeOrderID, time.Now())
	if err == nil {
		t.Fatal("ранняя отмена должна возвращаться как ошибка")
	}
	if !strings.Contains(err.Error(), "race") {
		t.Errorf("ошибка должна указывать на гонку: %v", err)
	}
}

func TestReconcileRecordsEntryFillFromExchange(t *testing.T) {
	store := newFakeOrderStore()
	client := &fakeExchangeClient{}
	manager := newTestOCOManager(store, client)

	// Вход размещён, но fill потерялся: зеркало так и висит ACTIVE
	store.Create(&models.ExchangeOrder{
		ExchangeOrderID: "ENTRY-1",
		Symbol:          "BTCUSDT",
		Side:            models.SideBuy,
		Role:            models.RoleNone,
		Quantity:        0.002,
		Status:          models.OrderStatusActive,
		ProtectionState: models.ProtectionNone,
	})
	filledAt := time.Now().Add(-time.Minute)
	client.placed = append(client.placed, &exchange.Order{
		ID:           "ENTRY-1",
		Symbol:       "BTCUSDT",
		Side:         models.SideBuy,
		Type:         "MARKET",
		Status:       models.OrderStatusFilled,
		Quantity:     0.002,
		FilledQty:    0.002,
		AvgFillPrice: 50000,
		Timestamp:    filledAt,
	})

	if err := manager.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	mirror, err := store.GetByExchangeID("ENTRY-1")
	if err != nil {
		t.Fatalf("GetByExchangeID: %v", err)
	}
	if mirror.Status != models.OrderStatusFilled {
		t.Errorf("Status = %s, ожидался FILLED", mirror.Status)
	}
	if mirror.FilledAt == nil || !mirror.FilledAt.Equal(filledAt) {
		t.Errorf("FilledAt = %v, ожидался %v", mirror.FilledAt, filledAt)
	}
	if mirror.ProtectionState != models.ProtectionActive {
		t.Errorf("ProtectionState = %s, ожидался PROTECTED", mirror.ProtectionState)
	}

	protective, err := store.GetProtectiveGroup(firstGroupID(t, store))
	if err != nil {
		t.Fatalf("GetProtectiveGroup: %v", err)
	}
	if len(protective) != 2 {
		t.Errorf("защитных ордеров %d, ожидалось 2", len(protective))
	}
}

func firstGroupID(t *testing.T, store *fakeOrderStore) string {
	t.Helper()
	for _, o := range store.orders {
		if o.OCOGroupID != nil {
			return *o.OCOGroupID
		}
	}
	t.Fatal("ни у одного ордера нет OCO группы")
	return ""
}
