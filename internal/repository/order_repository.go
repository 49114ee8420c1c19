package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradegate/internal/models"
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound = errors.New("exchange order not found")
)

// OrderRepository - локальное зеркало ордеров биржи (таблица exchange_orders)
//
// Гардрейлы читают живые счётчики отсюда, а не из кэшей -
// чтобы лимиты не расходились с реальностью.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, exchange_order_id, client_order_id, parent_order_id, oco_group_id, symbol, side, role, quantity, price, status, protection_state, filled_at, cancelled_at, created_at`

// Create создает запись об ордере
func (r *OrderRepository) Create(order *models.ExchangeOrder) error {
	query := `
		INSERT INTO exchange_orders (exchange_order_id, client_order_id, parent_order_id, oco_group_id, symbol, side, role, quantity, price, status, protection_state, filled_at, cancelled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	order.CreatedAt = time.Now()
	if order.ProtectionState == "" {
		order.ProtectionState = models.ProtectionNone
	}

	return r.db.QueryRow(
		query,
		order.ExchangeOrderID,
		order.ClientOrderID,
		order.ParentOrderID,
		order.OCOGroupID,
		order.Symbol,
		order.Side,
		order.Role,
		order.Quantity,
		order.Price,
		order.Status,
		order.ProtectionState,
		order.FilledAt,
		order.CancelledAt,
		order.CreatedAt,
	).Scan(&order.ID)
}

// GetByExchangeID возвращает ордер по биржевому ID
func (r *OrderRepository) GetByExchangeID(exchangeOrderID string) (*models.ExchangeOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM exchange_orders WHERE exchange_order_id = $1`

	order, err := r.scanRow(r.db.QueryRow(query, exchangeOrderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// GetActiveProtective возвращает живые защитные ордера входного ордера
//
// Используется OCO-менеджером как guard от повторного создания пары
// при многократном запуске сверки.
func (r *OrderRepository) GetActiveProtective(parentOrderID string) ([]*models.ExchangeOrder, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM exchange_orders
		WHERE parent_order_id = $1
		  AND role IN ($2, $3)
		  AND status IN ($4, $5, $6)
		ORDER BY created_at`

	rows, err := r.db.Query(query, parentOrderID,
		models.RoleStopLoss, models.RoleTakeProfit,
		models.OrderStatusNew, models.OrderStatusActive, models.OrderStatusPartiallyFilled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// GetProtectiveGroup возвращает оба защитных ордера OCO-группы
func (r *OrderRepository) GetProtectiveGroup(ocoGroupID string) ([]*models.ExchangeOrder, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM exchange_orders
		WHERE oco_group_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(query, ocoGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// GetUnprotectedFilled возвращает исполненные входные ордера без защиты
//
// Кандидаты для OCO-менеджера: fill замечен, защита не выставлена.
func (r *OrderRepository) GetUnprotectedFilled() ([]*models.ExchangeOrder, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM exchange_orders
		WHERE role = $1
		  AND status = $2
		  AND protection_state IN ($3, $4)
		ORDER BY filled_at`

	rows, err := r.db.Query(query,
		models.RoleNone, models.OrderStatusFilled,
		models.ProtectionNone, models.ProtectionPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// GetOpenEntries возвращает входные ордера, ещё не исполненные в зеркале
//
// Используется циклом сверки: вход, чей fill потерялся на user stream,
// находится опросом биржи и доводится до FILLED + защиты.
func (r *OrderRepository) GetOpenEntries() ([]*models.ExchangeOrder, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM exchange_orders
		WHERE role = $1
		  AND status IN ($2, $3, $4)
		ORDER BY created_at`

	rows, err := r.db.Query(query,
		models.RoleNone,
		models.OrderStatusNew, models.OrderStatusActive, models.OrderStatusPartiallyFilled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// GetOpenProtective возвращает все живые защитные ордера
//
// Используется циклом сверки для опроса их статусов на бирже.
func (r *OrderRepository) GetOpenProtective() ([]*models.ExchangeOrder, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM exchange_orders
		WHERE role IN ($1, $2)
		  AND status IN ($3, $4, $5)
		ORDER BY created_at`

	rows, err := r.db.Query(query,
		models.RoleStopLoss, models.RoleTakeProfit,
		models.OrderStatusNew, models.OrderStatusActive, models.OrderStatusPartiallyFilled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// UpdateStatus обновляет статус ордера по результатам сверки
func (r *OrderRepository) UpdateStatus(exchangeOrderID, status string, filledAt, cancelledAt *time.Time) error {
	query := `
		UPDATE exchange_orders
		SET status = $2,
		    filled_at = COALESCE($3, filled_at),
		    cancelled_at = COALESCE($4, cancelled_at)
		WHERE exchange_order_id = $1`

	result, err := r.db.Exec(query, exchangeOrderID, status, filledAt, cancelledAt)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// UpdateProtectionState переводит входной ордер по state machine защиты
func (r *OrderRepository) UpdateProtectionState(exchangeOrderID, state string) error {
	query := `
		UPDATE exchange_orders
		SET protection_state = $2
		WHERE exchange_order_id = $1`

	result, err := r.db.Exec(query, exchangeOrderID, state)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// ============================================================
// Живые счётчики для гардрейлов
// ============================================================

// CountOpen возвращает количество открытых ордеров (все роли)
func (r *OrderRepository) CountOpen() (int, error) {
	query := `
		SELECT COUNT(*)
		FROM exchange_orders
		WHERE status IN ($1, $2, $3)`

	var count int
	err := r.db.QueryRow(query,
		models.OrderStatusNew, models.OrderStatusActive, models.OrderStatusPartiallyFilled).Scan(&count)
	return count, err
}

// CountBySymbolSince возвращает количество входных ордеров по символу
// начиная с момента since (для дневного лимита)
func (r *OrderRepository) CountBySymbolSince(symbol string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM exchange_orders
		WHERE symbol = $1 AND role = $2 AND created_at >= $3`

	var count int
	err := r.db.QueryRow(query, symbol, models.RoleNone, since).Scan(&count)
	return count, err
}

// SumOpenNotional возвращает суммарную стоимость открытых входных ордеров
// (экспозиция портфеля)
func (r *OrderRepository) SumOpenNotional() (float64, error) {
	query := `
		SELECT COALESCE(SUM(quantity * price), 0)
		FROM exchange_orders
		WHERE role = $1 AND status IN ($2, $3, $4, $5)`

	var sum float64
	err := r.db.QueryRow(query, models.RoleNone,
		models.OrderStatusNew, models.OrderStatusActive,
		models.OrderStatusPartiallyFilled, models.OrderStatusFilled).Scan(&sum)
	return sum, err
}

// LastOrderTime возвращает время последнего входного ордера по символу
// (для межордерного cooldown). nil если ордеров не было.
func (r *OrderRepository) LastOrderTime(symbol string) (*time.Time, error) {
	query := `
		SELECT MAX(created_at)
		FROM exchange_orders
		WHERE symbol = $1 AND role = $2`

	var last sql.NullTime
	if err := r.db.QueryRow(query, symbol, models.RoleNone).Scan(&last); err != nil {
		return nil, err
	}

	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

// ============================================================
// Сканирование
// ============================================================

func (r *OrderRepository) scanRow(row rowScanner) (*models.ExchangeOrder, error) {
	order := &models.ExchangeOrder{}
	err := row.Scan(
		&order.ID,
		&order.ExchangeOrderID,
		&order.ClientOrderID,
		&order.ParentOrderID,
		&order.OCOGroupID,
		&order.Symbol,
		&order.Side,
		&order.Role,
		&order.Quantity,
		&order.Price,
		&order.Status,
		&order.ProtectionState,
		&order.FilledAt,
		&order.CancelledAt,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) scanRows(rows *sql.Rows) ([]*models.ExchangeOrder, error) {
	var orders []*models.ExchangeOrder
	for rows.Next() {
		order, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
