package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"tradegate/internal/models"
)

// Ошибки репозитория intents
var (
	ErrIntentNotFound  = errors.New("order intent not found")
	ErrDuplicateIntent = errors.New("intent with this idempotency key already exists")
)

// uniqueViolation - код ошибки PostgreSQL для нарушения уникального констрейнта
const uniqueViolation = "23505"

// IntentRepository - работа с таблицей order_intents
//
// Уникальный констрейнт на idempotency_key - это внешний контракт
// всего пайплайна: атомарный claim оркестратора опирается именно
// на него, других блокировок нет.
type IntentRepository struct {
	db *sql.DB
}

// NewIntentRepository создает новый экземпляр репозитория
func NewIntentRepository(db *sql.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

// Create атомарно создает запись о намерении
//
// Ровно один конкурентный вызов с данным idempotency_key выигрывает
// вставку; остальные получают ErrDuplicateIntent. Это путь успешной
// дедупликации, а не сбой.
func (r *IntentRepository) Create(intent *models.OrderIntent) error {
	query := `
		INSERT INTO order_intents (idempotency_key, signal_id, symbol, side, strategy, price, status, reason, order_id, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	intent.CreatedAt = time.Now()

	err := r.db.QueryRow(
		query,
		intent.IdempotencyKey,
		intent.SignalID,
		intent.Symbol,
		intent.Side,
		intent.Strategy,
		intent.Price,
		intent.Status,
		intent.Reason,
		intent.OrderID,
		intent.ErrorMessage,
		intent.CreatedAt,
	).Scan(&intent.ID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateIntent
		}
		return err
	}

	return nil
}

// GetByKey возвращает намерение по idempotency key
func (r *IntentRepository) GetByKey(key string) (*models.OrderIntent, error) {
	query := `
		SELECT id, idempotency_key, signal_id, symbol, side, strategy, price, status, reason, order_id, error_message, created_at, updated_at
		FROM order_intents
		WHERE idempotency_key = $1`

	return r.scanOne(r.db.QueryRow(query, key))
}

// GetByID возвращает намерение по ID
func (r *IntentRepository) GetByID(id int64) (*models.OrderIntent, error) {
	query := `
		SELECT id, idempotency_key, signal_id, symbol, side, strategy, price, status, reason, order_id, error_message, created_at, updated_at
		FROM order_intents
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetRecent возвращает последние N намерений
func (r *IntentRepository) GetRecent(limit int) ([]*models.OrderIntent, error) {
	query := `
		SELECT id, idempotency_key, signal_id, symbol, side, strategy, price, status, reason, order_id, error_message, created_at, updated_at
		FROM order_intents
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []*models.OrderIntent
	for rows.Next() {
		intent, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return intents, nil
}

// UpdateStatus записывает терминальный исход попытки ордера
func (r *IntentRepository) UpdateStatus(id int64, status, reason string, orderID *string, errorMessage string) error {
	query := `
		UPDATE order_intents
		SET status = $2, reason = $3, order_id = $4, error_message = $5, updated_at = $6
		WHERE id = $1`

	result, err := r.db.Exec(query, id, status, reason, orderID, errorMessage, time.Now())
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrIntentNotFound
	}

	return nil
}

// CountByStatus возвращает количество намерений в указанном статусе
func (r *IntentRepository) CountByStatus(status string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM order_intents WHERE status = $1`, status).Scan(&count)
	return count, err
}

// rowScanner - общий интерфейс для *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *IntentRepository) scanOne(row *sql.Row) (*models.OrderIntent, error) {
	intent, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return intent, nil
}

func (r *IntentRepository) scanRow(row rowScanner) (*models.OrderIntent, error) {
	intent := &models.OrderIntent{}
	err := row.Scan(
		&intent.ID,
		&intent.IdempotencyKey,
		&intent.SignalID,
		&intent.Symbol,
		&intent.Side,
		&intent.Strategy,
		&intent.Price,
		&intent.Status,
		&intent.Reason,
		&intent.OrderID,
		&intent.ErrorMessage,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return intent, nil
}
