package repository

import (
	"database/sql"
	"time"

	"tradegate/internal/models"
)

// NotificationRepository - журнал алертов пайплайна (таблица notifications)
//
// Сами алерты уходят клиентам через websocket hub fire-and-forget;
// здесь хранится история для операторского API.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create сохраняет уведомление
func (r *NotificationRepository) Create(notif *models.Notification) error {
	query := `
		INSERT INTO notifications (timestamp, type, severity, symbol, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	if notif.Timestamp.IsZero() {
		notif.Timestamp = time.Now()
	}

	return r.db.QueryRow(
		query,
		notif.Timestamp,
		notif.Type,
		notif.Severity,
		notif.Symbol,
		notif.Message,
	).Scan(&notif.ID)
}

// GetRecent возвращает последние N уведомлений
func (r *NotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, symbol, message
		FROM notifications
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.ID, &n.Timestamp, &n.Type, &n.Severity, &n.Symbol, &n.Message); err != nil {
			return nil, err
		}
		notifs = append(notifs, n)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return notifs, nil
}

// DeleteOlderThan удаляет уведомления старше указанного момента
func (r *NotificationRepository) DeleteOlderThan(olderThan time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM notifications WHERE timestamp < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
