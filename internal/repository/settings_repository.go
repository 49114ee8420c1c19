package repository

import (
	"database/sql"
	"errors"
	"time"
)

// Ошибки репозитория настроек
var (
	ErrSettingsNotFound = errors.New("settings not found")
)

// Settings - runtime-настройки пайплайна (единственная строка)
type Settings struct {
	TradingEnabled bool      `json:"trading_enabled" db:"trading_enabled"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// SettingsRepository - kill switch и runtime-настройки (таблица settings)
//
// Флаг trading_enabled читается оркестратором на каждом claim,
// поэтому выключение применяется без рестарта процесса.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get возвращает текущие настройки
func (r *SettingsRepository) Get() (*Settings, error) {
	query := `SELECT trading_enabled, updated_at FROM settings WHERE id = 1`

	s := &Settings{}
	err := r.db.QueryRow(query).Scan(&s.TradingEnabled, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}

	return s, nil
}

// TradingEnabled возвращает состояние kill switch
//
// Отсутствие строки настроек трактуется как "торговля выключена" -
// безопасный дефолт.
func (r *SettingsRepository) TradingEnabled() (bool, error) {
	s, err := r.Get()
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.TradingEnabled, nil
}

// SetTradingEnabled переключает kill switch
func (r *SettingsRepository) SetTradingEnabled(enabled bool) error {
	query := `
		INSERT INTO settings (id, trading_enabled, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id)
		DO UPDATE SET trading_enabled = EXCLUDED.trading_enabled, updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(query, enabled, time.Now())
	return err
}
