package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradegate/internal/models"
)

// Ошибки репозитория троттлинга
var (
	ErrThrottleNotFound = errors.New("throttle state not found")
)

// ThrottleRepository - работа с таблицей throttle_state
//
// Ключ записи: (symbol, strategy, side). BUY и SELL живут в отдельных
// записях. Записи не удаляются - история сохраняется для аудита.
type ThrottleRepository struct {
	db *sql.DB
}

// NewThrottleRepository создает новый экземпляр репозитория
func NewThrottleRepository(db *sql.DB) *ThrottleRepository {
	return &ThrottleRepository{db: db}
}

// Get возвращает состояние троттлинга для ключа
func (r *ThrottleRepository) Get(symbol, strategy, side string) (*models.ThrottleState, error) {
	query := `
		SELECT id, symbol, strategy, side, last_price, last_time, force_next_signal, updated_at
		FROM throttle_state
		WHERE symbol = $1 AND strategy = $2 AND side = $3`

	state := &models.ThrottleState{}
	err := r.db.QueryRow(query, symbol, strategy, side).Scan(
		&state.ID,
		&state.Symbol,
		&state.Strategy,
		&state.Side,
		&state.LastPrice,
		&state.LastTime,
		&state.ForceNextSignal,
		&state.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrThrottleNotFound
		}
		return nil, err
	}

	return state, nil
}

// Upsert записывает снэпшот последнего пропущенного сигнала
//
// Вызывается ТОЛЬКО после того как гейт пропустил сигнал.
func (r *ThrottleRepository) Upsert(state *models.ThrottleState) error {
	query := `
		INSERT INTO throttle_state (symbol, strategy, side, last_price, last_time, force_next_signal, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, strategy, side)
		DO UPDATE SET last_price = EXCLUDED.last_price,
		              last_time = EXCLUDED.last_time,
		              force_next_signal = EXCLUDED.force_next_signal,
		              updated_at = EXCLUDED.updated_at
		RETURNING id`

	state.UpdatedAt = time.Now()

	return r.db.QueryRow(
		query,
		state.Symbol,
		state.Strategy,
		state.Side,
		state.LastPrice,
		state.LastTime,
		state.ForceNextSignal,
		state.UpdatedAt,
	).Scan(&state.ID)
}

// SetForce взводит одноразовый флаг обхода гейтов
//
// Используется оператором когда изменение конфигурации обесценило
// накопленную историю троттлинга.
func (r *ThrottleRepository) SetForce(symbol, strategy, side string) error {
	query := `
		INSERT INTO throttle_state (symbol, strategy, side, last_price, last_time, force_next_signal, updated_at)
		VALUES ($1, $2, $3, 0, $4, TRUE, $4)
		ON CONFLICT (symbol, strategy, side)
		DO UPDATE SET force_next_signal = TRUE, updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(query, symbol, strategy, side, time.Now())
	return err
}

// ConsumeForce атомарно гасит флаг обхода
//
// Возвращает true если флаг был взведён и погашен именно этим вызовом.
// Условный UPDATE гарантирует что при конкурентных оценках флаг
// потребляется ровно один раз.
func (r *ThrottleRepository) ConsumeForce(symbol, strategy, side string) (bool, error) {
	query := `
		UPDATE throttle_state
		SET force_next_signal = FALSE, updated_at = $4
		WHERE symbol = $1 AND strategy = $2 AND side = $3 AND force_next_signal = TRUE`

	result, err := r.db.Exec(query, symbol, strategy, side, time.Now())
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
