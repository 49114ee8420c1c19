package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradegate/internal/models"
)

// ============================================================
// ThrottleRepository Tests
// ============================================================

func TestThrottleRepositoryGet(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{
					"id", "symbol", "strategy", "side", "last_price", "last_time", "force_next_signal", "updated_at",
				}).AddRow(1, "BTCUSDT", "rsi_cross", models.SideBuy, 50000.0, now, false, now)
				mock.ExpectQuery(`SELECT (.+) FROM throttle_state`).
					WithArgs("BTCUSDT", "rsi_cross", models.SideBuy).
					WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM throttle_state`).
					WithArgs("BTCUSDT", "rsi_cross", models.SideBuy).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			expectError: ErrThrottleNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewThrottleRepository(db)
			state, err := repo.Get("BTCUSDT", "rsi_cross", models.SideBuy)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected %v, got %v", tt.expectError, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if state.Symbol != "BTCUSDT" || state.Side != models.SideBuy {
					t.Errorf("unexpected state: %+v", state)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestThrottleRepositoryUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	state := &models.ThrottleState{
		Symbol:    "BTCUSDT",
		Strategy:  "rsi_cross",
		Side:      models.SideBuy,
		LastPrice: 50000.0,
		LastTime:  time.Now(),
	}

	mock.ExpectQuery(`INSERT INTO throttle_state`).
		WithArgs("BTCUSDT", "rsi_cross", models.SideBuy, 50000.0, state.LastTime, false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	repo := NewThrottleRepository(db)
	if err := repo.Upsert(state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.ID != 5 {
		t.Errorf("expected ID=5, got %d", state.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

// ConsumeForce возвращает true только если флаг был взведён
func TestThrottleRepositoryConsumeForce(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		expected bool
	}{
		{"flag was set", 1, true},
		{"flag was not set", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`UPDATE throttle_state`).
				WithArgs("BTCUSDT", "rsi_cross", models.SideBuy, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			repo := NewThrottleRepository(db)
			consumed, err := repo.ConsumeForce("BTCUSDT", "rsi_cross", models.SideBuy)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if consumed != tt.expected {
				t.Errorf("expected consumed=%v, got %v", tt.expected, consumed)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestThrottleRepositorySetForce(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO throttle_state`).
		WithArgs("BTCUSDT", "rsi_cross", models.SideBuy, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewThrottleRepository(db)
	if err := repo.SetForce("BTCUSDT", "rsi_cross", models.SideBuy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
