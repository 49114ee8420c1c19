package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeForcer struct {
	calls [][3]string
}

func (f *fakeForcer) Force(symbol, strategy, side string) error {
	f.calls = append(f.calls, [3]string{symbol, strategy, side})
	return nil
}

func TestForceNext(t *testing.T) {
	forcer := &fakeForcer{}
	handler := NewThrottleHandler(forcer)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/throttle/force",
		strings.NewReader(`{"symbol":"btcusdt","strategy":"rsi","side":"BUY"}`))
	rec := httptest.NewRecorder()
	handler.ForceNext(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if len(forcer.calls) != 1 {
		t.Fatalf("вызовов Force %d, ожидался 1", len(forcer.calls))
	}
	// Символ нормализуется к верхнему регистру
	if forcer.calls[0] != [3]string{"BTCUSDT", "rsi", "BUY"} {
		t.Errorf("аргументы Force: %v", forcer.calls[0])
	}
}

func TestForceNextValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"невалидная сторона", `{"symbol":"BTCUSDT","strategy":"rsi","side":"HOLD"}`},
		{"пустая стратегия", `{"symbol":"BTCUSDT","strategy":"","side":"BUY"}`},
		{"пустой символ", `{"symbol":"","strategy":"rsi","side":"BUY"}`},
		{"битый JSON", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forcer := &fakeForcer{}
			handler := NewThrottleHandler(forcer)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/throttle/force", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ForceNext(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, ожидался 400", rec.Code)
			}
			if len(forcer.calls) != 0 {
				t.Error("Force не должен вызываться при невалидном запросе")
			}
		})
	}
}
