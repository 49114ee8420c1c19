package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradegate/internal/repository"
)

type fakeSettingsStore struct {
	enabled bool
	updates []bool
}

func (s *fakeSettingsStore) Get() (*repository.Settings, error) {
	return &repository.Settings{TradingEnabled: s.enabled, UpdatedAt: time.Now()}, nil
}

func (s *fakeSettingsStore) SetTradingEnabled(enabled bool) error {
	s.enabled = enabled
	s.updates = append(s.updates, enabled)
	return nil
}

func TestGetSettings(t *testing.T) {
	handler := NewSettingsHandler(&fakeSettingsStore{enabled: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	rec := httptest.NewRecorder()
	handler.GetSettings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Data repository.Settings `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.TradingEnabled {
		t.Error("TradingEnabled = false, ожидалось true")
	}
}

func TestUpdateSettings(t *testing.T) {
	store := &fakeSettingsStore{enabled: true}
	handler := NewSettingsHandler(store)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/settings",
		strings.NewReader(`{"trading_enabled": false}`))
	rec := httptest.NewRecorder()
	handler.UpdateSettings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if len(store.updates) != 1 || store.updates[0] != false {
		t.Errorf("kill switch не переключён: %v", store.updates)
	}
}

func TestUpdateSettingsRejectsMissingField(t *testing.T) {
	handler := NewSettingsHandler(&fakeSettingsStore{})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/settings", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.UpdateSettings(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, ожидался 400", rec.Code)
	}
}
