package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("EXCHANGE_BASE_URL", "https://api.exchange.test")
	t.Setenv("EXCHANGE_API_KEY", "key")
	t.Setenv("EXCHANGE_API_SECRET", "secret")
	t.Setenv("SYMBOLS", "BTCUSDT,ETHUSDT")
	t.Setenv("SIGNAL_SOURCE_URL", "http://indicators.local/api")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Engine.TickPeriod != 60*time.Second {
		t.Errorf("Engine.TickPeriod = %v, want 60s", cfg.Engine.TickPeriod)
	}
	if len(cfg.Engine.Symbols) != 2 || cfg.Engine.Symbols[0] != "BTCUSDT" {
		t.Errorf("Engine.Symbols = %v, want [BTCUSDT ETHUSDT]", cfg.Engine.Symbols)
	}
	if cfg.Retry.MaxAttempts != 4 {
		t.Errorf("Retry.MaxAttempts = %d, want 4", cfg.Retry.MaxAttempts)
	}
}

func TestLoadRequestTimeoutMustBeShorterThanTick(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TICK_PERIOD", "10s")
	t.Setenv("REQUEST_TIMEOUT", "10s")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error when REQUEST_TIMEOUT >= TICK_PERIOD")
	}
	if !strings.Contains(err.Error(), "REQUEST_TIMEOUT") {
		t.Errorf("error = %v, want mention of REQUEST_TIMEOUT", err)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"bad server port", "SERVER_PORT", "70000", "SERVER_PORT"},
		{"encryption key wrong length", "ENCRYPTION_KEY", "too-short", "ENCRYPTION_KEY"},
		{"too many retries", "RETRY_MAX_ATTEMPTS", "15", "RETRY_MAX_ATTEMPTS"},
		{"jitter out of range", "RETRY_JITTER", "1.5", "RETRY_JITTER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("Load() expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestDSNWithoutPassword(t *testing.T) {
	db := DatabaseConfig{Host: "localhost", Port: 5432, Name: "tradegate", User: "app", Password: "secret", SSLMode: "disable"}
	if strings.Contains(db.DSNWithoutPassword(), "secret") {
		t.Error("DSNWithoutPassword() leaked the password")
	}
	if !strings.Contains(db.DSN(), "password=secret") {
		t.Error("DSN() missing password")
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TEST_LIST", " BTCUSDT , ,ETHUSDT ")
	got := getEnvAsList("TEST_LIST", nil)
	if len(got) != 2 || got[0] != "BTCUSDT" || got[1] != "ETHUSDT" {
		t.Errorf("getEnvAsList() = %v, want [BTCUSDT ETHUSDT]", got)
	}
}
