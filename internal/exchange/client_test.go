package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

const testSecret = "test-secret"

func newTestClient(serverURL string) Client {
	return NewClient(ClientConfig{
		BaseURL:   serverURL,
		APIKey:    "test-key",
		APISecret: testSecret,
		RateLimit: 1000,
		HTTP:      DefaultHTTPClientConfig(),
	})
}

func expectedSignature(canonical string) string {
	h := hmac.New(sha256.New, []byte(testSecret))
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

func TestPlaceMarketOrderSignature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, ожидался POST", r.Method)
		}
		if r.Header.Get("X-API-KEY") != "test-key" {
			t.Errorf("X-API-KEY = %s", r.Header.Get("X-API-KEY"))
		}

		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}

		// Подпись должна совпадать с HMAC над канонической строкой
		params := make(map[string]string)
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		canonical := canonicalQuery(params)
		if got := r.Header.Get("X-SIGNATURE"); got != expectedSignature(canonical) {
			t.Errorf("подпись не совпадает: %s", got)
		}

		if r.PostForm.Get("symbol") != "BTCUSDT" {
			t.Errorf("symbol = %s", r.PostForm.Get("symbol"))
		}
		if r.PostForm.Get("type") != "MARKET" {
			t.Errorf("type = %s", r.PostForm.Get("type"))
		}
		if r.PostForm.Get("newClientOrderId") == "" {
			t.Error("newClientOrderId пуст")
		}

		w.Write([]byte(`{"code":0,"data":{"orderId":"12345","symbol":"BTCUSDT","side":"BUY","status":"FILLED","origQty":"0.5","executedQty":"0.5","avgPrice":"50100.0","updateTime":1700000000000}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	defer client.Close()

	order, err := client.PlaceMarketOrder(context.Background(), "BTCUSDT", "BUY", 0.5)
	if err != nil {
		t.Fatalf("PlaceMarketOrder: %v", err)
	}

	if order.ID != "12345" {
		t.Errorf("ID = %s, ожидался 12345", order.ID)
	}
	if order.Status != "FILLED" {
		t.Errorf("Status = %s, ожидался FILLED", order.Status)
	}
	if order.AvgFillPrice != 50100.0 {
		t.Errorf("AvgFillPrice = %f", order.AvgFillPrice)
	}
}

func TestNonceStrictlyIncreasing(t *testing.T) {
	var nonces []int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.ParseInt(r.URL.Query().Get("nonce"), 10, 64)
		if err != nil {
			t.Errorf("nonce не число: %v", err)
		}
		nonces = append(nonces, n)
		w.Write([]byte(`{"code":0,"data":{"orderId":"1"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	defer client.Close()

	for i := 0; i < 5; i++ {
		if _, err := client.GetOrder(context.Background(), "BTCUSDT", "1"); err != nil {
			t.Fatalf("GetOrder: %v", err)
		}
	}

	if len(nonces) != 5 {
		t.Fatalf("получено %d запросов, ожидалось 5", len(nonces))
	}
	for i := 1; i < len(nonces); i++ {
		if nonces[i] <= nonces[i-1] {
			t.Errorf("nonce не растёт: %d после %d", nonces[i], nonces[i-1])
		}
	}
}

func TestExchangeErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		httpStatus    int
		body          string
		wantCode      int
		wantRetryable bool
	}{
		{
			name:          "недостаточно средств",
			httpStatus:    http.StatusBadRequest,
			body:          `{"code":-2010,"msg":"insufficient balance"}`,
			wantCode:      -2010,
			wantRetryable: false,
		},
		{
			name:          "неверная подпись",
			httpStatus:    http.StatusUnauthorized,
			body:          `{"code":-1022,"msg":"signature invalid"}`,
			wantCode:      -1022,
			wantRetryable: false,
		},
		{
			name:          "rate limit",
			httpStatus:    http.StatusTooManyRequests,
			body:          `{"code":-1003,"msg":"too many requests"}`,
			wantCode:      -1003,
			wantRetryable: true,
		},
		{
			name:          "внутренняя ошибка биржи",
			httpStatus:    http.StatusInternalServerError,
			body:          `{"code":-1000,"msg":"internal error"}`,
			wantCode:      -1000,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.httpStatus)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			defer client.Close()

			_, err := client.PlaceMarketOrder(context.Background(), "BTCUSDT", "BUY", 1)
			if err == nil {
				t.Fatal("ожидалась ошибка")
			}

			var exErr *ExchangeError
			if !errors.As(err, &exErr) {
				t.Fatalf("ожидался *ExchangeError, получено %T", err)
			}
			if exErr.Code != tt.wantCode {
				t.Errorf("Code = %d, ожидался %d", exErr.Code, tt.wantCode)
			}
			if exErr.Retryable() != tt.wantRetryable {
				t.Errorf("Retryable() = %v, ожидалось %v", exErr.Retryable(), tt.wantRetryable)
			}
		})
	}
}

func TestCancelOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Method = %s, ожидался DELETE", r.Method)
		}
		if r.URL.Query().Get("orderId") != "777" {
			t.Errorf("orderId = %s", r.URL.Query().Get("orderId"))
		}
		w.Write([]byte(`{"code":0}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	defer client.Close()

	if err := client.CancelOrder(context.Background(), "BTCUSDT", "777"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
}

func TestCanonicalQuerySorted(t *testing.T) {
	got := canonicalQuery(map[string]string{
		"symbol":    "BTCUSDT",
		"nonce":     "42",
		"timestamp": "1700000000000",
		"side":      "BUY",
	})
	want := "nonce=42&side=BUY&symbol=BTCUSDT&timestamp=1700000000000"
	if got != want {
		t.Errorf("canonicalQuery = %q, ожидалось %q", got, want)
	}
}
