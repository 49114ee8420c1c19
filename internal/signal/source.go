// Package signal подключает внешний индикаторный движок.
package signal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"tradegate/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPSource опрашивает индикаторный движок по REST
//
// Движок считает RSI/MA/EMA/volume сам и отдаёт готовое решение.
// Источник не кэширует ответы: каждый тик запрашивает свежую оценку.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPSource создаёт источник сигналов
func NewHTTPSource(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Evaluate запрашивает оценку символа у индикаторного движка
func (s *HTTPSource) Evaluate(ctx context.Context, symbol string) (*models.Signal, error) {
	endpoint := fmt.Sprintf("%s/evaluate?symbol=%s", s.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build signal request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signal source unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signal source returned status %d", resp.StatusCode)
	}

	var sig models.Signal
	if err := json.NewDecoder(resp.Body).Decode(&sig); err != nil {
		return nil, fmt.Errorf("failed to decode signal: %w", err)
	}

	if sig.Symbol == "" {
		sig.Symbol = symbol
	}
	if sig.Time.IsZero() {
		sig.Time = time.Now().UTC()
	}

	return &sig, nil
}
