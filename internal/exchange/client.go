package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"tradegate/pkg/ratelimit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ClientConfig - конфигурация REST клиента биржи
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string

	// RateLimit - запросов в секунду к REST API
	RateLimit float64

	HTTP HTTPClientConfig
}

// restClient - подписанный REST клиент биржи
//
// Подписывает каждый приватный запрос HMAC-SHA256 над канонической
// строкой (отсортированные параметры + nonce). Nonce строго растёт
// в пределах процесса - atomic счётчик, стартующий с UnixNano.
//
// Клиент НЕ делает повторов: retry и circuit breaker живут снаружи,
// чтобы состояние отказов разделялось всеми вызовами.
type restClient struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	nonce      atomic.Int64
}

// NewClient создаёт клиент биржи
func NewClient(cfg ClientConfig) Client {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.HTTP.TotalTimeout == 0 {
		cfg.HTTP = DefaultHTTPClientConfig()
	}

	c := &restClient{
		cfg:        cfg,
		httpClient: newHTTPClient(cfg.HTTP),
		limiter:    ratelimit.NewRateLimiter(cfg.RateLimit, cfg.RateLimit*2),
	}
	c.nonce.Store(time.Now().UnixNano())

	return c
}

// nextNonce возвращает следующий строго возрастающий nonce
func (c *restClient) nextNonce() int64 {
	return c.nonce.Add(1)
}

// sign строит подпись HMAC-SHA256 над канонической строкой запроса
//
// Каноническая строка: параметры, отсортированные по ключу,
// в виде k=v&k=v (nonce и timestamp уже включены в параметры).
func (c *restClient) sign(canonical string) string {
	h := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalQuery сортирует параметры и кодирует их в каноническую строку
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// baseResponse - общий конверт ответа биржи; code 0 = успех
type baseResponse struct {
	Code    int                 `json:"code"`
	Message string              `json:"msg"`
	Data    jsoniter.RawMessage `json:"data"`
}

// doRequest выполняет подписанный запрос и разворачивает конверт ответа
func (c *restClient) doRequest(ctx context.Context, method, endpoint string, params map[string]string) (jsoniter.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if params == nil {
		params = make(map[string]string)
	}
	params["timestamp"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	params["nonce"] = strconv.FormatInt(c.nextNonce(), 10)

	query := canonicalQuery(params)
	signature := c.sign(query)

	var reqURL, reqBody string
	if method == http.MethodGet || method == http.MethodDelete {
		reqURL = c.cfg.BaseURL + endpoint + "?" + query
	} else {
		reqURL = c.cfg.BaseURL + endpoint
		reqBody = query
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("X-SIGNATURE", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var base baseResponse
	if err := json.Unmarshal(body, &base); err != nil {
		return nil, &ExchangeError{
			Code:       codeUnknown,
			HTTPStatus: resp.StatusCode,
			Message:    truncate(string(body), 200),
		}
	}

	if base.Code != 0 || resp.StatusCode >= 400 {
		return nil, &ExchangeError{
			Code:       base.Code,
			HTTPStatus: resp.StatusCode,
			Message:    truncate(base.Message, 200),
		}
	}

	return base.Data, nil
}

// truncate ограничивает длину сообщения об ошибке для хранения/логов
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// orderResponse - ордер в формате биржи
type orderResponse struct {
	OrderID       string `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Quantity      string `json:"origQty"`
	FilledQty     string `json:"executedQty"`
	AvgPrice      string `json:"avgPrice"`
	StopPrice     string `json:"stopPrice"`
	UpdateTime    int64  `json:"updateTime"`
}

func (r *orderResponse) toOrder() *Order {
	qty, _ := strconv.ParseFloat(r.Quantity, 64)
	filled, _ := strconv.ParseFloat(r.FilledQty, 64)
	avg, _ := strconv.ParseFloat(r.AvgPrice, 64)
	stop, _ := strconv.ParseFloat(r.StopPrice, 64)

	return &Order{
		ID:            r.OrderID,
		ClientOrderID: r.ClientOrderID,
		Symbol:        r.Symbol,
		Side:          r.Side,
		Type:          r.Type,
		Status:        r.Status,
		Quantity:      qty,
		FilledQty:     filled,
		AvgFillPrice:  avg,
		StopPrice:     stop,
		Timestamp:     time.UnixMilli(r.UpdateTime),
	}
}

func (c *restClient) placeOrder(ctx context.Context, params map[string]string) (*Order, error) {
	params["newClientOrderId"] = uuid.NewString()

	data, err := c.doRequest(ctx, http.MethodPost, "/api/v1/order", params)
	if err != nil {
		return nil, err
	}

	var resp orderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	return resp.toOrder(), nil
}

func (c *restClient) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*Order, error) {
	return c.placeOrder(ctx, map[string]string{
		"symbol":   symbol,
		"side":     side,
		"type":     "MARKET",
		"quantity": strconv.FormatFloat(qty, 'f', -1, 64),
	})
}

func (c *restClient) PlaceStopLoss(ctx context.Context, symbol, side string, qty, stopPrice float64) (*Order, error) {
	return c.placeOrder(ctx, map[string]string{
		"symbol":    symbol,
		"side":      side,
		"type":      "STOP_LOSS",
		"quantity":  strconv.FormatFloat(qty, 'f', -1, 64),
		"stopPrice": strconv.FormatFloat(stopPrice, 'f', -1, 64),
	})
}

func (c *restClient) PlaceTakeProfit(ctx context.Context, symbol, side string, qty, limitPrice float64) (*Order, error) {
	return c.placeOrder(ctx, map[string]string{
		"symbol":   symbol,
		"side":     side,
		"type":     "TAKE_PROFIT",
		"quantity": strconv.FormatFloat(qty, 'f', -1, 64),
		"price":    strconv.FormatFloat(limitPrice, 'f', -1, 64),
	})
}

func (c *restClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/api/v1/order", map[string]string{
		"symbol":  symbol,
		"orderId": orderID,
	})
	return err
}

func (c *restClient) GetOrder(ctx context.Context, symbol, orderID string) (*Order, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/v1/order", map[string]string{
		"symbol":  symbol,
		"orderId": orderID,
	})
	if err != nil {
		return nil, err
	}

	var resp orderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	return resp.toOrder(), nil
}

func (c *restClient) GetBalance(ctx context.Context) (float64, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/v1/account/balance", map[string]string{
		"asset": "USDT",
	})
	if err != nil {
		return 0, err
	}

	var resp struct {
		Free string `json:"free"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode balance response: %w", err)
	}

	balance, _ := strconv.ParseFloat(resp.Free, 64)
	return balance, nil
}

func (c *restClient) Close() error {
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
