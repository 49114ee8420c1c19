package exchange

import (
	"context"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// StreamConfig - конфигурация подписки на user stream
type StreamConfig struct {
	URL string

	// ReconnectDelay - пауза перед переподключением
	ReconnectDelay time.Duration

	// PingInterval - интервал keepalive пингов
	PingInterval time.Duration
}

// DefaultStreamConfig возвращает конфигурацию по умолчанию
func DefaultStreamConfig(url string) StreamConfig {
	return StreamConfig{
		URL:            url,
		ReconnectDelay: 5 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

// UserStream - подписка на события исполнения ордеров
//
// Держит websocket соединение с биржей и переподключается при
// обрывах. События Fill публикуются в канал; при заполненном
// канале событие дропается с warn - сверка через OCO Reconcile
// подберёт пропущенный fill.
type UserStream struct {
	cfg    StreamConfig
	logger *zap.Logger
	fills  chan Fill
}

// NewUserStream создаёт подписку на user stream
func NewUserStream(cfg StreamConfig, logger *zap.Logger) *UserStream {
	return &UserStream{
		cfg:    cfg,
		logger: logger,
		fills:  make(chan Fill, 256),
	}
}

// Fills возвращает канал событий исполнения
func (s *UserStream) Fills() <-chan Fill {
	return s.fills
}

// Run держит соединение до отмены контекста
func (s *UserStream) Run(ctx context.Context) {
	for {
		if err := s.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("user stream disconnected, reconnecting",
				zap.Error(err),
				zap.Duration("delay", s.cfg.ReconnectDelay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

// streamEvent - событие исполнения в формате биржи
type streamEvent struct {
	EventType string `json:"e"`
	OrderID   string `json:"i"`
	Symbol    string `json:"s"`
	Side      string `json:"S"`
	Status    string `json:"X"`
	FilledQty string `json:"z"`
	AvgPrice  string `json:"ap"`
	EventTime int64  `json:"E"`
}

func (s *UserStream) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.logger.Info("user stream connected", zap.String("url", s.cfg.URL))

	// Закрываем соединение при отмене контекста, чтобы разблокировать ReadMessage
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go s.keepAlive(ctx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event streamEvent
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.Warn("failed to decode stream event", zap.Error(err))
			continue
		}

		if event.EventType != "executionReport" {
			continue
		}

		fill := Fill{
			OrderID:   event.OrderID,
			Symbol:    event.Symbol,
			Side:      event.Side,
			Status:    event.Status,
			Qty:       parseFloat(event.FilledQty),
			Price:     parseFloat(event.AvgPrice),
			Timestamp: time.UnixMilli(event.EventTime),
		}

		select {
		case s.fills <- fill:
		default:
			s.logger.Warn("fill channel full, dropping event",
				zap.String("order_id", fill.OrderID),
				zap.String("symbol", fill.Symbol))
		}
	}
}

func (s *UserStream) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
