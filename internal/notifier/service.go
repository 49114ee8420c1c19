// Package notifier доставляет алёрты пайплайна: в журнал БД и
// подключённым операторским клиентам через WebSocket.
package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradegate/internal/models"
	"tradegate/internal/repository"
)

// Broadcaster - нужная нотификатору часть WebSocket hub'а
//
// Интерфейс разрывает циклическую зависимость пакетов и
// подменяется в тестах.
type Broadcaster interface {
	Broadcast(message interface{})
}

// retentionPeriod - сколько хранить журнал алёртов
const retentionPeriod = 30 * 24 * time.Hour

// Service принимает алёрты и доставляет их асинхронно
//
// Notify никогда не блокирует пайплайн: алёрт кладётся в
// буферизованный канал, при переполнении дропается с warn.
// Доставка (запись в БД + broadcast) идёт в одной горутине Run.
type Service struct {
	repo   *repository.NotificationRepository
	hub    Broadcaster
	wrap   func(n *models.Notification) interface{}
	logger *zap.Logger
	queue  chan *models.Notification
}

// New создаёт сервис алёртов
//
// wrap оборачивает уведомление в WebSocket сообщение; передаётся
// снаружи, чтобы notifier не зависел от пакета websocket.
func New(repo *repository.NotificationRepository, hub Broadcaster, wrap func(n *models.Notification) interface{}, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		hub:    hub,
		wrap:   wrap,
		logger: logger,
		queue:  make(chan *models.Notification, 256),
	}
}

// Notify ставит алёрт в очередь доставки; fire-and-forget
func (s *Service) Notify(n *models.Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	select {
	case s.queue <- n:
	default:
		s.logger.Warn("notification queue full, alert dropped",
			zap.String("type", n.Type),
			zap.String("symbol", n.Symbol))
	}
}

// Run доставляет алёрты до отмены контекста
func (s *Service) Run(ctx context.Context) {
	cleanup := time.NewTicker(24 * time.Hour)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.queue:
			s.deliver(n)
		case <-cleanup.C:
			s.cleanupOld()
		}
	}
}

func (s *Service) deliver(n *models.Notification) {
	if err := s.repo.Create(n); err != nil {
		// Алёрт всё равно уходит в broadcast: журнал вторичен
		s.logger.Error("failed to persist notification", zap.Error(err))
	}

	if s.hub != nil {
		msg := interface{}(n)
		if s.wrap != nil {
			msg = s.wrap(n)
		}
		s.hub.Broadcast(msg)
	}
}

func (s *Service) cleanupOld() {
	removed, err := s.repo.DeleteOlderThan(time.Now().Add(-retentionPeriod))
	if err != nil {
		s.logger.Error("failed to clean up old notifications", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("old notifications removed", zap.Int64("count", removed))
	}
}
