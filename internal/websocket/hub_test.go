package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"tradegate/internal/models"
)

func TestNewHub(t *testing.T) {
	hub := NewHub(zap.NewNop())
	if hub == nil {
		t.Fatal("NewHub вернул nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("клиентов %d, ожидалось 0", hub.ClientCount())
	}
}

func TestOriginCheckerCheck(t *testing.T) {
	checker := &OriginChecker{
		allowedOrigins: map[string]struct{}{
			"http://localhost:3000": {},
			"https://example.com":   {},
		},
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"https://example.com", true},
		{"http://evil.com", false},
		{"http://localhost:8080", false},
	}

	for _, tt := range tests {
		if got := checker.Check(tt.origin); got != tt.want {
			t.Errorf("Check(%q) = %v, ожидалось %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginCheckerAllowAll(t *testing.T) {
	checker := &OriginChecker{allowAll: true}
	if !checker.Check("http://anything.example") {
		t.Error("allowAll должен пропускать любой origin")
	}
}

func TestBroadcastDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, 8)}
	hub.register <- client

	// Ждём обработку регистрации
	deadline := time.After(time.Second)
	for hub.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatal("клиент не зарегистрировался")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	hub.Broadcast(NewNotificationMessage(&models.Notification{
		ID:       1,
		Type:     models.NotificationTypeSignal,
		Severity: models.SeverityInfo,
		Symbol:   "BTCUSDT",
		Message:  "BUY signal at 50000.00",
	}))

	select {
	case raw := <-client.send:
		var msg NotificationMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("сообщение не парсится: %v", err)
		}
		if msg.Type != MessageTypeNotification {
			t.Errorf("Type = %s", msg.Type)
		}
		if msg.Data == nil || msg.Data.Symbol != "BTCUSDT" {
			t.Errorf("данные алёрта не дошли: %+v", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("сообщение не доставлено")
	}
}

func TestIntentUpdateMessage(t *testing.T) {
	orderID := "EX-1"
	msg := NewIntentUpdateMessage(&models.OrderIntent{
		ID:      7,
		Symbol:  "BTCUSDT",
		Side:    models.SideBuy,
		Status:  models.IntentStatusPlaced,
		Reason:  models.ReasonOrderPlaced,
		OrderID: &orderID,
	})

	if msg.Type != MessageTypeIntentUpdate {
		t.Errorf("Type = %s", msg.Type)
	}
	if msg.IntentID != 7 || msg.Status != models.IntentStatusPlaced {
		t.Errorf("поля интента не скопированы: %+v", msg)
	}
	if msg.OrderID == nil || *msg.OrderID != "EX-1" {
		t.Error("OrderID потерян")
	}
}
