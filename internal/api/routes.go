// Package api собирает HTTP поверхность операторского интерфейса.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tradegate/internal/api/handlers"
	"tradegate/internal/api/middleware"
	"tradegate/internal/websocket"
)

// Dependencies - зависимости HTTP handlers
type Dependencies struct {
	Intents       handlers.IntentStore
	Notifications handlers.NotificationStore
	Throttle      handlers.ThrottleForcer
	Settings      handlers.SettingsStore
	Hub           *websocket.Hub
	Metrics       prometheus.Gatherer

	// APITokenHash - bcrypt хэш операторского токена; пустой
	// отключает аутентификацию
	APITokenHash string

	Logger *zap.Logger
}

// SetupRoutes настраивает маршруты приложения
//
// Структура:
//
//	/api/v1/
//	  ├── /intents            GET  - журнал интентов
//	  ├── /intents/stats      GET  - счётчики по статусам
//	  ├── /intents/{id}       GET  - один интент
//	  ├── /notifications      GET  - журнал алёртов
//	  ├── /throttle/force     POST - одноразовый обход троттлинга
//	  └── /settings           GET/PATCH - kill switch
//	/ws/stream   - WebSocket для real-time событий
//	/metrics     - Prometheus
//	/health      - liveness probe
//
// Middleware: Recovery → Logging → CORS глобально, Auth на /api/v1.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(deps.APITokenHash))

	if deps.Intents != nil {
		intentHandler := handlers.NewIntentHandler(deps.Intents)
		api.HandleFunc("/intents", intentHandler.GetIntents).Methods("GET")
		api.HandleFunc("/intents/stats", intentHandler.GetIntentStats).Methods("GET")
		api.HandleFunc("/intents/{id:[0-9]+}", intentHandler.GetIntent).Methods("GET")
	}

	if deps.Notifications != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.Notifications)
		api.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	}

	if deps.Throttle != nil {
		throttleHandler := handlers.NewThrottleHandler(deps.Throttle)
		api.HandleFunc("/throttle/force", throttleHandler.ForceNext).Methods("POST")
	}

	if deps.Settings != nil {
		settingsHandler := handlers.NewSettingsHandler(deps.Settings)
		api.HandleFunc("/settings", settingsHandler.GetSettings).Methods("GET")
		api.HandleFunc("/settings", settingsHandler.UpdateSettings).Methods("PATCH")
	}

	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	if deps.Metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
