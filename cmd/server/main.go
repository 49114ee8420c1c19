package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tradegate/internal/api"
	"tradegate/internal/bot"
	"tradegate/internal/config"
	"tradegate/internal/exchange"
	"tradegate/internal/models"
	"tradegate/internal/notifier"
	"tradegate/internal/repository"
	signalsource "tradegate/internal/signal"
	"tradegate/internal/websocket"
	"tradegate/pkg/breaker"
	"tradegate/pkg/crypto"
	"tradegate/pkg/retry"
	"tradegate/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	intentRepo := repository.NewIntentRepository(db)
	throttleRepo := repository.NewThrottleRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Метрики
	registry := prometheus.NewRegistry()
	metrics := bot.NewMetrics(registry)

	// Контекст жизни процесса
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// WebSocket hub и уведомления
	hub := websocket.NewHub(logger)
	go hub.Run()

	alerter := notifier.New(notificationRepo, hub, func(n *models.Notification) interface{} {
		return websocket.NewNotificationMessage(n)
	}, logger)
	go alerter.Run(ctx)

	// Клиент биржи и user stream
	apiSecret := cfg.Exchange.APISecret
	if cfg.Exchange.SecretEncrypted {
		apiSecret, err = crypto.Decrypt(apiSecret, cfg.Security.EncryptionKey)
		if err != nil {
			logger.Fatal("failed to decrypt exchange API secret", zap.Error(err))
		}
	}

	client := exchange.NewClient(exchange.ClientConfig{
		BaseURL:   cfg.Exchange.BaseURL,
		APIKey:    cfg.Exchange.APIKey,
		APISecret: apiSecret,
		RateLimit: cfg.Exchange.RateLimit,
	})
	defer client.Close()

	var fills <-chan exchange.Fill
	if cfg.Exchange.StreamURL != "" {
		stream := exchange.NewUserStream(exchange.DefaultStreamConfig(cfg.Exchange.StreamURL), logger)
		go stream.Run(ctx)
		fills = stream.Fills()
	} else {
		// Без user stream исполнения подбирает периодическая сверка OCO
		logger.Warn("EXCHANGE_STREAM_URL is empty, relying on reconciliation for fills")
	}

	// Исходящие вызовы: retry поверх circuit breaker
	exchangeBreaker := breaker.New("exchange", breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Window:           cfg.Breaker.Window,
		Cooldown:         cfg.Breaker.Cooldown,
	})
	executor := bot.NewExecutor(exchangeBreaker, retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Jitter:      cfg.Retry.Jitter,
	}, logger, metrics)

	// Стадии пайплайна
	throttleGate := bot.NewThrottleGate(bot.ThrottleConfig{
		MinInterval:       cfg.Throttle.MinInterval,
		MinPriceChangePct: cfg.Throttle.MinPriceChangePct,
	}, throttleRepo, logger)

	guardrail := bot.NewGuardrailEngine(bot.RiskLimits{
		MaxOpenOrders:               cfg.Risk.MaxOpenOrders,
		MaxOrdersPerSymbolPerDay:    cfg.Risk.MaxOrdersPerSymbolPerDay,
		PortfolioExposureMultiplier: cfg.Risk.PortfolioExposureMultiplier,
		Cooldown:                    cfg.Risk.Cooldown,
		MinEquity:                   cfg.Risk.MinEquity,
		MaxMarginExposure:           cfg.Risk.MaxMarginExposure,
		MaxDailyLossPct:             cfg.Risk.MaxDailyLossPct,
	}, orderRepo, logger, metrics)

	orchestrator := bot.NewOrchestrator(intentRepo, settingsRepo, logger, metrics)

	ocoManager := bot.NewOCOManager(bot.OCOConfig{
		StopLossPct:   cfg.OCO.StopLossPct,
		TakeProfitPct: cfg.OCO.TakeProfitPct,
	}, orderRepo, client, executor, logger, metrics)

	source := signalsource.NewHTTPSource(cfg.Signal.URL, cfg.Signal.Timeout, logger)

	engine := bot.NewEngine(bot.EngineConfig{
		TickPeriod:     cfg.Engine.TickPeriod,
		RequestTimeout: cfg.Engine.RequestTimeout,
		ReconcileEvery: cfg.Engine.ReconcileEvery,
		OrderValue:     cfg.Engine.OrderValue,
		Symbols:        cfg.Engine.Symbols,
	}, source, throttleGate, guardrail, orchestrator, executor, client, orderRepo, ocoManager, alerter, fills, logger, metrics)

	go func() {
		if err := engine.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("engine exited", zap.Error(err))
		}
	}()

	// HTTP поверхность
	router := api.SetupRoutes(&api.Dependencies{
		Intents:       intentRepo,
		Notifications: notificationRepo,
		Throttle:      throttleGate,
		Settings:      settingsRepo,
		Hub:           hub,
		Metrics:       registry,
		APITokenHash:  cfg.Security.APITokenHash,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", zap.Error(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	stop()

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
