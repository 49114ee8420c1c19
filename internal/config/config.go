package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Exchange ExchangeConfig
	Signal   SignalConfig
	Engine   EngineConfig
	Throttle ThrottleConfig
	OCO      OCOConfig
	Risk     RiskConfig
	Retry    RetryConfig
	Breaker  BreakerConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// APITokenHash - bcrypt хэш операторского API токена;
	// пустой отключает аутентификацию
	APITokenHash string

	// EncryptionKey - ключ AES-256 для шифрования API ключей биржи
	// в хранилище (32 байта)
	EncryptionKey string
}

// ExchangeConfig - настройки клиента биржи
type ExchangeConfig struct {
	BaseURL   string
	StreamURL string
	APIKey    string
	APISecret string
	RateLimit float64

	// SecretEncrypted - EXCHANGE_API_SECRET хранится зашифрованным
	// (AES-256-GCM ключом ENCRYPTION_KEY)
	SecretEncrypted bool
}

// SignalConfig - настройки внешнего индикаторного движка
type SignalConfig struct {
	URL     string
	Timeout time.Duration
}

// EngineConfig - настройки планировщика пайплайна
type EngineConfig struct {
	TickPeriod     time.Duration
	RequestTimeout time.Duration
	ReconcileEvery int
	OrderValue     float64
	Symbols        []string
}

// OCOConfig - отступы защитных ордеров
type OCOConfig struct {
	StopLossPct   float64
	TakeProfitPct float64
}

// ThrottleConfig - настройки троттлинга сигналов
type ThrottleConfig struct {
	MinInterval       time.Duration
	MinPriceChangePct float64
}

// RiskConfig - лимиты риска
type RiskConfig struct {
	MaxOpenOrders               int
	MaxOrdersPerSymbolPerDay    int
	PortfolioExposureMultiplier float64
	Cooldown                    time.Duration
	MinEquity                   float64
	MaxMarginExposure           float64
	MaxDailyLossPct             float64
}

// RetryConfig - параметры повторов исходящих вызовов
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// BreakerConfig - параметры circuit breaker'а
type BreakerConfig struct {
	FailureThreshold int
	Window           time.Duration
	Cooldown         time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из .env и переменных окружения
func Load() (*Config, error) {
	// .env опционален: в контейнере всё приходит из окружения
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "tradegate"),
			User:     getEnv("DB_USER", "tradegate"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			APITokenHash:  getEnv("API_TOKEN_HASH", ""),
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Exchange: ExchangeConfig{
			BaseURL:         getEnv("EXCHANGE_BASE_URL", ""),
			StreamURL:       getEnv("EXCHANGE_STREAM_URL", ""),
			APIKey:          getEnv("EXCHANGE_API_KEY", ""),
			APISecret:       getEnv("EXCHANGE_API_SECRET", ""),
			RateLimit:       getEnvAsFloat("EXCHANGE_RATE_LIMIT", 10),
			SecretEncrypted: getEnvAsBool("EXCHANGE_API_SECRET_ENCRYPTED", false),
		},
		Signal: SignalConfig{
			URL:     getEnv("SIGNAL_SOURCE_URL", ""),
			Timeout: getEnvAsDuration("SIGNAL_SOURCE_TIMEOUT", 5*time.Second),
		},
		Engine: EngineConfig{
			TickPeriod:     getEnvAsDuration("TICK_PERIOD", 60*time.Second),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
			ReconcileEvery: getEnvAsInt("RECONCILE_EVERY", 5),
			OrderValue:     getEnvAsFloat("ORDER_VALUE", 100),
			Symbols:        getEnvAsList("SYMBOLS", nil),
		},
		Throttle: ThrottleConfig{
			MinInterval:       getEnvAsDuration("THROTTLE_MIN_INTERVAL", 60*time.Second),
			MinPriceChangePct: getEnvAsFloat("THROTTLE_MIN_PRICE_CHANGE_PCT", 1.0),
		},
		OCO: OCOConfig{
			StopLossPct:   getEnvAsFloat("OCO_STOP_LOSS_PCT", 2.0),
			TakeProfitPct: getEnvAsFloat("OCO_TAKE_PROFIT_PCT", 4.0),
		},
		Risk: RiskConfig{
			MaxOpenOrders:               getEnvAsInt("RISK_MAX_OPEN_ORDERS", 10),
			MaxOrdersPerSymbolPerDay:    getEnvAsInt("RISK_MAX_ORDERS_PER_SYMBOL_PER_DAY", 5),
			PortfolioExposureMultiplier: getEnvAsFloat("RISK_PORTFOLIO_EXPOSURE_MULTIPLIER", 10),
			Cooldown:                    getEnvAsDuration("RISK_COOLDOWN", 5*time.Minute),
			MinEquity:                   getEnvAsFloat("RISK_MIN_EQUITY", 100),
			MaxMarginExposure:           getEnvAsFloat("RISK_MAX_MARGIN_EXPOSURE", 50000),
			MaxDailyLossPct:             getEnvAsFloat("RISK_MAX_DAILY_LOSS_PCT", 5),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 4),
			BaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", 100*time.Millisecond),
			MaxDelay:    getEnvAsDuration("RETRY_MAX_DELAY", 10*time.Second),
			Jitter:      getEnvAsFloat("RETRY_JITTER", 0.2),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
			Window:           getEnvAsDuration("BREAKER_WINDOW", 5*time.Minute),
			Cooldown:         getEnvAsDuration("BREAKER_COOLDOWN", 2*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate проверяет согласованность конфигурации
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Security.EncryptionKey != "" && len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("EXCHANGE_BASE_URL is required")
	}
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return fmt.Errorf("EXCHANGE_API_KEY and EXCHANGE_API_SECRET are required")
	}
	if c.Exchange.SecretEncrypted && c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required when EXCHANGE_API_SECRET_ENCRYPTED is set")
	}

	if c.Signal.URL == "" {
		return fmt.Errorf("SIGNAL_SOURCE_URL is required")
	}

	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("SYMBOLS is required (comma-separated list)")
	}
	if c.Engine.TickPeriod <= 0 {
		return fmt.Errorf("TICK_PERIOD must be positive, got %v", c.Engine.TickPeriod)
	}
	// Поход к бирже вместе с повторами обязан укладываться в тик,
	// иначе оценки начинают накапливаться
	if c.Engine.RequestTimeout <= 0 || c.Engine.RequestTimeout >= c.Engine.TickPeriod {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive and shorter than TICK_PERIOD, got %v", c.Engine.RequestTimeout)
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be between 1 and 10, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("RETRY_JITTER must be between 0 and 1, got %f", c.Retry.Jitter)
	}

	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be at least 1, got %d", c.Breaker.FailureThreshold)
	}

	if c.OCO.StopLossPct <= 0 || c.OCO.TakeProfitPct <= 0 {
		return fmt.Errorf("OCO_STOP_LOSS_PCT and OCO_TAKE_PROFIT_PCT must be positive")
	}

	if c.Throttle.MinInterval <= 0 {
		return fmt.Errorf("THROTTLE_MIN_INTERVAL must be positive, got %v", c.Throttle.MinInterval)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логов)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}
