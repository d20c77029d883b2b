package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultAnalyticsURL = "http://localhost:8000"

type Config struct {
	LogLevel   string
	LogFormat  string
	Server     ServerConfig
	Analytics  AnalyticsConfig
	Polling    PollingConfig
	Discovery  DiscoveryConfig
	Cache      CacheConfig
	NATS       NATSConfig
	CloudWatch CloudWatchConfig
	Security   SecurityConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AnalyticsConfig описывает подключение к backend аналитики.
type AnalyticsConfig struct {
	RCABaseURL     string
	UEBABaseURL    string
	RequestTimeout time.Duration
	RetryAttempts  uint
	RetryDelay     time.Duration
	RequestsPerSec float64
	Burst          int
	BreakerTimeout time.Duration
	MaxBodyBytes   int64
}

type PollingConfig struct {
	Interval time.Duration
}

// DiscoveryConfig включает поиск backend сервисов в Kubernetes.
type DiscoveryConfig struct {
	Enabled         bool
	Namespace       string
	RefreshInterval time.Duration
	RCASelector     string
	UEBASelector    string
}

type CacheConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	PoolSize int
}

type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
	JetStream     bool
}

type CloudWatchConfig struct {
	Enabled       bool
	Region        string
	Namespace     string
	FlushInterval time.Duration
	BatchSize     int
}

type SecurityConfig struct {
	AllowedOrigins []string
	AuthEnabled    bool
	AuthToken      string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	pollInterval, err := parseDuration(getEnv("POLL_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}

	requestTimeout, err := parseDuration(getEnv("ANALYTICS_REQUEST_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYTICS_REQUEST_TIMEOUT: %w", err)
	}

	retryAttempts, err := strconv.Atoi(getEnv("ANALYTICS_RETRY_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYTICS_RETRY_ATTEMPTS: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	// Базовые URL: сначала сервис-специфичный, затем общий API_BASE_URL
	sharedURL := getEnv("API_BASE_URL", defaultAnalyticsURL)

	cfg := &Config{
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Analytics: AnalyticsConfig{
			RCABaseURL:     strings.TrimRight(getEnv("RCA_API_BASE_URL", sharedURL), "/"),
			UEBABaseURL:    strings.TrimRight(getEnv("UEBA_API_BASE_URL", sharedURL), "/"),
			RequestTimeout: requestTimeout,
			RetryAttempts:  uint(retryAttempts),
			RetryDelay:     getEnvDuration("ANALYTICS_RETRY_DELAY", 200*time.Millisecond),
			RequestsPerSec: getEnvFloat("ANALYTICS_RPS", 20),
			Burst:          getEnvInt("ANALYTICS_BURST", 20),
			BreakerTimeout: getEnvDuration("ANALYTICS_BREAKER_TIMEOUT", 30*time.Second),
			MaxBodyBytes:   int64(getEnvInt("ANALYTICS_MAX_BODY_MB", 4)) * 1024 * 1024,
		},
		Polling: PollingConfig{
			Interval: pollInterval,
		},
		Discovery: DiscoveryConfig{
			Enabled:         getEnvBool("K8S_DISCOVERY_ENABLED", false),
			Namespace:       getEnv("K8S_NAMESPACE", "default"),
			RefreshInterval: getEnvDuration("K8S_DISCOVERY_REFRESH_INTERVAL", 30*time.Second),
			RCASelector:     getEnv("K8S_SERVICE_SELECTOR_RCA", "app.kubernetes.io/name=rca-analytics"),
			UEBASelector:    getEnv("K8S_SERVICE_SELECTOR_UEBA", "app.kubernetes.io/name=ueba-analytics"),
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			TTL:      getEnvDuration("REDIS_CACHE_TTL", 15*time.Second),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		NATS: NATSConfig{
			Enabled:       getEnvBool("NATS_ENABLED", false),
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "risk"),
			JetStream:     getEnvBool("NATS_JETSTREAM", true),
		},
		CloudWatch: CloudWatchConfig{
			Enabled:       getEnvBool("CLOUDWATCH_ENABLED", false),
			Region:        getEnv("AWS_REGION", "us-east-1"),
			Namespace:     getEnv("CLOUDWATCH_NAMESPACE", "RiskDashboard"),
			FlushInterval: getEnvDuration("CLOUDWATCH_FLUSH_INTERVAL", time.Minute),
			BatchSize:     getEnvInt("CLOUDWATCH_BATCH_SIZE", 20),
		},
		Security: SecurityConfig{
			AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")),
			AuthEnabled:    getEnvBool("AUTH_ENABLED", false),
			AuthToken:      strings.TrimSpace(getEnv("AUTH_BEARER_TOKEN", "")),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvFloat("RATE_LIMIT_RPS", 50),
			Burst: getEnvInt("RATE_LIMIT_BURST", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.Security.AuthEnabled && c.Security.AuthToken == "" {
		return fmt.Errorf("AUTH_BEARER_TOKEN is required when AUTH_ENABLED=true")
	}
	if c.Polling.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.Analytics.RequestTimeout <= 0 {
		return fmt.Errorf("ANALYTICS_REQUEST_TIMEOUT must be positive")
	}
	if c.Analytics.RetryAttempts == 0 {
		return fmt.Errorf("ANALYTICS_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Analytics.RequestsPerSec <= 0 || c.Analytics.Burst <= 0 {
		return fmt.Errorf("ANALYTICS_RPS and ANALYTICS_BURST must be positive")
	}
	if c.Discovery.Enabled && c.Discovery.RefreshInterval <= 0 {
		return fmt.Errorf("K8S_DISCOVERY_REFRESH_INTERVAL must be positive")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
