package app

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config описывает настройки запуска checkout-сервиса.
type Config struct {
	// HTTPAddr — адрес публичного HTTP API.
	HTTPAddr string
	// MetricsAddr — адрес служебного HTTP: /metrics, /healthz, /livez, /readyz.
	MetricsAddr string

	// DatabaseDSN — PostgreSQL DSN. Пустое значение переключает сервис
	// на in-memory хранилище (локальная разработка и тесты).
	DatabaseDSN string
	// KafkaBrokers — список брокеров через запятую. Пустое значение
	// отключает публикацию событий в Kafka.
	KafkaBrokers string
	// RedisAddr — адрес Redis для кэша статусов заказов. Опционально.
	RedisAddr string

	// WebhookSecret — общий секрет HMAC-подписи платёжных webhook-ов.
	WebhookSecret string
	// PaymentBaseURL — базовый URL платёжного провайдера. Пустое значение
	// переключает сервис на mock-шлюз.
	PaymentBaseURL string

	// ReservationTTL — время жизни резерва купона до оплаты.
	ReservationTTL time.Duration
	// SweepInterval — период фонового снятия просроченных резервов.
	SweepInterval time.Duration
}

// DefaultConfig возвращает базовые адреса и интервалы.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:       ":8080",
		MetricsAddr:    ":9090",
		WebhookSecret:  "dev-secret",
		ReservationTTL: 15 * time.Minute,
		SweepInterval:  time.Minute,
	}
}

// ConfigFromEnv формирует конфигурацию из переменных окружения
// поверх значений по умолчанию.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("CHECKOUT_HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_POSTGRES_DSN")); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.KafkaBrokers = v
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_REDIS_ADDR")); v != "" {
		cfg.RedisAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_WEBHOOK_SECRET")); v != "" {
		cfg.WebhookSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_PAYMENT_BASE_URL")); v != "" {
		cfg.PaymentBaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv("CHECKOUT_RESERVATION_TTL")); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_RESERVATION_TTL: %w", err)
		}
		cfg.ReservationTTL = ttl
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_SWEEP_INTERVAL")); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_SWEEP_INTERVAL: %w", err)
		}
		cfg.SweepInterval = interval
	}

	return cfg, nil
}
