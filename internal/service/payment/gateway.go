package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultMaxAttempts    = 3
	defaultInitialDelay   = 100 * time.Millisecond
	defaultMaxDelay       = 2 * time.Second
	defaultBackoffFactor  = 2.0
)

// RetryConfig задаёт параметры повторов при временных сбоях провайдера.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   defaultMaxAttempts,
		InitialDelay:  defaultInitialDelay,
		MaxDelay:      defaultMaxDelay,
		BackoffFactor: defaultBackoffFactor,
	}
}

// Gateway — HTTP-клиент платёжного провайдера.
// Создание сессии идемпотентно по номеру заказа: провайдер возвращает
// существующую сессию при повторном запросе с тем же reference, поэтому
// retry после сетевого сбоя не создаёт дубликатов денежных операций.
type Gateway struct {
	baseURL string
	client  *http.Client
	retry   RetryConfig
	logger  *log.Entry
}

// NewGateway создаёт клиент платёжного провайдера.
func NewGateway(baseURL string, retry RetryConfig, logger *log.Entry) *Gateway {
	if logger == nil {
		logger = log.WithField("component", "payment-gateway")
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = defaultInitialDelay
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = defaultMaxDelay
	}
	if retry.BackoffFactor <= 1 {
		retry.BackoffFactor = defaultBackoffFactor
	}

	return &Gateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
		retry:   retry,
		logger:  logger,
	}
}

type sessionRequest struct {
	Reference   string `json:"reference"`
	AmountMinor int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
}

type sessionResponse struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

// CreateSession создаёт платёжную сессию с ограниченным числом повторов.
// Повторяются только временные сбои (сеть, 5xx); ответы 4xx не повторяются.
func (g *Gateway) CreateSession(order domain.Order) (domain.PaymentSession, error) {
	payload, err := json.Marshal(sessionRequest{
		Reference:   order.Number,
		AmountMinor: order.TotalMinor,
		Currency:    order.Currency,
		Email:       order.CustomerEmail,
	})
	if err != nil {
		return domain.PaymentSession{}, fmt.Errorf("marshal session request: %w", err)
	}

	var lastErr error
	delay := g.retry.InitialDelay

	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		session, retryable, err := g.postSession(payload)
		if err == nil {
			if attempt > 1 {
				g.logger.WithFields(log.Fields{
					"order_number": order.Number,
					"attempt":      attempt,
				}).Info("payment session created after retry")
			}
			return session, nil
		}

		lastErr = err
		if !retryable {
			break
		}

		if attempt < g.retry.MaxAttempts {
			g.logger.WithError(err).WithFields(log.Fields{
				"order_number": order.Number,
				"attempt":      attempt,
				"delay":        delay,
			}).Warn("payment session request failed, retrying")

			time.Sleep(delay)

			// Экспоненциальная задержка с ограничением.
			delay = time.Duration(float64(delay) * g.retry.BackoffFactor)
			if delay > g.retry.MaxDelay {
				delay = g.retry.MaxDelay
			}
		}
	}

	return domain.PaymentSession{}, fmt.Errorf("%w: %v", domain.ErrPaymentProvider, lastErr)
}

// postSession выполняет один запрос к провайдеру.
// Второй результат сообщает, имеет ли смысл повторять попытку.
func (g *Gateway) postSession(payload []byte) (domain.PaymentSession, bool, error) {
	resp, err := g.client.Post(g.baseURL+"/v1/sessions", "application/json", bytes.NewReader(payload))
	if err != nil {
		return domain.PaymentSession{}, true, fmt.Errorf("post session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return domain.PaymentSession{}, true, fmt.Errorf("provider returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return domain.PaymentSession{}, false, fmt.Errorf("provider rejected request with %d", resp.StatusCode)
	}

	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.PaymentSession{}, false, fmt.Errorf("decode session response: %w", err)
	}
	if body.ID == "" {
		return domain.PaymentSession{}, false, fmt.Errorf("provider returned empty session id")
	}

	return domain.PaymentSession{ID: body.ID, RedirectURL: body.RedirectURL}, false, nil
}

var _ domain.PaymentGateway = (*Gateway)(nil)
