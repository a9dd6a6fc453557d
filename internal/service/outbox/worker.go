package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

var (
	publishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outbox_publish_attempts_total",
		Help: "Публикации outbox-записей по результату.",
	}, []string{"result"})
	pendingBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_outbox_pending_records",
		Help: "Сколько записей outbox ждут публикации.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_outbox_oldest_pending_age_seconds",
		Help: "Возраст самой старой неопубликованной записи.",
	})
)

// Worker выгребает pending-записи транзакционного outbox и публикует
// их в брокер. Гарантия at-least-once: после сбоя между Publish и
// MarkSent запись уйдёт повторно, потребители дедуплицируют по ID.
type Worker struct {
	repo         domain.OutboxRepository
	publisher    domain.OutboxPublisher
	dlqPublisher domain.OutboxPublisher
	logger       *log.Entry

	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	baseDelay    time.Duration
}

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithDLQPublisher включает отправку в DLQ после исчерпания попыток.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) { w.dlqPublisher = publisher }
}

// WithPollInterval задаёт период опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) { w.pollInterval = interval }
}

// WithBatchSize ограничивает размер одной выборки.
func WithBatchSize(size int) Option {
	return func(w *Worker) { w.batchSize = size }
}

// WithMaxAttempts задаёт число попыток публикации одной записи.
func WithMaxAttempts(attempts int) Option {
	return func(w *Worker) { w.maxAttempts = attempts }
}

// WithRetryBaseDelay задаёт базовую задержку экспоненциального backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) { w.baseDelay = delay }
}

// NewWorker создаёт публикатора outbox.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	w := &Worker{
		repo:         repo,
		publisher:    publisher,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(w)
	}

	if w.logger == nil {
		w.logger = log.WithField("component", "outbox-worker")
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.baseDelay < 0 {
		w.baseDelay = 0
	}

	return w
}

// Run крутит цикл публикации до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker disabled: no repository or publisher")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.DrainOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.DrainOnce(ctx)
		}
	}
}

// DrainOnce забирает один батч pending-записей и публикует их по одной.
// Запись, не ушедшая после всех попыток, помечается failed и, если
// настроен DLQ-publisher, дублируется в dead letter queue.
func (w *Worker) DrainOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.observeBacklog()

	batch, err := w.repo.PullPending(w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox records")
		return
	}

	for _, record := range batch {
		if ctx.Err() != nil {
			return
		}
		w.deliver(ctx, record)
	}

	if len(batch) > 0 {
		w.observeBacklog()
	}
}

func (w *Worker) deliver(ctx context.Context, record domain.OutboxMessage) {
	err := w.attemptPublish(ctx, record)
	if err == nil {
		if markErr := w.repo.MarkSent(record.ID); markErr != nil {
			w.logger.WithError(markErr).WithField("message_id", record.ID).Warn("failed to mark outbox record sent")
		}
		return
	}

	publishAttempts.WithLabelValues("failed").Inc()
	w.logger.WithError(err).WithFields(log.Fields{
		"message_id": record.ID,
		"event_type": record.EventType,
	}).Error("outbox record not published, giving up")

	if dlqErr := w.routeToDLQ(record, err); dlqErr != nil {
		publishAttempts.WithLabelValues("dlq_failed").Inc()
		w.logger.WithError(dlqErr).WithField("message_id", record.ID).Warn("failed to route outbox record to DLQ")
	}
	if markErr := w.repo.MarkFailed(record.ID); markErr != nil {
		w.logger.WithError(markErr).WithField("message_id", record.ID).Warn("failed to mark outbox record failed")
	}
}

func (w *Worker) attemptPublish(ctx context.Context, record domain.OutboxMessage) error {
	var lastErr error

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.publisher.Publish(record)
		if err == nil {
			publishAttempts.WithLabelValues("sent").Inc()
			return nil
		}
		lastErr = err
		publishAttempts.WithLabelValues("retry_error").Inc()

		if attempt == w.maxAttempts {
			break
		}
		if delay := w.backoffDelay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("publish gave up after %d attempts: %w", w.maxAttempts, lastErr)
}

// backoffDelay удваивает базовую задержку на каждую неудачную попытку.
func (w *Worker) backoffDelay(attempt int) time.Duration {
	if w.baseDelay <= 0 {
		return 0
	}
	delay := w.baseDelay
	for i := 1; i < attempt; i++ {
		next := delay * 2
		if next < delay { // переполнение
			return delay
		}
		delay = next
	}
	return delay
}

func (w *Worker) observeBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("failed to read outbox backlog stats")
		return
	}

	pendingBacklog.Set(float64(stats.PendingCount))

	age := 0.0
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		if since := time.Since(stats.OldestPendingAt).Seconds(); since > 0 {
			age = since
		}
	}
	oldestPendingAge.Set(age)
}

func (w *Worker) routeToDLQ(record domain.OutboxMessage, publishErr error) error {
	if w.dlqPublisher == nil {
		return nil
	}

	envelope, err := json.Marshal(map[string]any{
		"message_id":       record.ID,
		"aggregate_type":   record.AggregateType,
		"aggregate_id":     record.AggregateID,
		"event_type":       record.EventType,
		"original_payload": json.RawMessage(record.Payload),
		"last_error":       publishErr.Error(),
		"failed_at":        time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq envelope: %w", err)
	}

	dead := record
	dead.Payload = envelope
	if err := w.dlqPublisher.Publish(dead); err != nil {
		return fmt.Errorf("dlq publish: %w", err)
	}
	return nil
}
