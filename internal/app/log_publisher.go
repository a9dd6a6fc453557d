package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// logOutboxPublisher — публикатор-заглушка для запуска без Kafka:
// события outbox пишутся в лог и помечаются отправленными.
type logOutboxPublisher struct {
	logger *log.Entry
}

func (p *logOutboxPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"message_id":   event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	}).Info("outbox event (no kafka configured)")
	return nil
}

var _ domain.OutboxPublisher = (*logOutboxPublisher)(nil)
