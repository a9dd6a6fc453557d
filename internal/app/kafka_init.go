package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
)

// initKafkaProducer поднимает producer, если заданы брокеры.
// Ошибка подключения не фатальна: сервис работает без Kafka,
// события копятся в outbox и публикуются в лог.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	if brokers == "" {
		return nil, nil
	}

	addrs := strings.Split(brokers, ",")
	producer, err := kafka.NewProducer(addrs)
	if err != nil {
		logger.WithError(err).Warn("kafka unavailable, events will only be logged")
		return nil, err
	}

	logger.WithField("brokers", addrs).Info("kafka producer connected")
	return producer, nil
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("kafka producer close failed")
		return
	}
	logger.Info("kafka producer closed")
}
