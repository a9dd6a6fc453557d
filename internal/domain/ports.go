package domain

import "time"

// PaymentSession — платёжная сессия, созданная у внешнего провайдера.
type PaymentSession struct {
	ID          string
	RedirectURL string
}

// PaymentGateway описывает взаимодействие с внешним платёжным провайдером.
type PaymentGateway interface {
	// CreateSession создаёт платёжную сессию для заказа. Вызов обязан быть
	// идемпотентным по номеру заказа: повтор после сетевого сбоя не должен
	// порождать вторую сессию.
	CreateSession(order Order) (PaymentSession, error)
}

// OutboxMessage — событие, записанное в outbox вместе с породившей его
// транзакцией. Payload — готовый JSON, брокеру он уходит как есть.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats — срез backlog'а: сколько записей ждут публикации
// и насколько давно лежит самая старая.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxRepository складывает события для асинхронной публикации
// и отдаёт их воркеру батчами.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxPublisher доставляет событие во внешний мир. Доставка
// at-least-once, поэтому повтор одного и того же события допустим.
type OutboxPublisher interface {
	Publish(event OutboxMessage) error
}

// TimelineRepository хранит события жизненного цикла заказа.
// Timeline — аудиторский след settlement-переходов: по нему можно
// восстановить историю резервов и смен статусов любого заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}
