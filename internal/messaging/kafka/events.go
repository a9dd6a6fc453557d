package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События заказа
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderPaid      EventType = "order.paid"
	EventTypeOrderCancelled EventType = "order.cancelled"

	// События резерваций купонов
	EventTypeCouponReserved   EventType = "coupon.reserved"
	EventTypeCouponConfirmed  EventType = "coupon.confirmed"
	EventTypeCouponReleased   EventType = "coupon.released"
	EventTypeReservationSwept EventType = "reservation.swept"

	// События платёжного контура
	EventTypePaymentSessionCreated EventType = "payment.session_created"
	EventTypePaymentDeclined       EventType = "payment.declined"
)

// Topics для Kafka
const (
	TopicOrderEvents       = "checkout.order.events"
	TopicReservationEvents = "checkout.reservation.events"
	// TopicPaymentEvents — альтернативный канал доставки платёжных событий:
	// провайдер или внутренний шлюз публикует их в Kafka вместо HTTP webhook.
	TopicPaymentEvents   = "checkout.payment.events"
	TopicDeadLetterQueue = "checkout.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType     EventType              `json:"event_type"`
	OrderID       string                 `json:"order_id"`
	OrderNumber   string                 `json:"order_number"`
	CustomerEmail string                 `json:"customer_email"`
	Status        string                 `json:"status"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// ReservationEvent представляет событие резервации купона
type ReservationEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	CouponID  string                 `json:"coupon_id"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, orderNumber, customerEmail, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:     eventType,
		OrderID:       orderID,
		OrderNumber:   orderNumber,
		CustomerEmail: customerEmail,
		Status:        status,
		Timestamp:     time.Now(),
		Metadata:      metadata,
	}
}

// NewReservationEvent создает новое событие резервации
func NewReservationEvent(eventType EventType, orderID, couponID string, metadata map[string]interface{}) *ReservationEvent {
	return &ReservationEvent{
		EventType: eventType,
		OrderID:   orderID,
		CouponID:  couponID,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
