package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
)

// Result описывает исход обработки webhook-события.
type Result string

const (
	// ResultSettled — заказ переведён в paid, побочные эффекты применены.
	ResultSettled Result = "settled"
	// ResultDuplicate — повторная доставка уже обработанного события.
	ResultDuplicate Result = "duplicate"
	// ResultDeclined — провайдер отклонил платёж, заказ остаётся в created.
	ResultDeclined Result = "declined"
	// ResultUnknownOrder — reference не найден среди заказов.
	ResultUnknownOrder Result = "unknown_order"
	// ResultIgnored — тип события не относится к платежам.
	ResultIgnored Result = "ignored"
)

// Статусы платежа в событиях провайдера.
const (
	paymentStatusApproved = "approved"
	paymentStatusDeclined = "declined"
)

const paymentEventType = "payment.updated"

// event — формат webhook-события провайдера.
type event struct {
	Type string `json:"type"`
	Data struct {
		ID        string `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// Reconciler приводит состояние заказа в соответствие с исходом платежа.
// Провайдер доставляет события не менее одного раза, поэтому вся обработка
// построена вокруг одного атомарного перехода created → paid: побочные
// эффекты (списание остатков, подтверждение купона) выполняет только тот
// вызов, который выиграл этот переход.
type Reconciler struct {
	orders        domain.OrderRepository
	ledger        domain.ReservationLedger
	inventory     domain.InventoryStore
	outbox        domain.OutboxRepository
	timeline      domain.TimelineRepository
	logger        *log.Entry
	metrics       *metrics.SettlementMetrics
	kafkaProducer *kafka.Producer
}

// NewReconciler создаёт обработчик платёжных webhook-событий.
func NewReconciler(
	orders domain.OrderRepository,
	ledger domain.ReservationLedger,
	inventory domain.InventoryStore,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Reconciler {
	if logger == nil {
		logger = log.New().WithField("component", "webhook")
	}
	return &Reconciler{
		orders:    orders,
		ledger:    ledger,
		inventory: inventory,
		outbox:    outbox,
		timeline:  timeline,
		logger:    logger,
		metrics:   metrics.NewSettlementMetrics(),
	}
}

// NewReconcilerWithoutMetrics создаёт обработчик без метрик (для тестов).
func NewReconcilerWithoutMetrics(
	orders domain.OrderRepository,
	ledger domain.ReservationLedger,
	inventory domain.InventoryStore,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Reconciler {
	r := NewReconciler(orders, ledger, inventory, outbox, timeline, logger)
	r.metrics = nil
	return r
}

// WithKafka подключает опциональный Kafka producer.
func (r *Reconciler) WithKafka(producer *kafka.Producer) *Reconciler {
	r.kafkaProducer = producer
	return r
}

// Process обрабатывает webhook-событие. Ошибка возвращается только при
// нечитаемом теле: все остальные исходы, включая неизвестный reference
// и повторную доставку, подтверждаются провайдеру как принятые.
func (r *Reconciler) Process(raw []byte) (Result, error) {
	var evt event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return "", fmt.Errorf("decode webhook event: %w", err)
	}

	if evt.Type != paymentEventType {
		r.logger.WithField("type", evt.Type).Debug("ignoring non-payment event")
		return r.record(ResultIgnored), nil
	}

	order, err := r.orders.GetByNumber(evt.Data.Reference)
	if err != nil {
		// Неизвестный reference подтверждаем: провайдер не обязан знать
		// о заказах, удалённых или созданных в другом окружении.
		r.logger.WithFields(log.Fields{
			"reference":  evt.Data.Reference,
			"payment_id": evt.Data.ID,
		}).Warn("webhook for unknown order")
		return r.record(ResultUnknownOrder), nil
	}

	if evt.Data.Status != paymentStatusApproved {
		r.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"status":   evt.Data.Status,
		}).Info("payment not approved, order left as is")
		r.emitEvent(&order, "PaymentDeclined", map[string]interface{}{
			"payment_id": evt.Data.ID,
			"status":     evt.Data.Status,
		})
		return r.record(ResultDeclined), nil
	}

	// Единственная точка принятия решения: CAS created → paid.
	// Проигравший вызов не выполняет ни одного побочного эффекта.
	won, err := r.orders.MarkPaid(order.ID, evt.Data.ID, raw)
	if err != nil {
		return "", fmt.Errorf("mark order paid: %w", err)
	}
	if !won {
		r.logger.WithFields(log.Fields{
			"order_id":   order.ID,
			"payment_id": evt.Data.ID,
		}).Info("duplicate payment webhook, already settled")
		return r.record(ResultDuplicate), nil
	}
	order.Status = domain.OrderStatusPaid
	order.PaymentID = evt.Data.ID

	r.applySideEffects(&order)

	r.emitEvent(&order, "OrderPaid", map[string]interface{}{
		"payment_id":  evt.Data.ID,
		"total_cents": order.TotalMinor,
	})
	r.publishOrderEvent(kafka.EventTypeOrderPaid, &order)

	if r.metrics != nil {
		r.metrics.RecordPaymentSettled()
	}
	r.logger.WithFields(log.Fields{
		"order_id":   order.ID,
		"payment_id": evt.Data.ID,
	}).Info("order settled")
	return r.record(ResultSettled), nil
}

// applySideEffects списывает остатки и подтверждает резерв купона.
// Выполняется ровно один раз — только после выигранного CAS.
// Сбои здесь не отменяют оплату: деньги уже получены, аномалии
// фиксируются в логе для ручного разбора.
func (r *Reconciler) applySideEffects(order *domain.Order) {
	for _, item := range order.Items {
		if err := r.inventory.DecrementStock(item.VariantID, item.Qty); err != nil {
			r.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"variant_id": item.VariantID,
				"qty":        item.Qty,
			}).Error("stock decrement anomaly on paid order")
		}
	}

	if order.CouponID == "" {
		return
	}
	if err := r.ledger.Confirm(order.ID, order.CouponID); err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"order_id":  order.ID,
			"coupon_id": order.CouponID,
		}).Error("coupon confirm anomaly on paid order")
		return
	}
	if r.metrics != nil {
		r.metrics.RecordReservationConfirmed()
	}
	if r.kafkaProducer != nil {
		evt := kafka.NewReservationEvent(kafka.EventTypeCouponConfirmed, order.ID, order.CouponID, nil)
		if err := r.kafkaProducer.PublishReservationEvent(evt); err != nil {
			r.logger.WithError(err).WithField("order_id", order.ID).Warn("kafka publish failed")
		}
	}
}

func (r *Reconciler) record(result Result) Result {
	if r.metrics != nil {
		r.metrics.RecordWebhookResult(string(result))
	}
	return result
}

func (r *Reconciler) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if r.timeline != nil {
		err := r.timeline.Append(domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Occurred: time.Now().UTC(),
		})
		if err != nil {
			r.logger.WithError(err).WithField("order_id", order.ID).Warn("timeline append failed")
		} else if r.metrics != nil {
			r.metrics.RecordTimelineEvent()
		}
	}

	if r.outbox == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.WithError(err).WithField("order_id", order.ID).Warn("marshal outbox payload failed")
		return
	}
	if _, err := r.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       body,
	}); err != nil {
		r.logger.WithError(err).WithField("order_id", order.ID).Warn("outbox enqueue failed")
		return
	}
	if r.metrics != nil {
		r.metrics.RecordOutboxEvent()
	}
}

func (r *Reconciler) publishOrderEvent(eventType kafka.EventType, order *domain.Order) {
	if r.kafkaProducer == nil {
		return
	}
	evt := kafka.NewOrderEvent(eventType, order.ID, order.Number, order.CustomerEmail, string(order.Status), map[string]interface{}{
		"payment_id": order.PaymentID,
	})
	if err := r.kafkaProducer.PublishOrderEvent(evt); err != nil {
		r.logger.WithError(err).WithField("order_id", order.ID).Warn("kafka publish failed")
	}
}
