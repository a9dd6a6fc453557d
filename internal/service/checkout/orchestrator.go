package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
	"github.com/vladislavdragonenkov/checkout/internal/service/pricing"
)

// defaultReservationTTL — время жизни резерва купона до оплаты.
const defaultReservationTTL = 15 * time.Minute

// Request описывает входные данные оформления заказа.
type Request struct {
	CustomerEmail   string
	Currency        string
	Items           []pricing.ItemRequest
	CouponCode      string
	ShippingMinor   int64
	ShippingAddress domain.Address
	BillingAddress  domain.Address
}

// Result — итог успешного оформления: созданный заказ и ссылка на оплату.
type Result struct {
	Order       domain.Order
	RedirectURL string
}

// Orchestrator описывает интерфейс оформления и отмены заказа.
type Orchestrator interface {
	Checkout(req Request) (Result, error)
	Cancel(orderID, reason string) (int, error)
}

// orchestrator реализует последовательность шагов оформления:
// Price → Create → Reserve → Session. Каждый шаг либо завершается,
// либо откатывает предыдущие: заказ не остаётся в created без платёжной
// сессии, а резерв купона не переживает неудавшееся оформление.
type orchestrator struct {
	orders         domain.OrderRepository
	ledger         domain.ReservationLedger
	pricer         *pricing.Pricer
	gateway        domain.PaymentGateway
	outbox         domain.OutboxRepository
	timeline       domain.TimelineRepository
	logger         *log.Entry
	metrics        *metrics.SettlementMetrics
	kafkaProducer  *kafka.Producer // опциональный Kafka producer для event-driven архитектуры
	reservationTTL time.Duration
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора.
func NewOrchestrator(
	orders domain.OrderRepository,
	ledger domain.ReservationLedger,
	pricer *pricing.Pricer,
	gateway domain.PaymentGateway,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &orchestrator{
		orders:         orders,
		ledger:         ledger,
		pricer:         pricer,
		gateway:        gateway,
		outbox:         outbox,
		timeline:       timeline,
		logger:         logger,
		metrics:        metrics.NewSettlementMetrics(),
		reservationTTL: defaultReservationTTL,
	}
}

// NewOrchestratorWithKafka создаёт оркестратор с Kafka producer для event-driven архитектуры.
func NewOrchestratorWithKafka(
	orders domain.OrderRepository,
	ledger domain.ReservationLedger,
	pricer *pricing.Pricer,
	gateway domain.PaymentGateway,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &orchestrator{
		orders:         orders,
		ledger:         ledger,
		pricer:         pricer,
		gateway:        gateway,
		outbox:         outbox,
		timeline:       timeline,
		logger:         logger,
		metrics:        metrics.NewSettlementMetrics(),
		kafkaProducer:  kafkaProducer,
		reservationTTL: defaultReservationTTL,
	}
}

// NewOrchestratorWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewOrchestratorWithoutMetrics(
	orders domain.OrderRepository,
	ledger domain.ReservationLedger,
	pricer *pricing.Pricer,
	gateway domain.PaymentGateway,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &orchestrator{
		orders:         orders,
		ledger:         ledger,
		pricer:         pricer,
		gateway:        gateway,
		outbox:         outbox,
		timeline:       timeline,
		logger:         logger,
		metrics:        nil, // Отключаем метрики для тестов
		reservationTTL: defaultReservationTTL,
	}
}

// WithReservationTTL задаёт время жизни резерва купона.
func (o *orchestrator) WithReservationTTL(ttl time.Duration) Orchestrator {
	if ttl > 0 {
		o.reservationTTL = ttl
	}
	return o
}

// Checkout оформляет заказ: рассчитывает корзину, создаёт заказ,
// резервирует купон и открывает платёжную сессию у провайдера.
func (o *orchestrator) Checkout(req Request) (Result, error) {
	start := time.Now()
	if o.metrics != nil {
		o.metrics.RecordCheckoutStarted()
	}
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordCheckoutDuration(time.Since(start))
		}
	}()

	quote, err := o.priceStep(req)
	if err != nil {
		o.failCheckout()
		return Result{}, err
	}

	order, err := o.createStep(req, quote)
	if err != nil {
		o.failCheckout()
		return Result{}, err
	}

	if err := o.reserveStep(&order, quote); err != nil {
		o.failCheckout()
		return Result{}, err
	}

	session, err := o.sessionStep(&order)
	if err != nil {
		o.failCheckout()
		return Result{}, err
	}

	o.emitEvent(&order, "OrderCreated", map[string]interface{}{
		"total_cents": order.TotalMinor,
		"currency":    order.Currency,
		"ts":          order.CreatedAt.Format(time.RFC3339Nano),
	})
	o.publishOrderEvent(kafka.EventTypeOrderCreated, &order, map[string]interface{}{
		"total_cents": order.TotalMinor,
	})

	if o.metrics != nil {
		o.metrics.RecordCheckoutCompleted()
	}
	o.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.Number,
		"total_cents":  order.TotalMinor,
	}).Info("checkout completed")

	return Result{Order: order, RedirectURL: session.RedirectURL}, nil
}

func (o *orchestrator) priceStep(req Request) (domain.PriceQuote, error) {
	defer o.recordStep("price", time.Now())

	quote, err := o.pricer.Price(pricing.Request{
		Items:         req.Items,
		CouponCode:    strings.TrimSpace(req.CouponCode),
		ShippingMinor: req.ShippingMinor,
		Currency:      req.Currency,
	})
	if err != nil {
		o.logger.WithError(err).Warn("pricing rejected cart")
		return domain.PriceQuote{}, err
	}
	return quote, nil
}

func (o *orchestrator) createStep(req Request, quote domain.PriceQuote) (domain.Order, error) {
	defer o.recordStep("create", time.Now())

	now := time.Now().UTC()
	order := domain.Order{
		ID:              uuid.NewString(),
		Number:          newOrderNumber(),
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		Status:          domain.OrderStatusCreated,
		Currency:        quote.Currency,
		SubtotalMinor:   quote.SubtotalMinor,
		ShippingMinor:   quote.ShippingMinor,
		DiscountMinor:   quote.DiscountMinor,
		TotalMinor:      quote.TotalMinor,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Items:           quote.Items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if quote.Coupon != nil {
		order.CouponID = quote.Coupon.ID
	}
	for i := range order.Items {
		order.Items[i].ID = uuid.NewString()
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("order invariants: %w", errors.Join(errs...))
	}
	if err := o.orders.Create(order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

// reserveStep резервирует купон под заказ. Лимит купона проверяется
// именно здесь, а не при расчёте: между превью и оформлением ёмкость
// могла закончиться.
func (o *orchestrator) reserveStep(order *domain.Order, quote domain.PriceQuote) error {
	if quote.Coupon == nil {
		return nil
	}
	defer o.recordStep("reserve", time.Now())

	_, err := o.ledger.Reserve(order.ID, quote.Coupon.ID, o.reservationTTL)
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id":  order.ID,
			"coupon_id": quote.Coupon.ID,
		}).Warn("coupon reservation failed")
		o.abandonOrder(order, err)
		return err
	}

	if o.metrics != nil {
		o.metrics.RecordReservationReserved()
	}
	o.publishReservationEvent(kafka.EventTypeCouponReserved, order.ID, quote.Coupon.ID, map[string]interface{}{
		"ttl_seconds": int(o.reservationTTL.Seconds()),
	})
	return nil
}

func (o *orchestrator) sessionStep(order *domain.Order) (domain.PaymentSession, error) {
	defer o.recordStep("session", time.Now())

	session, err := o.gateway.CreateSession(*order)
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("payment session failed")
		o.abandonOrder(order, err)
		return domain.PaymentSession{}, err
	}

	if err := o.orders.SetPaymentSession(order.ID, session.ID); err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist payment session")
		o.abandonOrder(order, err)
		return domain.PaymentSession{}, err
	}
	order.PaymentSessionID = session.ID
	return session, nil
}

// abandonOrder отменяет заказ после неудачного шага оформления
// и снимает все его резервы.
func (o *orchestrator) abandonOrder(order *domain.Order, rootErr error) {
	cancelled, err := o.orders.MarkCancelled(order.ID)
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Error("failed to cancel abandoned order")
		return
	}
	if !cancelled {
		return
	}
	order.Status = domain.OrderStatusCancelled

	released, err := o.ledger.ReleaseByOrder(order.ID)
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("release after failed checkout")
	} else if released > 0 && o.metrics != nil {
		o.metrics.RecordReservationsReleased(released)
	}

	o.emitEvent(order, "OrderAbandoned", map[string]interface{}{
		"reason": rootErr.Error(),
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (o *orchestrator) failCheckout() {
	if o.metrics != nil {
		o.metrics.RecordCheckoutFailed()
	}
}

// Cancel отменяет заказ, ещё не прошедший оплату, и возвращает число
// снятых резервов. Повторная отмена — no-op. Оплаченный, выполненный
// или возвращённый заказ отменить нельзя.
func (o *orchestrator) Cancel(orderID, reason string) (int, error) {
	order, err := o.orders.Get(orderID)
	if err != nil {
		o.logger.WithError(err).WithField("order_id", orderID).Warn("order not found for cancel")
		return 0, err
	}

	if order.Status == domain.OrderStatusCancelled {
		o.logger.WithField("order_id", order.ID).Debug("order already cancelled")
		return 0, nil
	}
	if order.Status.Settled() {
		return 0, fmt.Errorf("order %s in status %s: %w", order.ID, order.Status, domain.ErrOrderAlreadyPaid)
	}

	cancelled, err := o.orders.MarkCancelled(order.ID)
	if err != nil {
		return 0, fmt.Errorf("cancel order: %w", err)
	}
	if !cancelled {
		// CAS проиграл гонку: заказ успел сменить статус. Перечитываем
		// и решаем заново — webhook об оплате всегда выигрывает у отмены.
		fresh, err := o.orders.Get(order.ID)
		if err != nil {
			return 0, err
		}
		if fresh.Status == domain.OrderStatusCancelled {
			return 0, nil
		}
		return 0, fmt.Errorf("order %s in status %s: %w", fresh.ID, fresh.Status, domain.ErrOrderAlreadyPaid)
	}
	order.Status = domain.OrderStatusCancelled

	released, err := o.ledger.ReleaseByOrder(order.ID)
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("release during cancel failed")
		released = 0
	} else if released > 0 {
		if o.metrics != nil {
			o.metrics.RecordReservationsReleased(released)
		}
		o.publishReservationEvent(kafka.EventTypeCouponReleased, order.ID, order.CouponID, nil)
	}

	if o.metrics != nil {
		o.metrics.RecordOrderCancelled()
	}

	payload := map[string]interface{}{
		"reason": reason,
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if reason == "" {
		delete(payload, "reason")
	}
	o.emitEvent(&order, "OrderCancelled", payload)
	o.publishOrderEvent(kafka.EventTypeOrderCancelled, &order, map[string]interface{}{
		"reason": reason,
	})

	o.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Info("order cancelled")
	return released, nil
}

// emitEvent пишет событие в timeline и transactional outbox.
func (o *orchestrator) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if o.timeline != nil {
		reason, _ := payload["reason"].(string)
		err := o.timeline.Append(domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Reason:   reason,
			Occurred: time.Now().UTC(),
		})
		if err != nil {
			o.logger.WithError(err).WithField("order_id", order.ID).Warn("timeline append failed")
		} else if o.metrics != nil {
			o.metrics.RecordTimelineEvent()
		}
	}

	if o.outbox == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("marshal outbox payload failed")
		return
	}
	_, err = o.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       body,
	})
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("outbox enqueue failed")
		return
	}
	if o.metrics != nil {
		o.metrics.RecordOutboxEvent()
	}
}

func (o *orchestrator) publishOrderEvent(eventType kafka.EventType, order *domain.Order, metadata map[string]interface{}) {
	if o.kafkaProducer == nil {
		return
	}
	event := kafka.NewOrderEvent(eventType, order.ID, order.Number, order.CustomerEmail, string(order.Status), metadata)
	if err := o.kafkaProducer.PublishOrderEvent(event); err != nil {
		// Kafka недоступна — заказ уже сохранён, событие уйдёт через outbox.
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("kafka publish failed")
	}
}

func (o *orchestrator) publishReservationEvent(eventType kafka.EventType, orderID, couponID string, metadata map[string]interface{}) {
	if o.kafkaProducer == nil {
		return
	}
	event := kafka.NewReservationEvent(eventType, orderID, couponID, metadata)
	if err := o.kafkaProducer.PublishReservationEvent(event); err != nil {
		o.logger.WithError(err).WithField("order_id", orderID).Warn("kafka publish failed")
	}
}

func (o *orchestrator) recordStep(step string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordStepDuration(step, time.Since(start))
	}
}

// newOrderNumber генерирует человекочитаемый номер заказа.
// Номер служит внешней ссылкой (reference) для платёжного провайдера.
func newOrderNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CHK-" + strings.ToUpper(raw[:12])
}
