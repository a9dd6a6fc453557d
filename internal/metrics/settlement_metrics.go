package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics содержит метрики конвейера оформления и оплаты заказов.
type SettlementMetrics struct {
	// Счётчики оформления заказа
	checkoutStarted   prometheus.Counter
	checkoutCompleted prometheus.Counter
	checkoutFailed    prometheus.Counter
	orderCancelled    prometheus.Counter

	// Счётчики webhook по результату обработки
	webhookResults *prometheus.CounterVec

	// Счётчики жизненного цикла резерваций купонов
	reservationsReserved  prometheus.Counter
	reservationsConfirmed prometheus.Counter
	reservationsReleased  prometheus.Counter
	reservationsSwept     prometheus.Counter

	// Гистограммы времени выполнения
	checkoutDuration prometheus.Histogram
	stepDuration     *prometheus.HistogramVec

	// Счётчики событий timeline и outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Gauge для заказов, ожидающих оплаты
	pendingPayments prometheus.Gauge
}

// NewSettlementMetrics создаёт новый экземпляр метрик конвейера.
func NewSettlementMetrics() *SettlementMetrics {
	return newSettlementMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newSettlementMetricsWithRegisterer(registerer prometheus.Registerer) *SettlementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SettlementMetrics{
		checkoutStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_started_total",
			Help: "Total number of checkout operations started",
		}),
		checkoutCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_completed_total",
			Help: "Total number of checkout operations completed successfully",
		}),
		checkoutFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_failed_total",
			Help: "Total number of checkout operations failed",
		}),
		orderCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_orders_cancelled_total",
			Help: "Total number of orders cancelled before payment",
		}),
		webhookResults: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_webhook_events_total",
			Help: "Total number of payment webhook events by processing result",
		}, []string{"result"}),
		reservationsReserved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_reservations_reserved_total",
			Help: "Total number of coupon reservations created",
		}),
		reservationsConfirmed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_reservations_confirmed_total",
			Help: "Total number of coupon reservations confirmed on payment",
		}),
		reservationsReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_reservations_released_total",
			Help: "Total number of coupon reservations released on cancel",
		}),
		reservationsSwept: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_reservations_swept_total",
			Help: "Total number of coupon reservations expired by the sweeper",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "checkout_step_duration_seconds",
			Help:    "Duration of individual checkout steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_outbox_events_total",
			Help: "Total number of outbox events published",
		}),
		pendingPayments: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "checkout_pending_payments",
			Help: "Number of orders currently awaiting payment",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCheckoutStarted увеличивает счётчик начатых оформлений.
func (m *SettlementMetrics) RecordCheckoutStarted() {
	m.checkoutStarted.Inc()
}

// RecordCheckoutCompleted увеличивает счётчик успешных оформлений
// и число заказов, ожидающих оплаты.
func (m *SettlementMetrics) RecordCheckoutCompleted() {
	m.checkoutCompleted.Inc()
	m.pendingPayments.Inc()
}

// RecordCheckoutFailed увеличивает счётчик неудачных оформлений.
func (m *SettlementMetrics) RecordCheckoutFailed() {
	m.checkoutFailed.Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *SettlementMetrics) RecordOrderCancelled() {
	m.orderCancelled.Inc()
	m.pendingPayments.Dec()
}

// RecordWebhookResult увеличивает счётчик webhook по результату обработки.
func (m *SettlementMetrics) RecordWebhookResult(result string) {
	m.webhookResults.WithLabelValues(result).Inc()
}

// RecordPaymentSettled уменьшает число заказов, ожидающих оплаты.
func (m *SettlementMetrics) RecordPaymentSettled() {
	m.pendingPayments.Dec()
}

// RecordReservationReserved увеличивает счётчик созданных резерваций.
func (m *SettlementMetrics) RecordReservationReserved() {
	m.reservationsReserved.Inc()
}

// RecordReservationConfirmed увеличивает счётчик подтверждённых резерваций.
func (m *SettlementMetrics) RecordReservationConfirmed() {
	m.reservationsConfirmed.Inc()
}

// RecordReservationsReleased увеличивает счётчик снятых резерваций.
func (m *SettlementMetrics) RecordReservationsReleased(count int) {
	m.reservationsReleased.Add(float64(count))
}

// RecordReservationsSwept увеличивает счётчик резерваций, снятых по TTL.
func (m *SettlementMetrics) RecordReservationsSwept(count int) {
	m.reservationsSwept.Add(float64(count))
}

// RecordCheckoutDuration записывает время оформления заказа.
func (m *SettlementMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага оформления.
func (m *SettlementMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *SettlementMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *SettlementMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
