package sweeper

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const defaultSweepInterval = time.Minute

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_reservation_sweep_runs_total",
		Help: "Total number of reservation sweep runs grouped by result.",
	}, []string{"result"})
	sweepSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_reservation_sweep_expired_total",
		Help: "Total number of coupon reservations expired by the sweeper.",
	})
	sweepLastSwept = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_reservation_sweep_last_expired",
		Help: "Number of reservations expired during the last sweep run.",
	})
)

// Options задает параметры воркера очистки просроченных резерваций.
type Options struct {
	Logger   *log.Entry
	Interval time.Duration
}

// Option настраивает Worker.
type Option func(*Options)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задает интервал между проходами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// Worker периодически снимает просроченные резервы купонов, возвращая
// ёмкость лимита в оборот. Резервы оплаченных заказов не трогает:
// решение об этом принимает сам ledger по статусу заказа.
type Worker struct {
	ledger   domain.ReservationLedger
	logger   *log.Entry
	interval time.Duration
}

// NewWorker создает воркер очистки резерваций.
func NewWorker(ledger domain.ReservationLedger, options ...Option) *Worker {
	opts := Options{
		Interval: defaultSweepInterval,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "reservation-sweeper")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}

	return &Worker{
		ledger:   ledger,
		logger:   logger,
		interval: opts.Interval,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.ledger == nil {
		w.logger.Warn("reservation sweeper is disabled: ledger is nil")
		return
	}

	w.sweep(time.Now().UTC())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(time.Now().UTC())
		}
	}
}

func (w *Worker) sweep(now time.Time) {
	swept, err := w.SweepOnce(now)
	if err != nil {
		sweepRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("reservation sweep run failed")
		return
	}

	sweepRunsTotal.WithLabelValues("ok").Inc()
	sweepLastSwept.Set(float64(swept))
	if swept > 0 {
		w.logger.WithField("expired", swept).Info("reservation sweep completed")
	}
}

// SweepOnce выполняет один проход и возвращает число снятых резерваций.
func (w *Worker) SweepOnce(now time.Time) (int, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	swept, err := w.ledger.SweepExpired(now)
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		sweepSweptTotal.Add(float64(swept))
	}
	return swept, nil
}
