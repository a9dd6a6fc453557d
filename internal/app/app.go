package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/checkout/internal/health"
	"github.com/vladislavdragonenkov/checkout/internal/httpx"
	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/service/outbox"
	"github.com/vladislavdragonenkov/checkout/internal/service/pricing"
	"github.com/vladislavdragonenkov/checkout/internal/service/sweeper"
	"github.com/vladislavdragonenkov/checkout/internal/service/webhook"
	"github.com/vladislavdragonenkov/checkout/internal/version"
)

// Run запускает checkout-сервис и блокируется до отмены контекста
// или фатальной ошибки HTTP-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Kafka опциональна: без брокеров события остаются в outbox
	// и публикуются только в лог.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	pricer := pricing.NewPricer(deps.Inventory, deps.Coupons, logger.WithField("component", "pricing"))

	var orchestrator checkout.Orchestrator
	if kafkaProducer != nil {
		orchestrator = checkout.NewOrchestratorWithKafka(
			deps.Orders, deps.Ledger, pricer, deps.Gateway,
			deps.Outbox, deps.Timeline, kafkaProducer,
			logger.WithField("component", "checkout"),
		)
	} else {
		orchestrator = checkout.NewOrchestrator(
			deps.Orders, deps.Ledger, pricer, deps.Gateway,
			deps.Outbox, deps.Timeline,
			logger.WithField("component", "checkout"),
		)
	}
	if configurable, ok := orchestrator.(interface {
		WithReservationTTL(time.Duration) checkout.Orchestrator
	}); ok {
		orchestrator = configurable.WithReservationTTL(cfg.ReservationTTL)
	}

	reconciler := webhook.NewReconciler(
		deps.Orders, deps.Ledger, deps.Inventory, deps.Outbox, deps.Timeline,
		logger.WithField("component", "webhook"),
	)
	if kafkaProducer != nil {
		reconciler = reconciler.WithKafka(kafkaProducer)
	}

	// Второй канал доставки платёжных событий: тот же reconciler обрабатывает
	// сообщения из Kafka. Доставка at-least-once безопасна, вся обработка
	// идемпотентна относительно повторов.
	if kafkaProducer != nil {
		paymentConsumer, consumerErr := kafka.NewConsumerWithDLQ(
			strings.Split(cfg.KafkaBrokers, ","),
			"checkout-settlement",
			[]string{kafka.TopicPaymentEvents},
			func(_ context.Context, message *sarama.ConsumerMessage) error {
				_, processErr := reconciler.Process(message.Value)
				return processErr
			},
			kafkaProducer,
			3,
		)
		if consumerErr != nil {
			logger.WithError(consumerErr).Warn("failed to create payment events consumer, continuing with webhook only")
		} else if startErr := paymentConsumer.Start(ctx); startErr != nil {
			logger.WithError(startErr).Warn("failed to start payment events consumer")
		} else {
			defer func() {
				if stopErr := paymentConsumer.Stop(); stopErr != nil {
					logger.WithError(stopErr).Warn("failed to stop payment events consumer")
				}
			}()
		}
	}

	verifier := webhook.NewVerifier(cfg.WebhookSecret)

	sweepWorker := sweeper.NewWorker(deps.Ledger,
		sweeper.WithLogger(logger.WithField("component", "sweeper")),
		sweeper.WithInterval(cfg.SweepInterval),
	)
	go sweepWorker.Run(ctx)

	outboxWorker := newOutboxWorker(deps, kafkaProducer, logger)
	go outboxWorker.Run(ctx)

	handler := &httpx.CheckoutHandler{
		Orchestrator: orchestrator,
		Pricer:       pricer,
		Reconciler:   reconciler,
		Verifier:     verifier,
		Sweeper:      sweepWorker,
		Orders:       deps.Orders,
		Timeline:     deps.Timeline,
		Redis:        deps.Redis,
		Logger:       logger.WithField("component", "http"),
	}
	router := httpx.NewRouter()
	handler.Register(router)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.Store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.Store.Ping(pingCtx)
		}))
	}
	if deps.Redis != nil {
		healthHandler.RegisterChecker("redis", healthcheck.NewSimpleChecker("redis", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.Redis.Ping(pingCtx).Err()
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newOutboxWorker собирает фонового публикатора outbox.
// С Kafka события уходят в брокер и DLQ; без неё — только в лог,
// чтобы backlog не рос бесконечно в dev-режиме.
func newOutboxWorker(deps *Dependencies, producer *kafka.Producer, logger *log.Entry) *outbox.Worker {
	workerLogger := logger.WithField("component", "outbox")

	if producer != nil {
		return outbox.NewWorker(deps.Outbox,
			kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
			outbox.WithLogger(workerLogger),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
		)
	}

	return outbox.NewWorker(deps.Outbox,
		&logOutboxPublisher{logger: workerLogger},
		outbox.WithLogger(workerLogger),
	)
}

// startMetricsServer запускает служебный HTTP: метрики и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
