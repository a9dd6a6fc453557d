package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/redisx"
	"github.com/vladislavdragonenkov/checkout/internal/service/payment"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
	"github.com/vladislavdragonenkov/checkout/internal/storage/postgres"
)

// Dependencies содержит хранилища и внешние клиенты приложения.
type Dependencies struct {
	Orders    domain.OrderRepository
	Coupons   domain.CouponRepository
	Ledger    domain.ReservationLedger
	Inventory domain.InventoryStore
	Outbox    domain.OutboxRepository
	Timeline  domain.TimelineRepository

	Gateway domain.PaymentGateway

	// Store заполнен только в PostgreSQL-режиме.
	Store *postgres.Store
	// Redis — опциональный кэш статусов заказов.
	Redis *redis.Client

	Logger *log.Entry
}

// NewDependencies собирает зависимости по конфигурации.
// Пустой DatabaseDSN переключает сервис на in-memory хранилище
// с демо-каталогом: этого достаточно для локальной разработки.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.DatabaseDSN != "" {
		store, err := postgres.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}

		deps.Store = store
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Coupons = postgres.NewCouponRepository(store)
		deps.Ledger = postgres.NewReservationLedger(store)
		deps.Inventory = postgres.NewInventoryStore(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Timeline = postgres.NewTimelineRepository(store)
		logger.Info("using postgres storage")
	} else {
		orders := memory.NewOrderRepository()
		coupons := memory.NewCouponRepository()
		inventory := memory.NewInventory()

		deps.Orders = orders
		deps.Coupons = coupons
		deps.Ledger = memory.NewReservationLedger(coupons, orders)
		deps.Inventory = inventory
		deps.Outbox = memory.NewOutboxRepository()
		deps.Timeline = memory.NewTimelineRepository()

		seedDemoCatalog(inventory, coupons, logger)
		logger.Warn("using in-memory storage, data will not survive restart")
	}

	if cfg.PaymentBaseURL != "" {
		deps.Gateway = payment.NewGateway(cfg.PaymentBaseURL, payment.DefaultRetryConfig(), logger.WithField("component", "payment"))
	} else {
		deps.Gateway = payment.NewMockGateway()
		logger.Warn("payment base url is not set, using mock payment gateway")
	}

	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		if err := redisx.Ping(ctx, rdb); err != nil {
			logger.WithError(err).Warn("redis is unreachable, continuing without status cache")
			_ = rdb.Close()
		} else {
			deps.Redis = rdb
			logger.WithField("addr", cfg.RedisAddr).Info("redis status cache enabled")
		}
	}

	return deps, nil
}

// Close освобождает подключения к внешним системам.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}

// seedDemoCatalog наполняет in-memory каталог демо-данными.
func seedDemoCatalog(inventory interface {
	Put(domain.InventoryVariant)
}, coupons domain.CouponRepository, logger *log.Entry) {
	inventory.Put(domain.InventoryVariant{
		ID: "variant-tee-m", ProductID: "product-tee", CategoryID: "apparel",
		Name: "Logo Tee (M)", PriceMinor: 1900, Stock: 100, Active: true,
	})
	inventory.Put(domain.InventoryVariant{
		ID: "variant-tee-l", ProductID: "product-tee", CategoryID: "apparel",
		Name: "Logo Tee (L)", PriceMinor: 1900, Stock: 100, Active: true,
	})
	inventory.Put(domain.InventoryVariant{
		ID: "variant-mug", ProductID: "product-mug", CategoryID: "kitchen",
		Name: "Ceramic Mug", PriceMinor: 900, Stock: 50, Active: true,
	})

	if err := coupons.Create(domain.Coupon{
		ID: "coupon-save10", Code: "SAVE10", Kind: domain.CouponKindPercent,
		ValueMinor: 10, RedemptionCap: 100, AppliesToAll: true, Active: true,
	}); err != nil {
		logger.WithError(err).Warn("failed to seed demo coupon")
	}

	logger.Info("seeded demo catalog: 3 variants, coupon SAVE10")
}
