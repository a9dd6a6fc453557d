package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// reservationLedgerInMemory — in-memory учёт лимита купонов.
// Один mutex на весь ledger: проверка ёмкости и вставка резерва выполняются
// под одной блокировкой, поэтому два конкурентных Reserve не могут оба
// увидеть «ёмкость есть» и оба вставить.
type reservationLedgerInMemory struct {
	mu      sync.Mutex
	coupons domain.CouponRepository
	orders  domain.OrderRepository
	items   map[string]*domain.CouponReservation
}

// NewReservationLedger возвращает in-memory реализацию ReservationLedger.
// Репозиторий заказов нужен sweeper-у: перед снятием просроченного резерва
// ledger обязан убедиться, что заказ всё ещё в статусе created.
func NewReservationLedger(coupons domain.CouponRepository, orders domain.OrderRepository) domain.ReservationLedger {
	return &reservationLedgerInMemory{
		coupons: coupons,
		orders:  orders,
		items:   make(map[string]*domain.CouponReservation),
	}
}

// Reserve атомарно проверяет ёмкость и создаёт резерв.
func (l *reservationLedgerInMemory) Reserve(orderID, couponID string, ttl time.Duration) (domain.CouponReservation, error) {
	if orderID == "" {
		return domain.CouponReservation{}, domain.ErrReservationOrderRequired
	}
	if couponID == "" {
		return domain.CouponReservation{}, domain.ErrReservationCouponRequired
	}

	coupon, err := l.coupons.Get(couponID)
	if err != nil {
		return domain.CouponReservation{}, err
	}

	now := time.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Повторный Reserve для той же пары (заказ, купон) возвращает живой резерв.
	for _, r := range l.items {
		if r.OrderID == orderID && r.CouponID == couponID && r.Status == domain.ReservationStatusReserved {
			return *r, nil
		}
	}

	if coupon.Capped() {
		inUse := 0
		for _, r := range l.items {
			if r.CouponID != couponID {
				continue
			}
			if r.ActiveAt(now) || r.Status == domain.ReservationStatusConfirmed {
				inUse++
			}
		}
		if inUse >= coupon.RedemptionCap {
			return domain.CouponReservation{}, domain.ErrCouponExhausted
		}
	}

	reservation := &domain.CouponReservation{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		CouponID:  couponID,
		Status:    domain.ReservationStatusReserved,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.items[reservation.ID] = reservation
	return *reservation, nil
}

// Confirm переводит резерв reserved → confirmed.
// Повторное подтверждение и подтверждение отсутствующего резерва — no-op.
func (l *reservationLedgerInMemory) Confirm(orderID, couponID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range l.items {
		if r.OrderID != orderID || r.CouponID != couponID {
			continue
		}
		if r.Status == domain.ReservationStatusReserved {
			r.Status = domain.ReservationStatusConfirmed
			r.UpdatedAt = time.Now().UTC()
		}
		return nil
	}
	return nil
}

// Release переводит резерв reserved → released. Идемпотентен.
func (l *reservationLedgerInMemory) Release(orderID, couponID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.releaseLocked(orderID, couponID)
	return nil
}

// ReleaseByOrder снимает все активные резервы заказа.
func (l *reservationLedgerInMemory) ReleaseByOrder(orderID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	released := 0
	for _, r := range l.items {
		if r.OrderID == orderID && r.Status == domain.ReservationStatusReserved {
			r.Status = domain.ReservationStatusReleased
			r.UpdatedAt = time.Now().UTC()
			released++
		}
	}
	return released, nil
}

// SweepExpired снимает просроченные резервы заказов, оставшихся в created.
// Резервы оплаченных заказов не затрагиваются: правило разрешения гонки
// между истечением TTL и поздним webhook-ом об оплате.
func (l *reservationLedgerInMemory) SweepExpired(now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	swept := 0
	for _, r := range l.items {
		if r.Status != domain.ReservationStatusReserved || !r.ExpiresAt.Before(now) {
			continue
		}

		order, err := l.orders.Get(r.OrderID)
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				continue
			}
			return swept, err
		}
		if order.Status != domain.OrderStatusCreated {
			continue
		}

		r.Status = domain.ReservationStatusExpired
		r.UpdatedAt = time.Now().UTC()
		swept++
	}
	return swept, nil
}

// CapacityInUse возвращает занятую ёмкость купона: активные резервы
// плюс подтверждённые погашения.
func (l *reservationLedgerInMemory) CapacityInUse(couponID string, now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	inUse := 0
	for _, r := range l.items {
		if r.CouponID != couponID {
			continue
		}
		if r.ActiveAt(now) || r.Status == domain.ReservationStatusConfirmed {
			inUse++
		}
	}
	return inUse, nil
}

func (l *reservationLedgerInMemory) releaseLocked(orderID, couponID string) {
	for _, r := range l.items {
		if r.OrderID == orderID && r.CouponID == couponID && r.Status == domain.ReservationStatusReserved {
			r.Status = domain.ReservationStatusReleased
			r.UpdatedAt = time.Now().UTC()
		}
	}
}

var _ domain.ReservationLedger = (*reservationLedgerInMemory)(nil)
