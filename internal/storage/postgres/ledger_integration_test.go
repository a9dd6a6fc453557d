package postgres

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestReservationLedgerIntegration_ReserveAndConfirm(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderRepository(store)
	coupons := NewCouponRepository(store)
	ledger := NewReservationLedger(store)

	order := insertTestOrder(t, orders, domain.OrderStatusCreated)
	coupon := insertTestCoupon(t, coupons, "SAVE10", 5)

	reservation, err := ledger.Reserve(order.ID, coupon.ID, 15*time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if reservation.Status != domain.ReservationStatusReserved {
		t.Fatalf("expected reserved, got %s", reservation.Status)
	}

	// Повторный Reserve возвращает тот же резерв, а не создаёт второй.
	repeat, err := ledger.Reserve(order.ID, coupon.ID, 15*time.Minute)
	if err != nil {
		t.Fatalf("repeat reserve: %v", err)
	}
	if repeat.ID != reservation.ID {
		t.Fatalf("expected same reservation id %s, got %s", reservation.ID, repeat.ID)
	}

	inUse, err := ledger.CapacityInUse(coupon.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("capacity in use: %v", err)
	}
	if inUse != 1 {
		t.Fatalf("expected capacity 1, got %d", inUse)
	}

	if err := ledger.Confirm(order.ID, coupon.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// Повторное подтверждение — no-op.
	if err := ledger.Confirm(order.ID, coupon.ID); err != nil {
		t.Fatalf("repeat confirm: %v", err)
	}

	inUse, err = ledger.CapacityInUse(coupon.ID, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("capacity in use after confirm: %v", err)
	}
	if inUse != 1 {
		t.Fatalf("confirmed redemption must hold capacity forever, got %d", inUse)
	}
}

func TestReservationLedgerIntegration_CapIsEnforcedConcurrently(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderRepository(store)
	coupons := NewCouponRepository(store)
	ledger := NewReservationLedger(store)

	coupon := insertTestCoupon(t, coupons, "LIMIT3", 3)

	const attempts = 10
	orderIDs := make([]string, attempts)
	for i := range orderIDs {
		order := insertTestOrder(t, orders, domain.OrderStatusCreated)
		orderIDs[i] = order.ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for _, orderID := range orderIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := ledger.Reserve(id, coupon.ID, 15*time.Minute)
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				succeeded++
			case domain.ErrCouponExhausted:
				exhausted++
			default:
				t.Errorf("unexpected reserve error: %v", err)
			}
		}(orderID)
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("expected exactly 3 successful reservations, got %d", succeeded)
	}
	if exhausted != attempts-3 {
		t.Fatalf("expected %d exhausted attempts, got %d", attempts-3, exhausted)
	}

	inUse, err := ledger.CapacityInUse(coupon.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("capacity in use: %v", err)
	}
	if inUse != 3 {
		t.Fatalf("expected capacity 3, got %d", inUse)
	}
}

func TestReservationLedgerIntegration_ReleaseByOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderRepository(store)
	coupons := NewCouponRepository(store)
	ledger := NewReservationLedger(store)

	order := insertTestOrder(t, orders, domain.OrderStatusCreated)
	coupon := insertTestCoupon(t, coupons, "RELEASE", 1)

	if _, err := ledger.Reserve(order.ID, coupon.ID, 15*time.Minute); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	released, err := ledger.ReleaseByOrder(order.ID)
	if err != nil {
		t.Fatalf("release by order: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released reservation, got %d", released)
	}

	// Идемпотентность: повторный release ничего не находит и не падает.
	released, err = ledger.ReleaseByOrder(order.ID)
	if err != nil {
		t.Fatalf("repeat release by order: %v", err)
	}
	if released != 0 {
		t.Fatalf("expected 0 on repeat release, got %d", released)
	}

	inUse, err := ledger.CapacityInUse(coupon.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("capacity in use: %v", err)
	}
	if inUse != 0 {
		t.Fatalf("released reservation must free capacity, got %d", inUse)
	}
}

func TestReservationLedgerIntegration_SweepSkipsPaidOrders(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderRepository(store)
	coupons := NewCouponRepository(store)
	ledger := NewReservationLedger(store)

	coupon := insertTestCoupon(t, coupons, "SWEEP", 2)

	createdOrder := insertTestOrder(t, orders, domain.OrderStatusCreated)
	paidOrder := insertTestOrder(t, orders, domain.OrderStatusPaid)

	if _, err := ledger.Reserve(createdOrder.ID, coupon.ID, time.Minute); err != nil {
		t.Fatalf("reserve created: %v", err)
	}
	if _, err := ledger.Reserve(paidOrder.ID, coupon.ID, time.Minute); err != nil {
		t.Fatalf("reserve paid: %v", err)
	}

	swept, err := ledger.SweepExpired(time.Now().UTC().Add(2 * time.Minute))
	if err != nil {
		t.Fatalf("sweep expired: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept reservation, got %d", swept)
	}

	// Резерв оплаченного заказа остаётся reserved: поздний Confirm обязан пройти.
	if err := ledger.Confirm(paidOrder.ID, coupon.ID); err != nil {
		t.Fatalf("confirm after sweep: %v", err)
	}
	inUse, err := ledger.CapacityInUse(coupon.ID, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("capacity in use: %v", err)
	}
	if inUse != 1 {
		t.Fatalf("expected confirmed redemption to hold 1 unit, got %d", inUse)
	}
}

func TestReservationLedgerIntegration_UnknownCoupon(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ledger := NewReservationLedger(store)

	if _, err := ledger.Reserve(uuid.NewString(), uuid.NewString(), time.Minute); err != domain.ErrCouponNotFound {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}
}
