package checkout

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/service/payment"
	"github.com/vladislavdragonenkov/checkout/internal/service/pricing"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
)

type fixture struct {
	orders   domain.OrderRepository
	coupons  domain.CouponRepository
	ledger   domain.ReservationLedger
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	gateway  *payment.MockGateway
	orch     *orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	orders := memory.NewOrderRepository()
	coupons := memory.NewCouponRepository()
	ledger := memory.NewReservationLedger(coupons, orders)
	outbox := memory.NewOutboxRepository()
	timeline := memory.NewTimelineRepository()
	gateway := payment.NewMockGateway()

	inventory := memory.NewInventory()
	inventory.Put(domain.InventoryVariant{
		ID:         "variant-1",
		ProductID:  "product-1",
		CategoryID: "category-1",
		Name:       "Kettle",
		PriceMinor: 1000,
		Stock:      10,
		Active:     true,
	})
	inventory.Put(domain.InventoryVariant{
		ID:         "variant-2",
		ProductID:  "product-2",
		CategoryID: "category-2",
		Name:       "Mug",
		PriceMinor: 500,
		Stock:      2,
		Active:     true,
	})

	if err := coupons.Create(domain.Coupon{
		ID:            "coupon-1",
		Code:          "SAVE10",
		Kind:          domain.CouponKindPercent,
		ValueMinor:    10,
		RedemptionCap: 5,
		AppliesToAll:  true,
		Active:        true,
	}); err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	pricer := pricing.NewPricer(inventory, coupons, nil)
	orch := NewOrchestratorWithoutMetrics(orders, ledger, pricer, gateway, outbox, timeline, nil).(*orchestrator)

	return &fixture{
		orders:   orders,
		coupons:  coupons,
		ledger:   ledger,
		outbox:   outbox,
		timeline: timeline,
		gateway:  gateway,
		orch:     orch,
	}
}

func checkoutRequest() Request {
	return Request{
		CustomerEmail: "buyer@example.com",
		Currency:      "USD",
		Items: []pricing.ItemRequest{
			{VariantID: "variant-1", Qty: 2},
		},
		ShippingMinor: 300,
	}
}

func TestCheckout_Success(t *testing.T) {
	f := newFixture(t)

	req := checkoutRequest()
	req.CouponCode = "SAVE10"

	result, err := f.orch.Checkout(req)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	order := result.Order
	if order.Status != domain.OrderStatusCreated {
		t.Fatalf("expected status created, got %s", order.Status)
	}
	// 2×1000 + 300 доставка − 10% от 2000.
	if order.TotalMinor != 2100 {
		t.Fatalf("expected total 2100, got %d", order.TotalMinor)
	}
	if order.CouponID != "coupon-1" {
		t.Fatalf("expected coupon-1, got %q", order.CouponID)
	}
	if result.RedirectURL == "" {
		t.Fatal("expected payment redirect url")
	}
	if order.PaymentSessionID == "" {
		t.Fatal("expected payment session id on order")
	}

	stored, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.PaymentSessionID != order.PaymentSessionID {
		t.Fatal("payment session not persisted")
	}

	inUse, err := f.ledger.CapacityInUse("coupon-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("capacity: %v", err)
	}
	if inUse != 1 {
		t.Fatalf("expected 1 reservation in use, got %d", inUse)
	}

	// Провайдер получает номер заказа как идемпотентный reference.
	if len(f.gateway.Orders) != 1 || f.gateway.Orders[0] != order.Number {
		t.Fatalf("expected gateway call with %s, got %v", order.Number, f.gateway.Orders)
	}

	pending, err := f.outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull outbox: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != "OrderCreated" {
		t.Fatalf("expected OrderCreated outbox event, got %v", pending)
	}

	events, err := f.timeline.List(order.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(events) != 1 || events[0].Type != "OrderCreated" {
		t.Fatalf("expected OrderCreated timeline event, got %v", events)
	}
}

func TestCheckout_WithoutCoupon(t *testing.T) {
	f := newFixture(t)

	result, err := f.orch.Checkout(checkoutRequest())
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if result.Order.DiscountMinor != 0 {
		t.Fatalf("expected no discount, got %d", result.Order.DiscountMinor)
	}
	if result.Order.CouponID != "" {
		t.Fatalf("expected no coupon, got %q", result.Order.CouponID)
	}

	inUse, err := f.ledger.CapacityInUse("coupon-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("capacity: %v", err)
	}
	if inUse != 0 {
		t.Fatalf("expected no reservations, got %d", inUse)
	}
}

func TestCheckout_MissingEmailRejected(t *testing.T) {
	f := newFixture(t)

	req := checkoutRequest()
	req.CustomerEmail = ""

	_, err := f.orch.Checkout(req)
	// Нарушение инвариантов должно оставаться типизированным после обёртки.
	if !errors.Is(err, domain.ErrEmailRequired) {
		t.Fatalf("expected ErrEmailRequired, got %v", err)
	}
}

func TestCheckout_PricingRejected(t *testing.T) {
	f := newFixture(t)

	req := checkoutRequest()
	req.Items = []pricing.ItemRequest{{VariantID: "variant-2", Qty: 5}}

	_, err := f.orch.Checkout(req)
	if !errors.Is(err, domain.ErrStockInsufficient) {
		t.Fatalf("expected ErrStockInsufficient, got %v", err)
	}

	// Отклонённая корзина не оставляет следов.
	pending, err := f.outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull outbox: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty outbox, got %v", pending)
	}
}

func TestCheckout_CouponExhausted(t *testing.T) {
	f := newFixture(t)

	// Ужимаем лимит купона до единицы и занимаем её другим заказом.
	if err := f.coupons.Create(domain.Coupon{
		ID:            "coupon-tight",
		Code:          "LAST1",
		Kind:          domain.CouponKindPercent,
		ValueMinor:    10,
		RedemptionCap: 1,
		AppliesToAll:  true,
		Active:        true,
	}); err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	first := checkoutRequest()
	first.CouponCode = "LAST1"
	if _, err := f.orch.Checkout(first); err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}

	second := checkoutRequest()
	second.CouponCode = "LAST1"
	_, err := f.orch.Checkout(second)
	if !errors.Is(err, domain.ErrCouponExhausted) {
		t.Fatalf("expected ErrCouponExhausted, got %v", err)
	}

	inUse, err := f.ledger.CapacityInUse("coupon-tight", time.Now().UTC())
	if err != nil {
		t.Fatalf("capacity: %v", err)
	}
	if inUse != 1 {
		t.Fatalf("expected capacity still 1, got %d", inUse)
	}
}

func TestCheckout_GatewayFailureReleasesReservation(t *testing.T) {
	f := newFixture(t)
	f.gateway.Err = errors.New("provider down")

	req := checkoutRequest()
	req.CouponCode = "SAVE10"

	_, err := f.orch.Checkout(req)
	if err == nil {
		t.Fatal("expected checkout error")
	}

	// Заказ отменён, резерв купона снят.
	inUse, err := f.ledger.CapacityInUse("coupon-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("capacity: %v", err)
	}
	if inUse != 0 {
		t.Fatalf("expected released reservation, got %d in use", inUse)
	}
}

func TestCheckout_OrderNumberFormat(t *testing.T) {
	f := newFixture(t)

	result, err := f.orch.Checkout(checkoutRequest())
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	number := result.Order.Number
	if len(number) != len("CHK-")+12 || number[:4] != "CHK-" {
		t.Fatalf("unexpected order number format: %q", number)
	}

	if _, err := f.orders.GetByNumber(number); err != nil {
		t.Fatalf("lookup by number: %v", err)
	}
}
