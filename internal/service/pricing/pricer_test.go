package pricing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/service/pricing"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
)

type fixture struct {
	pricer  *pricing.Pricer
	coupons domain.CouponRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	inv := memory.NewInventory()
	inv.Put(domain.InventoryVariant{
		ID: "variant-1", ProductID: "product-1", CategoryID: "category-x",
		Name: "Widget", PriceMinor: 1000, Stock: 10, Active: true,
	})
	inv.Put(domain.InventoryVariant{
		ID: "variant-2", ProductID: "product-2", CategoryID: "category-y",
		Name: "Gadget", PriceMinor: 2500, Stock: 2, Active: true,
	})
	inv.Put(domain.InventoryVariant{
		ID: "variant-off", ProductID: "product-3", CategoryID: "category-x",
		Name: "Legacy", PriceMinor: 500, Stock: 5, Active: false,
	})

	coupons := memory.NewCouponRepository()
	return fixture{
		pricer:  pricing.NewPricer(inv, coupons, nil),
		coupons: coupons,
	}
}

func (f fixture) seedCoupon(t *testing.T, coupon domain.Coupon) {
	t.Helper()
	if err := f.coupons.Create(coupon); err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
}

func TestPrice_SubtotalAndTotal(t *testing.T) {
	fx := newFixture(t)

	quote, err := fx.pricer.Price(pricing.Request{
		Items: []pricing.ItemRequest{
			{VariantID: "variant-1", Qty: 2},
			{VariantID: "variant-2", Qty: 1},
		},
		ShippingMinor: 300,
		Currency:      "USD",
	})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}

	if quote.SubtotalMinor != 4500 {
		t.Fatalf("expected subtotal 4500, got %d", quote.SubtotalMinor)
	}
	if quote.TotalMinor != 4800 {
		t.Fatalf("expected total 4800, got %d", quote.TotalMinor)
	}
	if quote.Coupon != nil {
		t.Fatal("expected no coupon in quote")
	}
	if len(quote.Items) != 2 {
		t.Fatalf("expected 2 item snapshots, got %d", len(quote.Items))
	}
}

func TestPrice_ItemValidation(t *testing.T) {
	fx := newFixture(t)

	cases := []struct {
		name string
		req  pricing.Request
		want error
	}{
		{
			name: "empty cart",
			req:  pricing.Request{Currency: "USD"},
			want: domain.ErrItemsRequired,
		},
		{
			name: "no currency",
			req:  pricing.Request{Items: []pricing.ItemRequest{{VariantID: "variant-1", Qty: 1}}},
			want: domain.ErrCurrencyRequired,
		},
		{
			name: "negative shipping",
			req: pricing.Request{
				Items: []pricing.ItemRequest{{VariantID: "variant-1", Qty: 1}}, Currency: "USD", ShippingMinor: -1,
			},
			want: domain.ErrShippingNegative,
		},
		{
			name: "zero qty",
			req: pricing.Request{
				Items: []pricing.ItemRequest{{VariantID: "variant-1", Qty: 0}}, Currency: "USD",
			},
			want: domain.ErrItemQtyInvalid,
		},
		{
			name: "unknown variant",
			req: pricing.Request{
				Items: []pricing.ItemRequest{{VariantID: "missing", Qty: 1}}, Currency: "USD",
			},
			want: domain.ErrVariantNotFound,
		},
		{
			name: "inactive variant",
			req: pricing.Request{
				Items: []pricing.ItemRequest{{VariantID: "variant-off", Qty: 1}}, Currency: "USD",
			},
			want: domain.ErrVariantInactive,
		},
		{
			name: "stock insufficient",
			req: pricing.Request{
				Items: []pricing.ItemRequest{{VariantID: "variant-2", Qty: 3}}, Currency: "USD",
			},
			want: domain.ErrStockInsufficient,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := fx.pricer.Price(tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestPrice_PercentCoupon(t *testing.T) {
	fx := newFixture(t)
	fx.seedCoupon(t, domain.Coupon{
		ID: "coupon-1", Code: "SAVE10", Kind: domain.CouponKindPercent,
		ValueMinor: 10, AppliesToAll: true, Active: true,
	})

	quote, err := fx.pricer.Price(pricing.Request{
		Items:         []pricing.ItemRequest{{VariantID: "variant-1", Qty: 1}},
		CouponCode:    "SAVE10",
		ShippingMinor: 300,
		Currency:      "USD",
	})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}

	if quote.DiscountMinor != 100 {
		t.Fatalf("expected discount 100, got %d", quote.DiscountMinor)
	}
	if quote.TotalMinor != 1200 {
		t.Fatalf("expected total 1200, got %d", quote.TotalMinor)
	}
	if quote.Coupon == nil || quote.Coupon.ID != "coupon-1" {
		t.Fatal("expected resolved coupon in quote")
	}
}

func TestPrice_PercentCouponFloors(t *testing.T) {
	fx := newFixture(t)
	fx.seedCoupon(t, domain.Coupon{
		ID: "coupon-1", Code: "SAVE33", Kind: domain.CouponKindPercent,
		ValueMinor: 33, AppliesToAll: true, Active: true,
	})

	// 33% от 2500 = 825, без округления вверх.
	quote, err := fx.pricer.Price(pricing.Request{
		Items:      []pricing.ItemRequest{{VariantID: "variant-2", Qty: 1}},
		CouponCode: "SAVE33",
		Currency:   "USD",
	})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if quote.DiscountMinor != 825 {
		t.Fatalf("expected discount 825, got %d", quote.DiscountMinor)
	}
}

func TestPrice_FixedCouponClampedToApplicable(t *testing.T) {
	fx := newFixture(t)
	fx.seedCoupon(t, domain.Coupon{
		ID: "coupon-1", Code: "MINUS5000", Kind: domain.CouponKindFixed,
		ValueMinor: 5000, Currency: "USD", AppliesToAll: true, Active: true,
	})

	quote, err := fx.pricer.Price(pricing.Request{
		Items:         []pricing.ItemRequest{{VariantID: "variant-1", Qty: 1}},
		CouponCode:    "MINUS5000",
		ShippingMinor: 300,
		Currency:      "USD",
	})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}

	// Скидка не превышает применимую часть корзины: total не уходит в минус.
	if quote.DiscountMinor != 1000 {
		t.Fatalf("expected clamped discount 1000, got %d", quote.DiscountMinor)
	}
	if quote.TotalMinor != 300 {
		t.Fatalf("expected total 300, got %d", quote.TotalMinor)
	}
}

func TestPrice_FixedCouponCurrencyMismatch(t *testing.T) {
	fx := newFixture(t)
	fx.seedCoupon(t, domain.Coupon{
		ID: "coupon-1", Code: "MINUS500", Kind: domain.CouponKindFixed,
		ValueMinor: 500, Currency: "EUR", AppliesToAll: true, Active: true,
	})

	_, err := fx.pricer.Price(pricing.Request{
		Items:      []pricing.ItemRequest{{VariantID: "variant-1", Qty: 1}},
		CouponCode: "MINUS500",
		Currency:   "USD",
	})
	if !errors.Is(err, domain.ErrCouponNotApplicable) {
		t.Fatalf("expected ErrCouponNotApplicable, got %v", err)
	}
}

func TestPrice_FreeShippingCoupon(t *testing.T) {
	fx := newFixture(t)
	fx.seedCoupon(t, domain.Coupon{
		ID: "coupon-1", Code: "FREESHIP", Kind: domain.CouponKindFreeShipping,
		AppliesToAll: true, Active: true,
	})

	quote, err := fx.pricer.Price(pricing.Request{
		Items:         []pricing.ItemRequest{{VariantID: "variant-1", Qty: 1}},
		CouponCode:    "FREESHIP",
		ShippingMinor: 300,
		Currency:      "USD",
	})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}

	if quote.ShippingMinor != 0 {
		t.Fatalf("expected zeroed shipping, got %d", quote.ShippingMinor)
	}
	if quote.DiscountMinor != 0 {
		t.Fatalf("free shipping must not discount the subtotal, got %d", quote.DiscountMinor)
	}
	if quote.TotalMinor != 1000 {
		t.Fatalf("expected total 1000, got %d", quote.TotalMinor)
	}
}

func TestPrice_ScopedCoupon(t *testing.T) {
	fx := newFixture(t)
	fx.seedCoupon(t, domain.Coupon{
		ID: "coupon-1", Code: "CATX20", Kind: domain.CouponKindPercent,
		ValueMinor: 20, CategoryIDs: []string{"category-x"}, Active: true,
	})

	// Купон категории X применяется только к variant-1.
	quote, err := fx.pricer.Price(pricing.Request{
		Items: []pricing.ItemRequest{
			{VariantID: "variant-1", Qty: 1},
			{VariantID: "variant-2", Qty: 1},
		},
		CouponCode: "CATX20",
		Currency:   "USD",
	})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if quote.DiscountMinor != 200 {
		t.Fatalf("expected discount on category-x items only, got %d", quote.DiscountMinor)
	}

	// Корзина целиком из категории Y — купон не применим, скидки нет.
	_, err = fx.pricer.Price(pricing.Request{
		Items:      []pricing.ItemRequest{{VariantID: "variant-2", Qty: 1}},
		CouponCode: "CATX20",
		Currency:   "USD",
	})
	if !errors.Is(err, domain.ErrCouponNotApplicable) {
		t.Fatalf("expected ErrCouponNotApplicable, got %v", err)
	}
}

func TestPrice_CouponMinimum(t *testing.T) {
	fx := newFixture(t)
	fx.seedCoupon(t, domain.Coupon{
		ID: "coupon-1", Code: "BIG", Kind: domain.CouponKindPercent,
		ValueMinor: 10, MinOrderMinor: 5000, AppliesToAll: true, Active: true,
	})

	_, err := fx.pricer.Price(pricing.Request{
		Items:      []pricing.ItemRequest{{VariantID: "variant-1", Qty: 1}},
		CouponCode: "BIG",
		Currency:   "USD",
	})
	if !errors.Is(err, domain.ErrCouponMinimumNotMet) {
		t.Fatalf("expected ErrCouponMinimumNotMet, got %v", err)
	}
}

func TestPrice_CouponWindow(t *testing.T) {
	fx := newFixture(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	fx.seedCoupon(t, domain.Coupon{
		ID: "coupon-future", Code: "FUTURE", Kind: domain.CouponKindPercent,
		ValueMinor: 10, AppliesToAll: true, Active: true, ValidFrom: &later,
	})
	fx.seedCoupon(t, domain.Coupon{
		ID: "coupon-past", Code: "PAST", Kind: domain.CouponKindPercent,
		ValueMinor: 10, AppliesToAll: true, Active: true, ValidUntil: &earlier,
	})

	fx.pricer.WithClock(func() time.Time { return now })

	_, err := fx.pricer.Price(pricing.Request{
		Items:      []pricing.ItemRequest{{VariantID: "variant-1", Qty: 1}},
		CouponCode: "FUTURE",
		Currency:   "USD",
	})
	if !errors.Is(err, domain.ErrCouponNotYetActive) {
		t.Fatalf("expected ErrCouponNotYetActive, got %v", err)
	}

	_, err = fx.pricer.Price(pricing.Request{
		Items:      []pricing.ItemRequest{{VariantID: "variant-1", Qty: 1}},
		CouponCode: "PAST",
		Currency:   "USD",
	})
	if !errors.Is(err, domain.ErrCouponExpired) {
		t.Fatalf("expected ErrCouponExpired, got %v", err)
	}
}

func TestPrice_UnknownCoupon(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.pricer.Price(pricing.Request{
		Items:      []pricing.ItemRequest{{VariantID: "variant-1", Qty: 1}},
		CouponCode: "NOPE",
		Currency:   "USD",
	})
	if !errors.Is(err, domain.ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}
}
