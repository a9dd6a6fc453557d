package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func makeCoupon() domain.Coupon {
	return domain.Coupon{
		ID:            "coupon-1",
		Code:          "SAVE10",
		Kind:          domain.CouponKindPercent,
		ValueMinor:    10,
		Currency:      "USD",
		RedemptionCap: 1,
		AppliesToAll:  true,
		Active:        true,
	}
}

func TestCouponCheckWindow(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	cases := []struct {
		name string
		mut  func(c *domain.Coupon)
		want error
	}{
		{
			name: "active without window",
			mut:  func(c *domain.Coupon) {},
			want: nil,
		},
		{
			name: "inactive",
			mut:  func(c *domain.Coupon) { c.Active = false },
			want: domain.ErrCouponInactive,
		},
		{
			name: "not yet active",
			mut:  func(c *domain.Coupon) { c.ValidFrom = &after },
			want: domain.ErrCouponNotYetActive,
		},
		{
			name: "expired",
			mut:  func(c *domain.Coupon) { c.ValidUntil = &before },
			want: domain.ErrCouponExpired,
		},
		{
			name: "inside window",
			mut: func(c *domain.Coupon) {
				c.ValidFrom = &before
				c.ValidUntil = &after
			},
			want: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coupon := makeCoupon()
			tc.mut(&coupon)

			err := coupon.CheckWindow(now)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCouponAppliesTo(t *testing.T) {
	coupon := makeCoupon()
	coupon.AppliesToAll = false
	coupon.ProductIDs = []string{"product-1"}
	coupon.CategoryIDs = []string{"category-x"}

	if !coupon.AppliesTo("product-1", "category-y") {
		t.Fatal("expected match by product id")
	}
	if !coupon.AppliesTo("product-2", "category-x") {
		t.Fatal("expected match by category id")
	}
	if coupon.AppliesTo("product-2", "category-y") {
		t.Fatal("expected no match outside scope")
	}

	coupon.AppliesToAll = true
	if !coupon.AppliesTo("anything", "anywhere") {
		t.Fatal("applies-to-all coupon must match any item")
	}
}

func TestCouponCapped(t *testing.T) {
	coupon := makeCoupon()
	if !coupon.Capped() {
		t.Fatal("coupon with cap=1 must be capped")
	}
	coupon.RedemptionCap = 0
	if coupon.Capped() {
		t.Fatal("coupon with cap=0 must be unlimited")
	}
}
