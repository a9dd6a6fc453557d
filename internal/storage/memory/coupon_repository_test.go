package memory_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
)

func TestCouponRepository_CreateGet(t *testing.T) {
	repo := memory.NewCouponRepository()
	coupon := domain.Coupon{ID: "coupon-1", Code: "SAVE10", Kind: domain.CouponKindPercent, ValueMinor: 10, Active: true}

	if err := repo.Create(coupon); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get("coupon-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Code != "SAVE10" {
		t.Fatalf("expected code SAVE10, got %s", stored.Code)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}
}

func TestCouponRepository_GetByCodeCaseInsensitive(t *testing.T) {
	repo := memory.NewCouponRepository()
	if err := repo.Create(domain.Coupon{ID: "coupon-1", Code: "SAVE10", Active: true}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for _, code := range []string{"SAVE10", "save10", "  Save10  "} {
		if _, err := repo.GetByCode(code); err != nil {
			t.Fatalf("get by code %q failed: %v", code, err)
		}
	}

	if _, err := repo.GetByCode("OTHER"); !errors.Is(err, domain.ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}
}
