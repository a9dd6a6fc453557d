package postgres

import (
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestInventoryStoreIntegration_GetVariants(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	inventory := NewInventoryStore(store).(*inventoryStore)

	if err := inventory.Put(domain.InventoryVariant{
		ID: "variant-1", ProductID: "product-1", CategoryID: "cat-1",
		Name: "Shirt M", PriceMinor: 1000, Stock: 10, Active: true,
	}); err != nil {
		t.Fatalf("put variant: %v", err)
	}
	if err := inventory.Put(domain.InventoryVariant{
		ID: "variant-2", ProductID: "product-2", CategoryID: "cat-2",
		Name: "Mug", PriceMinor: 500, Stock: 2, Active: true,
	}); err != nil {
		t.Fatalf("put variant: %v", err)
	}

	variants, err := inventory.GetVariants([]string{"variant-1", "variant-2", "missing"})
	if err != nil {
		t.Fatalf("get variants: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(variants))
	}
	if variants["variant-1"].PriceMinor != 1000 {
		t.Fatalf("unexpected price: %d", variants["variant-1"].PriceMinor)
	}
	if _, ok := variants["missing"]; ok {
		t.Fatal("missing variant must not appear in result")
	}
}

func TestInventoryStoreIntegration_DecrementStockGuard(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	inventory := NewInventoryStore(store).(*inventoryStore)

	if err := inventory.Put(domain.InventoryVariant{
		ID: "variant-1", Name: "Shirt M", PriceMinor: 1000, Stock: 3, Active: true,
	}); err != nil {
		t.Fatalf("put variant: %v", err)
	}

	if err := inventory.DecrementStock("variant-1", 2); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if err := inventory.DecrementStock("variant-1", 2); err != domain.ErrStockInsufficient {
		t.Fatalf("expected ErrStockInsufficient, got %v", err)
	}
	if err := inventory.DecrementStock("missing", 1); err != domain.ErrVariantNotFound {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}

	variants, err := inventory.GetVariants([]string{"variant-1"})
	if err != nil {
		t.Fatalf("get variants: %v", err)
	}
	if variants["variant-1"].Stock != 1 {
		t.Fatalf("expected stock 1, got %d", variants["variant-1"].Stock)
	}
}

func TestCouponRepositoryIntegration_Roundtrip(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewCouponRepository(store)

	coupon := domain.Coupon{
		Code:          "SCOPED15",
		Kind:          domain.CouponKindFixed,
		ValueMinor:    1500,
		Currency:      "USD",
		MinOrderMinor: 5000,
		RedemptionCap: 7,
		AppliesToAll:  false,
		ProductIDs:    []string{"product-1", "product-2"},
		CategoryIDs:   []string{"cat-9"},
		Active:        true,
	}
	if err := repo.Create(coupon); err != nil {
		t.Fatalf("create coupon: %v", err)
	}

	got, err := repo.GetByCode("SCOPED15")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if got.Kind != domain.CouponKindFixed || got.ValueMinor != 1500 {
		t.Fatalf("unexpected coupon: %+v", got)
	}
	if len(got.ProductIDs) != 2 || got.ProductIDs[0] != "product-1" {
		t.Fatalf("product scope did not survive roundtrip: %+v", got.ProductIDs)
	}
	if len(got.CategoryIDs) != 1 || got.CategoryIDs[0] != "cat-9" {
		t.Fatalf("category scope did not survive roundtrip: %+v", got.CategoryIDs)
	}

	byID, err := repo.Get(got.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Code != "SCOPED15" {
		t.Fatalf("expected code SCOPED15, got %s", byID.Code)
	}

	if _, err := repo.GetByCode("NOPE"); err != domain.ErrCouponNotFound {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}
}
