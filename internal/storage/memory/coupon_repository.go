package memory

import (
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// couponRepositoryInMemory — in-memory справочник купонов.
type couponRepositoryInMemory struct {
	mu     sync.RWMutex
	items  map[string]domain.Coupon
	byCode map[string]string
}

// NewCouponRepository возвращает in-memory реализацию CouponRepository.
func NewCouponRepository() domain.CouponRepository {
	return &couponRepositoryInMemory{
		items:  make(map[string]domain.Coupon),
		byCode: make(map[string]string),
	}
}

// Get возвращает купон по идентификатору.
func (r *couponRepositoryInMemory) Get(id string) (domain.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	coupon, ok := r.items[id]
	if !ok {
		return domain.Coupon{}, domain.ErrCouponNotFound
	}
	return cloneCoupon(coupon), nil
}

// GetByCode возвращает купон по коду. Код нечувствителен к регистру.
func (r *couponRepositoryInMemory) GetByCode(code string) (domain.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCode[normalizeCode(code)]
	if !ok {
		return domain.Coupon{}, domain.ErrCouponNotFound
	}
	return cloneCoupon(r.items[id]), nil
}

// Create сохраняет купон. Повторное использование кода — конфликт.
func (r *couponRepositoryInMemory) Create(coupon domain.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := normalizeCode(coupon.Code)
	if _, exists := r.byCode[code]; exists {
		return domain.ErrOrderConflict
	}
	r.items[coupon.ID] = cloneCoupon(coupon)
	r.byCode[code] = coupon.ID
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func cloneCoupon(src domain.Coupon) domain.Coupon {
	dst := src
	dst.ProductIDs = append([]string(nil), src.ProductIDs...)
	dst.CategoryIDs = append([]string(nil), src.CategoryIDs...)
	return dst
}

var _ domain.CouponRepository = (*couponRepositoryInMemory)(nil)
