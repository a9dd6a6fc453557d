package domain

import "time"

// CouponKind определяет способ расчёта скидки.
type CouponKind string

const (
	// CouponKindPercent — процент от применимой части корзины, округление вниз.
	CouponKindPercent CouponKind = "percent"
	// CouponKindFixed — фиксированная сумма, не больше применимой части корзины.
	CouponKindFixed CouponKind = "fixed"
	// CouponKindFreeShipping — обнуляет стоимость доставки вместо скидки на товары.
	CouponKindFreeShipping CouponKind = "free_shipping"
)

// Coupon описывает купон со скидкой, окном действия и областью применения.
type Coupon struct {
	ID   string
	Code string
	Kind CouponKind

	// ValueMinor — размер скидки: проценты для percent, сумма в центах для fixed.
	ValueMinor int64
	Currency   string

	// MinOrderMinor — минимальная применимая часть корзины для использования купона.
	MinOrderMinor int64

	// RedemptionCap — общий лимит использований; 0 означает без ограничения.
	RedemptionCap int

	// Окно действия. nil означает отсутствие соответствующей границы.
	ValidFrom  *time.Time
	ValidUntil *time.Time

	// Область применения: либо вся витрина, либо явные списки товаров/категорий.
	AppliesToAll bool
	ProductIDs   []string
	CategoryIDs  []string

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckWindow проверяет, действует ли купон в момент now.
func (c *Coupon) CheckWindow(now time.Time) error {
	if !c.Active {
		return ErrCouponInactive
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return ErrCouponNotYetActive
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return ErrCouponExpired
	}
	return nil
}

// AppliesTo сообщает, входит ли позиция с данными товаром и категорией
// в область действия купона.
func (c *Coupon) AppliesTo(productID, categoryID string) bool {
	if c.AppliesToAll {
		return true
	}
	for _, id := range c.ProductIDs {
		if id == productID {
			return true
		}
	}
	for _, id := range c.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// Capped сообщает, ограничен ли купон лимитом использований.
func (c *Coupon) Capped() bool {
	return c.RedemptionCap > 0
}
