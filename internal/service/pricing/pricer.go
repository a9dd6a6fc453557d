package pricing

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// ItemRequest — запрошенная позиция корзины.
type ItemRequest struct {
	VariantID string
	Qty       int32
}

// Request описывает корзину для расчёта.
type Request struct {
	Items         []ItemRequest
	CouponCode    string
	ShippingMinor int64
	Currency      string
}

// Pricer рассчитывает корзину: проверяет позиции по живому состоянию каталога,
// считает subtotal и применяет купон. Pricer только читает: он никогда
// не меняет ни остатки, ни лимиты купонов.
type Pricer struct {
	inventory domain.InventoryStore
	coupons   domain.CouponRepository
	logger    *log.Entry
	now       func() time.Time
}

// NewPricer создаёт прайсер корзины.
func NewPricer(inventory domain.InventoryStore, coupons domain.CouponRepository, logger *log.Entry) *Pricer {
	if logger == nil {
		logger = log.WithField("component", "pricer")
	}
	return &Pricer{
		inventory: inventory,
		coupons:   coupons,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник времени. Используется тестами окна действия купона.
func (p *Pricer) WithClock(now func() time.Time) *Pricer {
	p.now = now
	return p
}

// Price рассчитывает корзину и возвращает котировку для оформления заказа.
func (p *Pricer) Price(req Request) (domain.PriceQuote, error) {
	if len(req.Items) == 0 {
		return domain.PriceQuote{}, domain.ErrItemsRequired
	}
	if req.Currency == "" {
		return domain.PriceQuote{}, domain.ErrCurrencyRequired
	}
	if req.ShippingMinor < 0 {
		return domain.PriceQuote{}, domain.ErrShippingNegative
	}

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Qty <= 0 {
			return domain.PriceQuote{}, domain.ErrItemQtyInvalid
		}
		ids = append(ids, item.VariantID)
	}

	variants, err := p.inventory.GetVariants(ids)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("load variants: %w", err)
	}

	quote := domain.PriceQuote{
		ShippingMinor: req.ShippingMinor,
		Currency:      req.Currency,
		Items:         make([]domain.OrderItem, 0, len(req.Items)),
	}

	now := p.now()
	for _, item := range req.Items {
		variant, ok := variants[item.VariantID]
		if !ok {
			return domain.PriceQuote{}, fmt.Errorf("variant %s: %w", item.VariantID, domain.ErrVariantNotFound)
		}
		if !variant.Active {
			return domain.PriceQuote{}, fmt.Errorf("variant %s: %w", item.VariantID, domain.ErrVariantInactive)
		}
		// Остаток проверяется по каждой позиции отдельно, без агрегирования.
		if variant.Stock < item.Qty {
			return domain.PriceQuote{}, fmt.Errorf("variant %s: %w", item.VariantID, domain.ErrStockInsufficient)
		}

		quote.SubtotalMinor += int64(item.Qty) * variant.PriceMinor
		quote.Items = append(quote.Items, domain.OrderItem{
			VariantID:  variant.ID,
			ProductID:  variant.ProductID,
			Name:       variant.Name,
			Qty:        item.Qty,
			PriceMinor: variant.PriceMinor,
			CreatedAt:  now,
		})
	}

	if req.CouponCode != "" {
		coupon, err := p.coupons.GetByCode(req.CouponCode)
		if err != nil {
			return domain.PriceQuote{}, err
		}
		if err := coupon.CheckWindow(now); err != nil {
			return domain.PriceQuote{}, err
		}

		applicable := p.applicableSubtotal(&coupon, quote.Items, variants)
		if applicable == 0 {
			return domain.PriceQuote{}, domain.ErrCouponNotApplicable
		}
		if applicable < coupon.MinOrderMinor {
			return domain.PriceQuote{}, domain.ErrCouponMinimumNotMet
		}

		switch coupon.Kind {
		case domain.CouponKindPercent:
			// Округление всегда вниз, в пользу магазина.
			quote.DiscountMinor = applicable * coupon.ValueMinor / 100
		case domain.CouponKindFixed:
			if coupon.Currency != "" && coupon.Currency != req.Currency {
				return domain.PriceQuote{}, domain.ErrCouponNotApplicable
			}
			quote.DiscountMinor = coupon.ValueMinor
			if quote.DiscountMinor > applicable {
				quote.DiscountMinor = applicable
			}
		case domain.CouponKindFreeShipping:
			// Бесплатная доставка обнуляет доставку, а не даёт скидку на товары.
			quote.ShippingMinor = 0
		}

		quote.Coupon = &coupon
	}

	quote.TotalMinor = quote.SubtotalMinor + quote.ShippingMinor - quote.DiscountMinor
	return quote, nil
}

// applicableSubtotal возвращает часть корзины, попадающую в область действия купона.
func (p *Pricer) applicableSubtotal(coupon *domain.Coupon, items []domain.OrderItem, variants map[string]domain.InventoryVariant) int64 {
	var sum int64
	for _, item := range items {
		variant := variants[item.VariantID]
		if coupon.AppliesTo(variant.ProductID, variant.CategoryID) {
			sum += int64(item.Qty) * item.PriceMinor
		}
	}
	return sum
}
