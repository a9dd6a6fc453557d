package domain

// PriceQuote — результат расчёта корзины до создания заказа.
// Расчёт чистый: он не меняет ни остатки, ни лимиты купонов.
type PriceQuote struct {
	SubtotalMinor int64
	ShippingMinor int64
	DiscountMinor int64
	TotalMinor    int64
	Currency      string

	// Coupon заполняется, если купон прошёл все проверки; резервирование
	// лимита выполняет оркестратор, а не прайсер.
	Coupon *Coupon

	// Items — снимки позиций для будущего заказа.
	Items []OrderItem
}
