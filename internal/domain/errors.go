package domain

import "errors"

var (
	// Ошибка отсутствующего email покупателя.
	ErrEmailRequired = errors.New("customer email is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отрицательной стоимости доставки.
	ErrShippingNegative = errors.New("shipping cost must be non-negative")
	// Ошибка несоответствия subtotal и сумм позиций.
	ErrSubtotalMismatch = errors.New("order subtotal does not match items sum")
	// Ошибка несоответствия total денежной раскладке заказа.
	ErrTotalMismatch = errors.New("order total does not match subtotal + shipping - discount")
	// Ошибка отрицательной итоговой суммы заказа.
	ErrTotalNegative = errors.New("order total must be non-negative")

	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyPaid сигнализирует, что заказ уже прошёл оплату и не может быть отменён.
	ErrOrderAlreadyPaid = errors.New("order already paid")
	// ErrOrderConflict сигнализирует о проигранной гонке за смену статуса заказа.
	ErrOrderConflict = errors.New("order status conflict")

	// ErrVariantNotFound — запрошенный вариант товара отсутствует в каталоге.
	ErrVariantNotFound = errors.New("variant not found")
	// ErrVariantInactive — вариант выключен и недоступен для заказа.
	ErrVariantInactive = errors.New("variant is inactive")
	// ErrStockInsufficient — запрошенное количество превышает остаток на складе.
	ErrStockInsufficient = errors.New("insufficient stock")

	// ErrCouponNotFound — купон с таким кодом не существует.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponInactive — купон выключен администратором.
	ErrCouponInactive = errors.New("coupon is inactive")
	// ErrCouponNotYetActive — окно действия купона ещё не началось.
	ErrCouponNotYetActive = errors.New("coupon is not yet active")
	// ErrCouponExpired — окно действия купона закончилось.
	ErrCouponExpired = errors.New("coupon has expired")
	// ErrCouponNotApplicable — в корзине нет позиций из области действия купона.
	ErrCouponNotApplicable = errors.New("coupon is not applicable to cart items")
	// ErrCouponMinimumNotMet — применимая часть корзины меньше минимального порога купона.
	ErrCouponMinimumNotMet = errors.New("coupon minimum order value not met")
	// ErrCouponExhausted — лимит использований купона исчерпан.
	// Это ожидаемый бизнес-исход, а не сбой: оркестратор обязан его обработать.
	ErrCouponExhausted = errors.New("coupon redemption cap exhausted")

	// ErrReservationNotFound — активное резервирование для пары (заказ, купон) не найдено.
	ErrReservationNotFound = errors.New("coupon reservation not found")
	// Ошибка отсутствующего идентификатора заказа в резерве.
	ErrReservationOrderRequired = errors.New("reservation order_id is required")
	// Ошибка отсутствующего идентификатора купона в резерве.
	ErrReservationCouponRequired = errors.New("reservation coupon_id is required")
	// Ошибка отсутствующего срока действия резерва.
	ErrReservationExpiryRequired = errors.New("reservation expires_at is required")

	// ErrSignatureInvalid — подпись webhook-события не прошла проверку HMAC.
	ErrSignatureInvalid = errors.New("webhook signature is invalid")
	// ErrPaymentProvider — платёжный провайдер недоступен или вернул неожиданный ответ.
	ErrPaymentProvider = errors.New("payment provider error")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsPricingError проверяет, относится ли ошибка к валидации корзины или купона.
// Такие ошибки возвращаются клиенту синхронно с кодом 4xx.
func IsPricingError(err error) bool {
	for _, target := range []error{
		ErrVariantNotFound, ErrVariantInactive, ErrStockInsufficient,
		ErrCouponNotFound, ErrCouponInactive, ErrCouponNotYetActive,
		ErrCouponExpired, ErrCouponNotApplicable, ErrCouponMinimumNotMet,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsCouponRejection проверяет, является ли ошибка отказом в применении купона.
func IsCouponRejection(err error) bool {
	for _, target := range []error{
		ErrCouponNotFound, ErrCouponInactive, ErrCouponNotYetActive,
		ErrCouponExpired, ErrCouponNotApplicable, ErrCouponMinimumNotMet,
		ErrCouponExhausted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
