package domain

import "time"

// OrderStatus описывает жизненный цикл заказа в checkout-сервисе.
type OrderStatus string

const (
	// OrderStatusCreated — заказ создан, оплата ещё не подтверждена провайдером.
	OrderStatusCreated OrderStatus = "created"
	// OrderStatusPaid — оплата подтверждена webhook-ом платёжного провайдера.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusFulfilled — заказ передан в исполнение.
	OrderStatusFulfilled OrderStatus = "fulfilled"
	// OrderStatusCancelled — заказ отменён до подтверждения оплаты.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded — деньги возвращены клиенту полностью или частично.
	OrderStatusRefunded OrderStatus = "refunded"
)

// Settled сообщает, прошёл ли заказ точку подтверждения оплаты.
// Для таких заказов отмена через Cancel запрещена.
func (s OrderStatus) Settled() bool {
	switch s {
	case OrderStatusPaid, OrderStatusFulfilled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// Address хранит адресный снимок на момент оформления заказа.
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// OrderItem представляет одну позицию заказа.
// Позиция — снимок варианта на момент оформления: последующее изменение
// цены в каталоге не меняет исторические заказы.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// VariantID — идентификатор варианта товара в каталоге.
	VariantID string
	// ProductID — идентификатор товара, к которому относится вариант.
	ProductID string
	// Name — название товара на момент оформления.
	Name string
	// Qty — количество единиц товара.
	Qty int32
	// PriceMinor — цена за единицу в минимальных денежных единицах (центах).
	PriceMinor int64
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Order агрегирует состояние заказа, его денежную раскладку и позиции.
type Order struct {
	ID            string
	Number        string
	CustomerEmail string
	Status        OrderStatus
	Currency      string

	SubtotalMinor int64
	ShippingMinor int64
	DiscountMinor int64
	TotalMinor    int64

	// CouponID заполняется, если при оформлении применён купон.
	CouponID string

	ShippingAddress Address
	BillingAddress  Address

	// PaymentSessionID — идентификатор платёжной сессии у провайдера.
	PaymentSessionID string
	// PaymentID — идентификатор подтверждённого платежа из webhook-события.
	PaymentID string

	Items     []OrderItem
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerEmail == "" {
		errs = append(errs, ErrEmailRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	// Сверяем денежную раскладку: total = subtotal + shipping - discount и total >= 0.
	if o.TotalMinor != o.SubtotalMinor+o.ShippingMinor-o.DiscountMinor {
		errs = append(errs, ErrTotalMismatch)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrTotalNegative)
	}

	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.PriceMinor
	}
	if calc != o.SubtotalMinor {
		errs = append(errs, ErrSubtotalMismatch)
	}

	return errs
}
