package domain

import "time"

// OrderRepository описывает требования к хранилищу заказов.
// Переходы статусов выполняются атомарно на уровне хранилища (compare-and-set):
// прикладной код никогда не делает read-then-write по статусу.
type OrderRepository interface {
	// Create сохраняет новый заказ в статусе created вместе с позициями.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// GetByNumber возвращает заказ по человекочитаемому номеру или ErrOrderNotFound.
	// Номер заказа служит внешней ссылкой для платёжного провайдера.
	GetByNumber(number string) (Order, error)
	// SetPaymentSession сохраняет идентификатор платёжной сессии провайдера.
	SetPaymentSession(id, sessionID string) error
	// MarkPaid атомарно переводит created → paid, сохраняя идентификатор платежа
	// и сырое тело webhook-события. Возвращает false, если заказ уже не в created:
	// это признак повторной доставки, а не ошибка.
	MarkPaid(id, paymentID string, payload []byte) (bool, error)
	// MarkCancelled атомарно переводит created → cancelled.
	// Возвращает false, если заказ уже не в created.
	MarkCancelled(id string) (bool, error)
}

// CouponRepository описывает доступ к справочнику купонов.
type CouponRepository interface {
	// Get возвращает купон по идентификатору или ErrCouponNotFound.
	Get(id string) (Coupon, error)
	// GetByCode возвращает купон по коду или ErrCouponNotFound.
	GetByCode(code string) (Coupon, error)
	// Create сохраняет купон. Используется сидированием и тестами.
	Create(coupon Coupon) error
}

// ReservationLedger — учёт лимита использований купона под конкурентной нагрузкой.
// Каждая операция — одна неделимая единица относительно конкурентных вызовов:
// проверка ёмкости и вставка резерва никогда не разделяются.
type ReservationLedger interface {
	// Reserve атомарно проверяет, что активные резервы плюс подтверждённые
	// погашения не достигли лимита, и создаёт резерв с expires_at = now + ttl.
	// При исчерпанном лимите возвращает ErrCouponExhausted и ничего не создаёт.
	// Повторный вызов для той же пары (заказ, купон) при живом резерве
	// возвращает существующий резерв, а не создаёт второй.
	Reserve(orderID, couponID string, ttl time.Duration) (CouponReservation, error)
	// Confirm переводит резерв reserved → confirmed. Повторное подтверждение — no-op.
	// Вызывается только reconciler-ом при подтверждении оплаты.
	Confirm(orderID, couponID string) error
	// Release переводит резерв reserved → released. Идемпотентен: повторный
	// вызов или отсутствие активного резерва не являются ошибкой.
	Release(orderID, couponID string) error
	// ReleaseByOrder снимает все активные резервы заказа и возвращает их число.
	ReleaseByOrder(orderID string) (int, error)
	// SweepExpired снимает просроченные резервы заказов, всё ещё находящихся
	// в статусе created, и возвращает число снятых. Резервы оплаченных заказов
	// не затрагиваются: поздний webhook об оплате всегда выигрывает у TTL.
	SweepExpired(now time.Time) (int, error)
	// CapacityInUse возвращает число активных резервов и подтверждённых
	// погашений купона в момент now. Используется для диагностики и тестов.
	CapacityInUse(couponID string, now time.Time) (int, error)
}

// InventoryStore описывает доступ к каталогу вариантов.
// Чтение — при расчёте цены; запись — единственное защищённое списание остатка.
type InventoryStore interface {
	// GetVariants возвращает варианты по списку идентификаторов.
	// Отсутствующие идентификаторы просто не попадают в результат.
	GetVariants(ids []string) (map[string]InventoryVariant, error)
	// DecrementStock атомарно уменьшает остаток, если его хватает.
	// Возвращает ErrStockInsufficient вместо ухода остатка в минус.
	DecrementStock(variantID string, qty int32) error
}
