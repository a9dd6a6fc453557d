package domain

import "time"

// ReservationStatus отражает состояние заявки на единицу лимита купона.
type ReservationStatus string

const (
	// ReservationStatusReserved — единица лимита удержана до expires_at.
	ReservationStatusReserved ReservationStatus = "reserved"
	// ReservationStatusConfirmed — резерв превращён в учтённое использование.
	// Это постоянная запись о погашении купона, независимая от TTL.
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	// ReservationStatusReleased — резерв снят явно (отмена заказа или отказ купона).
	ReservationStatusReleased ReservationStatus = "released"
	// ReservationStatusExpired — резерв снят sweeper-ом по истечении TTL.
	ReservationStatusExpired ReservationStatus = "expired"
)

// Terminal сообщает, достиг ли резерв конечного состояния.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusConfirmed || s == ReservationStatusReleased || s == ReservationStatusExpired
}

// CouponReservation — ограниченная по времени заявка одного заказа
// на одну единицу лимита использований купона.
type CouponReservation struct {
	ID       string
	OrderID  string
	CouponID string
	Status   ReservationStatus
	// ExpiresAt — момент, после которого неподтверждённый резерв подлежит снятию.
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActiveAt сообщает, удерживает ли резерв единицу лимита в момент now.
// Подтверждённые погашения учитываются отдельно и бессрочно.
func (r *CouponReservation) ActiveAt(now time.Time) bool {
	return r.Status == ReservationStatusReserved && now.Before(r.ExpiresAt)
}

// Validate проверяет, корректно ли заполнены ключевые поля резервирования.
func (r *CouponReservation) Validate() []error {
	var errs []error

	if r.OrderID == "" {
		errs = append(errs, ErrReservationOrderRequired)
	}
	if r.CouponID == "" {
		errs = append(errs, ErrReservationCouponRequired)
	}
	if r.ExpiresAt.IsZero() {
		errs = append(errs, ErrReservationExpiryRequired)
	}

	return errs
}
