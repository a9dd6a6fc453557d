package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// reservationLedger — PostgreSQL-учёт лимита использований купона.
// Сериализация конкурентных Reserve достигается блокировкой строки купона
// (SELECT ... FOR UPDATE): проверка ёмкости и вставка резерва выполняются
// в одной транзакции под этой блокировкой, поэтому два конкурентных вызова
// не могут оба увидеть свободную единицу лимита и оба вставить резерв.
type reservationLedger struct {
	db *sql.DB
}

// NewReservationLedger создаёт PostgreSQL-реализацию ReservationLedger.
func NewReservationLedger(store *Store) domain.ReservationLedger {
	return &reservationLedger{db: store.DB()}
}

func (l *reservationLedger) Reserve(orderID, couponID string, ttl time.Duration) (domain.CouponReservation, error) {
	if orderID == "" {
		return domain.CouponReservation{}, domain.ErrReservationOrderRequired
	}
	if couponID == "" {
		return domain.CouponReservation{}, domain.ErrReservationCouponRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CouponReservation{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capLimit int
	err = tx.QueryRowContext(ctx, `
		SELECT redemption_cap
		FROM coupons
		WHERE id = $1
		FOR UPDATE
	`, couponID).Scan(&capLimit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrCouponNotFound
			return domain.CouponReservation{}, err
		}
		return domain.CouponReservation{}, fmt.Errorf("lock coupon row: %w", err)
	}

	now := time.Now().UTC()

	// Повторный Reserve для той же пары (заказ, купон) возвращает живой резерв.
	existing, found, err := l.liveReservationTx(ctx, tx, orderID, couponID)
	if err != nil {
		return domain.CouponReservation{}, err
	}
	if found {
		err = tx.Commit()
		if err != nil {
			return domain.CouponReservation{}, fmt.Errorf("commit reserve: %w", err)
		}
		return existing, nil
	}

	if capLimit > 0 {
		var inUse int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM coupon_reservations
			WHERE coupon_id = $1
			  AND (status = $2 OR (status = $3 AND expires_at > $4))
		`, couponID,
			string(domain.ReservationStatusConfirmed),
			string(domain.ReservationStatusReserved), now,
		).Scan(&inUse)
		if err != nil {
			return domain.CouponReservation{}, fmt.Errorf("count coupon capacity: %w", err)
		}
		if inUse >= capLimit {
			err = domain.ErrCouponExhausted
			return domain.CouponReservation{}, err
		}
	}

	reservation := domain.CouponReservation{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		CouponID:  couponID,
		Status:    domain.ReservationStatusReserved,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO coupon_reservations (
			id, order_id, coupon_id, status, expires_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		reservation.ID, reservation.OrderID, reservation.CouponID,
		string(reservation.Status), reservation.ExpiresAt,
		reservation.CreatedAt, reservation.UpdatedAt,
	)
	if err != nil {
		return domain.CouponReservation{}, fmt.Errorf("insert reservation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.CouponReservation{}, fmt.Errorf("commit reserve: %w", err)
	}

	return reservation, nil
}

// Confirm переводит резерв reserved → confirmed.
// Повторное подтверждение и подтверждение отсутствующего резерва — no-op.
func (l *reservationLedger) Confirm(orderID, couponID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := l.db.ExecContext(ctx, `
		UPDATE coupon_reservations
		SET status = $3, updated_at = $4
		WHERE order_id = $1
		  AND coupon_id = $2
		  AND status = $5
	`, orderID, couponID,
		string(domain.ReservationStatusConfirmed), time.Now().UTC(),
		string(domain.ReservationStatusReserved),
	); err != nil {
		return fmt.Errorf("confirm reservation: %w", err)
	}

	return nil
}

// Release переводит резерв reserved → released. Идемпотентен.
func (l *reservationLedger) Release(orderID, couponID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := l.db.ExecContext(ctx, `
		UPDATE coupon_reservations
		SET status = $3, updated_at = $4
		WHERE order_id = $1
		  AND coupon_id = $2
		  AND status = $5
	`, orderID, couponID,
		string(domain.ReservationStatusReleased), time.Now().UTC(),
		string(domain.ReservationStatusReserved),
	); err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}

	return nil
}

// ReleaseByOrder снимает все активные резервы заказа.
func (l *reservationLedger) ReleaseByOrder(orderID string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := l.db.ExecContext(ctx, `
		UPDATE coupon_reservations
		SET status = $2, updated_at = $3
		WHERE order_id = $1
		  AND status = $4
	`, orderID,
		string(domain.ReservationStatusReleased), time.Now().UTC(),
		string(domain.ReservationStatusReserved),
	)
	if err != nil {
		return 0, fmt.Errorf("release reservations by order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// SweepExpired снимает просроченные резервы заказов, оставшихся в created.
// Резервы оплаченных заказов не затрагиваются: правило разрешения гонки
// между истечением TTL и поздним webhook-ом об оплате.
func (l *reservationLedger) SweepExpired(now time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := l.db.ExecContext(ctx, `
		UPDATE coupon_reservations r
		SET status = $1, updated_at = $2
		FROM orders o
		WHERE r.order_id = o.id
		  AND r.status = $3
		  AND r.expires_at < $4
		  AND o.status = $5
	`,
		string(domain.ReservationStatusExpired), time.Now().UTC(),
		string(domain.ReservationStatusReserved), now,
		string(domain.OrderStatusCreated),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep expired reservations: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// CapacityInUse возвращает занятую ёмкость купона: активные резервы
// плюс подтверждённые погашения.
func (l *reservationLedger) CapacityInUse(couponID string, now time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var inUse int
	if err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM coupon_reservations
		WHERE coupon_id = $1
		  AND (status = $2 OR (status = $3 AND expires_at > $4))
	`, couponID,
		string(domain.ReservationStatusConfirmed),
		string(domain.ReservationStatusReserved), now,
	).Scan(&inUse); err != nil {
		return 0, fmt.Errorf("count coupon capacity: %w", err)
	}

	return inUse, nil
}

func (l *reservationLedger) liveReservationTx(ctx context.Context, tx *sql.Tx, orderID, couponID string) (domain.CouponReservation, bool, error) {
	var (
		reservation domain.CouponReservation
		status      string
	)

	err := tx.QueryRowContext(ctx, `
		SELECT id, order_id, coupon_id, status, expires_at, created_at, updated_at
		FROM coupon_reservations
		WHERE order_id = $1
		  AND coupon_id = $2
		  AND status = $3
	`, orderID, couponID, string(domain.ReservationStatusReserved)).Scan(
		&reservation.ID, &reservation.OrderID, &reservation.CouponID,
		&status, &reservation.ExpiresAt, &reservation.CreatedAt, &reservation.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CouponReservation{}, false, nil
		}
		return domain.CouponReservation{}, false, fmt.Errorf("select live reservation: %w", err)
	}
	reservation.Status = domain.ReservationStatus(status)

	return reservation, true, nil
}

var _ domain.ReservationLedger = (*reservationLedger)(nil)
