package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type couponRepository struct {
	db *sql.DB
}

// NewCouponRepository создаёт PostgreSQL-реализацию CouponRepository.
func NewCouponRepository(store *Store) domain.CouponRepository {
	return &couponRepository{db: store.DB()}
}

func (r *couponRepository) Get(id string) (domain.Coupon, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return scanCoupon(r.db.QueryRowContext(ctx, couponSelect+` WHERE id = $1`, id))
}

func (r *couponRepository) GetByCode(code string) (domain.Coupon, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return scanCoupon(r.db.QueryRowContext(ctx, couponSelect+` WHERE code = $1`, code))
}

func (r *couponRepository) Create(coupon domain.Coupon) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if coupon.ID == "" {
		coupon.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = now
	}
	if coupon.UpdatedAt.IsZero() {
		coupon.UpdatedAt = now
	}

	productIDs, err := json.Marshal(coupon.ProductIDs)
	if err != nil {
		return fmt.Errorf("marshal coupon product ids: %w", err)
	}
	categoryIDs, err := json.Marshal(coupon.CategoryIDs)
	if err != nil {
		return fmt.Errorf("marshal coupon category ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO coupons (
			id, code, kind, value_minor, currency, min_order_minor, redemption_cap,
			valid_from, valid_until, applies_to_all, product_ids, category_ids,
			active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		coupon.ID, coupon.Code, string(coupon.Kind), coupon.ValueMinor, coupon.Currency,
		coupon.MinOrderMinor, coupon.RedemptionCap,
		coupon.ValidFrom, coupon.ValidUntil, coupon.AppliesToAll, productIDs, categoryIDs,
		coupon.Active, coupon.CreatedAt, coupon.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}

	return nil
}

const couponSelect = `
	SELECT id, code, kind, value_minor, currency, min_order_minor, redemption_cap,
	       valid_from, valid_until, applies_to_all, product_ids, category_ids,
	       active, created_at, updated_at
	FROM coupons`

func scanCoupon(row *sql.Row) (domain.Coupon, error) {
	var (
		coupon      domain.Coupon
		kind        string
		validFrom   sql.NullTime
		validUntil  sql.NullTime
		productIDs  []byte
		categoryIDs []byte
	)

	err := row.Scan(
		&coupon.ID, &coupon.Code, &kind, &coupon.ValueMinor, &coupon.Currency,
		&coupon.MinOrderMinor, &coupon.RedemptionCap,
		&validFrom, &validUntil, &coupon.AppliesToAll, &productIDs, &categoryIDs,
		&coupon.Active, &coupon.CreatedAt, &coupon.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Coupon{}, domain.ErrCouponNotFound
		}
		return domain.Coupon{}, fmt.Errorf("select coupon: %w", err)
	}
	coupon.Kind = domain.CouponKind(kind)

	if validFrom.Valid {
		t := validFrom.Time.UTC()
		coupon.ValidFrom = &t
	}
	if validUntil.Valid {
		t := validUntil.Time.UTC()
		coupon.ValidUntil = &t
	}

	if len(productIDs) > 0 {
		if err := json.Unmarshal(productIDs, &coupon.ProductIDs); err != nil {
			return domain.Coupon{}, fmt.Errorf("unmarshal coupon product ids: %w", err)
		}
	}
	if len(categoryIDs) > 0 {
		if err := json.Unmarshal(categoryIDs, &coupon.CategoryIDs); err != nil {
			return domain.Coupon{}, fmt.Errorf("unmarshal coupon category ids: %w", err)
		}
	}

	return coupon, nil
}

var _ domain.CouponRepository = (*couponRepository)(nil)
