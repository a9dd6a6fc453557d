package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	shippingAddr, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	billingAddr, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, number, customer_email, status, currency,
			subtotal_minor, shipping_minor, discount_minor, total_minor,
			coupon_id, shipping_address, billing_address,
			payment_session_id, payment_id, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		order.ID, order.Number, order.CustomerEmail, string(order.Status), order.Currency,
		order.SubtotalMinor, order.ShippingMinor, order.DiscountMinor, order.TotalMinor,
		order.CouponID, shippingAddr, billingAddr,
		order.PaymentSessionID, order.PaymentID, order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, variant_id, product_id, name, qty, price_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			item.ID, order.ID, item.VariantID, item.ProductID, item.Name,
			item.Qty, item.PriceMinor, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getByColumn(ctx, "id", id)
}

func (r *orderRepository) GetByNumber(number string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getByColumn(ctx, "number", number)
}

func (r *orderRepository) getByColumn(ctx context.Context, column, value string) (domain.Order, error) {
	var (
		order        domain.Order
		status       string
		shippingAddr []byte
		billingAddr  []byte
	)

	// column приходит только из внутренних вызовов ("id" либо "number").
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, number, customer_email, status, currency,
		       subtotal_minor, shipping_minor, discount_minor, total_minor,
		       coupon_id, shipping_address, billing_address,
		       payment_session_id, payment_id, version, created_at, updated_at
		FROM orders
		WHERE %s = $1
	`, column), value).Scan(
		&order.ID, &order.Number, &order.CustomerEmail, &status, &order.Currency,
		&order.SubtotalMinor, &order.ShippingMinor, &order.DiscountMinor, &order.TotalMinor,
		&order.CouponID, &shippingAddr, &billingAddr,
		&order.PaymentSessionID, &order.PaymentID, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	if len(shippingAddr) > 0 {
		if err := json.Unmarshal(shippingAddr, &order.ShippingAddress); err != nil {
			return domain.Order{}, fmt.Errorf("unmarshal shipping address: %w", err)
		}
	}
	if len(billingAddr) > 0 {
		if err := json.Unmarshal(billingAddr, &order.BillingAddress); err != nil {
			return domain.Order{}, fmt.Errorf("unmarshal billing address: %w", err)
		}
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) SetPaymentSession(id, sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_session_id = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $1
	`, id, sessionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set payment session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

// MarkPaid выполняет атомарный compare-and-set created → paid.
// Условие по статусу входит в сам UPDATE: конкурентные доставки одного
// webhook-события не могут обе увидеть created и обе победить.
func (r *orderRepository) MarkPaid(id, paymentID string, payload []byte) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    payment_id = $3,
		    payment_payload = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $1
		  AND status = $6
	`, id, string(domain.OrderStatusPaid), paymentID, payload,
		time.Now().UTC(), string(domain.OrderStatusCreated))
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, id)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, domain.ErrOrderNotFound
		}
		return false, nil
	}

	return true, nil
}

// MarkCancelled выполняет атомарный compare-and-set created → cancelled.
func (r *orderRepository) MarkCancelled(id string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $1
		  AND status = $4
	`, id, string(domain.OrderStatusCancelled), time.Now().UTC(), string(domain.OrderStatusCreated))
	if err != nil {
		return false, fmt.Errorf("mark order cancelled: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, id)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, domain.ErrOrderNotFound
		}
		return false, nil
	}

	return true, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, variant_id, product_id, name, qty, price_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.VariantID, &item.ProductID, &item.Name,
			&item.Qty, &item.PriceMinor, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
