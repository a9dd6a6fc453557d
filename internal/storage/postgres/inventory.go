package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type inventoryStore struct {
	db *sql.DB
}

// NewInventoryStore создаёт PostgreSQL-реализацию InventoryStore.
func NewInventoryStore(store *Store) domain.InventoryStore {
	return &inventoryStore{db: store.DB()}
}

func (s *inventoryStore) GetVariants(ids []string) (map[string]domain.InventoryVariant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	result := make(map[string]domain.InventoryVariant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	// pgx stdlib конвертирует []string в text[] для ANY($1).
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, category_id, name, price_minor, stock, active, updated_at
		FROM variants
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("select variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.InventoryVariant
		if err := rows.Scan(
			&v.ID, &v.ProductID, &v.CategoryID, &v.Name,
			&v.PriceMinor, &v.Stock, &v.Active, &v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		result[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}

	return result, nil
}

// DecrementStock выполняет защищённое списание: условие по остатку входит
// в сам UPDATE, поэтому конкурентные списания не уводят остаток в минус.
func (s *inventoryStore) DecrementStock(variantID string, qty int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE variants
		SET stock = stock - $2, updated_at = $3
		WHERE id = $1
		  AND stock >= $2
	`, variantID, qty, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := s.variantExists(ctx, variantID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrVariantNotFound
		}
		return domain.ErrStockInsufficient
	}

	return nil
}

// Put добавляет или заменяет вариант. Используется сидированием и тестами.
func (s *inventoryStore) Put(variant domain.InventoryVariant) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if variant.UpdatedAt.IsZero() {
		variant.UpdatedAt = time.Now().UTC()
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO variants (id, product_id, category_id, name, price_minor, stock, active, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE
		SET product_id = EXCLUDED.product_id,
		    category_id = EXCLUDED.category_id,
		    name = EXCLUDED.name,
		    price_minor = EXCLUDED.price_minor,
		    stock = EXCLUDED.stock,
		    active = EXCLUDED.active,
		    updated_at = EXCLUDED.updated_at
	`,
		variant.ID, variant.ProductID, variant.CategoryID, variant.Name,
		variant.PriceMinor, variant.Stock, variant.Active, variant.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert variant: %w", err)
	}

	return nil
}

func (s *inventoryStore) variantExists(ctx context.Context, variantID string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM variants WHERE id = $1`, variantID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if err == sql.ErrNoRows {
		return false, nil
	}
	return false, fmt.Errorf("check variant exists: %w", err)
}

var _ domain.InventoryStore = (*inventoryStore)(nil)
