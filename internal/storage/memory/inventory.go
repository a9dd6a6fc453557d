package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// inventoryInMemory — in-memory каталог вариантов для тестов и локальной разработки.
type inventoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.InventoryVariant
}

// NewInventory возвращает in-memory реализацию InventoryStore.
func NewInventory() *inventoryInMemory {
	return &inventoryInMemory{items: make(map[string]domain.InventoryVariant)}
}

// Put добавляет или заменяет вариант. Используется сидированием и тестами.
func (s *inventoryInMemory) Put(variant domain.InventoryVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[variant.ID] = variant
}

// GetVariants возвращает варианты по списку идентификаторов.
// Отсутствующие идентификаторы просто не попадают в результат.
func (s *inventoryInMemory) GetVariants(ids []string) (map[string]domain.InventoryVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.InventoryVariant, len(ids))
	for _, id := range ids {
		if variant, ok := s.items[id]; ok {
			result[id] = variant
		}
	}
	return result, nil
}

// DecrementStock атомарно списывает остаток, не позволяя ему уйти в минус.
func (s *inventoryInMemory) DecrementStock(variantID string, qty int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	variant, ok := s.items[variantID]
	if !ok {
		return domain.ErrVariantNotFound
	}
	if variant.Stock < qty {
		return domain.ErrStockInsufficient
	}
	variant.Stock -= qty
	variant.UpdatedAt = time.Now().UTC()
	s.items[variantID] = variant
	return nil
}

var _ domain.InventoryStore = (*inventoryInMemory)(nil)
