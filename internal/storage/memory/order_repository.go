package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu       sync.RWMutex
	items    map[string]domain.Order
	byNumber map[string]string
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:    make(map[string]domain.Order),
		byNumber: make(map[string]string),
	}
}

// Create сохраняет новый заказ, если ID и номер ещё не заняты.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderConflict
	}
	if _, exists := r.byNumber[order.Number]; exists {
		return domain.ErrOrderConflict
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[order.ID] = cloneOrder(order)
	r.byNumber[order.Number] = order.ID
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// GetByNumber возвращает заказ по человекочитаемому номеру.
func (r *orderRepositoryInMemory) GetByNumber(number string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byNumber[number]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(r.items[id]), nil
}

// SetPaymentSession сохраняет идентификатор платёжной сессии провайдера.
func (r *orderRepositoryInMemory) SetPaymentSession(id, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.PaymentSessionID = sessionID
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	r.items[id] = order
	return nil
}

// MarkPaid атомарно переводит created → paid.
// Возвращает false, если заказ уже покинул created: это повторная доставка.
func (r *orderRepositoryInMemory) MarkPaid(id, paymentID string, payload []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusCreated {
		return false, nil
	}
	order.Status = domain.OrderStatusPaid
	order.PaymentID = paymentID
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	r.items[id] = order
	return true, nil
}

// MarkCancelled атомарно переводит created → cancelled.
func (r *orderRepositoryInMemory) MarkCancelled(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusCreated {
		return false, nil
	}
	order.Status = domain.OrderStatusCancelled
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	r.items[id] = order
	return true, nil
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = append([]domain.OrderItem(nil), src.Items...)
	return dst
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
