package payment

import (
	"sync"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов.
type MockGateway struct {
	mu sync.Mutex

	Session domain.PaymentSession
	Err     error
	// FailFirst задаёт число первых вызовов, завершающихся ошибкой Err.
	// После них возвращается успешный результат. Используется тестами retry.
	FailFirst int

	Calls  int
	Orders []string
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Session: domain.PaymentSession{
			ID:          "session-test",
			RedirectURL: "https://pay.example.com/session-test",
		},
	}
}

// CreateSession возвращает заранее настроенный результат и считает вызовы.
func (m *MockGateway) CreateSession(order domain.Order) (domain.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.Orders = append(m.Orders, order.Number)
	if m.Err != nil && (m.FailFirst == 0 || m.Calls <= m.FailFirst) {
		return domain.PaymentSession{}, m.Err
	}
	return m.Session, nil
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
