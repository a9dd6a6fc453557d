package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// timelineStore держит аудиторский след заказов в памяти,
// события каждого заказа — в порядке добавления.
type timelineStore struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

var _ domain.TimelineRepository = (*timelineStore)(nil)

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineStore{events: make(map[string][]domain.TimelineEvent)}
}

func (s *timelineStore) Append(event domain.TimelineEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	s.events[event.OrderID] = append(s.events[event.OrderID], event)
	return nil
}

func (s *timelineStore) List(orderID string) ([]domain.TimelineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.TimelineEvent(nil), s.events[orderID]...), nil
}
