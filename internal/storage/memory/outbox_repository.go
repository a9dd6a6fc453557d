package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type outboxEntry struct {
	msg       domain.OutboxMessage
	status    string
	attempts  int
	createdAt time.Time
	updatedAt time.Time
}

// outboxStore — in-memory outbox для dev-режима и тестов.
// Повторяет контракт postgres-реализации, включая порядок выдачи
// pending-записей по времени создания.
type outboxStore struct {
	mu      sync.RWMutex
	entries map[string]*outboxEntry
}

var _ domain.OutboxRepository = (*outboxStore)(nil)

// NewOutboxRepository создаёт in-memory реализацию outbox.
func NewOutboxRepository() domain.OutboxRepository {
	return &outboxStore{entries: make(map[string]*outboxEntry)}
}

func (s *outboxStore) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.entries[msg.ID] = &outboxEntry{
		msg:       msg,
		status:    "pending",
		createdAt: now,
		updatedAt: now,
	}
	return msg, nil
}

func (s *outboxStore) PullPending(limit int) ([]domain.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	pending := make([]*outboxEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.status == "pending" {
			pending = append(pending, entry)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].createdAt.Equal(pending[j].createdAt) {
			return pending[i].msg.ID < pending[j].msg.ID
		}
		return pending[i].createdAt.Before(pending[j].createdAt)
	})

	if len(pending) > limit {
		pending = pending[:limit]
	}
	batch := make([]domain.OutboxMessage, 0, len(pending))
	for _, entry := range pending {
		batch = append(batch, entry.msg)
	}
	return batch, nil
}

func (s *outboxStore) Stats() (domain.OutboxStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.OutboxStats
	for _, entry := range s.entries {
		if entry.status != "pending" {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || entry.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = entry.createdAt
		}
	}
	return stats, nil
}

func (s *outboxStore) MarkSent(id string) error {
	return s.transition(id, "sent")
}

func (s *outboxStore) MarkFailed(id string) error {
	return s.transition(id, "failed")
}

func (s *outboxStore) transition(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	entry.status = status
	entry.attempts++
	entry.updatedAt = time.Now().UTC()
	return nil
}
