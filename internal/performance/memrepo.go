package performance

import (
	"context"
	"sync"
	"time"

	"github.com/quickbites/challenge-engine/internal/domain"
)

// memrepo is a development and test repository used when no DB is configured.
type memrepo struct {
	mu      sync.RWMutex
	records map[string]*domain.PerformanceRecord
}

func NewMemoryRepository() Repository {
	return &memrepo{records: make(map[string]*domain.PerformanceRecord)}
}

func (m *memrepo) Get(_ context.Context, userID string) (*domain.PerformanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memrepo) Upsert(_ context.Context, rec *domain.PerformanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.UpdatedAt = time.Now()
	m.records[rec.UserID] = &cp
	return nil
}
