package store

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dunamismax/pixellab/internal/domain"
)

type MemoryUsageStore struct {
	mu   sync.RWMutex
	logs []domain.UsageLog
	seen map[string]struct{}
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{
		seen: make(map[string]struct{}),
	}
}

func (s *MemoryUsageStore) CreateUsageLog(_ context.Context, usage domain.UsageLog) error {
	if strings.TrimSpace(usage.RequestID) == "" {
		return errors.New("usage request_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[usage.RequestID]; ok {
		return nil
	}
	s.seen[usage.RequestID] = struct{}{}
	s.logs = append(s.logs, usage)
	return nil
}

func (s *MemoryUsageStore) List() []domain.UsageLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.UsageLog(nil), s.logs...)
}

func (s *MemoryUsageStore) Totals(_ context.Context) (UsageTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals UsageTotals
	for _, usage := range s.logs {
		totals.add(usage)
	}
	return totals, nil
}
