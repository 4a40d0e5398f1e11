package history

import (
	"context"
	"sync"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

type (
	// Sink receives one record per finished run. It is append-only: runs
	// are never resumed from it
	Sink interface {
		Append(ctx context.Context, rec *api.ExecutionRecord) error
		List(ctx context.Context) ([]*api.ExecutionRecord, error)
	}

	// Memory keeps the most recent records in process, newest first
	Memory struct {
		mu      sync.RWMutex
		records []*api.ExecutionRecord
		limit   int
	}
)

var _ Sink = (*Memory)(nil)

// NewMemory creates a sink retaining at most limit records
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

// Append records a finished run, evicting the oldest beyond the limit
func (m *Memory) Append(_ context.Context, rec *api.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]*api.ExecutionRecord{rec}, m.records...)
	if m.limit > 0 && len(m.records) > m.limit {
		m.records = m.records[:m.limit]
	}
	return nil
}

// List returns the retained records, newest first
func (m *Memory) List(context.Context) ([]*api.ExecutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*api.ExecutionRecord, len(m.records))
	copy(res, m.records)
	return res, nil
}
