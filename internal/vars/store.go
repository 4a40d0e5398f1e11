package vars

import (
	"context"
	"errors"
	"maps"
	"sync"
)

type (
	// Store is the workflow-wide key/value variable store shared by every
	// run. Values are JSON-compatible
	Store interface {
		Get(ctx context.Context, key string) (any, bool, error)
		Set(ctx context.Context, key string, value any) error
		Delete(ctx context.Context, key string) error
		Has(ctx context.Context, key string) (bool, error)
		All(ctx context.Context) (map[string]any, error)
		Clear(ctx context.Context) error
	}

	// Memory is an in-process Store
	Memory struct {
		mu     sync.RWMutex
		values map[string]any
	}
)

var ErrKeyRequired = errors.New("variable key is required")

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-process variable store
func NewMemory() *Memory {
	return &Memory{
		values: map[string]any{},
	}
}

// Get returns the value stored under key
func (m *Memory) Get(_ context.Context, key string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key, replacing any previous value
func (m *Memory) Set(_ context.Context, key string, value any) error {
	if key == "" {
		return ErrKeyRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes key. Deleting a missing key is not an error
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Has returns true if key is present
func (m *Memory) Has(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.values[key]
	return ok, nil
}

// All returns a copy of every stored variable
func (m *Memory) All(context.Context) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.values), nil
}

// Clear removes every variable
func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.values)
	return nil
}
