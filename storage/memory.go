package storage

import (
	"context"
	"sync"
)

// Memory is an in-process tier. A Memory owned by one Store behaves like a browser
// tab's session storage; a Memory shared by several Stores behaves like local storage
// shared by the tabs of one profile.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty in-process tier.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

func (m *Memory) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.values[key]
	next, keep, err := fn(current, ok)
	if err != nil {
		return err
	}
	if !keep {
		delete(m.values, key)
		return nil
	}
	m.values[key] = next
	return nil
}

// Clear drops every key, the equivalent of a browser ending its session scope.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values = make(map[string]string)
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.values)
}
