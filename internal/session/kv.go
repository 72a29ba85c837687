// Package session orchestrates the mock-mode development session: persona
// switching, forced-error injection, interaction/error counters, and
// persistence of the session snapshot to a key-value slot.
package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by KV implementations on a cache miss.
var ErrNotFound = errors.New("session: key not found")

// KV is the single-slot string store used for session persistence. The
// slot is last-write-wins across writers; concurrent writers (two tabs)
// are not coordinated.
type KV interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// MemoryKV implements KV with an in-process map. Used for testing and for
// running without Redis.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string]string)}
}

func (m *MemoryKV) GetItem(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryKV) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryKV) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
