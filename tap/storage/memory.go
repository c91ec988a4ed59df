package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/cwbudde/algo-tap/tap/pulse"
)

// Memory is a Store backed by a map. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]pulse.Array
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]pulse.Array)}
}

func (m *Memory) Save(ctx context.Context, key string, a pulse.Array) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = copyArray(a)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(ctx context.Context, key string) (pulse.Array, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	a, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return copyArray(a), nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	clear(m.data)
	m.mu.Unlock()
	return nil
}
