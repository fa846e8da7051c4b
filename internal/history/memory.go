package history

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Memory keeps runs in process memory. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{runs: make(map[string]Run)}
}

// CreateSchema implements Store; there is nothing to create.
func (m *Memory) CreateSchema(context.Context) error {
	return nil
}

// Record implements Store. A run with an existing id replaces it.
func (m *Memory) Record(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[run.ID] = run

	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}

	return &run, nil
}

// List implements Store.
func (m *Memory) List(_ context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	out := make([]Run, 0, len(m.runs))

	for _, run := range m.runs {
		out = append(out, run)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Run) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}
