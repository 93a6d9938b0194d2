package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"todokit/domain"
)

// Memory is an in-process store used for local development and tests. All
// operations serialize on a single mutex, which satisfies the per-record
// write-serialization contract trivially.
type Memory struct {
	mu    sync.RWMutex
	todos map[string]domain.Todo
	order []string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{todos: make(map[string]domain.Todo)}
}

// NewTodoID generates a fresh todo identifier.
func NewTodoID() string {
	return "todo_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func normalizeText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", domain.ValidationError{Msg: "todo text must not be empty"}
	}
	return trimmed, nil
}

func (m *Memory) Add(_ context.Context, text string) (domain.Todo, error) {
	trimmed, err := normalizeText(text)
	if err != nil {
		return domain.Todo{}, err
	}
	t := domain.Todo{
		ID:        NewTodoID(),
		Text:      trimmed,
		CreatedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.todos[t.ID] = t
	m.order = append(m.order, t.ID)
	m.mu.Unlock()
	return t, nil
}

func (m *Memory) List(_ context.Context) ([]domain.Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Todo, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.todos[id])
	}
	return out, nil
}

func (m *Memory) Complete(_ context.Context, id string) (domain.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[id]
	if !ok {
		return domain.Todo{}, domain.NotFoundError{ID: id}
	}
	if !t.Completed {
		t.Completed = true
		m.todos[id] = t
	}
	return t, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.todos[id]; !ok {
		return domain.NotFoundError{ID: id}
	}
	delete(m.todos, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
