package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/kingrea/ideaboard/internal/idea"
)

// Memory keeps ideas in process. It backs tests and the demo board.
type Memory struct {
	mu     sync.RWMutex
	ideas  []idea.Idea
	hub    *hub
	opts   options
	closed bool
}

// NewMemory returns a store seeded with ideas in the given order.
func NewMemory(seed []idea.Idea, opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{
		ideas: idea.Clone(seed),
		hub:   newHub(o.capacity, o.logger),
		opts:  o,
	}
}

// Subscribe implements Store.
func (m *Memory) Subscribe(ctx context.Context, project string) (Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Subscription{}, ErrClosed
	}
	return m.hub.subscribe(ctx, project, idea.Clone(m.ideas)), nil
}

// List implements Store.
func (m *Memory) List(ctx context.Context, project string) ([]idea.Idea, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filter(m.ideas, project), nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, item idea.Idea) (idea.Idea, error) {
	if err := ctx.Err(); err != nil {
		return idea.Idea{}, persistenceError("put", item.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return idea.Idea{}, persistenceError("put", item.ID, ErrClosed)
	}
	idx := idea.Index(m.ideas, item.ID)
	var existing *idea.Idea
	if item.ID != "" && idx >= 0 {
		existing = &m.ideas[idx]
	}
	stored, err := m.opts.prepare(item, existing)
	if err != nil {
		return idea.Idea{}, err
	}
	if existing != nil {
		m.ideas[idx] = stored
	} else {
		m.ideas = append(m.ideas, stored)
	}
	// Publishing under the lock keeps snapshot order equal to write order.
	m.hub.publish(idea.Clone(m.ideas))
	return stored, nil
}

// Update implements Store.
func (m *Memory) Update(ctx context.Context, id string, patch idea.Patch) error {
	if err := ctx.Err(); err != nil {
		return persistenceError("update", id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return persistenceError("update", id, ErrClosed)
	}
	idx := idea.Index(m.ideas, id)
	if idx < 0 {
		return persistenceError("update", id, ErrNotFound)
	}
	updated := patch.Apply(m.ideas[idx])
	updated.UpdatedAt = m.opts.now().UTC()
	m.ideas[idx] = updated
	m.hub.publish(idea.Clone(m.ideas))
	return nil
}

// Close ends every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	m.hub.closeAll()
	return nil
}

// String is used by the CLI status line.
func (m *Memory) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("memory (%d ideas)", len(m.ideas))
}
