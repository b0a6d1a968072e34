// Package store holds the idea record backends the board reads from and
// writes to. Every backend exposes the same contract: a snapshot stream per
// project scope plus partial updates with last-write-wins semantics.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/ideaboard/internal/idea"
)

var (
	// ErrPersistence wraps every failed write. The board rolls back on it.
	ErrPersistence = errors.New("store: persistence failed")
	// ErrNotFound means the idea id is not stored.
	ErrNotFound = errors.New("store: idea not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")
)

// Logger is satisfied by logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Store is the external record store the board talks to.
type Store interface {
	// Subscribe delivers the current snapshot for project followed by a new
	// snapshot after every change. An empty project matches every idea.
	Subscribe(ctx context.Context, project string) (Subscription, error)
	// List returns the ideas stored for project.
	List(ctx context.Context, project string) ([]idea.Idea, error)
	// Put creates or replaces an idea, assigning an id when missing.
	Put(ctx context.Context, item idea.Idea) (idea.Idea, error)
	// Update applies a partial change to one idea.
	Update(ctx context.Context, id string, patch idea.Patch) error
	Close() error
}

// Subscription is an active snapshot stream. The channel closes when the
// subscription ends.
type Subscription struct {
	Snapshots <-chan []idea.Idea
	cancel    func()
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

const defaultSubscriberCapacity = 8

// Option customizes a backend.
type Option func(*options)

type options struct {
	logger   Logger
	capacity int
	now      func() time.Time
	newID    func() string
}

func buildOptions(opts []Option) options {
	o := options{
		capacity: defaultSubscriberCapacity,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger injects a logger for dropped snapshots and watch errors.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSubscriberCapacity overrides the buffered snapshot count per subscriber.
func WithSubscriberCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.capacity = capacity
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides how new idea ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

func (o options) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}

// prepare stamps ids and timestamps on an idea about to be stored.
func (o options) prepare(item idea.Idea, existing *idea.Idea) (idea.Idea, error) {
	if !item.Category.Valid() {
		return idea.Idea{}, fmt.Errorf("%w: invalid category %q", ErrPersistence, item.Category)
	}
	now := o.now().UTC()
	if item.ID == "" {
		item.ID = o.newID()
	}
	if existing != nil && item.CreatedAt.IsZero() {
		item.CreatedAt = existing.CreatedAt
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	return item, nil
}

func persistenceError(op, id string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrPersistence, op, id, err)
}

func inScope(item idea.Idea, project string) bool {
	return project == "" || item.ProjectID == project
}

func filter(items []idea.Idea, project string) []idea.Idea {
	out := make([]idea.Idea, 0, len(items))
	for _, item := range items {
		if inScope(item, project) {
			out = append(out, item)
		}
	}
	return out
}
