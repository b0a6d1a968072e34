// Package board holds the in-memory idea list behind a board view. It
// applies accepted transitions optimistically, persists them through the
// store, rolls back on failure, and merges store snapshots without
// clobbering moves that are still in flight.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kingrea/ideaboard/internal/idea"
	"github.com/kingrea/ideaboard/internal/logbook"
	"github.com/kingrea/ideaboard/internal/pipeline"
	"github.com/kingrea/ideaboard/internal/transition"
)

// ErrInFlight means the idea already has a move waiting on the store.
var ErrInFlight = errors.New("board: move already in flight")

// Updater is the slice of store.Store the board writes through.
type Updater interface {
	Update(ctx context.Context, id string, patch idea.Patch) error
}

// Pending identifies one optimistic move until it is settled.
type Pending struct {
	Seq        uint64
	Transition transition.Transition
	StartedAt  time.Time
}

type inflight struct {
	seq      uint64
	snapshot idea.Position
	patch    idea.Patch
}

// Board is safe for concurrent use; the TUI settles moves from commands
// running off the event loop.
type Board struct {
	mu       sync.Mutex
	engine   *transition.Engine
	store    Updater
	journal  *logbook.Logbook
	clock    func() time.Time
	active   pipeline.Key
	ideas    []idea.Idea
	pending  map[string]inflight
	sequence uint64
}

// Option customizes the board.
type Option func(*Board)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(b *Board) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithLogbook records transitions and rollbacks in the journal.
func WithLogbook(journal *logbook.Logbook) Option {
	return func(b *Board) {
		b.journal = journal
	}
}

// WithPipeline selects the pipeline shown first.
func WithPipeline(key pipeline.Key) Option {
	return func(b *Board) {
		if key != "" {
			b.active = key
		}
	}
}

// New wires a board to the transition engine and the store it persists to.
func New(engine *transition.Engine, store Updater, opts ...Option) (*Board, error) {
	if store == nil {
		return nil, fmt.Errorf("board: store is required")
	}
	if engine == nil {
		engine = transition.New(nil)
	}
	b := &Board{
		engine:  engine,
		store:   store,
		clock:   time.Now,
		active:  pipeline.KeyOverview,
		pending: map[string]inflight{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Registry returns the stage registry the board projects with.
func (b *Board) Registry() *pipeline.Registry {
	return b.engine.Registry()
}

// Pipeline returns the active pipeline key.
func (b *Board) Pipeline() pipeline.Key {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// SetPipeline switches the active pipeline. Unknown keys are kept; they
// project onto Feature columns with no cards.
func (b *Board) SetPipeline(key pipeline.Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = key
}

// Ideas returns a copy of the current list, optimistic moves included.
func (b *Board) Ideas() []idea.Idea {
	b.mu.Lock()
	defer b.mu.Unlock()
	return idea.Clone(b.ideas)
}

// View projects the current list onto the active pipeline.
func (b *Board) View() pipeline.View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Registry().Project(b.active, b.ideas)
}

// IsPending reports whether id has an unsettled move.
func (b *Board) IsPending(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[id]
	return ok
}

// PendingCount returns the number of unsettled moves.
func (b *Board) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Begin resolves a drag against the active view and, when accepted, applies
// it to the local list immediately. Rejections (transition.ErrNoop,
// transition.ErrInvalidDropTarget, transition.ErrUnknownIdea) leave the
// board untouched.
func (b *Board) Begin(drag transition.DragEnd) (Pending, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	view := b.engine.Registry().Project(b.active, b.ideas)
	tr, err := b.engine.Resolve(view, drag)
	if err != nil {
		return Pending{}, err
	}
	if _, busy := b.pending[tr.IdeaID]; busy {
		return Pending{}, fmt.Errorf("%w: %s", ErrInFlight, tr.IdeaID)
	}
	idx := idea.Index(b.ideas, tr.IdeaID)
	if idx < 0 {
		return Pending{}, fmt.Errorf("%w: %s", transition.ErrUnknownIdea, tr.IdeaID)
	}
	b.sequence++
	b.pending[tr.IdeaID] = inflight{
		seq:      b.sequence,
		snapshot: b.ideas[idx].Position(),
		patch:    tr.Patch,
	}
	b.ideas[idx] = tr.Patch.Apply(b.ideas[idx])
	b.journal.Info("move %s %s: %s -> %s", tr.IdeaID, b.active, describe(tr.From), describe(tr.To))
	return Pending{Seq: b.sequence, Transition: tr, StartedAt: b.clock()}, nil
}

// Persist writes a pending move to the store. It does not settle it.
func (b *Board) Persist(ctx context.Context, p Pending) error {
	return b.store.Update(ctx, p.Transition.IdeaID, p.Transition.Patch)
}

// Settle closes a pending move. A nil err confirms it; otherwise the idea is
// restored to its pre-move position and the failure is journaled. Settle
// reports whether a rollback happened. Stale or unknown moves are ignored.
func (b *Board) Settle(p Pending, err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := p.Transition.IdeaID
	move, ok := b.pending[id]
	if !ok || move.seq != p.Seq {
		return false
	}
	delete(b.pending, id)
	if err == nil {
		return false
	}
	if idx := idea.Index(b.ideas, id); idx >= 0 {
		b.ideas[idx] = b.ideas[idx].WithPosition(move.snapshot)
	}
	b.journal.Error("rollback %s to %s after %s: %v",
		id, describe(move.snapshot), b.clock().Sub(p.StartedAt).Round(time.Millisecond), err)
	return true
}

// Commit persists and settles a move in one call. It returns the store error,
// after rolling back, so scripted callers can report it.
func (b *Board) Commit(ctx context.Context, p Pending) error {
	err := b.Persist(ctx, p)
	b.Settle(p, err)
	return err
}

// Move runs Begin and Commit back to back.
func (b *Board) Move(ctx context.Context, drag transition.DragEnd) (transition.Transition, error) {
	p, err := b.Begin(drag)
	if err != nil {
		return transition.Transition{}, err
	}
	if err := b.Commit(ctx, p); err != nil {
		return p.Transition, err
	}
	return p.Transition, nil
}

// Merge replaces the list with a store snapshot. Ideas with a move in flight
// keep their optimistic position; every other idea takes the incoming
// record as is.
func (b *Board) Merge(snapshot []idea.Idea) {
	b.mu.Lock()
	defer b.mu.Unlock()
	incoming := idea.Clone(snapshot)
	if incoming == nil {
		incoming = []idea.Idea{}
	}
	for i := range incoming {
		if move, ok := b.pending[incoming[i].ID]; ok {
			incoming[i] = move.patch.Apply(incoming[i])
		}
	}
	b.ideas = incoming
}

func describe(p idea.Position) string {
	stage := p.Stage
	if stage == "" {
		stage = "<first>"
	}
	if p.SocialSubtype != idea.SubtypeNone {
		return fmt.Sprintf("%s/%s (%s)", p.Category, stage, p.SocialSubtype)
	}
	return fmt.Sprintf("%s/%s", p.Category, stage)
}
