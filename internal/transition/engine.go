// Package transition resolves drag-end events on the board into the next
// pipeline position of an idea. It only computes; applying and persisting a
// transition is the board's job.
package transition

import (
	"errors"
	"fmt"

	"github.com/kingrea/ideaboard/internal/idea"
	"github.com/kingrea/ideaboard/internal/pipeline"
)

var (
	// ErrInvalidDropTarget means the drop target is neither a column nor a
	// card of the active view. Callers ignore it silently.
	ErrInvalidDropTarget = errors.New("transition: invalid drop target")
	// ErrUnknownIdea means the dragged card is not part of the active view.
	ErrUnknownIdea = errors.New("transition: unknown idea")
	// ErrNoop means the drop leaves the idea where it is (cancelled drag or
	// same column).
	ErrNoop = errors.New("transition: no-op")
)

// DragEnd is the event a board renderer raises when a drag completes. A nil
// OverID means the drag was cancelled.
type DragEnd struct {
	ActiveID string
	OverID   *string
}

// Drop builds a drag-end over a target id.
func Drop(activeID, overID string) DragEnd {
	return DragEnd{ActiveID: activeID, OverID: &overID}
}

// Cancel builds a cancelled drag-end.
func Cancel(activeID string) DragEnd {
	return DragEnd{ActiveID: activeID}
}

// Cancelled reports whether the drag ended outside any target.
func (d DragEnd) Cancelled() bool {
	return d.OverID == nil
}

// Transition is an accepted move.
type Transition struct {
	IdeaID string
	Mode   pipeline.Mode
	Column string
	From   idea.Position
	To     idea.Position
	Patch  idea.Patch
}

// CategoryChanged reports whether the move crosses pipelines.
func (t Transition) CategoryChanged() bool {
	return t.From.Category != t.To.Category
}

// Engine resolves drags against a stage registry.
type Engine struct {
	registry *pipeline.Registry
}

// New wires an engine to the registry. A nil registry uses the default.
func New(registry *pipeline.Registry) *Engine {
	if registry == nil {
		registry = pipeline.Default()
	}
	return &Engine{registry: registry}
}

// Registry exposes the registry the engine resolves against.
func (e *Engine) Registry() *pipeline.Registry {
	return e.registry
}

// Resolve computes the transition for a drag-end on view. It returns
// ErrNoop, ErrInvalidDropTarget or ErrUnknownIdea when nothing should happen.
func (e *Engine) Resolve(view pipeline.View, drag DragEnd) (Transition, error) {
	if drag.Cancelled() {
		return Transition{}, ErrNoop
	}
	card, ok := view.Card(drag.ActiveID)
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s", ErrUnknownIdea, drag.ActiveID)
	}
	column, err := resolveColumn(view, *drag.OverID)
	if err != nil {
		return Transition{}, err
	}
	if column == card.Column {
		return Transition{}, ErrNoop
	}
	if view.Mode == pipeline.ModeOverview {
		return e.resolveOverview(card, column)
	}
	return e.resolveStandard(view, card, column)
}

func resolveColumn(view pipeline.View, target string) (string, error) {
	if view.HasColumn(target) {
		return target, nil
	}
	if other, ok := view.Card(target); ok && view.HasColumn(other.Column) {
		return other.Column, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidDropTarget, target)
}

func (e *Engine) resolveOverview(card pipeline.Card, column string) (Transition, error) {
	key := pipeline.Key(column)
	def, ok := e.registry.Pipeline(key)
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s", ErrInvalidDropTarget, column)
	}
	stage, err := e.registry.InitialStage(key)
	if err != nil {
		return Transition{}, fmt.Errorf("%w: %v", ErrInvalidDropTarget, err)
	}
	to := idea.Position{
		Category:      def.Category,
		Stage:         stage,
		SocialSubtype: subtypeFor(def),
	}
	return Transition{
		IdeaID: card.Idea.ID,
		Mode:   pipeline.ModeOverview,
		Column: column,
		From:   card.Idea.Position(),
		To:     to,
		Patch:  idea.PositionPatch(to),
	}, nil
}

// subtypeFor derives the social subtype an idea gets when it enters def.
func subtypeFor(def pipeline.PipelineDefinition) idea.SocialSubtype {
	if def.Category != idea.CategorySocial {
		return idea.SubtypeNone
	}
	if def.Subtype != idea.SubtypeNone {
		return def.Subtype
	}
	return idea.SubtypePost
}

func (e *Engine) resolveStandard(view pipeline.View, card pipeline.Card, column string) (Transition, error) {
	stage := e.registry.ToPersistedStage(view.Key, card.Idea, column)
	if stage == e.registry.EffectiveStage(card.Idea) {
		return Transition{}, ErrNoop
	}
	from := card.Idea.Position()
	to := from
	to.Stage = stage
	return Transition{
		IdeaID: card.Idea.ID,
		Mode:   pipeline.ModeStandard,
		Column: column,
		From:   from,
		To:     to,
		Patch:  idea.StagePatch(stage),
	}, nil
}
