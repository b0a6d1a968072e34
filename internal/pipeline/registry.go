// Package pipeline holds the stage configuration for every idea category and
// projects idea records onto board columns.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kingrea/ideaboard/internal/idea"
)

// ErrUnknownCategory is returned when a category has no registered pipeline.
var ErrUnknownCategory = errors.New("pipeline: unknown category")

// FallbackKey is used when a pipeline key has no explicit configuration.
const FallbackKey = Key(idea.CategoryFeature)

const defaultRegistryYAML = `pipelines:
  - key: Feature
    tag: "#5B8DEF"
    stages:
      - {id: Brainstorm, tag: "#A0AEC0"}
      - {id: Refining, tag: "#F7B801"}
      - {id: Planning, tag: "#5B8DEF"}
      - {id: InProgress, tag: "#9F7AEA"}
      - {id: Shipped, tag: "#4CAF50"}
  - key: Product
    tag: "#9F7AEA"
    stages:
      - {id: Brainstorm, tag: "#A0AEC0"}
      - {id: Validation, tag: "#F7B801"}
      - {id: Prototype, tag: "#5B8DEF"}
      - {id: Launch, tag: "#ED8936"}
      - {id: Live, tag: "#4CAF50"}
  - key: Marketing
    tag: "#ED8936"
    stages:
      - {id: Brainstorm, tag: "#A0AEC0"}
      - {id: Strategy, tag: "#F7B801"}
      - {id: Production, tag: "#5B8DEF"}
      - {id: Campaign, tag: "#ED8936"}
      - {id: Review, tag: "#4CAF50"}
  - key: Social
    tag: "#38B2AC"
    stages:
      - {id: Brainstorm, tag: "#A0AEC0"}
      - {id: Drafting, tag: "#F7B801"}
      - {id: Scheduled, tag: "#5B8DEF"}
      - {id: Posted, tag: "#4CAF50"}
    remaps:
      - {subtype: campaign, stage: Concept, column: Brainstorm}
  - key: SocialCampaign
    title: Social Campaign
    tag: "#319795"
    category: Social
    subtype: campaign
    stages:
      - {id: Concept, tag: "#A0AEC0"}
      - {id: Planning, tag: "#F7B801"}
      - {id: Submit, title: Submitted for Review, tag: "#ED8936"}
      - {id: Active, tag: "#5B8DEF"}
      - {id: Complete, tag: "#4CAF50"}
    remaps:
      - {subtype: campaign, stage: PendingReview, column: Submit}
  - key: Moonshot
    tag: "#FF6B6B"
    stages:
      - {id: Brainstorm, tag: "#A0AEC0"}
      - {id: Research, tag: "#F7B801"}
      - {id: Feasibility, tag: "#5B8DEF"}
      - {id: Greenlit, tag: "#4CAF50"}
  - key: Optimization
    tag: "#4CAF50"
    stages:
      - {id: Brainstorm, tag: "#A0AEC0"}
      - {id: Analysis, tag: "#F7B801"}
      - {id: Testing, tag: "#5B8DEF"}
      - {id: Rollout, tag: "#4CAF50"}
`

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the built-in registry. It is parsed once and shared.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := ParseRegistryYAML([]byte(defaultRegistryYAML))
		if err != nil {
			panic(fmt.Sprintf("pipeline: built-in registry is invalid: %v", err))
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// Registry maps pipeline keys to their ordered stages. It has no mutators;
// every accessor hands out copies.
type Registry struct {
	order     []Key
	pipelines map[Key]PipelineDefinition
}

// NewRegistry validates the definitions and freezes them. Every idea
// category must have a pipeline.
func NewRegistry(defs []PipelineDefinition) (*Registry, error) {
	reg := &Registry{pipelines: make(map[Key]PipelineDefinition, len(defs))}
	for idx, raw := range defs {
		def, err := raw.Normalized()
		if err != nil {
			return nil, fmt.Errorf("pipelines[%d]: %w", idx, err)
		}
		if _, dup := reg.pipelines[def.Key]; dup {
			return nil, fmt.Errorf("pipeline: duplicate key %s", def.Key)
		}
		if def.Subtype == idea.SubtypeNone && def.Key != CategoryKey(def.Category) {
			return nil, fmt.Errorf("pipeline %s: category pipelines must be keyed by their category", def.Key)
		}
		reg.pipelines[def.Key] = def
		reg.order = append(reg.order, def.Key)
	}
	for _, category := range idea.Categories {
		if _, ok := reg.pipelines[CategoryKey(category)]; !ok {
			return nil, fmt.Errorf("%w: %s has no stages", ErrUnknownCategory, category)
		}
	}
	return reg, nil
}

// StagesFor returns the ordered stages of a category's own pipeline.
func (r *Registry) StagesFor(category idea.Category) ([]StageDefinition, error) {
	def, ok := r.pipelines[CategoryKey(category)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return cloneStages(def.Stages), nil
}

// FirstStage returns the stage at position 0 of a category's pipeline.
func (r *Registry) FirstStage(category idea.Category) (StageDefinition, error) {
	stages, err := r.StagesFor(category)
	if err != nil {
		return StageDefinition{}, err
	}
	return stages[0], nil
}

// OverviewColumns returns one column per home pipeline, keyed by pipeline
// key, in registry order.
func (r *Registry) OverviewColumns() []StageDefinition {
	cols := make([]StageDefinition, 0, len(r.order))
	for i, key := range r.order {
		def := r.pipelines[key]
		cols = append(cols, StageDefinition{
			ID:        string(key),
			Title:     def.Title,
			VisualTag: def.VisualTag,
			Initial:   i == 0,
		})
	}
	return cols
}

// Pipeline returns the definition registered under key.
func (r *Registry) Pipeline(key Key) (PipelineDefinition, bool) {
	def, ok := r.pipelines[key]
	if !ok {
		return PipelineDefinition{}, false
	}
	return def.Clone(), true
}

// Keys returns every selectable key, Overview first.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.order)+1)
	keys = append(keys, KeyOverview)
	keys = append(keys, r.order...)
	return keys
}

// Columns returns the active columns for key. Unconfigured keys fall back to
// the Feature pipeline.
func (r *Registry) Columns(key Key) []StageDefinition {
	if key == KeyOverview {
		return r.OverviewColumns()
	}
	if def, ok := r.pipelines[key]; ok {
		return cloneStages(def.Stages)
	}
	return cloneStages(r.pipelines[FallbackKey].Stages)
}

// HomeKey returns the pipeline an idea natively lives in: a subtype
// pipeline when one matches, otherwise its category pipeline.
func (r *Registry) HomeKey(i idea.Idea) Key {
	if i.SocialSubtype != idea.SubtypeNone {
		for _, key := range r.order {
			def := r.pipelines[key]
			if def.Subtype != idea.SubtypeNone && def.Matches(i) {
				return key
			}
		}
	}
	return CategoryKey(i.Category)
}

// InitialStage returns the persisted first stage of the pipeline behind key.
func (r *Registry) InitialStage(key Key) (string, error) {
	def, ok := r.pipelines[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCategory, key)
	}
	return def.persistedStage(def.Subtype, def.Stages[0].ID), nil
}

// EffectiveStage returns the idea's stage, treating an absent stage as the
// first stage of its home pipeline. Ideas whose category is unregistered
// resolve against the Feature pipeline.
func (r *Registry) EffectiveStage(i idea.Idea) string {
	if i.Stage != "" {
		return i.Stage
	}
	stage, err := r.InitialStage(r.HomeKey(i))
	if err != nil {
		stage, _ = r.InitialStage(FallbackKey)
	}
	return stage
}

// IsTriaged reports whether the idea has moved past its first stage.
func (r *Registry) IsTriaged(i idea.Idea) bool {
	first, err := r.InitialStage(r.HomeKey(i))
	if err != nil {
		return true
	}
	return r.EffectiveStage(i) != first
}
