package pipeline

import (
	"fmt"
	"strings"

	"github.com/kingrea/ideaboard/internal/idea"
)

// Key selects a pipeline view. Category names are keys; so are the
// SocialCampaign pseudo-pipeline and the synthetic Overview.
type Key string

const (
	KeyOverview       Key = "Overview"
	KeySocialCampaign Key = "SocialCampaign"
)

// CategoryKey returns the pipeline key of a category's own pipeline.
func CategoryKey(c idea.Category) Key {
	return Key(c)
}

// StageDefinition is one column of a pipeline.
type StageDefinition struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	VisualTag string `json:"tag,omitempty" yaml:"tag,omitempty"`
	// Initial is derived: only position 0 carries it.
	Initial bool `json:"initial,omitempty" yaml:"-"`
}

// StageRemap renames a persisted stage to a different column for ideas of a
// given subtype. The persisted value itself never changes.
type StageRemap struct {
	Subtype idea.SocialSubtype `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Stage   string             `json:"stage" yaml:"stage"`
	Column  string             `json:"column" yaml:"column"`
}

// PipelineDefinition declares the ordered stages for one pipeline key plus
// the ideas it shows.
type PipelineDefinition struct {
	Key       Key                `json:"key" yaml:"key"`
	Title     string             `json:"title,omitempty" yaml:"title,omitempty"`
	VisualTag string             `json:"tag,omitempty" yaml:"tag,omitempty"`
	Category  idea.Category      `json:"category" yaml:"category"`
	Subtype   idea.SocialSubtype `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Stages    []StageDefinition  `json:"stages" yaml:"stages"`
	Remaps    []StageRemap       `json:"remaps,omitempty" yaml:"remaps,omitempty"`
}

// Clone returns a deep copy of the definition.
func (def PipelineDefinition) Clone() PipelineDefinition {
	clone := def
	clone.Stages = cloneStages(def.Stages)
	if len(def.Remaps) > 0 {
		clone.Remaps = make([]StageRemap, len(def.Remaps))
		copy(clone.Remaps, def.Remaps)
	}
	return clone
}

// Matches reports whether an idea belongs on this pipeline.
func (def PipelineDefinition) Matches(i idea.Idea) bool {
	if i.Category != def.Category {
		return false
	}
	return def.Subtype == idea.SubtypeNone || i.SocialSubtype == def.Subtype
}

// HasColumn reports whether id is one of the pipeline's columns.
func (def PipelineDefinition) HasColumn(id string) bool {
	return stageIndex(def.Stages, id) >= 0
}

// Normalized fills defaults, derives the initial marker and validates.
func (def PipelineDefinition) Normalized() (PipelineDefinition, error) {
	clone := def.Clone()
	clone.Key = Key(strings.TrimSpace(string(clone.Key)))
	if clone.Key == "" {
		clone.Key = CategoryKey(clone.Category)
	}
	if clone.Category == "" {
		if parsed, err := idea.ParseCategory(string(clone.Key)); err == nil {
			clone.Category = parsed
		}
	}
	if strings.TrimSpace(clone.Title) == "" {
		clone.Title = humanize(string(clone.Key))
	}
	for i := range clone.Stages {
		clone.Stages[i].ID = strings.TrimSpace(clone.Stages[i].ID)
		if strings.TrimSpace(clone.Stages[i].Title) == "" {
			clone.Stages[i].Title = humanize(clone.Stages[i].ID)
		}
		clone.Stages[i].Initial = i == 0
	}
	if err := clone.Validate(); err != nil {
		return PipelineDefinition{}, err
	}
	return clone, nil
}

// Validate ensures the definition is self-consistent.
func (def PipelineDefinition) Validate() error {
	if def.Key == "" {
		return fmt.Errorf("pipeline: key is required")
	}
	if def.Key == KeyOverview {
		return fmt.Errorf("pipeline: %s is reserved", KeyOverview)
	}
	if !def.Category.Valid() {
		return fmt.Errorf("pipeline %s: unknown category %q", def.Key, def.Category)
	}
	if len(def.Stages) == 0 {
		return fmt.Errorf("pipeline %s: at least one stage is required", def.Key)
	}
	seen := map[string]struct{}{}
	for idx, stage := range def.Stages {
		if stage.ID == "" {
			return fmt.Errorf("pipeline %s stage[%d]: id is required", def.Key, idx)
		}
		if _, dup := seen[stage.ID]; dup {
			return fmt.Errorf("pipeline %s: duplicate stage id %s", def.Key, stage.ID)
		}
		seen[stage.ID] = struct{}{}
	}
	for idx, remap := range def.Remaps {
		if remap.Stage == "" || remap.Column == "" {
			return fmt.Errorf("pipeline %s remap[%d]: stage and column are required", def.Key, idx)
		}
		if _, ok := seen[remap.Column]; !ok {
			return fmt.Errorf("pipeline %s remap[%d]: column %s is not a stage", def.Key, idx, remap.Column)
		}
	}
	return nil
}

func cloneStages(values []StageDefinition) []StageDefinition {
	if len(values) == 0 {
		return nil
	}
	out := make([]StageDefinition, len(values))
	copy(out, values)
	return out
}

func stageIndex(stages []StageDefinition, id string) int {
	for i := range stages {
		if stages[i].ID == id {
			return i
		}
	}
	return -1
}

func humanize(id string) string {
	var b strings.Builder
	for i, r := range id {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := id[i-1]
			if prev >= 'a' && prev <= 'z' {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
