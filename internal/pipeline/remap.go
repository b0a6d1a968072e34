package pipeline

import "github.com/kingrea/ideaboard/internal/idea"

// Persisted stages and board columns are two coordinate systems over the
// same value. These helpers are the only place that translates between them.

// ToVisualStage returns the column an idea's persisted stage renders in on
// the pipeline behind key.
func (r *Registry) ToVisualStage(key Key, i idea.Idea, stage string) string {
	def, ok := r.pipelines[key]
	if !ok {
		return stage
	}
	return def.visualStage(i.SocialSubtype, stage)
}

// ToPersistedStage returns the stage value to store when an idea is dropped
// on column of the pipeline behind key.
func (r *Registry) ToPersistedStage(key Key, i idea.Idea, column string) string {
	def, ok := r.pipelines[key]
	if !ok {
		return column
	}
	return def.persistedStage(i.SocialSubtype, column)
}

func (def PipelineDefinition) visualStage(subtype idea.SocialSubtype, stage string) string {
	for _, remap := range def.Remaps {
		if remap.Stage == stage && remap.appliesTo(subtype) {
			return remap.Column
		}
	}
	return stage
}

func (def PipelineDefinition) persistedStage(subtype idea.SocialSubtype, column string) string {
	for _, remap := range def.Remaps {
		if remap.Column == column && remap.appliesTo(subtype) {
			return remap.Stage
		}
	}
	return column
}

func (m StageRemap) appliesTo(subtype idea.SocialSubtype) bool {
	return m.Subtype == idea.SubtypeNone || m.Subtype == subtype
}
