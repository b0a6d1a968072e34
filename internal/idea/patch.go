package idea

import (
	"fmt"
	"strings"
)

// Patch carries the partial fields sent to the store on a transition. Nil
// fields are left untouched; a non-nil SocialSubtype pointing at SubtypeNone
// clears the subtype.
type Patch struct {
	Category      *Category      `json:"category,omitempty"`
	Stage         *string        `json:"stage,omitempty"`
	SocialSubtype *SocialSubtype `json:"social_subtype,omitempty"`
}

// StagePatch builds a patch that only moves the stage.
func StagePatch(stage string) Patch {
	return Patch{Stage: &stage}
}

// PositionPatch builds a patch that rewrites every pipeline field.
func PositionPatch(p Position) Patch {
	category := p.Category
	stage := p.Stage
	subtype := p.SocialSubtype
	return Patch{Category: &category, Stage: &stage, SocialSubtype: &subtype}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Category == nil && p.Stage == nil && p.SocialSubtype == nil
}

// Apply returns a copy of i with the patch applied.
func (p Patch) Apply(i Idea) Idea {
	if p.Category != nil {
		i.Category = *p.Category
	}
	if p.Stage != nil {
		i.Stage = *p.Stage
	}
	if p.SocialSubtype != nil {
		i.SocialSubtype = *p.SocialSubtype
	}
	return i
}

// Fields flattens the patch into store field names.
func (p Patch) Fields() map[string]any {
	fields := map[string]any{}
	if p.Category != nil {
		fields["category"] = string(*p.Category)
	}
	if p.Stage != nil {
		fields["stage"] = *p.Stage
	}
	if p.SocialSubtype != nil {
		fields["social_subtype"] = string(*p.SocialSubtype)
	}
	return fields
}

func (p Patch) String() string {
	var parts []string
	if p.Category != nil {
		parts = append(parts, fmt.Sprintf("category=%s", *p.Category))
	}
	if p.Stage != nil {
		parts = append(parts, fmt.Sprintf("stage=%s", *p.Stage))
	}
	if p.SocialSubtype != nil {
		value := string(*p.SocialSubtype)
		if value == "" {
			value = "<none>"
		}
		parts = append(parts, fmt.Sprintf("social_subtype=%s", value))
	}
	if len(parts) == 0 {
		return "<empty>"
	}
	return strings.Join(parts, " ")
}
