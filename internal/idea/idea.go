// Package idea defines the idea records that move through the pipeline board.
// Records are owned by an external store; this package only describes their
// shape and the pipeline fields the board is allowed to change.
package idea

import (
	"fmt"
	"strings"
	"time"
)

// Category is the top-level idea type. The set is closed.
type Category string

const (
	CategoryFeature      Category = "Feature"
	CategoryProduct      Category = "Product"
	CategoryMarketing    Category = "Marketing"
	CategorySocial       Category = "Social"
	CategoryMoonshot     Category = "Moonshot"
	CategoryOptimization Category = "Optimization"
)

// Categories lists every category in board order.
var Categories = []Category{
	CategoryFeature,
	CategoryProduct,
	CategoryMarketing,
	CategorySocial,
	CategoryMoonshot,
	CategoryOptimization,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(value string) (Category, error) {
	trimmed := strings.TrimSpace(value)
	for _, known := range Categories {
		if strings.EqualFold(trimmed, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("idea: unknown category %q", value)
}

// SocialSubtype splits Social ideas into single posts and multi-phase campaigns.
type SocialSubtype string

const (
	SubtypeNone     SocialSubtype = ""
	SubtypePost     SocialSubtype = "post"
	SubtypeCampaign SocialSubtype = "campaign"
)

// Idea is a single card on the board.
type Idea struct {
	ID            string        `json:"id" yaml:"id"`
	ProjectID     string        `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Category      Category      `json:"category" yaml:"category"`
	Stage         string        `json:"stage,omitempty" yaml:"stage,omitempty"`
	SocialSubtype SocialSubtype `json:"social_subtype,omitempty" yaml:"social_subtype,omitempty"`
	Title         string        `json:"title" yaml:"title"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty"`
	// Concept is a JSON document owned by the category editors.
	Concept   string    `json:"concept,omitempty" yaml:"concept,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// IsCampaign reports whether the idea is a Social campaign.
func (i Idea) IsCampaign() bool {
	return i.Category == CategorySocial && i.SocialSubtype == SubtypeCampaign
}

// Position returns the pipeline coordinates of the idea.
func (i Idea) Position() Position {
	return Position{Category: i.Category, Stage: i.Stage, SocialSubtype: i.SocialSubtype}
}

// WithPosition returns a copy of the idea placed at p.
func (i Idea) WithPosition(p Position) Idea {
	i.Category = p.Category
	i.Stage = p.Stage
	i.SocialSubtype = p.SocialSubtype
	return i
}

// Position is the part of an idea the board mutates.
type Position struct {
	Category      Category      `json:"category"`
	Stage         string        `json:"stage,omitempty"`
	SocialSubtype SocialSubtype `json:"social_subtype,omitempty"`
}

// Clone returns a deep copy of the slice.
func Clone(ideas []Idea) []Idea {
	if ideas == nil {
		return nil
	}
	out := make([]Idea, len(ideas))
	copy(out, ideas)
	return out
}

// Index returns the position of the idea with id, or -1.
func Index(ideas []Idea, id string) int {
	for i := range ideas {
		if ideas[i].ID == id {
			return i
		}
	}
	return -1
}
