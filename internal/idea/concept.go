package idea

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DurationUnit is the unit of a phase duration.
type DurationUnit string

const (
	DurationDays   DurationUnit = "Days"
	DurationWeeks  DurationUnit = "Weeks"
	DurationMonths DurationUnit = "Months"
)

// FrequencyUnit is the unit of a posting frequency.
type FrequencyUnit string

const (
	PostsPerDay   FrequencyUnit = "Posts/Day"
	PostsPerWeek  FrequencyUnit = "Posts/Week"
	PostsPerMonth FrequencyUnit = "Posts/Month"
)

// PhaseDefinition is one time-boxed segment of a campaign timeline.
type PhaseDefinition struct {
	ID            string       `json:"id" validate:"required"`
	Name          string       `json:"name"`
	DurationValue int          `json:"durationValue" validate:"gt=0"`
	DurationUnit  DurationUnit `json:"durationUnit" validate:"oneof=Days Weeks Months"`
	Focus         string       `json:"focus,omitempty"`
}

// PhaseOverride replaces a channel's base frequency for a single phase.
type PhaseOverride struct {
	PhaseID        string        `json:"phaseId" validate:"required"`
	FrequencyValue *float64      `json:"frequencyValue,omitempty" validate:"omitempty,gte=0"`
	FrequencyUnit  FrequencyUnit `json:"frequencyUnit,omitempty" validate:"omitempty,oneof=Posts/Day Posts/Week Posts/Month"`
}

// ChannelFrequency declares how often a channel posts.
type ChannelFrequency struct {
	ChannelID          string          `json:"channelId" validate:"required"`
	BaseFrequencyValue *float64        `json:"baseFrequencyValue,omitempty" validate:"omitempty,gte=0"`
	BaseFrequencyUnit  FrequencyUnit   `json:"baseFrequencyUnit,omitempty" validate:"omitempty,oneof=Posts/Day Posts/Week Posts/Month"`
	PhaseOverrides     []PhaseOverride `json:"phaseOverrides,omitempty" validate:"dive"`
}

// Override returns the override registered for phaseID, if any.
func (c ChannelFrequency) Override(phaseID string) (PhaseOverride, bool) {
	for _, o := range c.PhaseOverrides {
		if o.PhaseID == phaseID {
			return o, true
		}
	}
	return PhaseOverride{}, false
}

// AudienceSegment is a named audience a campaign targets.
type AudienceSegment struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Concept is the typed view over the free-form concept document. Unknown
// keys are retained so Encode round-trips data owned by other editors.
type Concept struct {
	Phases           []PhaseDefinition  `json:"phases,omitempty" validate:"dive"`
	Channels         []ChannelFrequency `json:"channels,omitempty" validate:"dive"`
	Platforms        []string           `json:"platforms,omitempty"`
	AudienceSegments []AudienceSegment  `json:"audienceSegments,omitempty"`

	extra map[string]json.RawMessage
}

var knownConceptKeys = []string{"phases", "channels", "platforms", "audienceSegments"}

var validate = validator.New()

// ParseConcept decodes a concept document. An empty document is valid and
// yields an empty concept.
func ParseConcept(raw string) (Concept, error) {
	var concept Concept
	data := []byte(strings.TrimSpace(raw))
	if len(data) == 0 {
		return concept, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Concept{}, fmt.Errorf("idea: decode concept: %w", err)
	}
	type plain Concept
	var typed plain
	if err := json.Unmarshal(data, &typed); err != nil {
		return Concept{}, fmt.Errorf("idea: decode concept: %w", err)
	}
	concept = Concept(typed)
	for _, key := range knownConceptKeys {
		delete(fields, key)
	}
	if len(fields) > 0 {
		concept.extra = fields
	}
	return concept, nil
}

// Encode serializes the concept, merging back any keys it did not model.
func (c Concept) Encode() (string, error) {
	type plain Concept
	known, err := json.Marshal(plain(c))
	if err != nil {
		return "", fmt.Errorf("idea: encode concept: %w", err)
	}
	if len(c.extra) == 0 {
		return string(known), nil
	}
	merged := map[string]json.RawMessage{}
	for key, value := range c.extra {
		merged[key] = value
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return "", fmt.Errorf("idea: encode concept: %w", err)
	}
	for key, value := range fields {
		merged[key] = value
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(merged); err != nil {
		return "", fmt.Errorf("idea: encode concept: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Validate checks the fields the frequency calculator depends on.
func (c Concept) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("idea: invalid concept: %w", err)
	}
	seen := map[string]struct{}{}
	for _, phase := range c.Phases {
		if _, dup := seen[phase.ID]; dup {
			return fmt.Errorf("idea: invalid concept: duplicate phase id %s", phase.ID)
		}
		seen[phase.ID] = struct{}{}
	}
	return nil
}

// Channel returns the frequency declaration for channelID.
func (c Concept) Channel(channelID string) (ChannelFrequency, bool) {
	for _, ch := range c.Channels {
		if ch.ChannelID == channelID {
			return ch, true
		}
	}
	return ChannelFrequency{}, false
}

// SetChannels replaces the channel declarations, keeping Platforms in sync.
func (c *Concept) SetChannels(channels []ChannelFrequency) {
	c.Channels = channels
	ids := make([]string, 0, len(channels))
	for _, ch := range channels {
		ids = append(ids, ch.ChannelID)
	}
	c.Platforms = ids
}
