package suggest

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kingrea/ideaboard/internal/idea"
)

// ErrSuggestionParse means a response could not be read as intended. The
// values returned alongside it are the documented defaults.
var ErrSuggestionParse = errors.New("suggest: unparseable suggestion")

const (
	// DefaultFrequency is used when no number can be read.
	DefaultFrequency = 3.0
	// DailyFrequency is used for "daily" phrasing with no number.
	DailyFrequency = 1.0
	// MinFrequency is the floor every suggestion is clamped to.
	MinFrequency = 1.0
	// DefaultUnit applies when the text names no period.
	DefaultUnit = idea.PostsPerWeek
)

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

var dailyPattern = regexp.MustCompile(`\bdaily\b`)

// unitKeywords match whole words only so "Monday" or "weekday" name no period.
var unitKeywords = []struct {
	pattern *regexp.Regexp
	unit    idea.FrequencyUnit
}{
	{dailyPattern, idea.PostsPerDay},
	{regexp.MustCompile(`\bdays?\b`), idea.PostsPerDay},
	{regexp.MustCompile(`\bweek(?:s|ly)?\b`), idea.PostsPerWeek},
	{regexp.MustCompile(`\bmonth(?:s|ly)?\b`), idea.PostsPerMonth},
}

// ParseFrequency reads a free-text posting frequency such as
// "about 2-3 times per week". The first integer or decimal wins; the unit
// is the earliest period word. Without a number the value defaults to 1 for
// daily phrasing and 3 otherwise, and ErrSuggestionParse is returned with it.
// Values are clamped to at least 1.
func ParseFrequency(text string) (float64, idea.FrequencyUnit, error) {
	lower := strings.ToLower(text)
	unit := parseUnit(lower)
	var err error
	value := DefaultFrequency
	if match := numberPattern.FindString(lower); match != "" {
		parsed, perr := strconv.ParseFloat(match, 64)
		if perr == nil {
			value = parsed
		} else {
			err = fmt.Errorf("%w: %q: %v", ErrSuggestionParse, text, perr)
		}
	} else {
		if dailyPattern.MatchString(lower) {
			value = DailyFrequency
		}
		err = fmt.Errorf("%w: no number in %q", ErrSuggestionParse, text)
	}
	if value < MinFrequency {
		value = MinFrequency
	}
	return value, unit, err
}

func parseUnit(lower string) idea.FrequencyUnit {
	best := -1
	unit := DefaultUnit
	for _, kw := range unitKeywords {
		loc := kw.pattern.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		if best < 0 || loc[0] < best {
			best = loc[0]
			unit = kw.unit
		}
	}
	return unit
}

// ChannelSuggestion is the normalized frequency for one channel.
type ChannelSuggestion struct {
	ChannelID      string             `json:"channelId"`
	FrequencyValue float64            `json:"frequencyValue"`
	FrequencyUnit  idea.FrequencyUnit `json:"frequencyUnit"`
	Rationale      string             `json:"rationale,omitempty"`
	// Fallback marks values that came from defaults rather than the response.
	Fallback bool `json:"fallback,omitempty"`
}

// Suggestion is a normalized generator response.
type Suggestion struct {
	Channels []ChannelSuggestion `json:"channels"`
	Fallback bool                `json:"fallback,omitempty"`
}

type rawResponse struct {
	Channels []rawChannel `json:"channels"`
}

type rawChannel struct {
	ID        string          `json:"id"`
	Channel   string          `json:"channel"`
	Frequency json.RawMessage `json:"frequency"`
	Unit      string          `json:"unit"`
	Rationale string          `json:"rationale"`
}

func (c rawChannel) channelID() string {
	if id := strings.TrimSpace(c.ID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Channel)
}

// frequencyText flattens numbers and strings into one parseable phrase.
func (c rawChannel) frequencyText() string {
	var text string
	if err := json.Unmarshal(c.Frequency, &text); err != nil {
		text = strings.TrimSpace(string(c.Frequency))
	}
	if c.Unit != "" {
		text += " " + c.Unit
	}
	return text
}

// Normalize turns a raw generator response into one suggestion per requested
// channel, in the requested order. Channels missing from the response, and
// every channel when the response is not valid JSON, get the defaults with
// Fallback set. The returned error wraps ErrSuggestionParse whenever any
// fallback was used; the suggestion is usable either way.
func Normalize(raw string, channels []string) (Suggestion, error) {
	var resp rawResponse
	if err := json.Unmarshal([]byte(cleanJSONBlock(raw)), &resp); err != nil {
		return fallbackSuggestion(channels), fmt.Errorf("%w: %v", ErrSuggestionParse, err)
	}
	byID := map[string]rawChannel{}
	for _, ch := range resp.Channels {
		id := strings.ToLower(ch.channelID())
		if id == "" {
			continue
		}
		if _, seen := byID[id]; !seen {
			byID[id] = ch
		}
	}
	var (
		out  Suggestion
		errs []error
	)
	for _, channelID := range channels {
		ch, ok := byID[strings.ToLower(channelID)]
		if !ok {
			out.Channels = append(out.Channels, fallbackChannel(channelID))
			errs = append(errs, fmt.Errorf("%w: channel %s missing", ErrSuggestionParse, channelID))
			continue
		}
		value, unit, err := ParseFrequency(ch.frequencyText())
		cs := ChannelSuggestion{
			ChannelID:      channelID,
			FrequencyValue: value,
			FrequencyUnit:  unit,
			Rationale:      strings.TrimSpace(ch.Rationale),
		}
		if err != nil {
			cs.Fallback = true
			errs = append(errs, fmt.Errorf("channel %s: %w", channelID, err))
		}
		out.Channels = append(out.Channels, cs)
	}
	for _, cs := range out.Channels {
		if cs.Fallback {
			out.Fallback = true
		}
	}
	return out, errors.Join(errs...)
}

func fallbackSuggestion(channels []string) Suggestion {
	out := Suggestion{Fallback: len(channels) > 0}
	for _, id := range channels {
		out.Channels = append(out.Channels, fallbackChannel(id))
	}
	return out
}

func fallbackChannel(id string) ChannelSuggestion {
	return ChannelSuggestion{
		ChannelID:      id,
		FrequencyValue: DefaultFrequency,
		FrequencyUnit:  DefaultUnit,
		Fallback:       true,
	}
}

// Apply writes the suggested base frequencies into concept. Existing phase
// overrides are kept; channels new to the concept are appended.
func (s Suggestion) Apply(concept *idea.Concept) {
	if concept == nil {
		return
	}
	channels := append([]idea.ChannelFrequency(nil), concept.Channels...)
	for _, cs := range s.Channels {
		value := cs.FrequencyValue
		replaced := false
		for i := range channels {
			if channels[i].ChannelID == cs.ChannelID {
				channels[i].BaseFrequencyValue = &value
				channels[i].BaseFrequencyUnit = cs.FrequencyUnit
				replaced = true
				break
			}
		}
		if !replaced {
			channels = append(channels, idea.ChannelFrequency{
				ChannelID:          cs.ChannelID,
				BaseFrequencyValue: &value,
				BaseFrequencyUnit:  cs.FrequencyUnit,
			})
		}
	}
	concept.SetChannels(channels)
}

// cleanJSONBlock removes markdown code block wrappers from JSON
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
