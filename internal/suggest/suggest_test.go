package suggest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kingrea/ideaboard/internal/idea"
	"github.com/kingrea/ideaboard/internal/logbook"
)

func TestParseFrequency(t *testing.T) {
	cases := []struct {
		text    string
		value   float64
		unit    idea.FrequencyUnit
		wantErr bool
	}{
		{"about 2-3 times per week", 2, idea.PostsPerWeek, false},
		{"1.5 posts a day", 1.5, idea.PostsPerDay, false},
		{"4 per month", 4, idea.PostsPerMonth, false},
		{"twice daily", 1, idea.PostsPerDay, true},
		{"whenever inspiration strikes", 3, idea.PostsPerWeek, true},
		{"0 posts per week", 1, idea.PostsPerWeek, false},
		{"0.25 per day", 1, idea.PostsPerDay, false},
		{"5 days a week", 5, idea.PostsPerDay, false},
		{"", 3, idea.PostsPerWeek, true},
		{"post every Monday", 3, idea.PostsPerWeek, true},
		{"2 posts every Monday", 2, idea.PostsPerWeek, false},
		{"1 post today", 1, idea.PostsPerWeek, false},
		{"3 each weekday", 3, idea.PostsPerWeek, false},
		{"Monday and 6 per month", 6, idea.PostsPerMonth, false},
		{"2 posts/day", 2, idea.PostsPerDay, false},
		{"4 weekly", 4, idea.PostsPerWeek, false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			value, unit, err := ParseFrequency(tc.text)
			if value != tc.value || unit != tc.unit {
				t.Fatalf("got %v %s, want %v %s", value, unit, tc.value, tc.unit)
			}
			if tc.wantErr != errors.Is(err, ErrSuggestionParse) {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestNormalizeReadsChannelsInRequestedOrder(t *testing.T) {
	raw := "```json\n" + `{"channels":[
		{"id":"TikTok","frequency":"1 per day","rationale":"algorithm rewards volume"},
		{"channel":"instagram","frequency":4,"unit":"week"}
	]}` + "\n```"
	got, err := Normalize(raw, []string{"instagram", "tiktok"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := Suggestion{Channels: []ChannelSuggestion{
		{ChannelID: "instagram", FrequencyValue: 4, FrequencyUnit: idea.PostsPerWeek},
		{ChannelID: "tiktok", FrequencyValue: 1, FrequencyUnit: idea.PostsPerDay, Rationale: "algorithm rewards volume"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("suggestion mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeFallsBackOnGarbage(t *testing.T) {
	got, err := Normalize("Sorry, I can't help with that.", []string{"x", "y"})
	if !errors.Is(err, ErrSuggestionParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if !got.Fallback || len(got.Channels) != 2 {
		t.Fatalf("unexpected fallback %+v", got)
	}
	for _, ch := range got.Channels {
		if ch.FrequencyValue != DefaultFrequency || ch.FrequencyUnit != DefaultUnit || !ch.Fallback {
			t.Fatalf("unexpected channel %+v", ch)
		}
	}
}

func TestNormalizeMissingChannelUsesDefaults(t *testing.T) {
	got, err := Normalize(`{"channels":[{"id":"x","frequency":"2 a week"}]}`, []string{"x", "y"})
	if !errors.Is(err, ErrSuggestionParse) {
		t.Fatalf("expected parse error for missing channel, got %v", err)
	}
	if got.Channels[0].Fallback || !got.Channels[1].Fallback || !got.Fallback {
		t.Fatalf("unexpected fallback flags %+v", got)
	}
}

func TestApplyKeepsOverridesAndSyncsPlatforms(t *testing.T) {
	three := 3.0
	concept := idea.Concept{
		Channels: []idea.ChannelFrequency{{
			ChannelID:      "x",
			PhaseOverrides: []idea.PhaseOverride{{PhaseID: "launch", FrequencyValue: &three, FrequencyUnit: idea.PostsPerDay}},
		}},
	}
	Suggestion{Channels: []ChannelSuggestion{
		{ChannelID: "x", FrequencyValue: 2, FrequencyUnit: idea.PostsPerWeek},
		{ChannelID: "y", FrequencyValue: 1, FrequencyUnit: idea.PostsPerDay},
	}}.Apply(&concept)
	if len(concept.Channels) != 2 || *concept.Channels[0].BaseFrequencyValue != 2 {
		t.Fatalf("unexpected channels %+v", concept.Channels)
	}
	if len(concept.Channels[0].PhaseOverrides) != 1 {
		t.Fatalf("overrides lost")
	}
	if diff := cmp.Diff([]string{"x", "y"}, concept.Platforms); diff != "" {
		t.Fatalf("platforms mismatch (-want +got):\n%s", diff)
	}
}

type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func campaign() idea.Idea {
	return idea.Idea{
		ID:            "c1",
		Category:      idea.CategorySocial,
		SocialSubtype: idea.SubtypeCampaign,
		Title:         "Summer launch",
		Concept:       `{"phases":[{"id":"p1","name":"Tease","durationValue":2,"durationUnit":"Weeks"}],"platforms":["instagram","tiktok"]}`,
	}
}

func TestServiceJournalsFallbacks(t *testing.T) {
	journal, err := logbook.New(filepath.Join(t.TempDir(), "journal.log"))
	if err != nil {
		t.Fatal(err)
	}
	gen := &stubGenerator{response: `{"channels":[{"id":"instagram","frequency":"daily"}]}`}
	svc := NewService(gen, journal)
	got, err := svc.Suggest(context.Background(), campaign())
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if got.Channels[0].FrequencyValue != 1 || got.Channels[0].FrequencyUnit != idea.PostsPerDay {
		t.Fatalf("unexpected instagram suggestion %+v", got.Channels[0])
	}
	if !strings.Contains(gen.prompts[0], "Timeline (14 days)") || !strings.Contains(gen.prompts[0], "instagram, tiktok") {
		t.Fatalf("prompt missing context:\n%s", gen.prompts[0])
	}
	lines, _ := journal.Tail(1)
	if len(lines) != 1 || !strings.Contains(lines[0], "WARN") {
		t.Fatalf("expected warning, got %v", lines)
	}
}

func TestServiceReturnsGeneratorErrors(t *testing.T) {
	svc := NewService(&stubGenerator{err: errors.New("quota")}, nil)
	if _, err := svc.Suggest(context.Background(), campaign()); err == nil {
		t.Fatalf("expected generator error")
	}
	empty := campaign()
	empty.Concept = ""
	if _, err := svc.Suggest(context.Background(), empty); err == nil {
		t.Fatalf("expected error for idea without channels")
	}
}
