// Package suggest asks a generative model for posting frequencies and reads
// the answer defensively: anything unreadable degrades to documented
// defaults instead of failing the request.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kingrea/ideaboard/internal/frequency"
	"github.com/kingrea/ideaboard/internal/idea"
	"github.com/kingrea/ideaboard/internal/logbook"
)

// Generator produces a raw structured response for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiConfig configures the Gemini generator.
type GeminiConfig struct {
	APIKey       string
	Model        string
	Temperature  float32
	MaxAttempts  int
	InitialDelay time.Duration
}

// Gemini generates suggestions with Google Gemini, retrying transient
// failures with exponential backoff.
type Gemini struct {
	client  *genai.Client
	model   string
	temp    float32
	retrier retry.Retry[string]
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("suggest: API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("suggest: model is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("suggest: create Gemini client: %w", err)
	}
	return &Gemini{
		client: client,
		model:  cfg.Model,
		temp:   cfg.Temperature,
		retrier: retry.New[string](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
		}),
	}, nil
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	return g.retrier.Do(ctx, func(ctx context.Context) (string, error) {
		model := g.client.GenerativeModel(g.model)
		model.SetTemperature(g.temp)
		model.ResponseMIMEType = "application/json"
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("suggest: generate content: %w", err)
		}
		return extractText(resp)
	})
}

// Close releases the client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("suggest: no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("suggest: no content in response")
	}
	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("suggest: no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

// Service builds prompts from ideas and normalizes the answers.
type Service struct {
	gen     Generator
	journal *logbook.Logbook
}

// NewService wires a generator. The journal may be nil.
func NewService(gen Generator, journal *logbook.Logbook) *Service {
	return &Service{gen: gen, journal: journal}
}

// Channels returns the channels a suggestion is requested for: the concept's
// declared channels first, then any platform without a declaration.
func Channels(concept idea.Concept) []string {
	var out []string
	seen := map[string]bool{}
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[strings.ToLower(id)] {
			return
		}
		seen[strings.ToLower(id)] = true
		out = append(out, id)
	}
	for _, ch := range concept.Channels {
		add(ch.ChannelID)
	}
	for _, p := range concept.Platforms {
		add(p)
	}
	return out
}

// Suggest asks the generator for frequencies for every channel of item's
// concept. Generator failures are returned; parse failures are journaled
// and answered with defaults.
func (s *Service) Suggest(ctx context.Context, item idea.Idea) (Suggestion, error) {
	concept, err := idea.ParseConcept(item.Concept)
	if err != nil {
		return Suggestion{}, err
	}
	channels := Channels(concept)
	if len(channels) == 0 {
		return Suggestion{}, fmt.Errorf("suggest: idea %s declares no channels", item.ID)
	}
	raw, err := s.gen.Generate(ctx, Prompt(item, concept, channels))
	if err != nil {
		s.journal.Error("suggest %s: %v", item.ID, err)
		return Suggestion{}, err
	}
	suggestion, err := Normalize(raw, channels)
	if err != nil {
		if !errors.Is(err, ErrSuggestionParse) {
			return Suggestion{}, err
		}
		s.journal.Warn("suggest %s: using defaults: %v", item.ID, err)
	}
	return suggestion, nil
}

// Prompt renders the request sent to the generator.
func Prompt(item idea.Idea, concept idea.Concept, channels []string) string {
	var b strings.Builder
	b.WriteString("You plan social media campaigns. Suggest a base posting frequency for each channel.\n")
	fmt.Fprintf(&b, "Campaign: %s\n", item.Title)
	if desc := strings.TrimSpace(item.Description); desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}
	if len(concept.Phases) > 0 {
		fmt.Fprintf(&b, "Timeline (%d days):\n", frequency.CampaignDays(concept.Phases))
		for _, phase := range concept.Phases {
			fmt.Fprintf(&b, "- %s: %d %s", phase.Name, phase.DurationValue, strings.ToLower(string(phase.DurationUnit)))
			if phase.Focus != "" {
				fmt.Fprintf(&b, " (%s)", phase.Focus)
			}
			b.WriteString("\n")
		}
	}
	if len(concept.AudienceSegments) > 0 {
		b.WriteString("Audience:\n")
		for _, seg := range concept.AudienceSegments {
			fmt.Fprintf(&b, "- %s\n", seg.Name)
		}
	}
	fmt.Fprintf(&b, "Channels: %s\n", strings.Join(channels, ", "))
	b.WriteString(`Respond with JSON only: {"channels":[{"id":"<channel>","frequency":"<number> times per <day|week|month>","rationale":"<one sentence>"}]}`)
	return b.String()
}
