package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/ideaboard/internal/frequency"
	"github.com/kingrea/ideaboard/internal/idea"
	"github.com/kingrea/ideaboard/internal/suggest"
)

func (c *cli) frequencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "frequency <idea-id>",
		Short: "Report planned posts per channel for a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			item, err := rt.find(ctx, args[0])
			if err != nil {
				return err
			}
			concept, err := idea.ParseConcept(item.Concept)
			if err != nil {
				return err
			}
			if err := concept.Validate(); err != nil {
				return err
			}
			writeFrequencyReport(cmd.OutOrStdout(), item, concept)
			return nil
		},
	}
}

func writeFrequencyReport(w io.Writer, item idea.Idea, concept idea.Concept) {
	fmt.Fprintf(w, "%s · %d phase(s), %d day(s)\n", item.Title, len(concept.Phases), frequency.CampaignDays(concept.Phases))
	if len(concept.Channels) == 0 {
		fmt.Fprintln(w, "No channels declared.")
		return
	}
	for _, channel := range concept.Channels {
		fmt.Fprintf(w, "\n%s: %d post(s)\n", channel.ChannelID, frequency.TotalPosts(channel, concept.Phases))
		for _, phase := range frequency.Breakdown(channel, concept.Phases) {
			marker := ""
			if phase.Rate.Overridden {
				marker = " (override)"
			}
			fmt.Fprintf(w, "  %-16s %3dd  %g %s%s  → %.2f\n",
				phase.PhaseID, phase.Days, phase.Rate.Value, phase.Rate.Unit, marker, phase.Posts)
		}
	}
}

func (c *cli) suggestCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "suggest <idea-id>",
		Short: "Ask Gemini for base posting frequencies",
		Long:  "Builds a prompt from the campaign timeline and channels, asks the configured Gemini model for base frequencies and prints them. Unreadable answers fall back to 3 posts per week. With --apply the result is written into the idea's concept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			item, err := rt.find(ctx, args[0])
			if err != nil {
				return err
			}

			settings := rt.cfg.Project.Suggest
			apiKey := strings.TrimSpace(os.Getenv(settings.APIKeyEnv))
			if apiKey == "" {
				return fmt.Errorf("%s not set (add it to the environment or a .env file)", settings.APIKeyEnv)
			}
			gen, err := c.newGenerator(ctx, suggest.GeminiConfig{
				APIKey:      apiKey,
				Model:       settings.Model,
				MaxAttempts: settings.MaxAttempts,
			})
			if err != nil {
				return err
			}
			if closer, ok := gen.(io.Closer); ok {
				defer closer.Close()
			}

			result, err := suggest.NewService(gen, rt.journal).Suggest(ctx, item)
			if err != nil {
				return err
			}
			writeSuggestion(cmd.OutOrStdout(), result)
			if !apply {
				return nil
			}
			concept, err := idea.ParseConcept(item.Concept)
			if err != nil {
				return err
			}
			result.Apply(&concept)
			if item.Concept, err = concept.Encode(); err != nil {
				return err
			}
			if _, err := rt.store.Put(ctx, item); err != nil {
				return err
			}
			rt.journal.Info("suggest %s: applied %d channel(s)", item.ID, len(result.Channels))
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Write the suggested frequencies into the idea")
	return cmd
}

func writeSuggestion(w io.Writer, s suggest.Suggestion) {
	for _, ch := range s.Channels {
		line := fmt.Sprintf("%-16s %g %s", ch.ChannelID, ch.FrequencyValue, ch.FrequencyUnit)
		if ch.Fallback {
			line += " (default)"
		}
		if ch.Rationale != "" {
			line += " · " + ch.Rationale
		}
		fmt.Fprintln(w, line)
	}
}
