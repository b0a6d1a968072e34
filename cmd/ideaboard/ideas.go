package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/ideaboard/internal/idea"
	"github.com/kingrea/ideaboard/internal/pipeline"
	"github.com/kingrea/ideaboard/internal/transition"
)

func (c *cli) addCmd() *cobra.Command {
	var (
		title       string
		category    string
		subtype     string
		description string
		concept     string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an idea at the first stage of its pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := idea.ParseCategory(category)
			if err != nil {
				return err
			}
			item := idea.Idea{
				Category:      cat,
				SocialSubtype: idea.SocialSubtype(strings.ToLower(strings.TrimSpace(subtype))),
				Title:         strings.TrimSpace(title),
				Description:   strings.TrimSpace(description),
				Concept:       strings.TrimSpace(concept),
			}
			if item.Title == "" {
				return fmt.Errorf("title must not be empty")
			}
			if cat == idea.CategorySocial && item.SocialSubtype == idea.SubtypeNone {
				item.SocialSubtype = idea.SubtypePost
			}
			if cat != idea.CategorySocial && item.SocialSubtype != idea.SubtypeNone {
				return fmt.Errorf("--subtype only applies to Social ideas")
			}
			if item.Concept != "" {
				parsed, err := idea.ParseConcept(item.Concept)
				if err != nil {
					return err
				}
				if err := parsed.Validate(); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			rt, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			item.ProjectID = rt.cfg.ProjectScope()
			stored, err := rt.store.Put(ctx, item)
			if err != nil {
				return err
			}
			rt.journal.Info("add %s %s: %s", stored.ID, describePosition(rt.registry, stored), stored.Title)
			fmt.Fprintln(cmd.OutOrStdout(), stored.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Idea title (required)")
	cmd.Flags().StringVarP(&category, "category", "c", string(idea.CategoryFeature), "Category: Feature, Product, Marketing, Social, Moonshot or Optimization")
	cmd.Flags().StringVar(&subtype, "subtype", "", "Social subtype: post or campaign")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Longer description")
	cmd.Flags().StringVar(&concept, "concept", "", "Concept JSON (campaign phases and channels)")
	if err := cmd.MarkFlagRequired("title"); err != nil {
		panic(fmt.Sprintf("failed to mark title flag as required: %v", err))
	}
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print a pipeline as columns of ideas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			b, err := rt.board(ctx, pipeline.Key(key))
			if err != nil {
				return err
			}
			writeView(cmd.OutOrStdout(), b.View())
			return nil
		},
	}
	cmd.Flags().StringVarP(&key, "pipeline", "p", "", "Pipeline to list (default: board.default_pipeline)")
	return cmd
}

func (c *cli) moveCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "move <idea-id> <column-or-idea-id>",
		Short: "Drop an idea onto a column (or onto another idea's column)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			b, err := rt.board(ctx, pipeline.Key(key))
			if err != nil {
				return err
			}
			tr, err := b.Move(ctx, transition.Drop(args[0], args[1]))
			switch {
			case errors.Is(err, transition.ErrNoop):
				fmt.Fprintf(cmd.OutOrStdout(), "%s already in %s\n", args[0], args[1])
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s/%s -> %s/%s\n",
				tr.IdeaID, tr.From.Category, stageLabel(tr.From.Stage), tr.To.Category, stageLabel(tr.To.Stage))
			return nil
		},
	}
	cmd.Flags().StringVarP(&key, "pipeline", "p", "", "Pipeline the drop happens on (default: board.default_pipeline)")
	return cmd
}

func writeView(w io.Writer, view pipeline.View) {
	groups, unplaced := pipeline.Group(view)
	fmt.Fprintf(w, "%s\n", view.Key)
	for _, group := range groups {
		title := group.Stage.Title
		if title == "" {
			title = group.Stage.ID
		}
		fmt.Fprintf(w, "\n%s (%d)\n", title, len(group.Cards))
		for _, card := range group.Cards {
			fmt.Fprintf(w, "  %-36s %s\n", card.Idea.ID, card.Idea.Title)
		}
	}
	if len(unplaced) > 0 {
		fmt.Fprintf(w, "\nUnplaced (%d)\n", len(unplaced))
		for _, card := range unplaced {
			fmt.Fprintf(w, "  %-36s %s [%s]\n", card.Idea.ID, card.Idea.Title, card.Column)
		}
	}
}

func describePosition(reg *pipeline.Registry, item idea.Idea) string {
	return fmt.Sprintf("%s/%s", reg.HomeKey(item), reg.EffectiveStage(item))
}

func stageLabel(stage string) string {
	if stage == "" {
		return "<first>"
	}
	return stage
}
