package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/ideaboard/internal/pipeline"
	"github.com/kingrea/ideaboard/internal/tui"
)

func (c *cli) boardCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the kanban board",
		Long:  "Opens the interactive board. Cards are moved with the keyboard: space picks a card up, arrows choose the column, space drops it and esc cancels.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runBoard(cmd, key)
		},
	}
	cmd.Flags().StringVarP(&key, "pipeline", "p", "", "Pipeline to open (default: board.default_pipeline)")
	return cmd
}

func (c *cli) runBoard(cmd *cobra.Command, key string) error {
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
	sub, err := rt.store.Subscribe(ctx, rt.cfg.ProjectScope())
	if err != nil {
		return err
	}
	defer sub.Close()

	app, err := tui.NewApp(b,
		tui.WithContext(ctx),
		tui.WithSubscription(sub),
		tui.WithLogbook(rt.journal),
		tui.WithPipelineSaver(rt.cfg),
	)
	if err != nil {
		return err
	}
	// Use alternate screen buffer (like vim does)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run board: %w", err)
	}
	return nil
}
