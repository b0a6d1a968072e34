// cmd/ideaboard/main.go
//
// This is the entry point for the ideaboard CLI.
// Running `ideaboard` with no subcommand opens the board TUI for the
// current directory; the other subcommands script the same operations.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kingrea/ideaboard/internal/suggest"
)

// cli carries the dependencies subcommands share. Tests swap the generator.
type cli struct {
	dir          string
	newGenerator func(ctx context.Context, cfg suggest.GeminiConfig) (suggest.Generator, error)
}

func newRootCmd() *cobra.Command {
	c := &cli{newGenerator: newGeminiGenerator}
	return c.rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ideaboard",
		Short:         "Kanban board for product, marketing and social ideas",
		Long:          "ideaboard tracks ideas through per-category pipelines, triages new ideas on an overview board, and plans posting volume for social campaigns.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runBoard(cmd, "")
		},
	}
	root.PersistentFlags().StringVarP(&c.dir, "dir", "C", "", "Project directory (default: current directory)")

	root.AddCommand(
		c.boardCmd(),
		c.addCmd(),
		c.listCmd(),
		c.moveCmd(),
		c.frequencyCmd(),
		c.suggestCmd(),
	)
	return root
}

func newGeminiGenerator(ctx context.Context, cfg suggest.GeminiConfig) (suggest.Generator, error) {
	return suggest.NewGemini(ctx, cfg)
}

func (c *cli) projectDir() (string, error) {
	if c.dir != "" {
		return c.dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
