package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bdobrica/aether/internal/aether/app"
	"github.com/bdobrica/aether/internal/aether/memory"
)

func newMemoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Browse, refine, import and export character memories",
	}

	tree := &cobra.Command{
		Use:   "tree <character>",
		Short: "Show fragments grouped by year and month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				t, stats, err := a.Archivist().Tree(ctx, args[0])
				if err != nil {
					return err
				}
				refined, err := a.Store().GetRefinedIndex(ctx, args[0])
				if err != nil {
					return err
				}
				printTree(cmd.OutOrStdout(), t, stats, refined)
				return nil
			})
		},
	}

	refine := &cobra.Command{
		Use:   "refine <character> <YYYY-MM>",
		Short: "Summarise one month into a core memory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, ok := memory.ParseMonth(args[1])
			if !ok {
				return fmt.Errorf("month must look like 2023-05, got %q", args[1])
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				key, summary, err := a.Archivist().Refine(ctx, args[0], year, month)
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "[%s] %s\n", key, summary)
				return nil
			})
		},
	}

	imp := &cobra.Command{
		Use:   "import <character> <file|->",
		Short: "Extract fragments from free-form text and append them",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				fragments, err := a.Archivist().Import(ctx, args[0], text)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				printf(w, "imported %d fragments\n", len(fragments))
				for _, f := range fragments {
					printf(w, "  %s  %s (%s)\n", f.Date, f.Summary, f.Mood)
				}
				return nil
			})
		},
	}

	export := &cobra.Command{
		Use:   "export <character>",
		Short: "Print the memory archive as plain text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				p, err := a.Store().GetCharacter(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), memory.ExportText(p.Name, p.Memories, p.RefinedMemories, time.Now()))
				return err
			})
		},
	}

	cmd.AddCommand(tree, refine, imp, export)
	return cmd
}

func printTree(w io.Writer, t memory.Tree, stats memory.Stats, refined memory.RefinedIndex) {
	printf(w, "%d fragments, %d characters\n", stats.Count, stats.TotalChars)
	for _, y := range t {
		printf(w, "%s (%d)\n", y.Year, y.Count())
		for _, m := range y.Months {
			mark := ""
			if _, ok := refined[memory.MonthKey(y.Year, m.Month)]; ok {
				mark = " *refined*"
			}
			printf(w, "  %s (%d)%s\n", m.Month, len(m.Fragments), mark)
			for _, f := range m.Fragments {
				printf(w, "    %s  %s\n", f.Date, f.Summary)
			}
		}
	}
}

func readInput(stdin io.Reader, arg string) (string, error) {
	if arg == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(arg)
	return string(b), err
}
