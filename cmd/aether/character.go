package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bdobrica/aether/internal/aether/app"
	"github.com/bdobrica/aether/internal/aether/character"
)

func newCharacterCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "character",
		Aliases: []string{"char"},
		Short:   "Manage characters",
	}

	var cardPath string
	add := &cobra.Command{
		Use:   "add -f card.yaml",
		Short: "Create a character from a YAML card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(cardPath)
			if err != nil {
				return err
			}
			defer f.Close()
			p, err := character.LoadProfile(f)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Store().CreateCharacter(ctx, p); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "created %s (%s) with %d fragments\n", p.Name, p.ID, len(p.Memories))
				return nil
			})
		},
	}
	add.Flags().StringVarP(&cardPath, "file", "f", "", "character card (YAML)")
	_ = add.MarkFlagRequired("file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List characters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				chars, err := a.Store().ListCharacters(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
				for _, c := range chars {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Description)
				}
				return tw.Flush()
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a character with its memories and messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Store().DeleteCharacter(ctx, args[0]); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(add, list, rm)
	return cmd
}
