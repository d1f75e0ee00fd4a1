package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bdobrica/aether/common/redact"
	"github.com/bdobrica/aether/internal/aether/app"
	"github.com/bdobrica/aether/internal/aether/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write runtime settings (endpoint URL, model, API key)",
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting (secrets are masked)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				v, err := a.Settings().Get(ctx, args[0])
				if errors.Is(err, config.ErrNotFound) {
					return fmt.Errorf("%s is not set", args[0])
				}
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "%s\n", redact.Settings(map[string]string{args[0]: v})[args[0]])
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting; an empty value restores the boot value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Settings().Set(ctx, args[0], args[1]); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "%s updated\n", args[0])
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored settings (secrets are masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				all, err := a.Settings().List(ctx)
				if err != nil {
					return err
				}
				masked := redact.Settings(all)
				keys := make([]string, 0, len(masked))
				for k := range masked {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					printf(cmd.OutOrStdout(), "%s=%s\n", k, masked[k])
				}
				return nil
			})
		},
	}

	cmd.AddCommand(get, set, list)
	return cmd
}
