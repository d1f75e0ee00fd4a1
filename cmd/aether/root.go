package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bdobrica/aether/common/version"
	"github.com/bdobrica/aether/internal/aether/app"
	"github.com/bdobrica/aether/internal/aether/observability"
)

type rootOptions struct {
	configPath string
	dbPath     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "aether",
		Short:         "Companion chat core with tiered character memory",
		Version:       version.Info(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (YAML or JSON)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (overrides config)")

	root.AddCommand(
		newServeCmd(opts),
		newCharacterCmd(opts),
		newMemoryCmd(opts),
		newChatCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// withApp loads configuration, builds the app and runs fn against it. The
// app is always stopped afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := app.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.dbPath != "" {
		cfg.DatabasePath = opts.dbPath
	}

	var logger *slog.Logger
	if cmd.Name() == "serve" {
		logger = observability.Setup(cfg.Log.Level, cfg.Log.Format)
	} else {
		// One-shot commands print results to stdout; keep logs to warnings.
		level := cfg.Log.Level
		if level == "info" {
			level = "warn"
		}
		logger = observability.SetupWriter(cmd.ErrOrStderr(), level, cfg.Log.Format)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Stop()
	return fn(ctx, a)
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
