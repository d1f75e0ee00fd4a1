package main

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bdobrica/aether/internal/aether/app"
	"github.com/bdobrica/aether/internal/aether/chat"
)

// terminalObserver prints reply chunks and recall notices as they happen.
type terminalObserver struct {
	w    io.Writer
	name string
}

func (o terminalObserver) StatusChanged(st chat.Status) {
	if st.State == chat.StateAwaitingRecall && st.Text != "" {
		printf(o.w, "  (%s)\n", st.Text)
	}
}

func (o terminalObserver) MessageAppended(m chat.Message) {
	switch m.Role {
	case chat.RoleAssistant:
		printf(o.w, "%s: %s\n", o.name, m.Content)
	case chat.RoleSystem:
		printf(o.w, "! %s\n", m.Content)
	}
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <character> [message...]",
		Short: "Send a message and print the reply; without a message, regenerate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				p, err := a.Store().GetCharacter(ctx, args[0])
				if err != nil {
					return err
				}
				a.Engine().SetObserver(terminalObserver{w: cmd.OutOrStdout(), name: p.Name})

				if len(args) == 1 {
					_, err = a.Engine().Regenerate(ctx, p.ID)
					return err
				}
				_, err = a.Engine().Send(ctx, p.ID, chat.Input{Content: strings.Join(args[1:], " ")})
				return err
			})
		},
	}
}
