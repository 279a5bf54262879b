package commands

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tableflip.dev/taskly/pkg/commands/options"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/runner/watch"
)

func addWatch(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a calendar or your inbox as it changes.",
	}

	addWatchCalendar(cmd)
	addWatchInbox(cmd)

	topLevel.AddCommand(cmd)
}

// redraw reports whether output goes to a terminal that can be cleared.
func redraw(cmd *cobra.Command) bool {
	if cmd.OutOrStdout() != os.Stdout {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func addWatchCalendar(topLevel *cobra.Command) {
	ko := &options.IDOptions{}

	cmd := &cobra.Command{
		Use:   "calendar <calendar-id>",
		Short: "Follow the events of a calendar.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, ko.ShowID, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				client, err := e.client()
				if err != nil {
					return err
				}
				defer client.Close()
				ctx, stop := interruptible(ctx)
				defer stop()
				w := watch.Watch{CalendarID: args[0], Client: client, Printer: pp, Redraw: redraw(cmd)}
				return w.Do(ctx)
			})
		},
	}

	options.AddShowIDArgs(cmd, ko)
	topLevel.AddCommand(cmd)
}

func addWatchInbox(topLevel *cobra.Command) {
	ko := &options.IDOptions{}

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Follow your task inbox.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, ko.ShowID, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				client, err := e.client()
				if err != nil {
					return err
				}
				defer client.Close()
				ctx, stop := interruptible(ctx)
				defer stop()
				w := watch.Watch{Inbox: true, Client: client, Printer: pp, Redraw: redraw(cmd)}
				return w.Do(ctx)
			})
		},
	}

	options.AddShowIDArgs(cmd, ko)
	topLevel.AddCommand(cmd)
}
