package commands

import (
	"context"

	"github.com/spf13/cobra"

	"tableflip.dev/taskly/pkg/commands/options"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/runner/promote"
)

func addPromote(topLevel *cobra.Command) {
	co := &options.CalendarOptions{}
	ao := &options.AtOptions{}

	cmd := &cobra.Command{
		Use:   "promote <task-id>",
		Short: "Schedule an inbox task as a one hour event and take it out of the inbox.",
		Long: `Schedule an inbox task as a one hour event and take it out of the inbox.

The event is created first; the task is only removed once the event exists.
If removing the task fails the event is kept and the task stays in the inbox.`,
		Example: `
taskly promote --calendar 0d4e6f5a --at "2024-06-01 10:00" 3b9a61c0
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := co.Require(); err != nil {
				return err
			}
			at, err := ao.GetAt()
			if err != nil {
				return err
			}
			return run(cmd, false, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				client, err := e.client()
				if err != nil {
					return err
				}
				defer client.Close()
				p := promote.Promote{TaskID: args[0], CalendarID: co.CalendarID, At: at, Client: client, Printer: pp}
				return p.Do(ctx)
			})
		},
	}

	options.AddCalendarArgs(cmd, co)
	options.AddAtArgs(cmd, ao, "The slot the event starts at.")
	registerCalendarCompletion(cmd)
	topLevel.AddCommand(cmd)
}
