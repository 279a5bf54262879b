package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/taskly/pkg/commands/options"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/runner/events"
)

func addSubtask(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "subtask",
		Aliases: []string{"subtasks", "sub"},
		Short:   "Add or remove the checklist items of an event.",
	}

	addSubtaskAdd(cmd)
	addSubtaskRemove(cmd)

	topLevel.AddCommand(cmd)
}

func addSubtaskAdd(topLevel *cobra.Command) {
	co := &options.CalendarOptions{}
	ko := &options.IDOptions{}
	description := ""

	cmd := &cobra.Command{
		Use:   "add <event-id> <title>",
		Short: "Add a subtask to an event.",
		Example: `
taskly subtask add --calendar 0d4e6f5a 7f1c9e2b print the slides
`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := co.Require(); err != nil {
				return err
			}
			return run(cmd, ko.ShowID, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				a := events.AddSubtask{
					CalendarID:  co.CalendarID,
					EventID:     args[0],
					Title:       strings.Join(args[1:], " "),
					Description: description,
					Schedule:    e.schedule(),
					Printer:     pp,
				}
				return a.Do(ctx)
			})
		},
	}

	options.AddCalendarArgs(cmd, co)
	options.AddShowIDArgs(cmd, ko)
	cmd.Flags().StringVarP(&description, "description", "d", "", "Describe the subtask.")
	registerCalendarCompletion(cmd)
	topLevel.AddCommand(cmd)
}

func addSubtaskRemove(topLevel *cobra.Command) {
	co := &options.CalendarOptions{}

	cmd := &cobra.Command{
		Use:     "rm <event-id> <subtask-id>",
		Aliases: []string{"delete"},
		Short:   "Remove a subtask from an event.",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := co.Require(); err != nil {
				return err
			}
			return run(cmd, false, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				r := events.RemoveSubtask{CalendarID: co.CalendarID, EventID: args[0], SubtaskID: args[1], Schedule: e.schedule(), Printer: pp}
				return r.Do(ctx)
			})
		},
	}

	options.AddCalendarArgs(cmd, co)
	registerCalendarCompletion(cmd)
	topLevel.AddCommand(cmd)
}
