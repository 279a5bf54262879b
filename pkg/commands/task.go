package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/taskly/pkg/commands/options"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/runner/tasks"
	"tableflip.dev/taskly/pkg/timeutil"
)

func addTask(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks", "todo"},
		Short:   "Manage your personal task inbox.",
	}

	addTaskAdd(cmd)
	addTaskRemove(cmd)
	addTaskList(cmd)

	topLevel.AddCommand(cmd)
}

func addTaskAdd(topLevel *cobra.Command) {
	ko := &options.IDOptions{}
	title, description, due := "", "", ""

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task to your inbox.",
		Example: `
taskly task add buy milk
taskly task add --due tomorrow --description "the oat one" buy milk
`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("requires a task")
			}
			title = strings.Join(args, " ")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDue(due)
			if err != nil {
				return err
			}
			return run(cmd, ko.ShowID, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				u, err := e.user()
				if err != nil {
					return err
				}
				a := tasks.Add{UserID: u.ID, Title: title, Description: description, Due: d, Inbox: e.inbox(), Printer: pp}
				return a.Do(ctx)
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Describe the task.")
	cmd.Flags().StringVar(&due, "due", "", "An optional reminder day, example: --due=2024-06-01 or --due=tomorrow.")
	options.AddShowIDArgs(cmd, ko)
	topLevel.AddCommand(cmd)
}

func addTaskRemove(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "rm <task-id>",
		Aliases: []string{"delete", "done"},
		Short:   "Remove a task from your inbox.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, false, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				u, err := e.user()
				if err != nil {
					return err
				}
				r := tasks.Remove{UserID: u.ID, TaskID: args[0], Inbox: e.inbox(), Printer: pp}
				return r.Do(ctx)
			})
		},
	}
	topLevel.AddCommand(cmd)
}

func addTaskList(topLevel *cobra.Command) {
	ko := &options.IDOptions{}

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List your inbox, oldest first.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, ko.ShowID, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				u, err := e.user()
				if err != nil {
					return err
				}
				l := tasks.List{UserID: u.ID, Inbox: e.inbox(), Printer: pp}
				return l.Do(ctx)
			})
		},
	}

	options.AddShowIDArgs(cmd, ko)
	topLevel.AddCommand(cmd)
}

// parseDue reads an optional due day.
func parseDue(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return timeutil.ParseDay(raw, time.Now(), time.Local)
}
