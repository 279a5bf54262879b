package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/taskly/pkg/commands/options"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/runner/calendars"
)

func addCalendar(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "calendar",
		Aliases: []string{"calendars", "cal"},
		Short:   "Create, share and delete calendars.",
	}

	addCalendarCreate(cmd)
	addCalendarList(cmd)
	addCalendarShare(cmd)
	addCalendarUnshare(cmd)
	addCalendarRename(cmd)
	addCalendarDelete(cmd)

	topLevel.AddCommand(cmd)
}

func addCalendarCreate(topLevel *cobra.Command) {
	ko := &options.IDOptions{}
	name := ""

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a calendar owned by you.",
		Example: `
taskly calendar create Family
`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("requires a name")
			}
			name = strings.Join(args, " ")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, ko.ShowID, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				u, err := e.user()
				if err != nil {
					return err
				}
				c := calendars.Create{Owner: u.Email, Name: name, Registry: e.registry(), Printer: pp}
				return c.Do(ctx)
			})
		},
	}

	options.AddShowIDArgs(cmd, ko)
	topLevel.AddCommand(cmd)
}

func addCalendarList(topLevel *cobra.Command) {
	ko := &options.IDOptions{}
	owned := false

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the calendars you are a member of.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, ko.ShowID, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				u, err := e.user()
				if err != nil {
					return err
				}
				l := calendars.List{Email: u.Email, Owned: owned, Registry: e.registry(), Printer: pp}
				return l.Do(ctx)
			})
		},
	}

	cmd.Flags().BoolVar(&owned, "owned", false, "Only calendars you own.")
	options.AddShowIDArgs(cmd, ko)
	topLevel.AddCommand(cmd)
}

func addCalendarShare(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "share <calendar-id> <email>",
		Short: "Add a member to a calendar.",
		Example: `
taskly calendar share 0d4e6f5a bob@example.com
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, false, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				s := calendars.Share{CalendarID: args[0], Email: args[1], Registry: e.registry(), Printer: pp}
				return s.Do(ctx)
			})
		},
	}
	topLevel.AddCommand(cmd)
}

func addCalendarUnshare(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "unshare <calendar-id> <email>",
		Short: "Remove a member from a calendar. The owner stays.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, false, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				s := calendars.Share{CalendarID: args[0], Email: args[1], Remove: true, Registry: e.registry(), Printer: pp}
				return s.Do(ctx)
			})
		},
	}
	topLevel.AddCommand(cmd)
}

func addCalendarRename(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "rename <calendar-id> <name>",
		Short: "Rename a calendar.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, false, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				r := calendars.Rename{CalendarID: args[0], Name: strings.Join(args[1:], " "), Registry: e.registry(), Printer: pp}
				return r.Do(ctx)
			})
		},
	}
	topLevel.AddCommand(cmd)
}

func addCalendarDelete(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "delete <calendar-id>",
		Short: "Delete a calendar with all of its events.",
		Long: `Delete a calendar with all of its events and their subtasks.

If the delete stops partway the remaining records are listed; running the
same delete again finishes it.`,
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, false, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				d := calendars.Delete{CalendarID: args[0], Registry: e.registry(), Printer: pp}
				return d.Do(ctx)
			})
		},
	}
	topLevel.AddCommand(cmd)
}
