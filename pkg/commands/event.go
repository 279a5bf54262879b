package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/taskly/pkg/commands/options"
	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/runner/events"
)

func addEvent(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "event",
		Aliases: []string{"events", "ev"},
		Short:   "Schedule, move and list events of a calendar.",
	}

	addEventAdd(cmd)
	addEventMove(cmd)
	addEventEdit(cmd)
	addEventRemove(cmd)
	addEventList(cmd)
	addEventDay(cmd)

	topLevel.AddCommand(cmd)
}

func addEventAdd(topLevel *cobra.Command) {
	co := &options.CalendarOptions{}
	ao := &options.AtOptions{}
	so := &options.SpanOptions{}
	ko := &options.IDOptions{}
	title, description := "", ""

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add an event to a calendar.",
		Example: `
taskly event add --calendar 0d4e6f5a --at "2024-06-01 10:00" --for 90m team sync
`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("requires a title")
			}
			title = strings.Join(args, " ")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := co.Require(); err != nil {
				return err
			}
			at, err := ao.GetAt()
			if err != nil {
				return err
			}
			span, err := so.GetFor()
			if err != nil {
				return err
			}
			return run(cmd, ko.ShowID, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				a := events.Add{
					CalendarID:  co.CalendarID,
					Title:       title,
					Description: description,
					Start:       at,
					For:         span,
					Schedule:    e.schedule(),
					Printer:     pp,
				}
				return a.Do(ctx)
			})
		},
	}

	options.AddCalendarArgs(cmd, co)
	options.AddAtArgs(cmd, ao, "When the event starts.")
	options.AddSpanArgs(cmd, so)
	options.AddShowIDArgs(cmd, ko)
	cmd.Flags().StringVarP(&description, "description", "d", "", "Describe the event.")
	registerCalendarCompletion(cmd)

	topLevel.AddCommand(cmd)
}

func addEventMove(topLevel *cobra.Command) {
	co := &options.CalendarOptions{}
	ao := &options.AtOptions{}

	cmd := &cobra.Command{
		Use:   "move <event-id>",
		Short: "Move an event to a new start, keeping its duration.",
		Example: `
taskly event move --calendar 0d4e6f5a --at "2024-06-02 15:00" 7f1c9e2b
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
				m := events.Move{CalendarID: co.CalendarID, EventID: args[0], Start: at, Schedule: e.schedule(), Printer: pp}
				return m.Do(ctx)
			})
		},
	}

	options.AddCalendarArgs(cmd, co)
	options.AddAtArgs(cmd, ao, "The new start.")
	registerCalendarCompletion(cmd)

	topLevel.AddCommand(cmd)
}

func addEventEdit(topLevel *cobra.Command) {
	co := &options.CalendarOptions{}
	ao := &options.AtOptions{}
	so := &options.SpanOptions{}
	title, description := "", ""

	cmd := &cobra.Command{
		Use:   "edit <event-id>",
		Short: "Change the title, description, start or length of an event.",
		Example: `
taskly event edit --calendar 0d4e6f5a --title "team retro" --for 2h 7f1c9e2b
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := co.Require(); err != nil {
				return err
			}
			ed := events.Edit{CalendarID: co.CalendarID, EventID: args[0]}
			flags := cmd.Flags()
			if flags.Changed("title") {
				ed.Title = &title
			}
			if flags.Changed("description") {
				ed.Description = &description
			}
			if flags.Changed("at") {
				at, err := ao.GetAt()
				if err != nil {
					return err
				}
				ed.Start = &at
			}
			if flags.Changed("for") {
				span, err := so.GetFor()
				if err != nil {
					return err
				}
				ed.For = &span
			}
			return run(cmd, false, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				ed.Schedule, ed.Printer = e.schedule(), pp
				return ed.Do(ctx)
			})
		},
	}

	options.AddCalendarArgs(cmd, co)
	options.AddAtArgs(cmd, ao, "The new start.")
	options.AddSpanArgs(cmd, so)
	cmd.Flags().StringVar(&title, "title", "", "The new title.")
	cmd.Flags().StringVarP(&description, "description", "d", "", "The new description.")
	registerCalendarCompletion(cmd)

	topLevel.AddCommand(cmd)
}

func addEventRemove(topLevel *cobra.Command) {
	co := &options.CalendarOptions{}

	cmd := &cobra.Command{
		Use:     "rm <event-id>",
		Aliases: []string{"delete"},
		Short:   "Delete an event and its subtasks.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := co.Require(); err != nil {
				return err
			}
			return run(cmd, false, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				r := events.Remove{CalendarID: co.CalendarID, EventID: args[0], Schedule: e.schedule(), Printer: pp}
				return r.Do(ctx)
			})
		},
	}

	options.AddCalendarArgs(cmd, co)
	registerCalendarCompletion(cmd)
	topLevel.AddCommand(cmd)
}

func addEventList(topLevel *cobra.Command) {
	co := &options.CalendarOptions{}
	ko := &options.IDOptions{}
	month := ""

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the events of a calendar.",
		Example: `
taskly event ls --calendar 0d4e6f5a
taskly event ls --calendar 0d4e6f5a --month 2024-06
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := co.Require(); err != nil {
				return err
			}
			var m time.Time
			if month != "" {
				var err error
				if m, err = time.ParseInLocation("2006-01", month, time.Local); err != nil {
					return errors.New("--month wants 2006-01")
				}
			}
			return run(cmd, ko.ShowID, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				l := events.List{CalendarID: co.CalendarID, Month: m, Schedule: e.schedule(), Printer: pp}
				return l.Do(ctx)
			})
		},
	}

	options.AddCalendarArgs(cmd, co)
	options.AddShowIDArgs(cmd, ko)
	cmd.Flags().StringVar(&month, "month", "", "Only one month, shown with a month grid. Example: --month=2024-06.")
	registerCalendarCompletion(cmd)
	topLevel.AddCommand(cmd)
}

func addEventDay(topLevel *cobra.Command) {
	co := &options.CalendarOptions{}
	do := &options.DayOptions{}
	ko := &options.IDOptions{}

	cmd := &cobra.Command{
		Use:   "day",
		Short: "List the events touching one day.",
		Example: `
taskly event day --calendar 0d4e6f5a
taskly event day --calendar 0d4e6f5a --on 2024-06-01
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := co.Require(); err != nil {
				return err
			}
			day, err := do.GetOn()
			if err != nil {
				return err
			}
			return run(cmd, ko.ShowID, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				d := events.Day{CalendarID: co.CalendarID, Day: day, Schedule: e.schedule(), Printer: pp}
				return d.Do(ctx)
			})
		},
	}

	options.AddCalendarArgs(cmd, co)
	options.AddDayArgs(cmd, do)
	options.AddShowIDArgs(cmd, ko)
	registerCalendarCompletion(cmd)
	topLevel.AddCommand(cmd)
}
