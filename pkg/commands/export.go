package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/runner/events"
)

func addExport(topLevel *cobra.Command) {
	file := ""

	cmd := &cobra.Command{
		Use:   "export <calendar-id>",
		Short: "Write a calendar as iCalendar (.ics).",
		Example: `
taskly export 0d4e6f5a > family.ics
taskly export 0d4e6f5a --file family.ics
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, false, func(ctx context.Context, e *env, _ *printers.PrettyPrint) error {
				out := cmd.OutOrStdout()
				if file != "" {
					f, err := os.Create(file)
					if err != nil {
						return err
					}
					defer f.Close()
					out = f
				}
				x := events.Export{CalendarID: args[0], Registry: e.registry(), Schedule: e.schedule(), Out: out}
				return x.Do(ctx)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Write to this file instead of stdout.")
	topLevel.AddCommand(cmd)
}

func addImport(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "import <calendar-id> <file.ics|->",
		Short: "Add the events of an iCalendar file to a calendar.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("import: %w", err)
				}
				defer f.Close()
				in = f
			}
			return run(cmd, false, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				i := events.Import{CalendarID: args[0], In: in, Registry: e.registry(), Schedule: e.schedule(), Printer: pp}
				return i.Do(ctx)
			})
		},
	}
	topLevel.AddCommand(cmd)
}
