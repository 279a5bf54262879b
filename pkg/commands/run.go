package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"tableflip.dev/taskly/pkg/printers"
)

type runFunc func(ctx context.Context, e *env, pp *printers.PrettyPrint) error

// run opens the configured store, hands it to fn and renders fn's error in
// the selected output format.
func run(cmd *cobra.Command, showID bool, fn runFunc) error {
	cmd.SilenceUsage = true
	pp, err := oo.Printer(showID)
	if err != nil {
		return err
	}
	pp.Out = cmd.OutOrStdout()
	e, err := openEnv()
	if err != nil {
		return oo.HandleError(err)
	}
	defer e.Close()
	return oo.HandleError(fn(cmd.Context(), e, pp))
}

func calendarCompletions(toComplete string) []string {
	e, err := openEnv()
	if err != nil {
		return nil
	}
	defer e.Close()
	u, err := e.user()
	if err != nil {
		return nil
	}
	cals, err := e.registry().Visible(context.Background(), u.Email)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(cals))
	for _, c := range cals {
		out = append(out, c.ID+"\t"+strconv.Quote(c.Name))
	}
	return out
}

func registerCalendarCompletion(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("calendar", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return calendarCompletions(toComplete), cobra.ShellCompDirectiveNoFileComp
	})
}
