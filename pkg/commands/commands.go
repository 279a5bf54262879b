package commands

import (
	"github.com/spf13/cobra"

	base "github.com/n3wscott/cli-base/pkg/commands/options"

	"tableflip.dev/taskly/pkg/commands/options"
)

var (
	oo = &options.OutputOptions{}
	ido = &options.IdentityOptions{}
)

func New() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "taskly",
		Short: base.Wrap80("Shared calendars, events with subtasks and a personal task inbox on the command line."),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
	}

	options.AddOutputArg(cmd, oo)
	options.AddIdentityArgs(cmd, ido)

	AddCommands(cmd)
	return cmd
}

func AddCommands(topLevel *cobra.Command) {
	addCalendar(topLevel)
	addEvent(topLevel)
	addSubtask(topLevel)
	addTask(topLevel)
	addPromote(topLevel)
	addWatch(topLevel)
	addExport(topLevel)
	addImport(topLevel)
	addServe(topLevel)
	addVersion(topLevel)
	addCompletions(topLevel)
}
