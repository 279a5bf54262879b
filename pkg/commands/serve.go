package commands

import (
	"context"

	"github.com/spf13/cobra"

	"tableflip.dev/taskly/pkg/printers"
	"tableflip.dev/taskly/pkg/server"
)

func addServe(topLevel *cobra.Command) {
	listen := ""

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve calendars, events and inboxes over HTTP.",
		Example: `
taskly serve
taskly serve --listen :8080
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, false, func(ctx context.Context, e *env, pp *printers.PrettyPrint) error {
				addr := e.cfg.Server.Listen
				if listen != "" {
					addr = listen
				}
				ctx, stop := interruptible(ctx)
				defer stop()
				srv := server.New(e.store, server.Options{Logger: e.log, Bus: e.bus, Concurrency: e.cfg.Cascade.Concurrency})
				pp.Note("serving on http://%s", addr)
				return srv.Run(ctx, addr)
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on. Overrides server.listen.")
	topLevel.AddCommand(cmd)
}
