package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	conclavemcp "github.com/rendis/conclave/pkg/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the collaboration as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			seq, hub, err := a.newSequencer(nil)
			if err != nil {
				return err
			}
			defer seq.Close()

			srv := conclavemcp.NewConclaveServer(conclavemcp.ConclaveServerDeps{
				Runner: seq,
				Hub:    hub,
				Logger: a.logger,
				BinDir: binDir(),
			})
			a.logger.Info("mcp serving on stdio", "script", seq.Script().Name)
			return srv.Serve(ctx)
		},
	}
}
