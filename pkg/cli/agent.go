package cli

import (
    "context"
    "fmt"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-clustercheck/pkg/bootstrap"
)

// NewAgentCmd returns the "agent" command, run on a host that can execute the
// status tool. Checkers configured with status.kind=agent read from it.
func NewAgentCmd(g *globals) *cobra.Command {
    return &cobra.Command{
        Use:   "agent",
        Short: "Serve the local status tool over the management API",
        RunE: func(cmd *cobra.Command, args []string) error {
            e, err := g.load()
            if err != nil { return err }
            defer e.shutdown()
            ctx, cancel := signalContext()
            defer cancel()

            srv, err := bootstrap.StartAgent(ctx, e.bootstrap())
            if err != nil { return err }
            defer srv.Stop(context.Background())
            fmt.Fprintf(cmd.OutOrStdout(), "status agent listening on %s. Press Ctrl+C to exit.\n", srv.Addr())
            <-ctx.Done()
            return nil
        },
    }
}
