package cli

import (
    "context"
    "fmt"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-clustercheck/pkg/bootstrap"
    "github.com/amirimatin/go-clustercheck/pkg/cluster"
)

// NewQuorumCmd returns the "quorum" parent with the disk-lever subcommands.
func NewQuorumCmd(g *globals) *cobra.Command {
    parent := &cobra.Command{Use: "quorum", Short: "Move the cluster across its quorum threshold"}
    ops := []struct {
        use, short string
        fn         func(*cluster.Model, context.Context) (bool, error)
    }{
        {"gain-max", "Enable every disk on every live node", (*cluster.Model).GainQuorumMax},
        {"lose-max", "Disable every disk on every live node", (*cluster.Model).LoseQuorumMax},
        {"gain-min", "Enable just enough disks for quorum", (*cluster.Model).GainQuorumMin},
        {"lose-min", "Enable one disk fewer than gain-min", (*cluster.Model).LoseQuorumMin},
    }
    for _, op := range ops {
        fn := op.fn
        parent.AddCommand(&cobra.Command{
            Use:   op.use,
            Short: op.short,
            RunE: func(cmd *cobra.Command, args []string) error {
                return runQuorum(cmd, g, func(ctx context.Context, m *cluster.Model) (bool, error) { return fn(m, ctx) })
            },
        })
    }

    var nodeCount, disks int
    set := &cobra.Command{
        Use:   "set",
        Short: "Enable a number of disks on the first live nodes and none on the rest",
        RunE: func(cmd *cobra.Command, args []string) error {
            return runQuorum(cmd, g, func(ctx context.Context, m *cluster.Model) (bool, error) {
                return m.SetDiskCount(ctx, nodeCount, disks)
            })
        },
    }
    set.Flags().IntVar(&nodeCount, "node-count", cluster.AllNodes, "live nodes to give disks to, -1 for all")
    set.Flags().IntVar(&disks, "disks", 0, "disks per selected node")
    parent.AddCommand(set)
    return parent
}

// runQuorum refreshes first so the operation sees current live nodes.
func runQuorum(cmd *cobra.Command, g *globals, op func(context.Context, *cluster.Model) (bool, error)) error {
    e, err := g.load()
    if err != nil { return err }
    defer e.shutdown()
    ctx, cancel := signalContext()
    defer cancel()

    c, err := bootstrap.Build(ctx, e.bootstrap())
    if err != nil { return err }
    defer c.Close()

    return c.Do(func(m *cluster.Model) error {
        if err := m.Init(ctx); err != nil { return err }
        ok, err := op(ctx, m)
        if err != nil { return err }
        active, qerr := m.ActiveDisks(ctx)
        if qerr != nil {
            fmt.Fprintf(cmd.OutOrStdout(), "ok=%t expectQuorum=%t\n", ok, m.ExpectQuorum())
        } else {
            fmt.Fprintf(cmd.OutOrStdout(), "ok=%t expectQuorum=%t activeDisks=%d\n", ok, m.ExpectQuorum(), active)
        }
        if !ok { return fmt.Errorf("disk count not applied") }
        return nil
    })
}
