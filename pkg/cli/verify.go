package cli

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-clustercheck/pkg/bootstrap"
    "github.com/amirimatin/go-clustercheck/pkg/cluster"
)

// ErrStateMismatch is returned by verify when the cluster differs from what
// the flags describe.
var ErrStateMismatch = errors.New("cluster state differs from expectation")

// NewVerifyCmd returns the "verify" command: one refresh, then a comparison
// against the given down/out sets with full role checks.
func NewVerifyCmd(g *globals) *cobra.Command {
    var (
        downCSV, outCSV string
        noMastership    bool
        asJSON          bool
    )
    cmd := &cobra.Command{
        Use:   "verify",
        Short: "Refresh cluster state and check it against expected down/out nodes",
        RunE: func(cmd *cobra.Command, args []string) error {
            down, err := parseIDs(downCSV)
            if err != nil { return err }
            out, err := parseIDs(outCSV)
            if err != nil { return err }
            e, err := g.load()
            if err != nil { return err }
            defer e.shutdown()
            ctx, cancel := signalContext()
            defer cancel()

            c, err := bootstrap.Build(ctx, e.bootstrap())
            if err != nil { return err }
            defer c.Close()

            var r cluster.Report
            err = c.Do(func(m *cluster.Model) error {
                if err := expect(ctx, m, down, out); err != nil { return err }
                r = m.Check(!noMastership)
                return nil
            })
            if err != nil { return err }
            if err := printReport(cmd, r, asJSON); err != nil { return err }
            if !r.Passed { return ErrStateMismatch }
            return nil
        },
    }
    cmd.Flags().StringVar(&downCSV, "down", "", "comma-separated node ids expected unreachable")
    cmd.Flags().StringVar(&outCSV, "out", "", "comma-separated node ids expected out of the cluster")
    cmd.Flags().BoolVar(&noMastership, "no-mastership", false, "skip master/vice checks")
    cmd.Flags().BoolVar(&asJSON, "json", false, "print the check report as JSON")
    return cmd
}

// expect takes the current roles as the baseline and replaces the down/out
// expectation of every node with the requested sets.
func expect(ctx context.Context, m *cluster.Model, down, out []int) error {
    for _, id := range append(append([]int(nil), down...), out...) {
        if id < 1 || id > m.Size() { return fmt.Errorf("%w: %d", cluster.ErrUnknownNode, id) }
    }
    if err := m.Init(ctx); err != nil { return err }
    isDown, isOut := toSet(down), toSet(out)
    for id := 1; id <= m.Size(); id++ {
        if isDown[id] { _ = m.MarkDown(id) } else { _ = m.MarkUp(id) }
        if isOut[id] { _ = m.MarkOffline(id) } else { _ = m.MarkOnline(id) }
    }
    return nil
}

func toSet(ids []int) map[int]bool {
    s := make(map[int]bool, len(ids))
    for _, id := range ids { s[id] = true }
    return s
}

func printReport(cmd *cobra.Command, r cluster.Report, asJSON bool) error {
    w := cmd.OutOrStdout()
    if asJSON {
        enc := json.NewEncoder(w)
        enc.SetIndent("", "  ")
        return enc.Encode(r)
    }
    result := "PASS"
    if !r.Passed { result = "FAIL" }
    fmt.Fprintf(w, "%s %s\n", result, r.Dump)
    for _, mm := range r.Mismatches { fmt.Fprintf(w, "  mismatch: %s\n", mm) }
    for _, wn := range r.Warnings { fmt.Fprintf(w, "  warning: %s\n", wn) }
    return nil
}
