package cli

import (
    "context"
    "time"

    "github.com/benbjohnson/clock"
    "github.com/spf13/cobra"

    "github.com/amirimatin/go-clustercheck/pkg/bootstrap"
    "github.com/amirimatin/go-clustercheck/pkg/cluster"
    "github.com/amirimatin/go-clustercheck/pkg/internal/logutil"
)

// NewWatchCmd returns the "watch" command: refresh periodically, log state
// changes and deviations, and serve the management API meanwhile.
func NewWatchCmd(g *globals) *cobra.Command {
    var interval time.Duration
    cmd := &cobra.Command{
        Use:   "watch",
        Short: "Refresh cluster state periodically and serve it over the management API",
        RunE: func(cmd *cobra.Command, args []string) error {
            e, err := g.load()
            if err != nil { return err }
            defer e.shutdown()
            if interval <= 0 { interval = e.cfg.Watch.Interval }
            ctx, cancel := signalContext()
            defer cancel()

            c, err := bootstrap.Build(ctx, e.bootstrap())
            if err != nil { return err }
            defer c.Close()
            if err := c.Serve(ctx); err != nil { return err }

            var events <-chan cluster.Event
            _ = c.Do(func(m *cluster.Model) error { events = m.Subscribe(ctx); return nil })
            go logEvents(e, events)

            return watch(ctx, c, clock.New(), interval, e)
        },
    }
    cmd.Flags().DurationVar(&interval, "interval", 0, "refresh interval (default from config)")
    return cmd
}

// watch runs until ctx is done. A refresh error is logged and retried on the
// next tick; a successful refresh is checked and then accepted as the
// baseline, so each report shows what changed since the previous tick.
func watch(ctx context.Context, c *bootstrap.Checker, clk clock.Clock, interval time.Duration, e *env) error {
    if err := c.Do(func(m *cluster.Model) error { return m.Init(ctx) }); err != nil {
        logutil.Errorf(e.logger, "initial refresh: %v", err)
    }
    t := clk.Ticker(interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return nil
        case <-t.C:
            _ = c.Do(func(m *cluster.Model) error {
                if err := m.Refresh(ctx); err != nil {
                    logutil.Errorf(e.logger, "refresh: %v", err)
                    return err
                }
                if r := m.Check(true); r.Passed {
                    logutil.Infof(e.logger, "cluster state unchanged %s", r.Dump)
                }
                m.SyncExpectedToActual()
                return nil
            })
        }
    }
}

func logEvents(e *env, events <-chan cluster.Event) {
    for ev := range events {
        fields := ""
        for k, v := range ev.Details { fields += " " + k + "=" + v }
        logutil.Infof(e.logger, "event %s node=%d%s", ev.Type, ev.Node, fields)
    }
}
