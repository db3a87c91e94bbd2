package bootstrap

import (
    "context"
    "encoding/json"
    "os"

    obsmetrics "github.com/amirimatin/go-clustercheck/pkg/observability/metrics"
    "github.com/amirimatin/go-clustercheck/pkg/statusquery"
    "github.com/amirimatin/go-clustercheck/pkg/transport"
)

// agentStatus is what an agent reports on /status.
type agentStatus struct {
    Role    string `json:"role"`
    Host    string `json:"host"`
    Command string `json:"command"`
}

// StartAgent serves the local status tool's output on /nodes so a checker
// elsewhere can use it as its status query. It stops when ctx is done.
func StartAgent(ctx context.Context, cfg Config) (transport.RPCServer, error) {
    sh, err := NewShell(cfg)
    if err != nil { return nil, err }
    srv, _, err := NewTransport(cfg)
    if err != nil { return nil, err }
    q := statusquery.NewCommand(sh, cfg.ControlAddr, cfg.StatusCommand)
    serveNodes := statusquery.Handler(q)
    nodes := func(ctx context.Context) ([]byte, error) {
        b, err := serveNodes(ctx)
        if err != nil {
            obsmetrics.AgentQueries.WithLabelValues("error").Inc()
            return nil, err
        }
        obsmetrics.AgentQueries.WithLabelValues("ok").Inc()
        return b, nil
    }
    host, _ := os.Hostname()
    info, err := json.Marshal(agentStatus{Role: "agent", Host: host, Command: q.Command})
    if err != nil { return nil, err }
    status := func(context.Context) ([]byte, error) { return info, nil }
    if err := srv.Start(ctx, status, nodes); err != nil { return nil, err }
    return srv, nil
}
