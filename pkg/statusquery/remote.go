package statusquery

import (
    "context"
    "encoding/json"
    "fmt"

    "github.com/amirimatin/go-clustercheck/pkg/transport"
)

// Remote reads node membership from a status agent's /nodes endpoint.
type Remote struct {
    Client transport.RPCClient
    Addr   string
}

func NewRemote(c transport.RPCClient, addr string) *Remote { return &Remote{Client: c, Addr: addr} }

func (r *Remote) Query(ctx context.Context) ([]NodeStatus, error) {
    b, err := r.Client.GetNodes(ctx, r.Addr)
    if err != nil { return nil, fmt.Errorf("statusquery: agent %s: %w", r.Addr, err) }
    var out []NodeStatus
    if err := json.Unmarshal(b, &out); err != nil {
        return nil, fmt.Errorf("statusquery: agent %s: decode: %w", r.Addr, err)
    }
    return out, nil
}

// Handler adapts q to a transport.NodesFunc for an agent.
func Handler(q StatusQuery) transport.NodesFunc {
    return func(ctx context.Context) ([]byte, error) {
        st, err := q.Query(ctx)
        if err != nil { return nil, err }
        if st == nil { st = []NodeStatus{} }
        return json.Marshal(st)
    }
}

var _ StatusQuery = (*Remote)(nil)
