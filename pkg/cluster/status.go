package cluster

import (
    "context"
    "encoding/json"
    "time"

    "github.com/amirimatin/go-clustercheck/pkg/statusquery"
)

// ClusterStatus is a JSON-serializable snapshot of the model suitable for the
// management /status endpoint and tooling.
type ClusterStatus struct {
    RunID        string `json:"runId"`
    Mode         Mode   `json:"mode"`
    ExpectQuorum bool   `json:"expectQuorum"`
    // Pending one-shot failover expectations.
    ExpectMasterFailover bool      `json:"expectMasterFailover"`
    ExpectViceFailover   bool      `json:"expectViceFailover"`
    MasterID             int       `json:"masterId,omitempty"`
    ViceID               int       `json:"viceId,omitempty"`
    LiveNodes            int       `json:"liveNodes"`
    Nodes                []Node    `json:"nodes"`
    RefreshedAt          time.Time `json:"refreshedAt"`
    Dump                 string    `json:"dump"`
    LastCheck            *Report   `json:"lastCheck,omitempty"`
}

// Status returns the current snapshot.
func (m *Model) Status() *ClusterStatus {
    s := &ClusterStatus{
        RunID:                m.runID,
        Mode:                 m.mode,
        ExpectQuorum:         m.expectQuorum,
        ExpectMasterFailover: m.expectMasterFailover,
        ExpectViceFailover:   m.expectViceFailover,
        LiveNodes:            m.LiveCount(),
        Nodes:                m.Nodes(),
        RefreshedAt:          m.refreshedAt,
        Dump:                 m.Dump(),
    }
    if id, ok := m.MasterID(); ok { s.MasterID = id }
    if id, ok := m.ViceID(); ok { s.ViceID = id }
    if m.lastReport != nil {
        r := *m.lastReport
        s.LastCheck = &r
    }
    return s
}

// StatusJSON matches transport.StatusFunc.
func (m *Model) StatusJSON(context.Context) ([]byte, error) {
    return json.Marshal(m.Status())
}

// Membership reports each node as the status query would: its suffix and
// whether it is alive in the last refresh.
func (m *Model) Membership() []statusquery.NodeStatus {
    out := make([]statusquery.NodeStatus, 0, len(m.nodes))
    for _, n := range m.nodes {
        out = append(out, statusquery.NodeStatus{Node: NodeSuffix(n.ID), InCluster: n.IsAlive()})
    }
    return out
}
