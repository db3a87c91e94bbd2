package cluster

import (
    "context"
    "fmt"
    "math"

    "go.opentelemetry.io/otel/attribute"

    "github.com/amirimatin/go-clustercheck/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/go-clustercheck/pkg/observability/metrics"
    "github.com/amirimatin/go-clustercheck/pkg/observability/tracing"
)

// AllNodes as nodeCount spreads disks over every live node.
const AllNodes = -1

// SetDiskCount enables disksPerNode disks on the first nodeCount live nodes
// (in id order) and zero on the remaining live nodes, one disk control call
// per node. It returns false when the cluster-wide total reported after the
// last call differs from nodeCount*disksPerNode. A partial application is not
// rolled back.
func (m *Model) SetDiskCount(ctx context.Context, nodeCount, disksPerNode int) (bool, error) {
    ctx, end := tracing.StartSpan(ctx, "cluster.set_disk_count", attribute.Int("nodes", nodeCount), attribute.Int("disks", disksPerNode))
    defer end()
    ok, err := m.setDiskCount(ctx, nodeCount, disksPerNode)
    result := "ok"
    switch {
    case err != nil:
        result = "error"
    case !ok:
        result = "mismatch"
    }
    obsmetrics.DiskCountOps.WithLabelValues(result).Inc()
    return ok, err
}

func (m *Model) setDiskCount(ctx context.Context, nodeCount, disksPerNode int) (bool, error) {
    if m.opts.DiskControl == nil { return false, ErrNoDiskControl }
    if disksPerNode < 0 { return false, fmt.Errorf("cluster: negative disk count %d", disksPerNode) }
    live := m.liveIDs()
    if len(live) == 0 {
        logutil.Errorf(m.log, "run %s: set disk count: %v; state %s", m.runID, ErrNoLiveNodes, m.Dump())
        return false, nil
    }
    if nodeCount == AllNodes { nodeCount = len(live) }
    if nodeCount < 0 || nodeCount > len(live) {
        return false, fmt.Errorf("cluster: %d nodes requested, %d live", nodeCount, len(live))
    }
    target := nodeCount * disksPerNode

    total := 0
    for i, id := range live {
        count := 0
        if i < nodeCount { count = disksPerNode }
        got, err := m.opts.DiskControl.Set(ctx, id, count)
        if err != nil {
            return false, &CollaboratorError{Op: fmt.Sprintf("disk control set node %d to %d", id, count), Err: err, Dump: m.Dump()}
        }
        total = got
    }
    if total != target {
        logutil.Errorf(m.log, "run %s: requested %d disks (%d nodes x %d), cluster reports %d active", m.runID, target, nodeCount, disksPerNode, total)
        return false, nil
    }
    logutil.Infof(m.log, "run %s: %d disks active (%d nodes x %d)", m.runID, total, nodeCount, disksPerNode)
    return true, nil
}

// GainQuorumMax enables every disk on every live node.
func (m *Model) GainQuorumMax(ctx context.Context) (bool, error) {
    return m.quorumOp(ctx, "gain_max", true, AllNodes, m.opts.DisksPerNode)
}

// LoseQuorumMax disables every disk on every live node.
func (m *Model) LoseQuorumMax(ctx context.Context) (bool, error) {
    return m.quorumOp(ctx, "lose_max", false, AllNodes, 0)
}

// GainQuorumMin enables the fewest disks that should cross the quorum
// threshold, all requested through one node.
func (m *Model) GainQuorumMin(ctx context.Context) (bool, error) {
    ok, err := m.quorumOp(ctx, "gain_min", true, 1, m.minQuorumDisks())
    if ok { m.quorumMinApplied = true }
    return ok, err
}

// LoseQuorumMin requests one disk fewer than GainQuorumMin, just under the
// threshold. It is only meaningful right after GainQuorumMin.
func (m *Model) LoseQuorumMin(ctx context.Context) (bool, error) {
    if !m.quorumMinApplied {
        logutil.Warnf(m.log, "run %s: lose-quorum-min without a preceding gain-quorum-min", m.runID)
    }
    n := m.minQuorumDisks() - 1
    if n < 0 { n = 0 }
    ok, err := m.quorumOp(ctx, "lose_min", false, 1, n)
    if ok { m.quorumMinApplied = false }
    return ok, err
}

func (m *Model) quorumOp(ctx context.Context, op string, quorum bool, nodeCount, disks int) (bool, error) {
    ok, err := m.SetDiskCount(ctx, nodeCount, disks)
    if err == nil && ok {
        m.expectQuorum = quorum
        obsmetrics.QuorumOps.WithLabelValues(op, "ok").Inc()
    } else {
        obsmetrics.QuorumOps.WithLabelValues(op, "failed").Inc()
    }
    return ok, err
}

// minQuorumDisks is ceil(disksPerNode * live * fraction).
func (m *Model) minQuorumDisks() int {
    x := float64(m.opts.DisksPerNode*m.LiveCount()) * m.opts.QuorumFraction
    // tolerate float noise such as 0.7*10 = 7.000000000000001
    return int(math.Ceil(x - 1e-9))
}

// ActiveDisks asks the first live node for the cluster-wide active disks.
func (m *Model) ActiveDisks(ctx context.Context) (int, error) {
    if m.opts.DiskControl == nil { return 0, ErrNoDiskControl }
    live := m.liveIDs()
    if len(live) == 0 { return 0, ErrNoLiveNodes }
    n, err := m.opts.DiskControl.Query(ctx, live[0])
    if err != nil {
        return 0, &CollaboratorError{Op: fmt.Sprintf("disk control query node %d", live[0]), Err: err, Dump: m.Dump()}
    }
    return n, nil
}
