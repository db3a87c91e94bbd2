package cluster

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/benbjohnson/clock"
    "github.com/google/uuid"
    "go.opentelemetry.io/otel/attribute"

    "github.com/amirimatin/go-clustercheck/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/go-clustercheck/pkg/observability/metrics"
    "github.com/amirimatin/go-clustercheck/pkg/observability/tracing"
    "github.com/amirimatin/go-clustercheck/pkg/probe"
    "github.com/amirimatin/go-clustercheck/pkg/topology"
    "github.com/amirimatin/go-clustercheck/pkg/verifier"
)

// Model tracks the expected topology and roles of the cluster under test and
// reconciles them against what the verifier and the status query report.
//
// A Model is not safe for concurrent use; one test flow drives one Model.
type Model struct {
    opts  Options
    log   *log.Logger
    clk   clock.Clock
    runID string

    // nodes[i] holds node id i+1; the length never changes after New.
    nodes []Node

    mode                 Mode
    expectQuorum         bool
    expectMasterFailover bool
    expectViceFailover   bool
    // quorumMinApplied is set by GainQuorumMin, which LoseQuorumMin builds on.
    quorumMinApplied bool

    refreshedAt time.Time
    lastReport  *Report

    eb eventBus
}

// New constructs a Model. With ClusterSize == AutoDiscover the Topology is
// queried for the size; otherwise no collaborator is contacted. Call Init to
// take the first snapshot as the expected baseline.
func New(ctx context.Context, opts Options) (*Model, error) {
    if err := opts.Validate(); err != nil {
        return nil, err
    }
    opts.applyDefaults()
    size := opts.ClusterSize
    if size == AutoDiscover {
        hosts, err := topology.Discover(ctx, opts.Topology)
        if err != nil { return nil, fmt.Errorf("cluster: discover size: %w", err) }
        if len(hosts) > MaxNodes { return nil, fmt.Errorf("cluster: discovered %d nodes, more than %d", len(hosts), MaxNodes) }
        size = len(hosts)
        if unlisted := unlistedHosts(opts.HostPrefix, hosts); len(unlisted) > 0 {
            logutil.Warnf(opts.Logger, "discovered hosts %v do not include %v; probes and disk control use the conventional names", hosts, unlisted)
        }
    }
    if opts.RunID == "" { opts.RunID = uuid.NewString() }
    m := &Model{
        opts:         opts,
        log:          opts.Logger,
        clk:          opts.Clock,
        runID:        opts.RunID,
        mode:         opts.Mode,
        expectQuorum: !opts.StartWithoutQuorum,
        nodes:        make([]Node, size),
    }
    for i := range m.nodes {
        m.nodes[i] = newNode(i+1, opts.HostPrefix)
    }
    obsmetrics.Register()
    logutil.Infof(m.log, "run %s: tracking %d nodes in %s mode", m.runID, size, m.mode)
    return m, nil
}

// unlistedHosts returns the conventional node names, for ids 1..len(hosts),
// that the discovered list does not contain.
func unlistedHosts(prefix string, hosts []string) []string {
    listed := make(map[string]bool, len(hosts))
    for _, h := range hosts { listed[topology.ShortName(h)] = true }
    var out []string
    for id := 1; id <= len(hosts); id++ {
        if name := HostnameFor(prefix, id); !listed[name] { out = append(out, name) }
    }
    return out
}

// Init refreshes and accepts the result as the expected baseline.
func (m *Model) Init(ctx context.Context) error {
    if err := m.Refresh(ctx); err != nil { return err }
    m.SyncExpectedToActual()
    return nil
}

// reach is a node's reachability according to the liveness probe.
type reach int

const (
    reachUnknown reach = iota
    reachable
    unreachable
)

// Refresh pulls the actual state of every node: a best-effort liveness probe,
// then the verifier (retried once), then, in full-stack mode, a cross-check
// against the status query. Actual state changes only when every step
// succeeds.
func (m *Model) Refresh(ctx context.Context) error {
    ctx, end := tracing.StartSpan(ctx, "cluster.refresh", attribute.String("mode", m.mode.String()), attribute.Int("nodes", len(m.nodes)))
    defer end()
    start := m.clk.Now()
    defer func() { obsmetrics.RefreshDuration.Observe(m.clk.Since(start).Seconds()) }()

    reaches := m.probe(ctx)

    next, err := m.verify(ctx, reaches)
    if err != nil {
        obsmetrics.Refreshes.WithLabelValues("verification_error").Inc()
        tracing.RecordError(ctx, err)
        logutil.Errorf(m.log, "run %s: %v", m.runID, err)
        return err
    }

    if m.mode.crossChecks() {
        if err := m.crossCheck(ctx, next); err != nil {
            var cc *CrossCheckError
            if errors.As(err, &cc) {
                obsmetrics.CrossCheckFailures.Inc()
                obsmetrics.Refreshes.WithLabelValues("crosscheck_error").Inc()
            } else {
                obsmetrics.Refreshes.WithLabelValues("collaborator_error").Inc()
            }
            tracing.RecordError(ctx, err)
            logutil.Errorf(m.log, "run %s: %v", m.runID, err)
            return err
        }
    }

    m.commit(next)
    obsmetrics.Refreshes.WithLabelValues("ok").Inc()
    logutil.Infof(m.log, "run %s: refreshed %s", m.runID, dumpNodes(m.nodes, false))
    return nil
}

func (m *Model) probe(ctx context.Context) []reach {
    out := make([]reach, len(m.nodes))
    if m.opts.Prober == nil { return out }
    for i, n := range m.nodes {
        err := m.opts.Prober.Probe(ctx, n.Hostname)
        switch {
        case err == nil:
            out[i] = reachable
        case errors.Is(err, probe.ErrUnreachable):
            out[i] = unreachable
            logutil.Infof(m.log, "probe: %s unreachable", n.Hostname)
        default:
            logutil.Warnf(m.log, "probe: %s: %v", n.Hostname, err)
        }
    }
    return out
}

// verify runs the verifier and maps its output onto a copy of the nodes. A
// failure of either step is retried exactly once.
func (m *Model) verify(ctx context.Context, reaches []reach) ([]Node, error) {
    params := verifier.Params{
        Host:          m.verifierHost(),
        Nodes:         len(m.nodes),
        RetryTimeout:  m.opts.VerifierRetryBudget,
        RetryInterval: m.opts.VerifierRetryInterval,
        Mode:          m.mode.verifierMode(),
        Quorum:        m.expectQuorum,
    }
    const attempts = 2
    var (
        lastErr error
        tried   int
    )
    for attempt := 1; attempt <= attempts; attempt++ {
        tried = attempt
        out, err := m.opts.Verifier.Verify(ctx, params)
        if err == nil {
            var next []Node
            if next, err = m.snapshot(out, reaches); err == nil {
                obsmetrics.VerifierAttempts.WithLabelValues("ok").Inc()
                return next, nil
            }
        }
        obsmetrics.VerifierAttempts.WithLabelValues("failed").Inc()
        lastErr = err
        if ctx.Err() != nil { break }
        if attempt < attempts {
            logutil.Warnf(m.log, "run %s: verifier attempt %d failed, retrying: %v", m.runID, attempt, err)
        }
    }
    return nil, &VerificationError{Attempts: tried, Err: lastErr, Dump: m.Dump()}
}

func (m *Model) verifierHost() string {
    if m.opts.VerifierAddr != "" { return m.opts.VerifierAddr }
    return m.opts.ControlAddr
}

// snapshot parses verifier output into a new node slice without touching m.
func (m *Model) snapshot(out string, reaches []reach) ([]Node, error) {
    obs, err := parseVerifierOutput(out)
    if err != nil { return nil, err }
    next := append([]Node(nil), m.nodes...)
    seen := make([]bool, len(next))
    for _, o := range obs {
        id := IDFromSuffix(o.suffix)
        if id < 1 || id > len(next) {
            if o.alive {
                return nil, fmt.Errorf("%w: node %d reported alive, cluster has %d nodes", ErrUnknownLiveNode, o.suffix, len(next))
            }
            continue
        }
        n := &next[id-1]
        a := Flags{Master: o.master, Vice: o.vice}
        if !o.alive {
            if reaches[id-1] == unreachable {
                a.Down = true
            } else {
                a.Out = true
            }
        }
        n.Actual = a
        n.Services = o.services
        n.MasterServices = o.masterServices
        seen[id-1] = true
    }
    for i, ok := range seen {
        if !ok { return nil, fmt.Errorf("%w: node %d", ErrMissingNode, NodeSuffix(i+1)) }
    }
    return next, nil
}

// crossCheck compares the verifier view in next with the status query.
func (m *Model) crossCheck(ctx context.Context, next []Node) error {
    ctx, end := tracing.StartSpan(ctx, "cluster.crosscheck")
    defer end()
    statuses, err := m.opts.StatusQuery.Query(ctx)
    if err != nil {
        return &CollaboratorError{Op: "status query", Err: err, Dump: m.Dump()}
    }
    inCluster := make(map[int]bool, len(statuses))
    for _, st := range statuses { inCluster[IDFromSuffix(st.Node)] = st.InCluster }
    var mismatches []string
    for _, n := range next {
        if got := inCluster[n.ID]; got != n.IsAlive() {
            mismatches = append(mismatches, fmt.Sprintf("node %d: status query in-cluster=%t, verifier alive=%t", n.ID, got, n.IsAlive()))
        }
    }
    if len(mismatches) > 0 {
        return &CrossCheckError{Mismatches: mismatches, Observed: dumpNodes(next, false), Dump: m.Dump()}
    }
    return nil
}

func (m *Model) commit(next []Node) {
    now := m.clk.Now()
    for i := range next {
        m.publishChanges(now, m.nodes[i], next[i])
    }
    m.nodes = next
    m.refreshedAt = now
    obsmetrics.AliveNodes.Set(float64(m.LiveCount()))
}

// SyncExpectedToActual accepts the last refresh as the new baseline and
// clears both pending failover expectations.
func (m *Model) SyncExpectedToActual() {
    for i := range m.nodes {
        m.nodes[i].syncExpectedToActual()
    }
    m.expectMasterFailover = false
    m.expectViceFailover = false
}

// ExpectMasterFailover arms the one-shot master failover check consumed by
// the next mastership comparison.
func (m *Model) ExpectMasterFailover() { m.expectMasterFailover = true }

// ExpectViceFailover arms the one-shot vice failover check.
func (m *Model) ExpectViceFailover() { m.expectViceFailover = true }

// MarkDown records that node id is expected to be unreachable.
func (m *Model) MarkDown(id int) error {
    return m.withNode(id, func(n *Node) { n.Expected.Down = true })
}

// MarkUp records that node id is expected to be reachable again.
func (m *Model) MarkUp(id int) error {
    return m.withNode(id, func(n *Node) { n.Expected.Down = false })
}

// MarkOffline records that node id was stopped and left the cluster.
func (m *Model) MarkOffline(id int) error {
    return m.withNode(id, func(n *Node) { n.markOffline() })
}

// MarkOnline records that node id is expected back in the cluster.
func (m *Model) MarkOnline(id int) error {
    return m.withNode(id, func(n *Node) { n.Expected.Out = false })
}

func (m *Model) withNode(id int, fn func(*Node)) error {
    if id < 1 || id > len(m.nodes) { return fmt.Errorf("%w: %d", ErrUnknownNode, id) }
    fn(&m.nodes[id-1])
    return nil
}

// Node returns a copy of node id.
func (m *Model) Node(id int) (Node, bool) {
    if id < 1 || id > len(m.nodes) { return Node{}, false }
    return m.nodes[id-1], true
}

// Nodes returns a copy of all nodes in id order.
func (m *Model) Nodes() []Node { return append([]Node(nil), m.nodes...) }

// Size is the configured cluster size.
func (m *Model) Size() int { return len(m.nodes) }

// MasterID returns the live node reporting master, when exactly one does.
func (m *Model) MasterID() (int, bool) { return m.soleLive(func(f Flags) bool { return f.Master }) }

// ViceID returns the live node reporting vice, when exactly one does.
func (m *Model) ViceID() (int, bool) { return m.soleLive(func(f Flags) bool { return f.Vice }) }

func (m *Model) soleLive(pred func(Flags) bool) (int, bool) {
    ids := liveWith(m.nodes, pred)
    if len(ids) != 1 { return 0, false }
    return ids[0], true
}

func liveWith(nodes []Node, pred func(Flags) bool) []int {
    var ids []int
    for _, n := range nodes {
        if n.IsAlive() && pred(n.Actual) { ids = append(ids, n.ID) }
    }
    return ids
}

// LiveCount is the number of nodes that are up and members.
func (m *Model) LiveCount() int { return len(m.liveIDs()) }

func (m *Model) liveIDs() []int { return liveWith(m.nodes, func(Flags) bool { return true }) }

func (m *Model) Mode() Mode { return m.mode }

func (m *Model) RunID() string { return m.runID }

func (m *Model) ExpectQuorum() bool { return m.expectQuorum }

// SetExpectQuorum overrides the quorum expectation, e.g. after disks were
// changed outside the model.
func (m *Model) SetExpectQuorum(v bool) { m.expectQuorum = v }

// Dump renders actual and expected state for diagnostics.
func (m *Model) Dump() string {
    return "actual=" + dumpNodes(m.nodes, false) + " expected=" + dumpNodes(m.nodes, true)
}
