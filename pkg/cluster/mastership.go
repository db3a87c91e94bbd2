package cluster

import (
    "context"
    "fmt"

    "go.opentelemetry.io/otel/attribute"

    "github.com/amirimatin/go-clustercheck/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/go-clustercheck/pkg/observability/metrics"
    "github.com/amirimatin/go-clustercheck/pkg/observability/tracing"
)

// Report is the outcome of one expected-vs-actual comparison. Mismatches fail
// the comparison; Warnings record ambiguity that a double failure or an
// unknown prior state can legitimately produce.
type Report struct {
    Passed          bool     `json:"passed"`
    CheckMastership bool     `json:"checkMastership"`
    MasterFailover  bool     `json:"masterFailover,omitempty"`
    ViceFailover    bool     `json:"viceFailover,omitempty"`
    Masters         []int    `json:"masters,omitempty"`
    Vices           []int    `json:"vices,omitempty"`
    Mismatches      []string `json:"mismatches,omitempty"`
    Warnings        []string `json:"warnings,omitempty"`
    Dump            string   `json:"dump"`
}

func (r *Report) mismatch(f string, args ...any) { r.Mismatches = append(r.Mismatches, fmt.Sprintf(f, args...)) }
func (r *Report) warn(f string, args ...any)     { r.Warnings = append(r.Warnings, fmt.Sprintf(f, args...)) }

// HasExpectedState reports whether every node is down/out as expected and,
// with checkMastership, whether roles moved as expected and exactly one live
// master and one live vice exist. Pending failover expectations are consumed.
func (m *Model) HasExpectedState(checkMastership bool) bool {
    return m.Check(checkMastership).Passed
}

// Check is HasExpectedState with the full diagnostic report.
func (m *Model) Check(checkMastership bool) Report {
    _, end := tracing.StartSpan(context.Background(), "cluster.check", attribute.Bool("mastership", checkMastership))
    defer end()

    r := Report{CheckMastership: checkMastership}
    for _, n := range m.nodes {
        if n.Expected.Down != n.Actual.Down {
            r.mismatch("node %d: expected down=%t, actual down=%t", n.ID, n.Expected.Down, n.Actual.Down)
        }
        if n.Expected.Out != n.Actual.Out {
            r.mismatch("node %d: expected out=%t, actual out=%t", n.ID, n.Expected.Out, n.Actual.Out)
        }
    }
    if checkMastership {
        m.compareMastership(&r)
    }
    r.Passed = len(r.Mismatches) == 0
    r.Dump = m.Dump()
    m.record(&r)
    return r
}

// compareMastership applies the failover policy per node, then the
// cluster-wide role count. The failover flags are cleared afterwards whatever
// the outcome.
func (m *Model) compareMastership(r *Report) {
    masterFailover, viceFailover := m.expectMasterFailover, m.expectViceFailover
    m.expectMasterFailover, m.expectViceFailover = false, false
    r.MasterFailover, r.ViceFailover = masterFailover, viceFailover

    for _, n := range m.nodes {
        exp, act := n.Expected, n.Actual
        if act.Master && act.Vice {
            r.mismatch("node %d: reports both master and vice", n.ID)
        }

        if masterFailover {
            switch {
            case exp.Master && act.Master:
                r.mismatch("node %d: still master after expected master failover", n.ID)
            case exp.Vice && !act.Master:
                // neither may be elected after a double failure
                if n.IsAlive() {
                    r.warn("node %d: vice did not take over as master", n.ID)
                }
            case !exp.Master && !exp.Vice && act.Master:
                r.warn("node %d: became master in place of the vice", n.ID)
            }
        } else {
            switch {
            case exp.Master && !act.Master:
                r.mismatch("node %d: lost expected master role", n.ID)
            case !exp.Master && act.Master:
                r.warn("node %d: unexpectedly master", n.ID)
            }
        }

        if viceFailover {
            switch {
            case exp.Vice && act.Vice:
                r.mismatch("node %d: still vice after expected vice failover", n.ID)
            case !exp.Vice && act.Vice:
                logutil.Infof(m.log, "node %d: took over as vice", n.ID)
            }
        } else {
            switch {
            case exp.Vice && !act.Vice && masterFailover && act.Master:
                // promoted by the master failover
            case exp.Vice && !act.Vice:
                r.mismatch("node %d: lost expected vice role", n.ID)
            case !exp.Vice && act.Vice:
                r.warn("node %d: unexpectedly vice", n.ID)
            }
        }
    }

    r.Masters = liveWith(m.nodes, func(f Flags) bool { return f.Master })
    r.Vices = liveWith(m.nodes, func(f Flags) bool { return f.Vice })
    if len(r.Masters) != 1 {
        r.mismatch("expected exactly one live master, found %d %v", len(r.Masters), r.Masters)
    }
    if len(r.Vices) != 1 {
        r.mismatch("expected exactly one live vice, found %d %v", len(r.Vices), r.Vices)
    }
}

func (m *Model) record(r *Report) {
    for _, w := range r.Warnings {
        logutil.Warnf(m.log, "run %s: %s", m.runID, w)
    }
    obsmetrics.Warnings.Add(float64(len(r.Warnings)))
    if r.Passed {
        obsmetrics.StateChecks.WithLabelValues("pass").Inc()
    } else {
        obsmetrics.StateChecks.WithLabelValues("fail").Inc()
        obsmetrics.Mismatches.Add(float64(len(r.Mismatches)))
        for _, mm := range r.Mismatches {
            logutil.Errorf(m.log, "run %s: %s", m.runID, mm)
        }
        logutil.Errorf(m.log, "run %s: cluster state %s", m.runID, r.Dump)
    }
    cp := *r
    m.lastReport = &cp
}
