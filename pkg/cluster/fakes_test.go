package cluster

import (
    "context"
    "errors"
    "fmt"
    "io"
    "log"
    "strings"
    "testing"

    "github.com/benbjohnson/clock"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-clustercheck/pkg/probe"
    "github.com/amirimatin/go-clustercheck/pkg/statusquery"
    "github.com/amirimatin/go-clustercheck/pkg/verifier"
)

// fakeVerifier replays outputs in order; the last one repeats.
type fakeVerifier struct {
    outputs []string
    errs    []error
    calls   int
    params  []verifier.Params
}

func (f *fakeVerifier) Verify(_ context.Context, p verifier.Params) (string, error) {
    i := f.calls
    f.calls++
    f.params = append(f.params, p)
    var err error
    if i < len(f.errs) { err = f.errs[i] }
    if i >= len(f.outputs) { i = len(f.outputs) - 1 }
    if i < 0 { return "", err }
    return f.outputs[i], err
}

func (f *fakeVerifier) set(outputs ...string) {
    f.outputs = outputs
    f.errs = nil
    f.calls = 0
    f.params = nil
}

type fakeStatus struct {
    statuses []statusquery.NodeStatus
    err      error
    calls    int
}

func (f *fakeStatus) Query(context.Context) ([]statusquery.NodeStatus, error) {
    f.calls++
    return f.statuses, f.err
}

// fakeDisks keeps per-node counts and reports their sum, like a cluster that
// applies every request; short makes it drop that many disks from the total.
type fakeDisks struct {
    counts map[int]int
    sets   [][2]int
    short  int
    err    error
}

func (f *fakeDisks) total() int {
    t := 0
    for _, c := range f.counts { t += c }
    return t - f.short
}

func (f *fakeDisks) Query(_ context.Context, node int) (int, error) { return f.total(), f.err }

func (f *fakeDisks) Set(_ context.Context, node, count int) (int, error) {
    if f.err != nil { return 0, f.err }
    if f.counts == nil { f.counts = make(map[int]int) }
    f.counts[node] = count
    f.sets = append(f.sets, [2]int{node, count})
    return f.total(), nil
}

// fakeProber reports hosts in down as unreachable.
type fakeProber struct{ down map[string]bool }

func (f fakeProber) Probe(_ context.Context, host string) error {
    if f.down[host] { return fmt.Errorf("%w: %s", probe.ErrUnreachable, host) }
    return nil
}

var errTransport = errors.New("ssh: connection reset")

// verifierOut wraps node lines in the verifier's framing.
func verifierOut(lines ...string) string {
    return "waiting for cluster to settle...\nretrying in 5s\n" + ConsistentMarker + "\n" +
        "NODE  DISKS  STATUS  ROLE  SERVICES  MASTER_SERVICES\n" + strings.Join(lines, "\n") + "\n"
}

// nodeLine renders one data line; role is "", "master" or "vicemaster".
func nodeLine(id int, alive bool, role string) string {
    st := "dead"
    if alive { st = "alive" }
    l := fmt.Sprintf("%d [4] %s", NodeSuffix(id), st)
    if role != "" { l += " " + role }
    return l + " [sys,data] [" + role + "]"
}

// healthy renders n live nodes with master on 1 and vice on 2.
func healthy(n int) string {
    var lines []string
    for id := 1; id <= n; id++ {
        role := ""
        switch id {
        case 1:
            role = "master"
        case 2:
            role = "vicemaster"
        }
        lines = append(lines, nodeLine(id, true, role))
    }
    return verifierOut(lines...)
}

type harness struct {
    m      *Model
    v      *fakeVerifier
    sq     *fakeStatus
    disks  *fakeDisks
    prober *fakeProber
    clk    *clock.Mock
}

func newHarness(t *testing.T, size int, mode Mode) *harness {
    t.Helper()
    h := &harness{
        v:      &fakeVerifier{outputs: []string{healthy(size)}},
        sq:     &fakeStatus{},
        disks:  &fakeDisks{},
        prober: &fakeProber{down: map[string]bool{}},
        clk:    clock.NewMock(),
    }
    for id := 1; id <= size; id++ {
        h.sq.statuses = append(h.sq.statuses, statusquery.NodeStatus{Node: NodeSuffix(id), InCluster: true})
    }
    m, err := New(context.Background(), Options{
        ClusterSize: size,
        Mode:        mode,
        ControlAddr: "admin",
        Verifier:    h.v,
        StatusQuery: h.sq,
        DiskControl: h.disks,
        Prober:      h.prober,
        Logger:      log.New(io.Discard, "", 0),
        Clock:       h.clk,
        RunID:       "test-run",
    })
    require.NoError(t, err)
    h.m = m
    return h
}

// baseline refreshes the healthy output and accepts it as expected.
func (h *harness) baseline(t *testing.T) {
    t.Helper()
    require.NoError(t, h.m.Init(context.Background()))
    h.v.calls = 0
    h.v.params = nil
}
