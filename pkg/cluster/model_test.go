package cluster

import (
    "bytes"
    "context"
    "errors"
    "io"
    "log"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-clustercheck/pkg/statusquery"
    "github.com/amirimatin/go-clustercheck/pkg/topology/static"
    "github.com/amirimatin/go-clustercheck/pkg/verifier"
)

func TestNew_Validation(t *testing.T) {
    v := &fakeVerifier{}
    cases := map[string]Options{
        "no mode":          {ClusterSize: 3, Verifier: v},
        "too large":        {ClusterSize: MaxNodes + 1, Mode: ModeCMMOnly, Verifier: v},
        "zero size":        {ClusterSize: 0, Mode: ModeCMMOnly, Verifier: v},
        "no verifier":      {ClusterSize: 3, Mode: ModeCMMOnly},
        "full needs query": {ClusterSize: 3, Mode: ModeFullStack, Verifier: v},
        "auto no topology": {ClusterSize: AutoDiscover, Mode: ModeCMMOnly, Verifier: v},
        "bad fraction":     {ClusterSize: 3, Mode: ModeCMMOnly, Verifier: v, QuorumFraction: 1.5},
    }
    for name, opts := range cases {
        t.Run(name, func(t *testing.T) {
            _, err := New(context.Background(), opts)
            assert.Error(t, err)
        })
    }
}

func TestNew_AutoDiscoverSize(t *testing.T) {
    topo := static.New("hcb101", "hcb102", "hcb103", "hcb104")
    m, err := New(context.Background(), Options{
        ClusterSize: AutoDiscover,
        Mode:        ModeCMMOnly,
        Verifier:    &fakeVerifier{},
        Topology:    topo,
        Logger:      log.New(io.Discard, "", 0),
    })
    require.NoError(t, err)
    assert.Equal(t, 4, m.Size())
    assert.NotEmpty(t, m.RunID())
    n, ok := m.Node(4)
    require.True(t, ok)
    assert.Equal(t, "hcb104", n.Hostname)
}

func TestNew_AutoDiscoverWarnsOnForeignNames(t *testing.T) {
    var buf bytes.Buffer
    m, err := New(context.Background(), Options{
        ClusterSize: AutoDiscover,
        Mode:        ModeCMMOnly,
        Verifier:    &fakeVerifier{},
        Topology:    static.New("hcb101.lab:22", "10.0.0.7", "hcb103"),
        Logger:      log.New(&buf, "", 0),
    })
    require.NoError(t, err)
    assert.Equal(t, 3, m.Size())
    assert.Contains(t, buf.String(), "do not include [hcb102]")

    assert.Empty(t, unlistedHosts("hcb", []string{"hcb102", "hcb101.lab"}))
    assert.Equal(t, []string{"lab102"}, unlistedHosts("lab", []string{"lab101", "hcb102"}))
}

func TestInit_AcceptsBaseline(t *testing.T) {
    h := newHarness(t, 3, ModeFullStack)
    h.baseline(t)

    assert.True(t, h.m.HasExpectedState(true))
    id, ok := h.m.MasterID()
    assert.True(t, ok)
    assert.Equal(t, 1, id)
    id, ok = h.m.ViceID()
    assert.True(t, ok)
    assert.Equal(t, 2, id)
    assert.Equal(t, 3, h.m.LiveCount())
    assert.Equal(t, "actual=[1.M.up 2.V.up 3.-.up ] expected=[1.M.up 2.V.up 3.-.up ]", h.m.Dump())

    n, _ := h.m.Node(1)
    assert.Equal(t, "sys,data", n.Services)
    assert.Equal(t, "master", n.MasterServices)
}

func TestRefresh_VerifierParams(t *testing.T) {
    h := newHarness(t, 3, ModeFullStack)
    h.baseline(t)
    require.NoError(t, h.m.Refresh(context.Background()))
    require.Len(t, h.v.params, 1)
    assert.Equal(t, verifier.Params{
        Host:          "admin",
        Nodes:         3,
        RetryTimeout:  DefaultVerifierRetryBudget,
        RetryInterval: DefaultVerifierRetryInterval,
        Mode:          verifier.ModeNodeMgr,
        Quorum:        true,
    }, h.v.params[0])

    h.m.SetExpectQuorum(false)
    require.NoError(t, h.m.Refresh(context.Background()))
    assert.False(t, h.v.params[1].Quorum)
}

func TestRefresh_CMMModeSkipsCrossCheck(t *testing.T) {
    h := newHarness(t, 3, ModeCMMWithSniffer)
    h.sq.err = errTransport
    h.baseline(t)
    assert.Equal(t, 0, h.sq.calls)
    require.NoError(t, h.m.Refresh(context.Background()))
    assert.Equal(t, verifier.ModeCMMOnly, h.v.params[0].Mode)
}

func TestRefresh_RetriesOnce(t *testing.T) {
    h := newHarness(t, 3, ModeFullStack)
    h.baseline(t)

    h.v.set("no marker here\n", healthy(3))
    require.NoError(t, h.m.Refresh(context.Background()))
    assert.Equal(t, 2, h.v.calls)

    h.v.set(healthy(3))
    h.v.errs = []error{errTransport}
    require.NoError(t, h.m.Refresh(context.Background()))
    assert.Equal(t, 2, h.v.calls)
}

func TestRefresh_VerificationErrorLeavesState(t *testing.T) {
    h := newHarness(t, 3, ModeFullStack)
    h.baseline(t)
    before := h.m.Nodes()

    h.v.set("still settling\n", "still settling\n", healthy(3))
    err := h.m.Refresh(context.Background())
    var ve *VerificationError
    require.ErrorAs(t, err, &ve)
    assert.Equal(t, 2, ve.Attempts)
    assert.ErrorIs(t, err, ErrInconsistentView)
    assert.Contains(t, ve.Dump, "1.M.up")
    // no third attempt
    assert.Equal(t, 2, h.v.calls)
    assert.Equal(t, before, h.m.Nodes())
}

func TestRefresh_CancelledStopsAfterOneAttempt(t *testing.T) {
    h := newHarness(t, 3, ModeCMMOnly)
    h.baseline(t)

    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    h.v.set("still settling\n", healthy(3))
    err := h.m.Refresh(ctx)
    var ve *VerificationError
    require.ErrorAs(t, err, &ve)
    assert.Equal(t, 1, ve.Attempts)
    assert.Equal(t, 1, h.v.calls)
}

func TestRefresh_UnknownNodes(t *testing.T) {
    h := newHarness(t, 3, ModeCMMOnly)
    h.baseline(t)

    h.v.set(verifierOut(
        nodeLine(1, true, "master"), nodeLine(2, true, "vicemaster"), nodeLine(3, true, ""),
        nodeLine(7, false, ""),
    ))
    require.NoError(t, h.m.Refresh(context.Background()))

    h.v.set(verifierOut(
        nodeLine(1, true, "master"), nodeLine(2, true, "vicemaster"), nodeLine(3, true, ""),
        nodeLine(7, true, ""),
    ))
    err := h.m.Refresh(context.Background())
    assert.ErrorIs(t, err, ErrUnknownLiveNode)
}

func TestRefresh_MissingNodeFails(t *testing.T) {
    h := newHarness(t, 3, ModeCMMOnly)
    h.baseline(t)
    h.v.set(verifierOut(nodeLine(1, true, "master"), nodeLine(2, true, "vicemaster")))
    err := h.m.Refresh(context.Background())
    assert.ErrorIs(t, err, ErrMissingNode)
}

func TestRefresh_DeadNodeDownOrOut(t *testing.T) {
    h := newHarness(t, 3, ModeCMMOnly)
    h.baseline(t)

    h.prober.down["hcb103"] = true
    h.v.set(verifierOut(nodeLine(1, true, "master"), nodeLine(2, false, ""), nodeLine(3, false, "")))
    require.NoError(t, h.m.Refresh(context.Background()))

    n2, _ := h.m.Node(2)
    n3, _ := h.m.Node(3)
    assert.Equal(t, Flags{Out: true}, n2.Actual)
    assert.Equal(t, Flags{Down: true}, n3.Actual)
    assert.False(t, n2.IsAlive())
    assert.False(t, n3.IsAlive())
    assert.Equal(t, 1, h.m.LiveCount())
}

func TestRefresh_CrossCheckDivergence(t *testing.T) {
    h := newHarness(t, 3, ModeFullStack)
    h.baseline(t)
    before := h.m.Nodes()

    // verifier still sees node 3 alive, the status query does not
    h.sq.statuses[2].InCluster = false
    err := h.m.Refresh(context.Background())
    var cc *CrossCheckError
    require.ErrorAs(t, err, &cc)
    require.Len(t, cc.Mismatches, 1)
    assert.Contains(t, cc.Mismatches[0], "node 3")
    assert.Equal(t, before, h.m.Nodes())
}

func TestRefresh_CrossCheckMissingStatusIsNotInCluster(t *testing.T) {
    h := newHarness(t, 3, ModeFullStack)
    h.baseline(t)

    h.sq.statuses = []statusquery.NodeStatus{{Node: 101, InCluster: true}, {Node: 102, InCluster: true}}
    h.v.set(verifierOut(nodeLine(1, true, "master"), nodeLine(2, true, "vicemaster"), nodeLine(3, false, "")))
    require.NoError(t, h.m.Refresh(context.Background()))
}

func TestRefresh_StatusQueryFailure(t *testing.T) {
    h := newHarness(t, 3, ModeFullStack)
    h.baseline(t)
    before := h.m.Nodes()

    h.sq.err = errTransport
    h.v.set(verifierOut(nodeLine(1, true, "master"), nodeLine(2, true, "vicemaster"), nodeLine(3, false, "")))
    err := h.m.Refresh(context.Background())
    var ce *CollaboratorError
    require.ErrorAs(t, err, &ce)
    assert.True(t, errors.Is(err, errTransport))
    assert.Equal(t, before, h.m.Nodes())
}

func TestMarkCalls(t *testing.T) {
    h := newHarness(t, 3, ModeCMMOnly)
    h.baseline(t)

    require.NoError(t, h.m.MarkDown(2))
    require.NoError(t, h.m.MarkOffline(3))
    assert.ErrorIs(t, h.m.MarkDown(4), ErrUnknownNode)
    assert.ErrorIs(t, h.m.MarkOnline(0), ErrUnknownNode)

    n2, _ := h.m.Node(2)
    n3, _ := h.m.Node(3)
    assert.Equal(t, Flags{Vice: true, Down: true}, n2.Expected)
    assert.Equal(t, Flags{Out: true}, n3.Expected)
    assert.False(t, h.m.HasExpectedState(false))

    require.NoError(t, h.m.MarkUp(2))
    require.NoError(t, h.m.MarkOnline(3))
    assert.True(t, h.m.HasExpectedState(false))
}

func TestSubscribe_PublishesChanges(t *testing.T) {
    h := newHarness(t, 3, ModeCMMOnly)
    h.baseline(t)

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    ch := h.m.Subscribe(ctx)

    h.prober.down["hcb101"] = true
    h.v.set(verifierOut(nodeLine(1, false, ""), nodeLine(2, true, "master"), nodeLine(3, true, "vicemaster")))
    require.NoError(t, h.m.Refresh(context.Background()))

    got := map[EventType][]int{}
    timeout := time.After(time.Second)
    for len(got[EventNodeDown])+len(got[EventMasterChanged])+len(got[EventViceChanged]) < 5 {
        select {
        case ev := <-ch:
            got[ev.Type] = append(got[ev.Type], ev.Node)
            assert.Equal(t, h.clk.Now(), ev.At)
        case <-timeout:
            t.Fatalf("missing events, got %v", got)
        }
    }
    assert.Equal(t, []int{1}, got[EventNodeDown])
    assert.ElementsMatch(t, []int{1, 2}, got[EventMasterChanged])
    assert.ElementsMatch(t, []int{2, 3}, got[EventViceChanged])
}
