package cluster

import (
    "bytes"
    "context"
    "log"
    "strings"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestQuorumMinSequence(t *testing.T) {
    h := newHarness(t, 8, ModeCMMOnly)
    h.baseline(t)
    ctx := context.Background()
    assert.Equal(t, 24, h.m.minQuorumDisks())

    ok, err := h.m.LoseQuorumMax(ctx)
    require.NoError(t, err)
    require.True(t, ok)
    assert.False(t, h.m.ExpectQuorum())

    h.disks.sets = nil
    ok, err = h.m.GainQuorumMin(ctx)
    require.NoError(t, err)
    require.True(t, ok)
    assert.True(t, h.m.ExpectQuorum())
    require.Len(t, h.disks.sets, 8)
    assert.Equal(t, [2]int{1, 24}, h.disks.sets[0])
    for _, s := range h.disks.sets[1:] {
        assert.Equal(t, 0, s[1])
    }

    ok, err = h.m.LoseQuorumMin(ctx)
    require.NoError(t, err)
    require.True(t, ok)
    assert.False(t, h.m.ExpectQuorum())
    assert.Equal(t, [2]int{1, 23}, h.disks.sets[8])

    ok, err = h.m.GainQuorumMax(ctx)
    require.NoError(t, err)
    require.True(t, ok)
    assert.True(t, h.m.ExpectQuorum())
    n, err := h.m.ActiveDisks(ctx)
    require.NoError(t, err)
    assert.Equal(t, 32, n)

    // the next verifier run is told quorum is expected
    require.NoError(t, h.m.Refresh(ctx))
    assert.True(t, h.v.params[0].Quorum)
}

func TestLoseQuorumMin_WithoutGainWarns(t *testing.T) {
    h := newHarness(t, 8, ModeCMMOnly)
    h.baseline(t)
    var buf bytes.Buffer
    h.m.log = log.New(&buf, "", 0)
    ctx := context.Background()
    const warning = "lose-quorum-min without a preceding gain-quorum-min"

    ok, err := h.m.LoseQuorumMin(ctx)
    require.NoError(t, err)
    require.True(t, ok)
    require.Len(t, h.disks.sets, 8)
    assert.Equal(t, [2]int{1, 23}, h.disks.sets[0])
    assert.False(t, h.m.ExpectQuorum())
    assert.Equal(t, 1, strings.Count(buf.String(), warning))

    // a gain/lose pair is silent, the next lose warns again
    _, err = h.m.GainQuorumMin(ctx)
    require.NoError(t, err)
    _, err = h.m.LoseQuorumMin(ctx)
    require.NoError(t, err)
    assert.Equal(t, 1, strings.Count(buf.String(), warning))

    ok, err = h.m.LoseQuorumMin(ctx)
    require.NoError(t, err)
    require.True(t, ok)
    assert.Equal(t, 2, strings.Count(buf.String(), warning))
}

func TestSetDiskCount_ShortTotal(t *testing.T) {
    h := newHarness(t, 4, ModeCMMOnly)
    h.baseline(t)
    h.disks.short = 1

    ok, err := h.m.LoseQuorumMax(context.Background())
    require.NoError(t, err)
    assert.False(t, ok)
    // unchanged on failure
    assert.True(t, h.m.ExpectQuorum())
}

func TestSetDiskCount_SkipsDeadNodes(t *testing.T) {
    h := newHarness(t, 8, ModeCMMOnly)
    h.baseline(t)
    lines := []string{nodeLine(1, true, "master"), nodeLine(2, true, "vicemaster"), nodeLine(3, false, "")}
    for id := 4; id <= 8; id++ {
        lines = append(lines, nodeLine(id, true, ""))
    }
    h.v.set(verifierOut(lines...))
    require.NoError(t, h.m.Refresh(context.Background()))

    assert.Equal(t, 21, h.m.minQuorumDisks())
    ok, err := h.m.SetDiskCount(context.Background(), AllNodes, 4)
    require.NoError(t, err)
    assert.True(t, ok)
    require.Len(t, h.disks.sets, 7)
    for _, s := range h.disks.sets {
        assert.NotEqual(t, 3, s[0])
        assert.Equal(t, 4, s[1])
    }
}

func TestSetDiskCount_Errors(t *testing.T) {
    h := newHarness(t, 3, ModeCMMOnly)
    h.baseline(t)
    ctx := context.Background()

    _, err := h.m.SetDiskCount(ctx, 4, 4)
    assert.Error(t, err)

    h.disks.err = errTransport
    _, err = h.m.GainQuorumMax(ctx)
    var ce *CollaboratorError
    require.ErrorAs(t, err, &ce)
    assert.ErrorIs(t, err, errTransport)
    _, err = h.m.ActiveDisks(ctx)
    assert.ErrorIs(t, err, errTransport)

    h.m.opts.DiskControl = nil
    _, err = h.m.GainQuorumMin(ctx)
    assert.ErrorIs(t, err, ErrNoDiskControl)
    _, err = h.m.ActiveDisks(ctx)
    assert.ErrorIs(t, err, ErrNoDiskControl)
}

func TestSetDiskCount_NoLiveNodes(t *testing.T) {
    h := newHarness(t, 2, ModeCMMOnly)
    h.v.set(verifierOut(nodeLine(1, false, ""), nodeLine(2, false, "")))
    require.NoError(t, h.m.Init(context.Background()))

    ok, err := h.m.GainQuorumMax(context.Background())
    require.NoError(t, err)
    assert.False(t, ok)
    assert.Empty(t, h.disks.sets)
    _, err = h.m.ActiveDisks(context.Background())
    assert.ErrorIs(t, err, ErrNoLiveNodes)
}
