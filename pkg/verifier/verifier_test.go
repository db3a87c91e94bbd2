package verifier

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

type recordingShell struct {
    host, cmd string
    out       string
    err       error
}

func (r *recordingShell) Exec(_ context.Context, host, cmd string) (string, error) {
    r.host, r.cmd = host, cmd
    return r.out, r.err
}

func TestParamsArgs(t *testing.T) {
    p := Params{Nodes: 8, RetryTimeout: 90 * time.Second, RetryInterval: 5 * time.Second, Mode: ModeNodeMgr, Quorum: true}
    assert.Equal(t, []string{"8", "90", "5", "node-mgr", "quorum"}, p.Args())
    p.Quorum = false
    p.Mode = ModeCMMOnly
    assert.Equal(t, []string{"8", "90", "5", "cmm-only", "no-quorum"}, p.Args())
}

func TestCommand_RendersAndRunsOnHost(t *testing.T) {
    sh := &recordingShell{out: "CLUSTER CONSISTENT\n"}
    v := NewCommand(sh, "")
    out, err := v.Verify(context.Background(), Params{Host: "admin", Nodes: 4, RetryTimeout: time.Minute, RetryInterval: 2 * time.Second, Mode: ModeCMMOnly})
    require.NoError(t, err)
    assert.Equal(t, "CLUSTER CONSISTENT\n", out)
    assert.Equal(t, "admin", sh.host)
    assert.Equal(t, DefaultBinary+" 4 60 2 cmm-only no-quorum", sh.cmd)
}

func TestCommand_WrapsShellError(t *testing.T) {
    boom := errors.New("boom")
    v := NewCommand(&recordingShell{err: boom}, "/bin/v")
    _, err := v.Verify(context.Background(), Params{})
    require.ErrorIs(t, err, boom)
}
