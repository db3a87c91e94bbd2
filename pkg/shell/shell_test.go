package shell

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestLocal_EchoIgnoresHost(t *testing.T) {
    out, err := Local{}.Exec(context.Background(), "hcb101", "echo hello")
    require.NoError(t, err)
    assert.Equal(t, "hello\n", out)
}

func TestLocal_NonZeroExit(t *testing.T) {
    _, err := Local{}.Exec(context.Background(), "", "echo boom >&2; exit 3")
    var ee *ExitError
    require.True(t, errors.As(err, &ee), "want ExitError, got %v", err)
    assert.Equal(t, 3, ee.Code)
    assert.Equal(t, "boom", ee.Stderr)
}

func TestLocal_ContextCancel(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
    defer cancel()
    _, err := Local{}.Exec(ctx, "", "sleep 5")
    require.Error(t, err)
}

func TestNewSSH_Validation(t *testing.T) {
    _, err := NewSSH(SSHOptions{})
    require.Error(t, err)
    _, err = NewSSH(SSHOptions{User: "root"})
    require.Error(t, err)
    s, err := NewSSH(SSHOptions{User: "root", Password: "x"})
    require.NoError(t, err)
    assert.Equal(t, "hcb101:22", s.addr("hcb101"))
    assert.Equal(t, "10.0.0.1:2222", s.addr("10.0.0.1:2222"))
}
