package verifier

import (
    "context"
    "fmt"
    "strings"
    "time"

    "github.com/amirimatin/go-clustercheck/pkg/shell"
)

// Mode selects which daemon stack the verifier inspects.
type Mode string

const (
    ModeCMMOnly Mode = "cmm-only"
    ModeNodeMgr Mode = "node-mgr"
)

// Params are the invocation parameters of one verifier run.
type Params struct {
    // Host is where the verifier runs; empty means the local machine.
    Host          string
    Nodes         int
    RetryTimeout  time.Duration
    RetryInterval time.Duration
    Mode          Mode
    Quorum        bool
}

// Args renders the positional arguments in verifier order.
func (p Params) Args() []string {
    q := "no-quorum"
    if p.Quorum { q = "quorum" }
    return []string{
        fmt.Sprint(p.Nodes),
        fmt.Sprint(int(p.RetryTimeout / time.Second)),
        fmt.Sprint(int(p.RetryInterval / time.Second)),
        string(p.Mode),
        q,
    }
}

// Verifier produces a cluster-wide membership snapshot as text. Any transport
// or exit failure is returned as an error; parsing is the caller's job.
type Verifier interface {
    Verify(ctx context.Context, p Params) (string, error)
}

// DefaultBinary is the verifier command used when none is configured.
const DefaultBinary = "/opt/cluster/bin/cmm_verifier"

// Command runs the verifier binary through a Shell.
type Command struct {
    Shell  shell.Shell
    Binary string
}

// NewCommand returns a shell-backed Verifier.
func NewCommand(sh shell.Shell, binary string) *Command {
    if binary == "" { binary = DefaultBinary }
    return &Command{Shell: sh, Binary: binary}
}

func (c *Command) Verify(ctx context.Context, p Params) (string, error) {
    line := c.Binary + " " + strings.Join(p.Args(), " ")
    out, err := c.Shell.Exec(ctx, p.Host, line)
    if err != nil { return out, fmt.Errorf("verifier: %w", err) }
    return out, nil
}

var _ Verifier = (*Command)(nil)
