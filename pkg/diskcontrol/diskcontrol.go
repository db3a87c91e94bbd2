package diskcontrol

import (
    "context"
    "fmt"
    "strconv"
    "strings"

    "github.com/amirimatin/go-clustercheck/pkg/shell"
)

// DiskControl is the quorum lever: it reads and sets the number of active
// disks through a given node. Both calls return the cluster-wide active disk
// total as reported by that node.
type DiskControl interface {
    Query(ctx context.Context, node int) (int, error)
    Set(ctx context.Context, node int, count int) (int, error)
}

// Default command templates. %s is the node host, %d the requested count.
const (
    DefaultQueryCommand = "/opt/cluster/bin/diskctl --host %s --count"
    DefaultSetCommand   = "/opt/cluster/bin/diskctl --host %s --set %d"
)

// Command runs disk control templates through a Shell on the node's host.
type Command struct {
    Shell    shell.Shell
    Hostname func(node int) string
    QueryCmd string
    SetCmd   string
}

// NewCommand returns a shell-backed DiskControl; hostname maps node ids to
// hosts the shell can reach.
func NewCommand(sh shell.Shell, hostname func(int) string, queryCmd, setCmd string) *Command {
    if queryCmd == "" { queryCmd = DefaultQueryCommand }
    if setCmd == "" { setCmd = DefaultSetCommand }
    return &Command{Shell: sh, Hostname: hostname, QueryCmd: queryCmd, SetCmd: setCmd}
}

func (c *Command) Query(ctx context.Context, node int) (int, error) {
    host := c.Hostname(node)
    out, err := c.Shell.Exec(ctx, host, fmt.Sprintf(c.QueryCmd, host))
    if err != nil { return 0, fmt.Errorf("diskcontrol: query node %d: %w", node, err) }
    return ParseCount(out)
}

func (c *Command) Set(ctx context.Context, node int, count int) (int, error) {
    if count < 0 { return 0, fmt.Errorf("diskcontrol: negative disk count %d", count) }
    host := c.Hostname(node)
    out, err := c.Shell.Exec(ctx, host, fmt.Sprintf(c.SetCmd, host, count))
    if err != nil { return 0, fmt.Errorf("diskcontrol: set node %d to %d: %w", node, count, err) }
    return ParseCount(out)
}

// ParseCount parses the single integer a disk control command prints. Only
// the last non-blank line is considered so banners are tolerated.
func ParseCount(out string) (int, error) {
    lines := strings.Split(strings.TrimSpace(out), "\n")
    last := strings.TrimSpace(lines[len(lines)-1])
    n, err := strconv.Atoi(last)
    if err != nil { return 0, fmt.Errorf("diskcontrol: unparsable disk count %q: %w", last, err) }
    if n < 0 { return 0, fmt.Errorf("diskcontrol: negative disk count %d", n) }
    return n, nil
}

var _ DiskControl = (*Command)(nil)
