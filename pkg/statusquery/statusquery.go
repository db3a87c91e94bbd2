package statusquery

import (
    "bufio"
    "context"
    "fmt"
    "strconv"
    "strings"

    "github.com/amirimatin/go-clustercheck/pkg/shell"
)

// NodeStatus is one node's coarse membership as seen by the status path.
// Node is the numeric node identifier reported by the tool (e.g. 101).
type NodeStatus struct {
    Node      int  `json:"node"`
    InCluster bool `json:"inCluster"`
}

// StatusQuery reports per-node cluster membership over a path independent of
// the verifier. It is used only to cross-check the verifier.
type StatusQuery interface {
    Query(ctx context.Context) ([]NodeStatus, error)
}

// DefaultCommand is the status tool used when none is configured.
const DefaultCommand = "/opt/cluster/bin/hwstat -n"

// Command runs a status tool on the control host and parses its output.
type Command struct {
    Shell   shell.Shell
    Host    string
    Command string
}

// NewCommand returns a shell-backed StatusQuery.
func NewCommand(sh shell.Shell, host, command string) *Command {
    if command == "" { command = DefaultCommand }
    return &Command{Shell: sh, Host: host, Command: command}
}

func (c *Command) Query(ctx context.Context) ([]NodeStatus, error) {
    out, err := c.Shell.Exec(ctx, c.Host, c.Command)
    if err != nil { return nil, fmt.Errorf("statusquery: %w", err) }
    return Parse(out)
}

// Parse reads "<node> <state>" lines. Lines whose first field carries no node
// number (headings, separators) are skipped. A node prefix like "NODE-101" is
// accepted. States ONLINE, IN, MEMBER and IN_CLUSTER mean membership.
func Parse(out string) ([]NodeStatus, error) {
    var res []NodeStatus
    seen := make(map[int]struct{})
    s := bufio.NewScanner(strings.NewReader(out))
    for s.Scan() {
        line := strings.TrimSpace(s.Text())
        if line == "" || strings.HasPrefix(line, "#") { continue }
        fields := strings.Fields(line)
        id, ok := nodeNumber(fields[0])
        if !ok { continue }
        if len(fields) < 2 { return nil, fmt.Errorf("statusquery: no state for node %d in %q", id, line) }
        if _, dup := seen[id]; dup { return nil, fmt.Errorf("statusquery: node %d reported twice", id) }
        seen[id] = struct{}{}
        res = append(res, NodeStatus{Node: id, InCluster: isMemberState(fields[1])})
    }
    if err := s.Err(); err != nil { return nil, err }
    return res, nil
}

func nodeNumber(tok string) (int, bool) {
    i := strings.LastIndexAny(tok, "-_")
    if i >= 0 { tok = tok[i+1:] }
    n, err := strconv.Atoi(tok)
    if err != nil || n <= 0 { return 0, false }
    return n, true
}

func isMemberState(s string) bool {
    switch strings.ToUpper(strings.Trim(s, "[]:,")) {
    case "ONLINE", "IN", "MEMBER", "IN_CLUSTER":
        return true
    }
    return false
}

var _ StatusQuery = (*Command)(nil)
