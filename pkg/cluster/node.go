package cluster

import (
    "fmt"
    "strings"
)

const (
    // MaxNodes is the largest node id the verifier may report.
    MaxNodes = 16
    // DefaultHostPrefix names node 1 "hcb101".
    DefaultHostPrefix = "hcb"

    suffixBase = 100
)

// Flags is one side (expected or actual) of a node's state. Master and Vice
// are mutually exclusive.
type Flags struct {
    Master bool `json:"master"`
    Vice   bool `json:"vice"`
    Down   bool `json:"down"`
    Out    bool `json:"out"`
}

func (f Flags) role() string {
    switch {
    case f.Master:
        return "M"
    case f.Vice:
        return "V"
    default:
        return "-"
    }
}

func (f Flags) state() string {
    switch {
    case f.Down && f.Out:
        return "down+out"
    case f.Down:
        return "down"
    case f.Out:
        return "out"
    default:
        return "up"
    }
}

// Node is the record of one physical node. Actual is only ever written by a
// refresh; Expected by fault-injection calls and SyncExpectedToActual.
type Node struct {
    ID       int    `json:"id"`
    Hostname string `json:"hostname"`
    Expected Flags  `json:"expected"`
    Actual   Flags  `json:"actual"`
    // Last-seen service lists, informational only.
    Services       string `json:"services,omitempty"`
    MasterServices string `json:"masterServices,omitempty"`
}

func newNode(id int, prefix string) Node {
    return Node{ID: id, Hostname: HostnameFor(prefix, id)}
}

// IsAlive reports a reachable cluster member.
func (n Node) IsAlive() bool { return !n.Actual.Down && !n.Actual.Out }

// HasExpectedState compares the down and out axes only. Roles are a
// cluster-wide concern and are compared by the model.
func (n Node) HasExpectedState() bool {
    return n.Expected.Down == n.Actual.Down && n.Expected.Out == n.Actual.Out
}

// markOffline records that the node was stopped: it leaves the cluster and
// gives up any role. Reachability is a separate axis.
func (n *Node) markOffline() {
    n.Expected.Master = false
    n.Expected.Vice = false
    n.Expected.Out = true
}

func (n *Node) syncExpectedToActual() { n.Expected = n.Actual }

// String renders "<id>.<role>.<state>" from the actual side.
func (n Node) String() string {
    return fmt.Sprintf("%d.%s.%s", n.ID, n.Actual.role(), n.Actual.state())
}

func (n Node) expectedString() string {
    return fmt.Sprintf("%d.%s.%s", n.ID, n.Expected.role(), n.Expected.state())
}

// HostnameFor derives the conventional hostname of node id.
func HostnameFor(prefix string, id int) string {
    if prefix == "" { prefix = DefaultHostPrefix }
    return fmt.Sprintf("%s%d", prefix, NodeSuffix(id))
}

// NodeSuffix is the numeric identifier external tools use for node id.
func NodeSuffix(id int) int { return suffixBase + id }

// IDFromSuffix inverts NodeSuffix. The result may be out of cluster range.
func IDFromSuffix(suffix int) int { return suffix - suffixBase }

func dumpNodes(nodes []Node, expected bool) string {
    var b strings.Builder
    b.WriteString("[")
    for _, n := range nodes {
        if expected {
            b.WriteString(n.expectedString())
        } else {
            b.WriteString(n.String())
        }
        b.WriteString(" ")
    }
    b.WriteString("]")
    return b.String()
}
