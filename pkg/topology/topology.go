package topology

import (
    "context"
    "errors"
    "net"
    "strings"
)

// Topology answers which hosts make up the cluster. It is consulted once at
// model construction when the cluster size is left to auto-discovery. Only the
// number of hosts is used: nodes keep their conventional names (prefix plus
// 100+id), so sources should list hosts under those names.
type Topology interface {
    Nodes(ctx context.Context) ([]string, error)
}

// ErrEmpty is returned by Size when the source knows no hosts.
var ErrEmpty = errors.New("topology: no nodes discovered")

// Discover returns the hosts t reports, failing with ErrEmpty on none.
func Discover(ctx context.Context, t Topology) ([]string, error) {
    if t == nil { return nil, errors.New("topology: no source configured") }
    hosts, err := t.Nodes(ctx)
    if err != nil { return nil, err }
    if len(hosts) == 0 { return nil, ErrEmpty }
    return hosts, nil
}

// Size returns the number of hosts t reports.
func Size(ctx context.Context, t Topology) (int, error) {
    hosts, err := Discover(ctx, t)
    if err != nil { return 0, err }
    return len(hosts), nil
}

// ShortName strips a port and domain, so "hcb101.lab:22" becomes "hcb101".
func ShortName(host string) string {
    if h, _, err := net.SplitHostPort(host); err == nil { host = h }
    if net.ParseIP(host) != nil { return host }
    if i := strings.IndexByte(host, '.'); i > 0 { host = host[:i] }
    return host
}
