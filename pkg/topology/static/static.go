package static

import (
    "context"
    "strings"

    "github.com/amirimatin/go-clustercheck/pkg/topology"
)

type staticNodes struct {
    hosts []string
}

func (s *staticNodes) Nodes(context.Context) ([]string, error) { return append([]string(nil), s.hosts...), nil }

// New returns a Topology that always reports the given hosts.
func New(hosts ...string) topology.Topology {
    cleaned := make([]string, 0, len(hosts))
    for _, v := range hosts {
        v = strings.TrimSpace(v)
        if v != "" {
            cleaned = append(cleaned, v)
        }
    }
    return &staticNodes{hosts: cleaned}
}

// Parse converts a comma-separated host list into a slice.
func Parse(csv string) []string {
    if csv == "" {
        return nil
    }
    parts := strings.Split(csv, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" {
            out = append(out, p)
        }
    }
    return out
}
