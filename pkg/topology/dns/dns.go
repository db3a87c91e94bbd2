package dns

import (
    "context"
    "fmt"
    "net"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/go-clustercheck/pkg/topology"
)

// Options configures DNS-based topology.
type Options struct {
    // Names are SRV records or hostnames to resolve, e.g.
    // "_cluster._tcp.lab.example" (SRV) or "nodes.lab.example" (A/AAAA).
    Names []string

    // Refresh controls cache staleness; if zero, defaults to 5s.
    Refresh time.Duration

    // Resolver optionally overrides the DNS resolver used.
    Resolver *net.Resolver
}

type impl struct {
    opts  Options
    mu    sync.Mutex
    last  time.Time
    cache []string
}

// New returns a DNS-backed topology. SRV answers contribute their targets,
// A/AAAA answers their addresses; results are cached for Refresh.
func New(opts Options) topology.Topology {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    return &impl{opts: opts}
}

func (d *impl) Nodes(ctx context.Context) ([]string, error) {
    d.mu.Lock()
    defer d.mu.Unlock()
    if time.Since(d.last) < d.opts.Refresh && len(d.cache) > 0 {
        return append([]string(nil), d.cache...), nil
    }
    res, err := d.resolveAll(ctx)
    if err != nil { return nil, err }
    d.cache = res
    d.last = time.Now()
    return append([]string(nil), d.cache...), nil
}

func (d *impl) resolveAll(ctx context.Context) ([]string, error) {
    res := d.opts.Resolver
    if res == nil { res = net.DefaultResolver }
    seen := make(map[string]struct{})
    var out []string
    add := func(h string) {
        if _, ok := seen[h]; !ok { seen[h] = struct{}{}; out = append(out, h) }
    }
    var lastErr error
    for _, name := range d.opts.Names {
        name = strings.TrimSpace(name)
        if name == "" { continue }
        if svc, proto, domain := parseSRVName(name); svc != "" {
            _, addrs, err := res.LookupSRV(ctx, svc, proto, domain)
            if err == nil && len(addrs) > 0 {
                for _, a := range addrs { add(strings.TrimSuffix(a.Target, ".")) }
                continue
            }
            if err != nil { lastErr = err }
        }
        ips, err := res.LookupHost(ctx, name)
        if err != nil { lastErr = err; continue }
        for _, ip := range ips { add(ip) }
    }
    if len(out) == 0 && lastErr != nil {
        return nil, fmt.Errorf("topology/dns: %w", lastErr)
    }
    sort.Strings(out)
    return out, nil
}

// parseSRVName splits "_service._proto.name"; anything else yields empty parts.
func parseSRVName(fqdn string) (service, proto, name string) {
    if !strings.HasPrefix(fqdn, "_") || !strings.Contains(fqdn, "._") { return "", "", "" }
    parts := strings.SplitN(fqdn, ".", 3)
    if len(parts) < 3 { return "", "", "" }
    return strings.TrimPrefix(parts[0], "_"), strings.TrimPrefix(parts[1], "_"), parts[2]
}
