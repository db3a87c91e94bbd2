package file

import (
    "bufio"
    "context"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/go-clustercheck/pkg/topology"
)

// Options configures file/ENV-based topology.
type Options struct {
    // Path to a hosts file (one per line or comma-separated), or a glob.
    Path string
    // Env names a variable holding a CSV host list; it wins over Path when set.
    Env string
    // Refresh controls cache staleness; if zero, defaults to 5s.
    Refresh time.Duration
}

type impl struct {
    opts  Options
    mu    sync.Mutex
    last  time.Time
    mtime time.Time
    cache []string
}

func New(opts Options) topology.Topology {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    return &impl{opts: opts}
}

func (i *impl) Nodes(context.Context) ([]string, error) {
    i.mu.Lock(); defer i.mu.Unlock()
    if i.opts.Env != "" {
        if v := strings.TrimSpace(os.Getenv(i.opts.Env)); v != "" {
            return parseHosts(v), nil
        }
    }
    if i.opts.Path == "" {
        return nil, nil
    }
    now := time.Now()
    stat, err := os.Stat(i.opts.Path)
    if err == nil {
        if stat.ModTime().After(i.mtime) || now.Sub(i.last) >= i.opts.Refresh {
            hosts, err := loadFile(i.opts.Path)
            if err != nil { return nil, err }
            i.cache = hosts
            i.last = now
            i.mtime = stat.ModTime()
        }
        return append([]string(nil), i.cache...), nil
    }
    matches, gerr := filepath.Glob(i.opts.Path)
    if gerr != nil || len(matches) == 0 {
        return nil, fmt.Errorf("topology/file: %w", err)
    }
    set := make(map[string]struct{})
    for _, m := range matches {
        hosts, err := loadFile(m)
        if err != nil { return nil, err }
        for _, h := range hosts { set[h] = struct{}{} }
    }
    out := make([]string, 0, len(set))
    for h := range set { out = append(out, h) }
    sort.Strings(out)
    i.cache = out
    i.last = now
    return append([]string(nil), i.cache...), nil
}

func loadFile(path string) ([]string, error) {
    f, err := os.Open(path)
    if err != nil { return nil, fmt.Errorf("topology/file: %w", err) }
    defer f.Close()
    set := make(map[string]struct{})
    s := bufio.NewScanner(f)
    for s.Scan() {
        line := strings.TrimSpace(s.Text())
        if line == "" || strings.HasPrefix(line, "#") { continue }
        for _, p := range strings.Split(line, ",") {
            p = strings.TrimSpace(p)
            if p != "" { set[p] = struct{}{} }
        }
    }
    if err := s.Err(); err != nil { return nil, fmt.Errorf("topology/file: read %s: %w", path, err) }
    hosts := make([]string, 0, len(set))
    for h := range set { hosts = append(hosts, h) }
    sort.Strings(hosts)
    return hosts, nil
}

func parseHosts(csv string) []string {
    var out []string
    for _, p := range strings.Split(csv, ",") {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    sort.Strings(out)
    return out
}
