package etcd

import (
    "context"
    "fmt"
    "sort"
    "strings"
    "time"

    clientv3 "go.etcd.io/etcd/client/v3"
    "go.uber.org/zap"

    "github.com/amirimatin/go-clustercheck/pkg/topology"
)

// DefaultPrefix is where node registrations live: <prefix><node-id> = <host>.
const DefaultPrefix = "/clustercheck/nodes/"

// Options configures the etcd-backed topology.
type Options struct {
    Endpoints   []string
    Prefix      string
    DialTimeout time.Duration
    // Logger receives client diagnostics; nil silences them.
    Logger *zap.Logger
}

// Registry reads the node list from keys under a prefix.
type Registry struct {
    cli    *clientv3.Client
    prefix string
}

// New dials etcd. Close releases the client.
func New(opts Options) (*Registry, error) {
    if len(opts.Endpoints) == 0 { return nil, fmt.Errorf("topology/etcd: no endpoints") }
    if opts.Prefix == "" { opts.Prefix = DefaultPrefix }
    if opts.DialTimeout <= 0 { opts.DialTimeout = 5 * time.Second }
    if opts.Logger == nil { opts.Logger = zap.NewNop() }
    cli, err := clientv3.New(clientv3.Config{
        Endpoints:   opts.Endpoints,
        DialTimeout: opts.DialTimeout,
        Logger:      opts.Logger,
    })
    if err != nil { return nil, fmt.Errorf("topology/etcd: %w", err) }
    return &Registry{cli: cli, prefix: opts.Prefix}, nil
}

func (r *Registry) Nodes(ctx context.Context) ([]string, error) {
    resp, err := r.cli.Get(ctx, r.prefix, clientv3.WithPrefix())
    if err != nil { return nil, fmt.Errorf("topology/etcd: get %s: %w", r.prefix, err) }
    pairs := make([][2]string, 0, len(resp.Kvs))
    for _, kv := range resp.Kvs {
        pairs = append(pairs, [2]string{string(kv.Key), string(kv.Value)})
    }
    return hostsFromPairs(r.prefix, pairs), nil
}

// Register records a host under the prefix, e.g. from provisioning tooling.
func (r *Registry) Register(ctx context.Context, id, host string) error {
    _, err := r.cli.Put(ctx, r.prefix+id, host)
    if err != nil { return fmt.Errorf("topology/etcd: put %s: %w", id, err) }
    return nil
}

func (r *Registry) Close() error { return r.cli.Close() }

// hostsFromPairs orders hosts by key and falls back to the key suffix when a
// registration carries no value.
func hostsFromPairs(prefix string, pairs [][2]string) []string {
    sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
    out := make([]string, 0, len(pairs))
    for _, p := range pairs {
        host := strings.TrimSpace(p[1])
        if host == "" { host = strings.TrimPrefix(p[0], prefix) }
        if host != "" { out = append(out, host) }
    }
    return out
}

var _ topology.Topology = (*Registry)(nil)
