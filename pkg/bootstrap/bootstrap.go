package bootstrap

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "fmt"
    "io"
    "log"
    "strings"
    "sync"
    "time"

    "go.uber.org/zap"

    "github.com/amirimatin/go-clustercheck/pkg/cluster"
    "github.com/amirimatin/go-clustercheck/pkg/diskcontrol"
    "github.com/amirimatin/go-clustercheck/pkg/probe"
    tlsx "github.com/amirimatin/go-clustercheck/pkg/security/tlsconfig"
    "github.com/amirimatin/go-clustercheck/pkg/shell"
    "github.com/amirimatin/go-clustercheck/pkg/statusquery"
    "github.com/amirimatin/go-clustercheck/pkg/topology"
    tDNS "github.com/amirimatin/go-clustercheck/pkg/topology/dns"
    tEtcd "github.com/amirimatin/go-clustercheck/pkg/topology/etcd"
    tFile "github.com/amirimatin/go-clustercheck/pkg/topology/file"
    tStatic "github.com/amirimatin/go-clustercheck/pkg/topology/static"
    "github.com/amirimatin/go-clustercheck/pkg/transport"
    mgmtgrpc "github.com/amirimatin/go-clustercheck/pkg/transport/grpc"
    httpjson "github.com/amirimatin/go-clustercheck/pkg/transport/httpjson"
    "github.com/amirimatin/go-clustercheck/pkg/verifier"
)

// Config defines high-level inputs to assemble a checker with sensible
// defaults. Zero values fall back to the defaults of the package that
// consumes them.
type Config struct {
    // Cluster under test
    ClusterSize  int    // node count, or cluster.AutoDiscover
    Mode         string // full|cmm-only|cmm-only-mailbox|cmm-single|cmm-sniffer
    ControlAddr  string // host running the verifier and status tool
    VerifierAddr string // optional override; "local" runs the verifier here
    HostPrefix   string
    RunID        string

    // Command execution: "local" (default) or "ssh"
    ShellKind     string
    SSHUser       string
    SSHPort       int
    SSHKeyFile    string
    SSHPassword   string
    SSHKnownHosts string
    SSHTimeout    time.Duration

    // Verifier
    VerifierBinary        string
    VerifierRetryBudget   time.Duration
    VerifierRetryInterval time.Duration

    // Status query: "command" (default) runs StatusCommand on the control
    // host; "agent" asks a status agent at StatusAgentAddr.
    StatusKind      string
    StatusCommand   string
    StatusAgentAddr string

    // Quorum lever
    DiskQueryCmd       string
    DiskSetCmd         string
    DisksPerNode       int
    QuorumFraction     float64
    StartWithoutQuorum bool

    // Liveness probe; disabled means every dead node counts as out.
    ProbeDisable bool
    ProbePort    int
    ProbeTimeout time.Duration

    // Topology for auto-discovery: "static" (default), "file", "dns" or "etcd"
    TopologyKind  string
    SeedsCSV      string
    FilePath      string
    FileEnv       string
    DNSNamesCSV   string
    DiscRefresh   time.Duration
    EtcdEndpoints string // CSV
    EtcdPrefix    string

    // Management API (status/nodes/metrics)
    MgmtAddr    string
    MgmtProto   string // "http" (default) or "grpc"
    MgmtTimeout time.Duration

    // TLS (optional) for the management API. With TLSCA set, servers require
    // client certificates and clients verify servers against it.
    TLSEnable     bool
    TLSCA         string
    TLSCert       string
    TLSKey        string
    TLSServerName string
    TLSSkipVerify bool

    // Logger (optional). If nil, log.Default() is used. Zap feeds
    // third-party clients that log through zap.
    Logger    *log.Logger
    ZapLogger *zap.Logger
}

// VerifierLocal as VerifierAddr runs the verifier on this machine.
const VerifierLocal = "local"

// Checker is an assembled model plus its management endpoints. The model is
// not safe for concurrent use; every access from here on is serialized.
type Checker struct {
    mu     sync.Mutex
    model  *cluster.Model
    server transport.RPCServer
    client transport.RPCClient
    logger *log.Logger

    closers []io.Closer
}

// Build assembles a Checker from Config without contacting the cluster,
// except for topology auto-discovery.
func Build(ctx context.Context, cfg Config) (*Checker, error) {
    if cfg.Logger == nil { cfg.Logger = log.Default() }
    if cfg.ZapLogger == nil { cfg.ZapLogger = zap.NewNop() }

    mode, err := cluster.ParseMode(cfg.Mode)
    if err != nil { return nil, err }

    sh, err := NewShell(cfg)
    if err != nil { return nil, err }

    c := &Checker{logger: cfg.Logger}
    c.server, c.client, err = NewTransport(cfg)
    if err != nil { return nil, err }

    opts := cluster.Options{
        ClusterSize:           cfg.ClusterSize,
        Mode:                  mode,
        ControlAddr:           cfg.ControlAddr,
        VerifierAddr:          cfg.VerifierAddr,
        HostPrefix:            cfg.HostPrefix,
        Verifier:              newVerifier(sh, cfg),
        DiskControl:           diskcontrol.NewCommand(sh, hostnameFunc(cfg.HostPrefix), cfg.DiskQueryCmd, cfg.DiskSetCmd),
        VerifierRetryBudget:   cfg.VerifierRetryBudget,
        VerifierRetryInterval: cfg.VerifierRetryInterval,
        DisksPerNode:          cfg.DisksPerNode,
        QuorumFraction:        cfg.QuorumFraction,
        StartWithoutQuorum:    cfg.StartWithoutQuorum,
        Logger:                cfg.Logger,
        RunID:                 cfg.RunID,
    }
    if cfg.VerifierAddr == VerifierLocal { opts.VerifierAddr = "" }
    if !cfg.ProbeDisable {
        opts.Prober = probe.TCP{Port: cfg.ProbePort, Timeout: cfg.ProbeTimeout}
    }
    opts.StatusQuery = NewStatusQuery(sh, c.client, cfg)
    if cfg.ClusterSize == cluster.AutoDiscover {
        topo, closer, err := NewTopology(cfg)
        if err != nil { return nil, err }
        if closer != nil { c.closers = append(c.closers, closer) }
        opts.Topology = topo
    }

    m, err := cluster.New(ctx, opts)
    if err != nil { _ = c.Close(); return nil, err }
    c.model = m
    return c, nil
}

// NewShell returns the command runner selected by cfg.ShellKind.
func NewShell(cfg Config) (shell.Shell, error) {
    switch cfg.ShellKind {
    case "", "local":
        return shell.Local{}, nil
    case "ssh":
        return shell.NewSSH(shell.SSHOptions{
            User:        cfg.SSHUser,
            Port:        cfg.SSHPort,
            KeyFile:     cfg.SSHKeyFile,
            Password:    cfg.SSHPassword,
            KnownHosts:  cfg.SSHKnownHosts,
            DialTimeout: cfg.SSHTimeout,
        })
    }
    return nil, fmt.Errorf("bootstrap: unknown shell %q", cfg.ShellKind)
}

// newVerifier runs through a local shell when the verifier is pinned to this
// machine, so no SSH hop is attempted for it.
func newVerifier(sh shell.Shell, cfg Config) verifier.Verifier {
    if cfg.VerifierAddr == VerifierLocal { sh = shell.Local{} }
    return verifier.NewCommand(sh, cfg.VerifierBinary)
}

// NewStatusQuery returns the status query selected by cfg.StatusKind.
func NewStatusQuery(sh shell.Shell, client transport.RPCClient, cfg Config) statusquery.StatusQuery {
    if cfg.StatusKind == "agent" {
        return statusquery.NewRemote(client, cfg.StatusAgentAddr)
    }
    return statusquery.NewCommand(sh, cfg.ControlAddr, cfg.StatusCommand)
}

// NewTransport returns the management server and client for cfg.MgmtProto,
// both secured when cfg.TLSEnable is set.
func NewTransport(cfg Config) (transport.RPCServer, transport.RPCClient, error) {
    srvTLS, cliTLS, err := tlsConfigs(cfg)
    if err != nil { return nil, nil, err }
    switch cfg.MgmtProto {
    case "grpc":
        return mgmtgrpc.NewServer(cfg.MgmtAddr).UseTLS(srvTLS), mgmtgrpc.NewClient(cfg.MgmtTimeout).UseTLS(cliTLS), nil
    default:
        return httpjson.NewServer(cfg.MgmtAddr, cfg.Logger).UseTLS(srvTLS), httpjson.NewClient(cfg.MgmtTimeout).UseTLS(cliTLS), nil
    }
}

func tlsConfigs(cfg Config) (srv, cli *tls.Config, err error) {
    if !cfg.TLSEnable { return nil, nil, nil }
    topts := tlsx.Options{Enable: true, CAFile: cfg.TLSCA, CertFile: cfg.TLSCert, KeyFile: cfg.TLSKey, ServerName: cfg.TLSServerName, InsecureSkipVerify: cfg.TLSSkipVerify}
    if srv, err = topts.Server(); err != nil { return nil, nil, fmt.Errorf("bootstrap: tls server: %w", err) }
    if cli, err = topts.Client(); err != nil { return nil, nil, fmt.Errorf("bootstrap: tls client: %w", err) }
    return srv, cli, nil
}

// NewTopology returns the auto-discovery backend. The closer is non-nil when
// the backend holds a connection.
func NewTopology(cfg Config) (topology.Topology, io.Closer, error) {
    switch cfg.TopologyKind {
    case "", "static":
        return tStatic.New(tStatic.Parse(cfg.SeedsCSV)...), nil, nil
    case "file":
        return tFile.New(tFile.Options{Path: cfg.FilePath, Env: cfg.FileEnv, Refresh: cfg.DiscRefresh}), nil, nil
    case "dns":
        return tDNS.New(tDNS.Options{Names: tStatic.Parse(cfg.DNSNamesCSV), Refresh: cfg.DiscRefresh}), nil, nil
    case "etcd":
        r, err := tEtcd.New(tEtcd.Options{Endpoints: tStatic.Parse(cfg.EtcdEndpoints), Prefix: cfg.EtcdPrefix, Logger: cfg.ZapLogger})
        if err != nil { return nil, nil, err }
        return r, r, nil
    }
    return nil, nil, fmt.Errorf("bootstrap: unknown topology %q", cfg.TopologyKind)
}

func hostnameFunc(prefix string) func(int) string {
    return func(id int) string { return cluster.HostnameFor(prefix, id) }
}

// Do runs fn with exclusive access to the model.
func (c *Checker) Do(fn func(m *cluster.Model) error) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    return fn(c.model)
}

// Serve starts the management API with the model's status and membership.
// It stops when ctx is done.
func (c *Checker) Serve(ctx context.Context) error {
    status := func(ctx context.Context) ([]byte, error) {
        c.mu.Lock()
        defer c.mu.Unlock()
        return c.model.StatusJSON(ctx)
    }
    nodes := func(context.Context) ([]byte, error) {
        c.mu.Lock()
        defer c.mu.Unlock()
        return json.Marshal(c.model.Membership())
    }
    if err := c.server.Start(ctx, status, nodes); err != nil { return err }
    c.logger.Printf("management API listening on %s", c.server.Addr())
    return nil
}

// MgmtAddr is the bound management address once Serve has run.
func (c *Checker) MgmtAddr() string { return c.server.Addr() }

// Client returns the management client matching the configured protocol.
func (c *Checker) Client() transport.RPCClient { return c.client }

// Close stops the management API and releases topology connections.
func (c *Checker) Close() error {
    var errs []string
    if c.server != nil {
        if err := c.server.Stop(context.Background()); err != nil { errs = append(errs, err.Error()) }
    }
    for _, cl := range c.closers {
        if err := cl.Close(); err != nil { errs = append(errs, err.Error()) }
    }
    if gc, ok := c.client.(*mgmtgrpc.Client); ok { gc.Close() }
    if len(errs) > 0 { return fmt.Errorf("bootstrap: close: %s", strings.Join(errs, "; ")) }
    return nil
}
