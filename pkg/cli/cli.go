package cli

import (
    "context"
    "fmt"
    "log"
    "os"
    "os/signal"
    "strconv"
    "strings"
    "syscall"

    "github.com/spf13/cobra"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"

    "github.com/amirimatin/go-clustercheck/pkg/bootstrap"
    "github.com/amirimatin/go-clustercheck/pkg/config"
    "github.com/amirimatin/go-clustercheck/pkg/internal/logutil"
    "github.com/amirimatin/go-clustercheck/pkg/observability/tracing"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
    configPath  string
    mode        string
    nodes       int
    controlAddr string
    logLevel    string
}

// AddAll attaches clusterctl subcommands (verify/watch/quorum/agent/status/nodes)
// and their persistent flags to the provided root command.
func AddAll(root *cobra.Command) {
    g := &globals{}
    pf := root.PersistentFlags()
    pf.StringVar(&g.configPath, "config", "", "config file (default ./clusterctl.yaml, /etc/clusterctl/clusterctl.yaml)")
    pf.StringVar(&g.mode, "mode", "", "run mode: full|cmm-only|cmm-only-mailbox|cmm-single|cmm-sniffer")
    pf.IntVar(&g.nodes, "nodes", 0, "cluster size, -1 to auto-discover (overrides config)")
    pf.StringVar(&g.controlAddr, "control-addr", "", "control host running the verifier (overrides config)")
    pf.StringVar(&g.logLevel, "log-level", "", "debug|info|warn|error (overrides config)")

    root.AddCommand(NewVerifyCmd(g))
    root.AddCommand(NewWatchCmd(g))
    root.AddCommand(NewQuorumCmd(g))
    root.AddCommand(NewAgentCmd(g))
    root.AddCommand(NewStatusCmd())
    root.AddCommand(NewNodesCmd())
}

// env is what a subcommand needs after configuration is resolved.
type env struct {
    cfg      *config.Config
    zap      *zap.Logger
    logger   *log.Logger
    shutdown func()
}

// load resolves config and flag overrides and sets up logging and tracing.
func (g *globals) load() (*env, error) {
    cfg, err := config.Load(g.configPath)
    if err != nil { return nil, err }
    if g.mode != "" { cfg.Cluster.Mode = g.mode }
    if g.nodes != 0 { cfg.Cluster.Nodes = g.nodes }
    if g.controlAddr != "" { cfg.Cluster.ControlAddr = g.controlAddr }
    if g.logLevel != "" { cfg.Logging.Level = g.logLevel }
    if err := cfg.Validate(); err != nil { return nil, err }

    z, err := NewLogger(cfg.Logging.Level, cfg.Logging.Format)
    if err != nil { return nil, err }
    // zap owns level and encoding; logutil only prefixes severities
    lvl, _ := logutil.ParseLevel(cfg.Logging.Level)
    logutil.SetLevel(lvl)
    logutil.SetJSON(false)

    e := &env{cfg: cfg, zap: z, logger: zap.NewStdLog(z)}
    shutdownTrace, err := tracing.Setup(cfg.Tracing.Enabled)
    if err != nil {
        e.logger.Printf("tracing setup error: %v", err)
        shutdownTrace = func(context.Context) error { return nil }
    }
    e.shutdown = func() {
        _ = shutdownTrace(context.Background())
        _ = z.Sync()
    }
    return e, nil
}

func (e *env) bootstrap() bootstrap.Config {
    b := e.cfg.ToBootstrap()
    b.Logger = e.logger
    b.ZapLogger = e.zap
    return b
}

// NewLogger builds the process logger. format is "text" or "json".
func NewLogger(level, format string) (*zap.Logger, error) {
    var zcfg zap.Config
    if format == "json" {
        zcfg = zap.NewProductionConfig()
    } else {
        zcfg = zap.NewDevelopmentConfig()
        zcfg.DisableStacktrace = true
    }
    lvl, err := zapcore.ParseLevel(level)
    if err != nil { return nil, fmt.Errorf("log level: %w", err) }
    zcfg.Level = zap.NewAtomicLevelAt(lvl)
    zcfg.OutputPaths = []string{"stderr"}
    return zcfg.Build()
}

// parseIDs reads "1,3,5" into node ids.
func parseIDs(csv string) ([]int, error) {
    var out []int
    for _, p := range strings.Split(csv, ",") {
        p = strings.TrimSpace(p)
        if p == "" { continue }
        id, err := strconv.Atoi(p)
        if err != nil { return nil, fmt.Errorf("bad node id %q", p) }
        out = append(out, id)
    }
    return out, nil
}

func signalContext() (context.Context, context.CancelFunc) {
    return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
