package config

import (
    "fmt"
    "strings"
    "time"

    "github.com/spf13/viper"

    "github.com/amirimatin/go-clustercheck/pkg/bootstrap"
    "github.com/amirimatin/go-clustercheck/pkg/cluster"
)

// EnvPrefix prefixes environment overrides: CLUSTERCTL_CLUSTER_MODE=full.
const EnvPrefix = "CLUSTERCTL"

// Config represents the clusterctl configuration file.
type Config struct {
    Cluster  ClusterConfig  `mapstructure:"cluster"`
    Shell    ShellConfig    `mapstructure:"shell"`
    Verifier VerifierConfig `mapstructure:"verifier"`
    Status   StatusConfig   `mapstructure:"status"`
    Quorum   QuorumConfig   `mapstructure:"quorum"`
    Probe    ProbeConfig    `mapstructure:"probe"`
    Topology TopologyConfig `mapstructure:"topology"`
    Mgmt     MgmtConfig     `mapstructure:"mgmt"`
    Logging  LoggingConfig  `mapstructure:"logging"`
    Tracing  TracingConfig  `mapstructure:"tracing"`
    Watch    WatchConfig    `mapstructure:"watch"`
}

// ClusterConfig describes the cluster under test.
type ClusterConfig struct {
    Nodes        int    `mapstructure:"nodes"` // -1 auto-discovers
    Mode         string `mapstructure:"mode"`
    ControlAddr  string `mapstructure:"control_addr"`
    VerifierAddr string `mapstructure:"verifier_addr"`
    HostPrefix   string `mapstructure:"host_prefix"`
}

type ShellConfig struct {
    Kind        string        `mapstructure:"kind"`
    User        string        `mapstructure:"user"`
    Port        int           `mapstructure:"port"`
    KeyFile     string        `mapstructure:"key_file"`
    Password    string        `mapstructure:"password"`
    KnownHosts  string        `mapstructure:"known_hosts"`
    DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type VerifierConfig struct {
    Binary        string        `mapstructure:"binary"`
    RetryBudget   time.Duration `mapstructure:"retry_budget"`
    RetryInterval time.Duration `mapstructure:"retry_interval"`
}

type StatusConfig struct {
    Kind      string `mapstructure:"kind"`
    Command   string `mapstructure:"command"`
    AgentAddr string `mapstructure:"agent_addr"`
}

type QuorumConfig struct {
    DisksPerNode       int     `mapstructure:"disks_per_node"`
    Fraction           float64 `mapstructure:"fraction"`
    StartWithoutQuorum bool    `mapstructure:"start_without_quorum"`
    QueryCommand       string  `mapstructure:"query_command"`
    SetCommand         string  `mapstructure:"set_command"`
}

type ProbeConfig struct {
    Enabled bool          `mapstructure:"enabled"`
    Port    int           `mapstructure:"port"`
    Timeout time.Duration `mapstructure:"timeout"`
}

type TopologyConfig struct {
    Kind          string        `mapstructure:"kind"`
    Seeds         []string      `mapstructure:"seeds"`
    FilePath      string        `mapstructure:"file_path"`
    FileEnv       string        `mapstructure:"file_env"`
    DNSNames      []string      `mapstructure:"dns_names"`
    Refresh       time.Duration `mapstructure:"refresh"`
    EtcdEndpoints []string      `mapstructure:"etcd_endpoints"`
    EtcdPrefix    string        `mapstructure:"etcd_prefix"`
}

type MgmtConfig struct {
    Addr    string        `mapstructure:"addr"`
    Proto   string        `mapstructure:"proto"`
    Timeout time.Duration `mapstructure:"timeout"`
    TLS     TLSConfig     `mapstructure:"tls"`
}

type TLSConfig struct {
    Enabled    bool   `mapstructure:"enabled"`
    CAFile     string `mapstructure:"ca_file"`
    CertFile   string `mapstructure:"cert_file"`
    KeyFile    string `mapstructure:"key_file"`
    ServerName string `mapstructure:"server_name"`
    SkipVerify bool   `mapstructure:"skip_verify"`
}

type LoggingConfig struct {
    Level  string `mapstructure:"level"`
    Format string `mapstructure:"format"`
}

type TracingConfig struct {
    Enabled bool `mapstructure:"enabled"`
}

type WatchConfig struct {
    Interval time.Duration `mapstructure:"interval"`
}

// Load reads configuration from path (or the default search path when empty)
// and the environment. A missing file is not an error.
func Load(path string) (*Config, error) {
    v := viper.New()
    v.SetConfigName("clusterctl")
    v.SetConfigType("yaml")
    if path != "" {
        v.SetConfigFile(path)
    } else {
        v.AddConfigPath(".")
        v.AddConfigPath("./config")
        v.AddConfigPath("/etc/clusterctl")
    }

    setDefaults(v)

    v.SetEnvPrefix(EnvPrefix)
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    v.AutomaticEnv()

    if err := v.ReadInConfig(); err != nil {
        if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
            return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
        }
    }

    var cfg Config
    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("config: unmarshal: %w", err)
    }
    if err := cfg.Validate(); err != nil { return nil, err }
    return &cfg, nil
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
    v := viper.New()
    setDefaults(v)
    var cfg Config
    _ = v.Unmarshal(&cfg)
    return &cfg
}

func setDefaults(v *viper.Viper) {
    v.SetDefault("cluster.nodes", 3)
    v.SetDefault("cluster.mode", "full")
    v.SetDefault("cluster.control_addr", "")
    v.SetDefault("cluster.verifier_addr", "")
    v.SetDefault("cluster.host_prefix", cluster.DefaultHostPrefix)

    v.SetDefault("shell.kind", "local")
    v.SetDefault("shell.user", "root")
    v.SetDefault("shell.port", 22)
    v.SetDefault("shell.key_file", "")
    v.SetDefault("shell.password", "")
    v.SetDefault("shell.known_hosts", "")
    v.SetDefault("shell.dial_timeout", 10*time.Second)

    v.SetDefault("verifier.binary", "")
    v.SetDefault("verifier.retry_budget", cluster.DefaultVerifierRetryBudget)
    v.SetDefault("verifier.retry_interval", cluster.DefaultVerifierRetryInterval)

    v.SetDefault("status.kind", "command")
    v.SetDefault("status.command", "")
    v.SetDefault("status.agent_addr", "")

    v.SetDefault("quorum.disks_per_node", cluster.DefaultDisksPerNode)
    v.SetDefault("quorum.fraction", cluster.DefaultQuorumFraction)
    v.SetDefault("quorum.start_without_quorum", false)
    v.SetDefault("quorum.query_command", "")
    v.SetDefault("quorum.set_command", "")

    v.SetDefault("probe.enabled", true)
    v.SetDefault("probe.port", 22)
    v.SetDefault("probe.timeout", 2*time.Second)

    v.SetDefault("topology.kind", "static")
    v.SetDefault("topology.seeds", []string{})
    v.SetDefault("topology.file_path", "")
    v.SetDefault("topology.file_env", "")
    v.SetDefault("topology.dns_names", []string{})
    v.SetDefault("topology.refresh", 5*time.Second)
    v.SetDefault("topology.etcd_endpoints", []string{})
    v.SetDefault("topology.etcd_prefix", "")

    v.SetDefault("mgmt.addr", ":17946")
    v.SetDefault("mgmt.proto", "http")
    v.SetDefault("mgmt.timeout", 3*time.Second)
    v.SetDefault("mgmt.tls.enabled", false)
    v.SetDefault("mgmt.tls.ca_file", "")
    v.SetDefault("mgmt.tls.cert_file", "")
    v.SetDefault("mgmt.tls.key_file", "")
    v.SetDefault("mgmt.tls.server_name", "")
    v.SetDefault("mgmt.tls.skip_verify", false)

    v.SetDefault("logging.level", "info")
    v.SetDefault("logging.format", "text")

    v.SetDefault("tracing.enabled", false)

    v.SetDefault("watch.interval", 30*time.Second)
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
    if _, err := cluster.ParseMode(c.Cluster.Mode); err != nil { return err }
    if c.Cluster.Nodes != cluster.AutoDiscover && (c.Cluster.Nodes < 1 || c.Cluster.Nodes > cluster.MaxNodes) {
        return fmt.Errorf("config: cluster.nodes must be -1 or 1..%d", cluster.MaxNodes)
    }
    if err := oneOf("shell.kind", c.Shell.Kind, "local", "ssh"); err != nil { return err }
    if err := oneOf("status.kind", c.Status.Kind, "command", "agent"); err != nil { return err }
    if c.Status.Kind == "agent" && c.Status.AgentAddr == "" {
        return fmt.Errorf("config: status.agent_addr is required when status.kind is agent")
    }
    if err := oneOf("topology.kind", c.Topology.Kind, "static", "file", "dns", "etcd"); err != nil { return err }
    if err := oneOf("mgmt.proto", c.Mgmt.Proto, "http", "grpc"); err != nil { return err }
    if c.Mgmt.TLS.Enabled && (c.Mgmt.TLS.CertFile == "" || c.Mgmt.TLS.KeyFile == "") {
        return fmt.Errorf("config: mgmt.tls.cert_file and mgmt.tls.key_file are required when mgmt.tls.enabled")
    }
    if err := oneOf("logging.format", c.Logging.Format, "text", "json"); err != nil { return err }
    if c.Quorum.Fraction <= 0 || c.Quorum.Fraction > 1 {
        return fmt.Errorf("config: quorum.fraction must be in (0, 1]")
    }
    if c.Quorum.DisksPerNode < 1 {
        return fmt.Errorf("config: quorum.disks_per_node must be positive")
    }
    if c.Watch.Interval <= 0 {
        return fmt.Errorf("config: watch.interval must be positive")
    }
    return nil
}

func oneOf(key, v string, allowed ...string) error {
    for _, a := range allowed {
        if v == a { return nil }
    }
    return fmt.Errorf("config: %s must be one of %s, got %q", key, strings.Join(allowed, "|"), v)
}

// ToBootstrap converts the file configuration into bootstrap inputs. Loggers
// are left for the caller.
func (c *Config) ToBootstrap() bootstrap.Config {
    return bootstrap.Config{
        ClusterSize:  c.Cluster.Nodes,
        Mode:         c.Cluster.Mode,
        ControlAddr:  c.Cluster.ControlAddr,
        VerifierAddr: c.Cluster.VerifierAddr,
        HostPrefix:   c.Cluster.HostPrefix,

        ShellKind:     c.Shell.Kind,
        SSHUser:       c.Shell.User,
        SSHPort:       c.Shell.Port,
        SSHKeyFile:    c.Shell.KeyFile,
        SSHPassword:   c.Shell.Password,
        SSHKnownHosts: c.Shell.KnownHosts,
        SSHTimeout:    c.Shell.DialTimeout,

        VerifierBinary:        c.Verifier.Binary,
        VerifierRetryBudget:   c.Verifier.RetryBudget,
        VerifierRetryInterval: c.Verifier.RetryInterval,

        StatusKind:      c.Status.Kind,
        StatusCommand:   c.Status.Command,
        StatusAgentAddr: c.Status.AgentAddr,

        DiskQueryCmd:       c.Quorum.QueryCommand,
        DiskSetCmd:         c.Quorum.SetCommand,
        DisksPerNode:       c.Quorum.DisksPerNode,
        QuorumFraction:     c.Quorum.Fraction,
        StartWithoutQuorum: c.Quorum.StartWithoutQuorum,

        ProbeDisable: !c.Probe.Enabled,
        ProbePort:    c.Probe.Port,
        ProbeTimeout: c.Probe.Timeout,

        TopologyKind:  c.Topology.Kind,
        SeedsCSV:      strings.Join(c.Topology.Seeds, ","),
        FilePath:      c.Topology.FilePath,
        FileEnv:       c.Topology.FileEnv,
        DNSNamesCSV:   strings.Join(c.Topology.DNSNames, ","),
        DiscRefresh:   c.Topology.Refresh,
        EtcdEndpoints: strings.Join(c.Topology.EtcdEndpoints, ","),
        EtcdPrefix:    c.Topology.EtcdPrefix,

        MgmtAddr:    c.Mgmt.Addr,
        MgmtProto:   c.Mgmt.Proto,
        MgmtTimeout: c.Mgmt.Timeout,

        TLSEnable:     c.Mgmt.TLS.Enabled,
        TLSCA:         c.Mgmt.TLS.CAFile,
        TLSCert:       c.Mgmt.TLS.CertFile,
        TLSKey:        c.Mgmt.TLS.KeyFile,
        TLSServerName: c.Mgmt.TLS.ServerName,
        TLSSkipVerify: c.Mgmt.TLS.SkipVerify,
    }
}
