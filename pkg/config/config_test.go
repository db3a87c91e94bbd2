package config

import (
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
    t.Helper()
    p := filepath.Join(t.TempDir(), "clusterctl.yaml")
    require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
    return p
}

func TestDefaults(t *testing.T) {
    cfg := Default()
    require.NoError(t, cfg.Validate())
    assert.Equal(t, 3, cfg.Cluster.Nodes)
    assert.Equal(t, "full", cfg.Cluster.Mode)
    assert.Equal(t, 60*time.Second, cfg.Verifier.RetryBudget)
    assert.Equal(t, 4, cfg.Quorum.DisksPerNode)
    assert.InDelta(t, 0.75, cfg.Quorum.Fraction, 1e-9)
    assert.True(t, cfg.Probe.Enabled)
    assert.Equal(t, ":17946", cfg.Mgmt.Addr)
}

func TestLoadFileAndEnv(t *testing.T) {
    p := writeFile(t, `
cluster:
  nodes: -1
  mode: cmm-sniffer
  control_addr: admin.lab
shell:
  kind: ssh
  user: qa
verifier:
  retry_budget: 90s
topology:
  kind: static
  seeds: [hcb101, hcb102]
quorum:
  disks_per_node: 6
probe:
  enabled: false
`)
    t.Setenv("CLUSTERCTL_MGMT_PROTO", "grpc")
    cfg, err := Load(p)
    require.NoError(t, err)
    assert.Equal(t, -1, cfg.Cluster.Nodes)
    assert.Equal(t, "cmm-sniffer", cfg.Cluster.Mode)
    assert.Equal(t, 90*time.Second, cfg.Verifier.RetryBudget)
    assert.Equal(t, "grpc", cfg.Mgmt.Proto)

    b := cfg.ToBootstrap()
    assert.Equal(t, "hcb101,hcb102", b.SeedsCSV)
    assert.Equal(t, "ssh", b.ShellKind)
    assert.Equal(t, "qa", b.SSHUser)
    assert.Equal(t, 6, b.DisksPerNode)
    assert.True(t, b.ProbeDisable)
    assert.Equal(t, "admin.lab", b.ControlAddr)
}

func TestLoadMissingDefaultFileIsFine(t *testing.T) {
    wd, err := os.Getwd()
    require.NoError(t, err)
    require.NoError(t, os.Chdir(t.TempDir()))
    defer os.Chdir(wd)

    cfg, err := Load("")
    require.NoError(t, err)
    assert.Equal(t, "full", cfg.Cluster.Mode)
}

func TestLoadInvalid(t *testing.T) {
    for name, body := range map[string]string{
        "mode":     "cluster:\n  mode: raft\n",
        "nodes":    "cluster:\n  nodes: 17\n",
        "shell":    "shell:\n  kind: telnet\n",
        "agent":    "status:\n  kind: agent\n",
        "fraction": "quorum:\n  fraction: 1.5\n",
        "proto":    "mgmt:\n  proto: udp\n",
        "tls":      "mgmt:\n  tls:\n    enabled: true\n    ca_file: ca.crt\n",
        "yaml":     "cluster: [\n",
    } {
        t.Run(name, func(t *testing.T) {
            _, err := Load(writeFile(t, body))
            assert.Error(t, err)
        })
    }
}

func TestLoadMgmtTLS(t *testing.T) {
    p := writeFile(t, `
mgmt:
  proto: grpc
  tls:
    enabled: true
    ca_file: /etc/clusterctl/ca.crt
    cert_file: /etc/clusterctl/checker.crt
    key_file: /etc/clusterctl/checker.key
    server_name: agent.lab
`)
    cfg, err := Load(p)
    require.NoError(t, err)
    b := cfg.ToBootstrap()
    assert.True(t, b.TLSEnable)
    assert.Equal(t, "/etc/clusterctl/ca.crt", b.TLSCA)
    assert.Equal(t, "/etc/clusterctl/checker.crt", b.TLSCert)
    assert.Equal(t, "/etc/clusterctl/checker.key", b.TLSKey)
    assert.Equal(t, "agent.lab", b.TLSServerName)
    assert.False(t, b.TLSSkipVerify)

    assert.False(t, Default().ToBootstrap().TLSEnable)
}
