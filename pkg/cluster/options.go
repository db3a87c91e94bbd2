package cluster

import (
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/benbjohnson/clock"

    "github.com/amirimatin/go-clustercheck/pkg/diskcontrol"
    "github.com/amirimatin/go-clustercheck/pkg/probe"
    "github.com/amirimatin/go-clustercheck/pkg/statusquery"
    "github.com/amirimatin/go-clustercheck/pkg/topology"
    "github.com/amirimatin/go-clustercheck/pkg/verifier"
)

// AutoDiscover as ClusterSize asks the Topology for the node count.
const AutoDiscover = -1

// Options carries configuration and injected collaborators for a Model.
// Instances are typically produced from bootstrap.Config.
type Options struct {
    // ClusterSize is the number of nodes, or AutoDiscover.
    ClusterSize int
    Mode        Mode
    // ControlAddr reaches the cluster's control plane; the verifier runs
    // there unless VerifierAddr overrides it.
    ControlAddr  string
    VerifierAddr string
    // HostPrefix names nodes; empty means DefaultHostPrefix.
    HostPrefix string

    Verifier    verifier.Verifier
    StatusQuery statusquery.StatusQuery
    DiskControl diskcontrol.DiskControl
    Prober      probe.Prober
    Topology    topology.Topology

    // VerifierRetryBudget bounds the verifier's own internal retrying.
    VerifierRetryBudget   time.Duration
    VerifierRetryInterval time.Duration

    // Quorum arithmetic.
    DisksPerNode   int
    QuorumFraction float64
    // StartWithoutQuorum clears the initial quorum expectation.
    StartWithoutQuorum bool

    Logger *log.Logger
    Clock  clock.Clock
    // RunID tags logs and status; generated when empty.
    RunID string
}

const (
    DefaultVerifierRetryBudget   = 60 * time.Second
    DefaultVerifierRetryInterval = 5 * time.Second
    DefaultDisksPerNode          = 4
    DefaultQuorumFraction        = 0.75
)

func (o *Options) applyDefaults() {
    if o.VerifierRetryBudget <= 0 { o.VerifierRetryBudget = DefaultVerifierRetryBudget }
    if o.VerifierRetryInterval <= 0 { o.VerifierRetryInterval = DefaultVerifierRetryInterval }
    if o.DisksPerNode <= 0 { o.DisksPerNode = DefaultDisksPerNode }
    if o.QuorumFraction <= 0 { o.QuorumFraction = DefaultQuorumFraction }
    if o.HostPrefix == "" { o.HostPrefix = DefaultHostPrefix }
    if o.Logger == nil { o.Logger = log.Default() }
    if o.Clock == nil { o.Clock = clock.New() }
}

// Validate performs a minimal validation of Options. It does not contact any
// collaborator and is safe to call before New.
func (o Options) Validate() error {
    if !o.Mode.Valid() {
        return fmt.Errorf("cluster: invalid run mode %d", int(o.Mode))
    }
    if o.ClusterSize == AutoDiscover {
        if o.Topology == nil { return errors.New("cluster: auto-discovered size needs a Topology") }
    } else if o.ClusterSize < 1 || o.ClusterSize > MaxNodes {
        return fmt.Errorf("cluster: cluster size %d outside 1..%d", o.ClusterSize, MaxNodes)
    }
    if o.Verifier == nil {
        return errors.New("cluster: nil Verifier")
    }
    if o.Mode.crossChecks() && o.StatusQuery == nil {
        return fmt.Errorf("cluster: run mode %s needs a StatusQuery", o.Mode)
    }
    if o.QuorumFraction < 0 || o.QuorumFraction > 1 {
        return fmt.Errorf("cluster: quorum fraction %v outside 0..1", o.QuorumFraction)
    }
    return nil
}
