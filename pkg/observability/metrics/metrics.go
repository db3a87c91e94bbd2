package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    Refreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Name:      "refreshes_total",
        Help:      "Cluster state refreshes by result",
    }, []string{"result"})

    RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
        Namespace: "go_clustercheck",
        Name:      "refresh_duration_seconds",
        Help:      "Wall time of a refresh including probe, verifier and status query",
        // verifier runs may retry internally for a minute or more
        Buckets: prometheus.ExponentialBuckets(0.05, 2, 13),
    })

    VerifierAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Subsystem: "verifier",
        Name:      "attempts_total",
        Help:      "Verifier invocations by parse result",
    }, []string{"result"})

    CrossCheckFailures = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Name:      "crosscheck_failures_total",
        Help:      "Refreshes where verifier and status query disagreed",
    })

    AliveNodes = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "go_clustercheck",
        Name:      "alive_nodes",
        Help:      "Nodes up and in the cluster as of the last refresh",
    })

    StateChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Name:      "state_checks_total",
        Help:      "Expected-state comparisons by outcome",
    }, []string{"result"})

    Mismatches = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Name:      "mismatches_total",
        Help:      "Individual expected-vs-actual mismatches reported",
    })

    Warnings = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Name:      "warnings_total",
        Help:      "Tolerated role anomalies reported as warnings",
    })

    DiskCountOps = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Subsystem: "quorum",
        Name:      "disk_count_ops_total",
        Help:      "Disk count applications by result",
    }, []string{"result"})

    QuorumOps = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Subsystem: "quorum",
        Name:      "ops_total",
        Help:      "Quorum gain/lose operations by op and result",
    }, []string{"op", "result"})

    AgentQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Subsystem: "agent",
        Name:      "node_queries_total",
        Help:      "Node membership queries served by the status agent",
    }, []string{"result"})

    MgmtRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Subsystem: "mgmt",
        Name:      "requests_total",
        Help:      "Management requests served by protocol, endpoint and result",
    }, []string{"proto", "endpoint", "result"})

    GRPCConnDials = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Subsystem: "grpc",
        Name:      "conn_dials_total",
        Help:      "Management client connections dialed",
    })

    GRPCConnReuse = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Subsystem: "grpc",
        Name:      "conn_reuse_total",
        Help:      "Dials discarded in favour of a cached connection",
    })

    GRPCConnActive = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "go_clustercheck",
        Subsystem: "grpc",
        Name:      "conn_active",
        Help:      "Cached management client connections",
    })

    GRPCConnEvictions = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_clustercheck",
        Subsystem: "grpc",
        Name:      "conn_evictions_total",
        Help:      "Idle management client connections closed",
    })
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(Refreshes)
        prometheus.MustRegister(RefreshDuration)
        prometheus.MustRegister(VerifierAttempts)
        prometheus.MustRegister(CrossCheckFailures)
        prometheus.MustRegister(AliveNodes)
        prometheus.MustRegister(StateChecks)
        prometheus.MustRegister(Mismatches)
        prometheus.MustRegister(Warnings)
        prometheus.MustRegister(DiskCountOps)
        prometheus.MustRegister(QuorumOps)
        prometheus.MustRegister(AgentQueries)
        prometheus.MustRegister(MgmtRequests)
        prometheus.MustRegister(GRPCConnDials)
        prometheus.MustRegister(GRPCConnReuse)
        prometheus.MustRegister(GRPCConnActive)
        prometheus.MustRegister(GRPCConnEvictions)
    })
}
