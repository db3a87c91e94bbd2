package transport

import "context"

// StatusFunc returns a JSON-encoded status payload for management /status.
// Using []byte avoids import cycles on cluster types.
type StatusFunc func(ctx context.Context) ([]byte, error)

// NodesFunc returns a JSON array of per-node membership records
// ({"node":101,"inCluster":true}) for management /nodes. A status agent
// serves it so a remote checker can cross-check its verifier.
type NodesFunc func(ctx context.Context) ([]byte, error)

// Endpoint names used in logs and metrics.
const (
    EndpointStatus = "status"
    EndpointNodes  = "nodes"
)

// RPCServer exposes the management endpoints. A nil func answers
// "not implemented" for its endpoint.
type RPCServer interface {
    Start(ctx context.Context, status StatusFunc, nodes NodesFunc) error
    Addr() string
    Stop(ctx context.Context) error
}

// RPCClient reads management endpoints of a checker or agent using the chosen
// protocol (HTTP/JSON or gRPC JSON codec).
type RPCClient interface {
    GetStatus(ctx context.Context, addr string) ([]byte, error)
    GetNodes(ctx context.Context, addr string) ([]byte, error)
}
