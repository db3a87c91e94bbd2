package grpc

import (
    "context"
    "crypto/tls"
    "net"
    "sync"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/codes"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/health"
    healthpb "google.golang.org/grpc/health/grpc_health_v1"
    "google.golang.org/grpc/keepalive"
    "google.golang.org/grpc/status"

    obsmetrics "github.com/amirimatin/go-clustercheck/pkg/observability/metrics"
    "github.com/amirimatin/go-clustercheck/pkg/observability/tracing"
    "github.com/amirimatin/go-clustercheck/pkg/transport"
)

const serviceName = "clustercheck.v1.Management"

// Server implements transport.RPCServer over gRPC using a JSON codec.
type Server struct {
    bind   string
    tlsCfg *tls.Config

    mu  sync.Mutex
    lis net.Listener
    srv *grpc.Server
}

func NewServer(bind string) *Server { return &Server{bind: bind} }

// UseTLS enables TLS for the gRPC server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// internal request/response types used over gRPC JSON codec
type empty struct{}
type blob struct {
    Data []byte `json:"data"`
}

// managementServer defines the methods we expose.
type managementServer interface {
    GetStatus(ctx context.Context, in *empty) (*blob, error)
    GetNodes(ctx context.Context, in *empty) (*blob, error)
}

type mgmtImpl struct {
    status transport.StatusFunc
    nodes  transport.NodesFunc
}

func (m *mgmtImpl) GetStatus(ctx context.Context, _ *empty) (*blob, error) {
    return serve(ctx, transport.EndpointStatus, m.status)
}

func (m *mgmtImpl) GetNodes(ctx context.Context, _ *empty) (*blob, error) {
    return serve(ctx, transport.EndpointNodes, m.nodes)
}

func serve(ctx context.Context, endpoint string, fn func(context.Context) ([]byte, error)) (*blob, error) {
    if fn == nil {
        obsmetrics.MgmtRequests.WithLabelValues("grpc", endpoint, "unsupported").Inc()
        return nil, status.Errorf(codes.Unimplemented, "%s not supported", endpoint)
    }
    ctx, end := tracing.StartSpan(ctx, "grpc."+endpoint)
    defer end()
    b, err := fn(ctx)
    if err != nil {
        obsmetrics.MgmtRequests.WithLabelValues("grpc", endpoint, "error").Inc()
        return nil, status.Errorf(codes.Internal, "%s error: %v", endpoint, err)
    }
    obsmetrics.MgmtRequests.WithLabelValues("grpc", endpoint, "ok").Inc()
    return &blob{Data: b}, nil
}

// Service descriptor and handlers (hand-written, no codegen required)
var _Management_serviceDesc = grpc.ServiceDesc{
    ServiceName: serviceName,
    HandlerType: (*managementServer)(nil),
    Methods: []grpc.MethodDesc{
        {MethodName: "GetStatus", Handler: _Management_GetStatus_Handler},
        {MethodName: "GetNodes", Handler: _Management_GetNodes_Handler},
    },
}

func _Management_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(empty)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(managementServer).GetStatus(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetStatus"}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(managementServer).GetStatus(ctx, req.(*empty))
    }
    return interceptor(ctx, in, info, handler)
}

func _Management_GetNodes_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(empty)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(managementServer).GetNodes(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetNodes"}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(managementServer).GetNodes(ctx, req.(*empty))
    }
    return interceptor(ctx, in, info, handler)
}

func (s *Server) Start(ctx context.Context, status transport.StatusFunc, nodes transport.NodesFunc) error {
    obsmetrics.Register()
    lis, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    // Force JSON codec to avoid requiring protobuf types
    var opts []grpc.ServerOption
    opts = append(opts, grpc.ForceServerCodec(jsonCodec{}))
    opts = append(opts, grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 5 * time.Second, PermitWithoutStream: true}))
    opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{Time: 30 * time.Second, Timeout: 10 * time.Second}))
    if s.tlsCfg != nil { opts = append(opts, grpc.Creds(credentials.NewTLS(s.tlsCfg))) }
    srv := grpc.NewServer(opts...)
    // Health service (always serving for now)
    healthpb.RegisterHealthServer(srv, health.NewServer())
    srv.RegisterService(&_Management_serviceDesc, &mgmtImpl{status: status, nodes: nodes})

    s.mu.Lock()
    s.lis, s.srv = lis, srv
    s.mu.Unlock()

    go func() {
        <-ctx.Done()
        c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
        defer cancel()
        _ = s.Stop(c)
    }()
    go func() { _ = srv.Serve(lis) }()
    return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.lis != nil { return s.lis.Addr().String() }
    return s.bind
}

func (s *Server) Stop(ctx context.Context) error {
    s.mu.Lock()
    srv := s.srv
    s.srv = nil
    s.mu.Unlock()
    if srv == nil { return nil }
    ch := make(chan struct{})
    go func() { srv.GracefulStop(); close(ch) }()
    select {
    case <-ch:
    case <-ctx.Done():
        srv.Stop()
    }
    return nil
}

var _ transport.RPCServer = (*Server)(nil)
