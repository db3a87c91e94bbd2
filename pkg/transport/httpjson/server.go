package httpjson

import (
    "context"
    "crypto/tls"
    "fmt"
    "log"
    "net"
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    obsmetrics "github.com/amirimatin/go-clustercheck/pkg/observability/metrics"
    "github.com/amirimatin/go-clustercheck/pkg/observability/tracing"
    "github.com/amirimatin/go-clustercheck/pkg/transport"
)

// Server is a minimal HTTP server exposing the management endpoints /status,
// /nodes, /healthz and /metrics.
type Server struct {
    bind   string
    logger *log.Logger
    tlsCfg *tls.Config

    mu   sync.Mutex
    srv  *http.Server
    addr string
}

// NewServer binds to the given TCP address (e.g., ":17946"; ":0" picks a port).
func NewServer(bind string, logger *log.Logger) *Server {
    if logger == nil { logger = log.Default() }
    return &Server{bind: bind, logger: logger}
}

// UseTLS serves HTTPS with cfg; nil keeps plain HTTP.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// Start launches the HTTP server and registers handlers backed by the provided
// functions. The server is shut down when the context is canceled.
func (s *Server) Start(ctx context.Context, status transport.StatusFunc, nodes transport.NodesFunc) error {
    obsmetrics.Register()
    mux := http.NewServeMux()
    mux.HandleFunc("/status", jsonHandler(transport.EndpointStatus, status))
    mux.HandleFunc("/nodes", jsonHandler(transport.EndpointNodes, nodes))
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    // Prometheus metrics
    mux.Handle("/metrics", promhttp.Handler())

    ln, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    if s.tlsCfg != nil { ln = tls.NewListener(ln, s.tlsCfg) }
    srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
    s.mu.Lock()
    s.srv = srv
    s.addr = ln.Addr().String()
    s.mu.Unlock()

    go func() {
        <-ctx.Done()
        _ = s.Stop(context.Background())
    }()
    go func() {
        if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
            s.logger.Printf("httpjson: server error: %v", err)
        }
    }()
    return nil
}

func jsonHandler(endpoint string, fn func(context.Context) ([]byte, error)) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        if fn == nil {
            obsmetrics.MgmtRequests.WithLabelValues("http", endpoint, "unsupported").Inc()
            http.Error(w, endpoint+" not supported", http.StatusNotImplemented)
            return
        }
        ctx, end := tracing.StartSpan(r.Context(), "http."+endpoint)
        defer end()
        data, err := fn(ctx)
        if err != nil {
            obsmetrics.MgmtRequests.WithLabelValues("http", endpoint, "error").Inc()
            http.Error(w, fmt.Sprintf("%s error: %v", endpoint, err), http.StatusInternalServerError)
            return
        }
        obsmetrics.MgmtRequests.WithLabelValues("http", endpoint, "ok").Inc()
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write(data)
    }
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.addr != "" { return s.addr }
    return s.bind
}

// Stop attempts a graceful shutdown with a short timeout.
func (s *Server) Stop(ctx context.Context) error {
    s.mu.Lock()
    srv := s.srv
    s.srv = nil
    s.mu.Unlock()
    if srv == nil { return nil }
    c, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    return srv.Shutdown(c)
}

var _ transport.RPCServer = (*Server)(nil)
