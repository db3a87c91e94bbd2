package grpc

import (
    "context"
    "sync"
    "time"

    "github.com/benbjohnson/clock"
    "google.golang.org/grpc"

    obsmetrics "github.com/amirimatin/go-clustercheck/pkg/observability/metrics"
)

// Dialer opens a client connection to target.
type Dialer func(ctx context.Context, target string) (*grpc.ClientConn, error)

// ConnManager caches management connections per address. A connection nobody
// holds is closed once it has been idle for the TTL, so a watch loop polling
// an agent every few seconds keeps one connection while a one-shot CLI call
// leaves nothing behind.
type ConnManager struct {
    mu    sync.Mutex
    conns map[string]*cachedConn
    ttl   time.Duration
    dial  Dialer
    clk   clock.Clock
    done  chan struct{}
    once  sync.Once
}

type cachedConn struct {
    cc       *grpc.ClientConn
    lastUsed time.Time
    holders  int
}

// NewConnManager creates a manager with the given idle TTL and dialer.
func NewConnManager(ttl time.Duration, dial Dialer) *ConnManager {
    return newConnManager(ttl, dial, clock.New())
}

func newConnManager(ttl time.Duration, dial Dialer, clk clock.Clock) *ConnManager {
    if ttl <= 0 { ttl = 30 * time.Second }
    m := &ConnManager{ttl: ttl, dial: dial, clk: clk, conns: make(map[string]*cachedConn), done: make(chan struct{})}
    go m.janitor()
    return m
}

// Get returns a connection for target and a release func to be called when done.
func (m *ConnManager) Get(ctx context.Context, target string) (*grpc.ClientConn, func(), error) {
    if cc, ok := m.hold(target); ok {
        return cc, func() { m.release(target) }, nil
    }

    // Dial outside lock
    cc, err := m.dial(ctx, target)
    if err != nil { return nil, func() {}, err }

    m.mu.Lock()
    defer m.mu.Unlock()
    if c, ok := m.conns[target]; ok {
        // another caller won the race
        _ = cc.Close()
        c.holders++
        c.lastUsed = m.clk.Now()
        obsmetrics.GRPCConnReuse.Inc()
        return c.cc, func() { m.release(target) }, nil
    }
    m.conns[target] = &cachedConn{cc: cc, lastUsed: m.clk.Now(), holders: 1}
    obsmetrics.GRPCConnDials.Inc()
    obsmetrics.GRPCConnActive.Inc()
    return cc, func() { m.release(target) }, nil
}

func (m *ConnManager) hold(target string) (*grpc.ClientConn, bool) {
    m.mu.Lock()
    defer m.mu.Unlock()
    c, ok := m.conns[target]
    if !ok { return nil, false }
    c.holders++
    c.lastUsed = m.clk.Now()
    return c.cc, true
}

func (m *ConnManager) release(target string) {
    m.mu.Lock()
    if c, ok := m.conns[target]; ok {
        if c.holders > 0 { c.holders-- }
        c.lastUsed = m.clk.Now()
    }
    m.mu.Unlock()
}

// Len reports the number of cached connections.
func (m *ConnManager) Len() int {
    m.mu.Lock()
    defer m.mu.Unlock()
    return len(m.conns)
}

// Close closes all cached connections and stops the janitor.
func (m *ConnManager) Close() {
    m.once.Do(func() { close(m.done) })
    m.mu.Lock()
    for k, c := range m.conns {
        _ = c.cc.Close()
        obsmetrics.GRPCConnActive.Dec()
        delete(m.conns, k)
    }
    m.mu.Unlock()
}

func (m *ConnManager) janitor() {
    ticker := m.clk.Ticker(m.ttl / 2)
    defer ticker.Stop()
    for {
        select {
        case <-m.done:
            return
        case <-ticker.C:
            m.evictIdle()
        }
    }
}

func (m *ConnManager) evictIdle() {
    cutoff := m.clk.Now().Add(-m.ttl)
    m.mu.Lock()
    defer m.mu.Unlock()
    for addr, c := range m.conns {
        if c.holders == 0 && c.lastUsed.Before(cutoff) {
            _ = c.cc.Close()
            obsmetrics.GRPCConnEvictions.Inc()
            obsmetrics.GRPCConnActive.Dec()
            delete(m.conns, addr)
        }
    }
}
