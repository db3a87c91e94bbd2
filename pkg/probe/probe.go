package probe

import (
    "context"
    "errors"
    "fmt"
    "net"
    "strconv"
    "time"
)

// Prober checks whether a host answers at all. A nil error means reachable;
// ErrUnreachable means the host definitely did not answer; any other error
// means the probe itself could not be carried out.
type Prober interface {
    Probe(ctx context.Context, host string) error
}

// ErrUnreachable marks a host that refused or timed out.
var ErrUnreachable = errors.New("probe: host unreachable")

// TCP probes by opening a TCP connection to a well-known port (ssh by default).
type TCP struct {
    Port    int
    Timeout time.Duration
}

func (p TCP) Probe(ctx context.Context, host string) error {
    port := p.Port
    if port == 0 { port = 22 }
    timeout := p.Timeout
    if timeout <= 0 { timeout = 2 * time.Second }
    addr := host
    if _, _, err := net.SplitHostPort(host); err != nil {
        addr = net.JoinHostPort(host, strconv.Itoa(port))
    }
    d := net.Dialer{Timeout: timeout}
    conn, err := d.DialContext(ctx, "tcp", addr)
    if err == nil {
        _ = conn.Close()
        return nil
    }
    var dnsErr *net.DNSError
    if errors.As(err, &dnsErr) {
        return fmt.Errorf("probe: resolve %s: %w", host, err)
    }
    if ctx.Err() != nil { return ctx.Err() }
    return fmt.Errorf("%w: %s: %v", ErrUnreachable, addr, err)
}

var _ Prober = TCP{}
