package httpjson

import (
    "context"
    "crypto/tls"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"

    "github.com/amirimatin/go-clustercheck/pkg/transport"
)

// Client is a thin HTTP client for the management API with simple retry and
// backoff for robustness.
type Client struct {
    httpc     *http.Client
    transport *http.Transport
    scheme    string
}

// NewClient constructs a new Client with the given timeout.
func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    tr := http.DefaultTransport.(*http.Transport).Clone()
    return &Client{httpc: &http.Client{Timeout: timeout, Transport: tr}, transport: tr, scheme: "http"}
}

// UseTLS sets the TLS config for requests and switches bare addresses to
// https.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    c.transport.TLSClientConfig = cfg
    c.scheme = "http"
    if cfg != nil { c.scheme = "https" }
    return c
}

func (c *Client) GetStatus(ctx context.Context, addr string) ([]byte, error) {
    return c.get(ctx, addr, "/status")
}

func (c *Client) GetNodes(ctx context.Context, addr string) ([]byte, error) {
    return c.get(ctx, addr, "/nodes")
}

// get retries transport failures and 5xx answers up to three times. A 4xx
// answer is final.
func (c *Client) get(ctx context.Context, addr, path string) ([]byte, error) {
    url := addr + path
    if !strings.Contains(addr, "://") { url = c.scheme + "://" + url }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        b, retry, err := c.once(ctx, url)
        if err == nil { return b, nil }
        lastErr = err
        if !retry { return nil, err }
        // backoff unless context is done
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-time.After(time.Duration(100*(1<<attempt)) * time.Millisecond):
        }
    }
    return nil, lastErr
}

func (c *Client) once(ctx context.Context, url string) ([]byte, bool, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil { return nil, false, err }
    resp, err := c.httpc.Do(req)
    if err != nil { return nil, true, err }
    defer resp.Body.Close()
    b, err := io.ReadAll(resp.Body)
    if err != nil { return nil, true, err }
    if resp.StatusCode != http.StatusOK {
        return nil, resp.StatusCode >= 500, fmt.Errorf("%s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(b)))
    }
    return b, false, nil
}

var _ transport.RPCClient = (*Client)(nil)
