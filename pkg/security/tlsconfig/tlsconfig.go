package tlsconfig

import (
    "crypto/tls"
    "crypto/x509"
    "errors"
    "fmt"
    "os"
    "sync"
    "time"

    "github.com/benbjohnson/clock"
)

// ReloadInterval bounds how long a loaded key pair is reused before the files
// are read again, so rotated certificates are picked up without a restart.
const ReloadInterval = 10 * time.Second

var ErrNoKeyPair = errors.New("tls: cert and key files required")

// Options describes the management API's TLS material. With CAFile set the
// server requires client certificates signed by it and the client verifies
// the server against it.
type Options struct {
    Enable             bool
    CAFile             string
    CertFile           string
    KeyFile            string
    ServerName         string
    InsecureSkipVerify bool

    // Clock drives certificate reloads; tests inject a mock.
    Clock clock.Clock
}

// Server returns the server config, or nil when TLS is disabled.
func (o Options) Server() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    if o.CertFile == "" || o.KeyFile == "" { return nil, ErrNoKeyPair }
    kp := o.keyPair()
    // fail fast on unreadable files instead of at the first handshake
    if _, err := kp.get(); err != nil { return nil, err }
    cfg := &tls.Config{
        MinVersion:     tls.VersionTLS12,
        GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) { return kp.get() },
    }
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.ClientCAs = pool
        cfg.ClientAuth = tls.RequireAndVerifyClientCert
    }
    return cfg, nil
}

// Client returns the client config, or nil when TLS is disabled. A key pair
// is optional and presented when the server asks for one.
func (o Options) Client() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg := &tls.Config{
        MinVersion:         tls.VersionTLS12,
        ServerName:         o.ServerName,
        InsecureSkipVerify: o.InsecureSkipVerify, //nolint:gosec
    }
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.RootCAs = pool
    }
    if o.CertFile != "" || o.KeyFile != "" {
        if o.CertFile == "" || o.KeyFile == "" { return nil, ErrNoKeyPair }
        kp := o.keyPair()
        if _, err := kp.get(); err != nil { return nil, err }
        cfg.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) { return kp.get() }
    }
    return cfg, nil
}

func (o Options) keyPair() *keyPair {
    clk := o.Clock
    if clk == nil { clk = clock.New() }
    return &keyPair{certFile: o.CertFile, keyFile: o.KeyFile, clk: clk}
}

// keyPair caches a certificate loaded from disk for ReloadInterval.
type keyPair struct {
    certFile, keyFile string
    clk               clock.Clock

    mu       sync.Mutex
    cached   *tls.Certificate
    loadedAt time.Time
}

func (k *keyPair) get() (*tls.Certificate, error) {
    k.mu.Lock()
    defer k.mu.Unlock()
    now := k.clk.Now()
    if k.cached != nil && now.Sub(k.loadedAt) < ReloadInterval { return k.cached, nil }
    cert, err := tls.LoadX509KeyPair(k.certFile, k.keyFile)
    if err != nil {
        // keep serving the previous pair while a rotation is half written
        if k.cached != nil { return k.cached, nil }
        return nil, fmt.Errorf("tls: load key pair: %w", err)
    }
    k.cached, k.loadedAt = &cert, now
    return k.cached, nil
}

func loadPool(caFile string) (*x509.CertPool, error) {
    pem, err := os.ReadFile(caFile)
    if err != nil { return nil, fmt.Errorf("tls: read CA: %w", err) }
    pool := x509.NewCertPool()
    if !pool.AppendCertsFromPEM(pem) { return nil, fmt.Errorf("tls: no certificates in %s", caFile) }
    return pool, nil
}
