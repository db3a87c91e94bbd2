package grpc

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-clustercheck/pkg/internal/testcerts"
    tlsx "github.com/amirimatin/go-clustercheck/pkg/security/tlsconfig"
)

func TestMutualTLSRoundTrip(t *testing.T) {
    ca := testcerts.New(t, t.TempDir())
    srvCrt, srvKey := ca.Issue(t, "agent")
    cliCrt, cliKey := ca.Issue(t, "checker")

    srvTLS, err := tlsx.Options{Enable: true, CAFile: ca.CAFile, CertFile: srvCrt, KeyFile: srvKey}.Server()
    require.NoError(t, err)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    srv := NewServer("127.0.0.1:0").UseTLS(srvTLS)
    require.NoError(t, srv.Start(ctx, nil, func(context.Context) ([]byte, error) { return []byte(`[]`), nil }))
    defer srv.Stop(context.Background())

    cliTLS, err := tlsx.Options{Enable: true, CAFile: ca.CAFile, CertFile: cliCrt, KeyFile: cliKey}.Client()
    require.NoError(t, err)
    c := NewClient(2 * time.Second).UseTLS(cliTLS)
    defer c.Close()
    b, err := c.GetNodes(ctx, srv.Addr())
    require.NoError(t, err)
    assert.Equal(t, "[]", string(b))

    // insecure clients never complete the handshake
    plain := NewClient(300 * time.Millisecond)
    defer plain.Close()
    _, err = plain.GetNodes(ctx, srv.Addr())
    assert.Error(t, err)
}
